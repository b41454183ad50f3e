package ssh

import (
	"bytes"
	"fmt"
	"net"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/ssh"

	"github.com/nodeforge/nodeforge/internal/types"
)

// Credentials carries decrypted SSH secrets for a host. Password auth
// is used when Password is set; otherwise PrivateKey (an in-memory PEM
// string, never a file path) with an optional passphrase.
type Credentials struct {
	Password   string
	PrivateKey string
	Passphrase string
}

// Client is an established SSH session to a single host.
type Client struct {
	client         *ssh.Client
	host           string
	commandTimeout time.Duration
	logger         *zap.Logger
}

// ExecResult is the outcome of one remote command. A non-zero
// ExitStatus is data, not an error.
type ExecResult struct {
	Stdout     string
	Stderr     string
	ExitStatus int
}

// Ok reports whether the command exited zero.
func (r ExecResult) Ok() bool { return r.ExitStatus == 0 }

// Connect dials the host and completes the SSH handshake. The connect
// timeout bounds the TCP dial; the banner timeout bounds the version
// exchange and authentication via a deadline on the raw connection.
//
// Unknown host keys are auto-trusted. This is a deliberate trade-off
// for low-friction homelab use, carried over from how this tool has
// always behaved; pinning a known-hosts store is the alternative for
// hostile networks.
func Connect(server types.Server, creds Credentials, cfg types.SSHConfig, logger *zap.Logger) (*Client, error) {
	addr := net.JoinHostPort(server.Host, fmt.Sprintf("%d", port(server)))

	auth, err := authMethod(creds)
	if err != nil {
		return nil, &AuthenticationError{Host: server.Host, Err: err}
	}

	clientConfig := &ssh.ClientConfig{
		User:            server.Username,
		Auth:            []ssh.AuthMethod{auth},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         cfg.ConnectTimeout,
	}

	conn, err := net.DialTimeout("tcp", addr, cfg.ConnectTimeout)
	if err != nil {
		return nil, &ConnectionError{Host: server.Host, Err: err}
	}

	// Bound the banner exchange and auth; cleared once the handshake
	// completes so long-running commands are not cut off.
	if cfg.BannerTimeout > 0 {
		if err := conn.SetDeadline(time.Now().Add(cfg.BannerTimeout)); err != nil {
			conn.Close()
			return nil, &ConnectionError{Host: server.Host, Err: err}
		}
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, clientConfig)
	if err != nil {
		conn.Close()
		if isAuthFailure(err) {
			return nil, &AuthenticationError{Host: server.Host, Err: err}
		}
		return nil, &ConnectionError{Host: server.Host, Err: err}
	}

	if err := conn.SetDeadline(time.Time{}); err != nil {
		sshConn.Close()
		return nil, &ConnectionError{Host: server.Host, Err: err}
	}

	logger.Debug("ssh session established",
		zap.String("host", server.Host),
		zap.String("user", server.Username),
	)

	return &Client{
		client:         ssh.NewClient(sshConn, chans, reqs),
		host:           server.Host,
		commandTimeout: cfg.CommandTimeout,
		logger:         logger,
	}, nil
}

func port(server types.Server) int {
	if server.Port == 0 {
		return 22
	}
	return server.Port
}

func authMethod(creds Credentials) (ssh.AuthMethod, error) {
	if creds.Password != "" {
		return ssh.Password(creds.Password), nil
	}

	if creds.PrivateKey == "" {
		return nil, fmt.Errorf("no password or private key provided")
	}

	if creds.Passphrase != "" {
		signer, err := ssh.ParsePrivateKeyWithPassphrase([]byte(creds.PrivateKey), []byte(creds.Passphrase))
		if err != nil {
			return nil, fmt.Errorf("unable to parse private key: %w", err)
		}
		return ssh.PublicKeys(signer), nil
	}

	signer, err := ssh.ParsePrivateKey([]byte(creds.PrivateKey))
	if err != nil {
		return nil, fmt.Errorf("unable to parse private key: %w", err)
	}
	return ssh.PublicKeys(signer), nil
}

func isAuthFailure(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "unable to authenticate") ||
		strings.Contains(msg, "permission denied") ||
		strings.Contains(msg, "no supported methods remain")
}

// Execute runs a command and captures its output. The configured
// command timeout bounds the run; a command still running at the
// deadline surfaces as a CommandExecutionError.
func (c *Client) Execute(command string) (ExecResult, error) {
	session, err := c.client.NewSession()
	if err != nil {
		return ExecResult{}, &CommandExecutionError{Command: command, Err: err}
	}
	defer session.Close()

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr

	done := make(chan error, 1)
	go func() { done <- session.Run(command) }()

	var timeout <-chan time.Time
	if c.commandTimeout > 0 {
		timer := time.NewTimer(c.commandTimeout)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case err = <-done:
	case <-timeout:
		session.Close()
		return ExecResult{}, &CommandExecutionError{
			Command: command,
			Err:     fmt.Errorf("command timed out after %s", c.commandTimeout),
		}
	}

	result := ExecResult{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}

	if err != nil {
		exitErr, ok := err.(*ssh.ExitError)
		if !ok {
			return ExecResult{}, &CommandExecutionError{Command: command, Err: err}
		}
		result.ExitStatus = exitErr.ExitStatus()
	}

	return result, nil
}

// Host returns the remote host this client is connected to.
func (c *Client) Host() string { return c.host }

func (c *Client) Close() error {
	return c.client.Close()
}
