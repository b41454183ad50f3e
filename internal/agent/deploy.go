package agent

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/nodeforge/nodeforge/internal/ssh"
	"github.com/nodeforge/nodeforge/internal/types"
)

// Deployer transfers the packaged agent to a prepared host, installs a
// systemd unit for it, and starts it. The archive travels base64-encoded
// over the SSH session, so no side channel (scp/sftp) is needed. The
// archive is expected to contain a launcher at its root named after the
// configured process name.
type Deployer struct {
	packager *Packager
	cache    *ArchiveCache
	cfg      types.AgentConfig
	logger   *zap.Logger
}

func NewDeployer(packager *Packager, cache *ArchiveCache, cfg types.AgentConfig, logger *zap.Logger) *Deployer {
	return &Deployer{
		packager: packager,
		cache:    cache,
		cfg:      cfg,
		logger:   logger,
	}
}

// Deploy pushes the agent to the host and starts it. Each remote
// command must exit zero; the first failure aborts the deploy.
func (d *Deployer) Deploy(exec ssh.Executor) error {
	archive, version, err := d.archive()
	if err != nil {
		return err
	}

	d.logger.Info("deploying agent",
		zap.String("host", exec.Host()),
		zap.String("version", version),
		zap.Int("archive_bytes", len(archive)),
	)

	if err := d.run(exec, fmt.Sprintf("sudo mkdir -p %s", d.cfg.RemoteDir)); err != nil {
		return err
	}

	unpack := fmt.Sprintf("sudo bash -c 'base64 -d <<\"NODEFORGE_EOF\" | tar -xz -C %s\n%s\nNODEFORGE_EOF'",
		d.cfg.RemoteDir, archive)
	if err := d.run(exec, unpack); err != nil {
		return err
	}

	if err := d.run(exec, fmt.Sprintf("sudo chmod +x %s/%s", d.cfg.RemoteDir, d.cfg.ProcessName)); err != nil {
		return err
	}

	if err := d.installService(exec); err != nil {
		return err
	}

	return d.run(exec, fmt.Sprintf("sudo systemctl restart %s.service", d.cfg.ProcessName))
}

// Verify checks that the agent unit reports active.
func (d *Deployer) Verify(exec ssh.Executor) error {
	result, err := exec.Execute(fmt.Sprintf("sudo systemctl is-active %s.service", d.cfg.ProcessName))
	if err != nil {
		return err
	}
	if !result.Ok() {
		return fmt.Errorf("agent service not active: %s", strings.TrimSpace(result.Stdout+result.Stderr))
	}
	return nil
}

func (d *Deployer) archive() (string, string, error) {
	version := d.packager.Version()

	if d.cache != nil {
		if cached := d.cache.Get(version); cached != "" {
			return cached, version, nil
		}
	}

	archive, err := d.packager.Package()
	if err != nil {
		return "", "", err
	}

	if d.cache != nil {
		if err := d.cache.Put(version, archive); err != nil {
			d.logger.Warn("failed to cache agent archive", zap.Error(err))
		}
	}

	return archive, version, nil
}

func (d *Deployer) installService(exec ssh.Executor) error {
	unit := fmt.Sprintf(`[Unit]
Description=nodeforge control agent
After=network.target docker.service

[Service]
Type=simple
WorkingDirectory=%s
ExecStart=%s/%s --listen %s
Restart=always
RestartSec=10

[Install]
WantedBy=multi-user.target`,
		d.cfg.RemoteDir, d.cfg.RemoteDir, d.cfg.ProcessName, d.cfg.ListenAddr)

	cmd := fmt.Sprintf("sudo bash -c 'cat > /etc/systemd/system/%s.service << EOL\n%s\nEOL'",
		d.cfg.ProcessName, unit)
	if err := d.run(exec, cmd); err != nil {
		return err
	}

	commands := []string{
		"sudo systemctl daemon-reload",
		fmt.Sprintf("sudo systemctl enable %s.service", d.cfg.ProcessName),
	}
	for _, c := range commands {
		if err := d.run(exec, c); err != nil {
			return err
		}
	}
	return nil
}

func (d *Deployer) run(exec ssh.Executor, command string) error {
	result, err := exec.Execute(command)
	if err != nil {
		return err
	}
	if !result.Ok() {
		return fmt.Errorf("command %q exited %d: %s",
			summarize(command), result.ExitStatus, strings.TrimSpace(result.Stderr))
	}
	return nil
}

// summarize keeps archive payloads out of error messages.
func summarize(command string) string {
	if idx := strings.IndexByte(command, '\n'); idx != -1 {
		return command[:idx] + " ..."
	}
	if len(command) > 120 {
		return command[:120] + " ..."
	}
	return command
}
