package agentrpc

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"
)

// ProtocolError reports a malformed JSON-RPC envelope received from
// the agent.
type ProtocolError struct {
	Detail string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("malformed JSON-RPC envelope: %s", e.Detail)
}

// Client is the controller-side caller for a deployed agent. Calls are
// serialized; the agent answers in order on the same connection.
type Client struct {
	conn    net.Conn
	reader  *bufio.Reader
	encoder *json.Encoder
	mu      sync.Mutex
	nextID  int64
}

func Dial(addr string, timeout time.Duration) (*Client, error) {
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return nil, fmt.Errorf("failed to reach agent at %s: %w", addr, err)
	}

	return &Client{
		conn:    conn,
		reader:  bufio.NewReaderSize(conn, 4*1024*1024),
		encoder: json.NewEncoder(conn),
		nextID:  1,
	}, nil
}

// Call invokes a method and decodes the result into result (which may
// be nil to discard it). A JSON-RPC error response is returned as
// *Error; a malformed response as *ProtocolError.
func (c *Client) Call(method string, params any, result any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextID
	c.nextID++

	req := Request{
		JSONRPC: "2.0",
		ID:      json.RawMessage(strconv.FormatInt(id, 10)),
		Method:  method,
	}
	if params != nil {
		raw, err := json.Marshal(params)
		if err != nil {
			return fmt.Errorf("failed to encode params: %w", err)
		}
		req.Params = raw
	}

	if err := c.encoder.Encode(req); err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}

	line, err := c.reader.ReadBytes('\n')
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	var resp struct {
		JSONRPC string          `json:"jsonrpc"`
		ID      json.RawMessage `json:"id"`
		Result  json.RawMessage `json:"result"`
		Error   *Error          `json:"error"`
	}
	if err := json.Unmarshal(line, &resp); err != nil {
		return &ProtocolError{Detail: err.Error()}
	}
	if resp.JSONRPC != "2.0" {
		return &ProtocolError{Detail: fmt.Sprintf("unexpected version %q", resp.JSONRPC)}
	}
	if string(resp.ID) != strconv.FormatInt(id, 10) {
		return &ProtocolError{Detail: fmt.Sprintf("response id %s does not match request id %d", resp.ID, id)}
	}

	if resp.Error != nil {
		return resp.Error
	}

	if result != nil && len(resp.Result) > 0 {
		if err := json.Unmarshal(resp.Result, result); err != nil {
			return &ProtocolError{Detail: fmt.Sprintf("undecodable result: %v", err)}
		}
	}

	return nil
}

func (c *Client) Close() error {
	return c.conn.Close()
}

// Error implements the error interface so RPC errors flow through
// ordinary error handling on the controller side.
func (e *Error) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}
