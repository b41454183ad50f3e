package agentrpc

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newPipeReader(conn net.Conn) *bufio.Reader {
	return bufio.NewReader(conn)
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	return NewServer(NewRuntime(nil), "1.0.0-test", zap.NewNop())
}

func runRequests(t *testing.T, s *Server, lines ...string) []map[string]any {
	t.Helper()

	input := strings.NewReader(strings.Join(lines, "\n") + "\n")
	var output bytes.Buffer
	require.NoError(t, s.Run(context.Background(), input, &output))

	var responses []map[string]any
	decoder := json.NewDecoder(&output)
	for decoder.More() {
		var resp map[string]any
		require.NoError(t, decoder.Decode(&resp))
		responses = append(responses, resp)
	}
	return responses
}

func TestSuccessEnvelopeShape(t *testing.T) {
	responses := runRequests(t, newTestServer(t),
		`{"jsonrpc":"2.0","id":7,"method":"agent.ping"}`)

	require.Len(t, responses, 1)
	resp := responses[0]

	assert.Equal(t, "2.0", resp["jsonrpc"])
	assert.Equal(t, float64(7), resp["id"])
	assert.Equal(t, map[string]any{"status": "ok"}, resp["result"])
	_, hasError := resp["error"]
	assert.False(t, hasError, "success responses omit the error member")
}

func TestMethodNotFound(t *testing.T) {
	responses := runRequests(t, newTestServer(t),
		`{"jsonrpc":"2.0","id":"abc","method":"docker.launchMissiles"}`)

	require.Len(t, responses, 1)
	resp := responses[0]

	assert.Equal(t, "2.0", resp["jsonrpc"])
	assert.Equal(t, "abc", resp["id"])
	rpcErr := resp["error"].(map[string]any)
	assert.Equal(t, float64(codeMethodNotFound), rpcErr["code"])
	assert.Contains(t, rpcErr["message"], "docker.launchMissiles")
	_, hasResult := resp["result"]
	assert.False(t, hasResult, "error responses omit the result member")
}

func TestParseErrorYieldsNullID(t *testing.T) {
	responses := runRequests(t, newTestServer(t), `{not json at all`)

	require.Len(t, responses, 1)
	resp := responses[0]

	assert.Nil(t, resp["id"])
	rpcErr := resp["error"].(map[string]any)
	assert.Equal(t, float64(codeParseError), rpcErr["code"])
}

func TestInvalidVersionRejected(t *testing.T) {
	responses := runRequests(t, newTestServer(t),
		`{"jsonrpc":"1.0","id":3,"method":"agent.ping"}`)

	require.Len(t, responses, 1)
	rpcErr := responses[0]["error"].(map[string]any)
	assert.Equal(t, float64(codeInvalidRequest), rpcErr["code"])
	assert.Equal(t, float64(3), responses[0]["id"])
}

func TestNotificationGetsNoResponse(t *testing.T) {
	responses := runRequests(t, newTestServer(t),
		`{"jsonrpc":"2.0","method":"agent.ping"}`,
		`{"jsonrpc":"2.0","id":1,"method":"agent.version"}`)

	require.Len(t, responses, 1, "only the identified request is answered")
	result := responses[0]["result"].(map[string]any)
	assert.Equal(t, "1.0.0-test", result["version"])
}

func TestInvalidParamsCarriesDetail(t *testing.T) {
	responses := runRequests(t, newTestServer(t),
		`{"jsonrpc":"2.0","id":9,"method":"docker.startContainer","params":{}}`)

	require.Len(t, responses, 1)
	rpcErr := responses[0]["error"].(map[string]any)
	assert.Equal(t, float64(codeInvalidParams), rpcErr["code"])
	assert.Contains(t, rpcErr["data"], "container_id")
}

func TestClientServerOverPipe(t *testing.T) {
	serverConn, clientConn := net.Pipe()
	defer clientConn.Close()

	s := newTestServer(t)
	go s.Run(context.Background(), serverConn, serverConn)

	client := &Client{
		conn:    clientConn,
		reader:  newPipeReader(clientConn),
		encoder: json.NewEncoder(clientConn),
		nextID:  1,
	}

	var pong map[string]string
	require.NoError(t, client.Call("agent.ping", nil, &pong))
	assert.Equal(t, "ok", pong["status"])

	var version map[string]string
	require.NoError(t, client.Call("agent.version", nil, &version))
	assert.Equal(t, "1.0.0-test", version["version"])

	err := client.Call("no.such.method", nil, nil)
	var rpcErr *Error
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, codeMethodNotFound, rpcErr.Code)
}

func TestServeOverTCP(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := newTestServer(t)
	go s.Serve(ctx, listener)

	client, err := Dial(listener.Addr().String(), 2*time.Second)
	require.NoError(t, err)
	defer client.Close()

	var pong map[string]string
	require.NoError(t, client.Call("agent.ping", nil, &pong))
	assert.Equal(t, "ok", pong["status"])
}
