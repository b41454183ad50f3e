package agentrpc

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"

	"go.uber.org/zap"
)

// Server speaks JSON-RPC 2.0 over newline-delimited JSON. The protocol
// and dispatch live here; the transport binding (a TCP listener in the
// agent binary, an in-memory pipe in tests) is the caller's concern.
// An internal failure never escapes the protocol boundary: it is
// always translated into a well-formed error response.
type Server struct {
	runtime  *Runtime
	version  string
	logger   *zap.Logger
	handlers map[string]handlerFunc
}

func NewServer(runtime *Runtime, version string, logger *zap.Logger) *Server {
	s := &Server{
		runtime: runtime,
		version: version,
		logger:  logger,
	}
	s.handlers = s.methods()
	return s
}

// Serve accepts connections and runs the protocol loop on each.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	go func() {
		<-ctx.Done()
		listener.Close()
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("accept failed: %w", err)
		}

		go func() {
			defer conn.Close()
			if err := s.Run(ctx, conn, conn); err != nil {
				s.logger.Warn("rpc connection ended", zap.Error(err))
			}
		}()
	}
}

// Run processes requests from input and writes responses to output
// until input reaches EOF. One request per line.
func (s *Server) Run(ctx context.Context, input io.Reader, output io.Writer) error {
	scanner := bufio.NewScanner(input)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	encoder := json.NewEncoder(output)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req Request
		if err := json.Unmarshal(line, &req); err != nil {
			if writeErr := encoder.Encode(errorResponse(nil, codeParseError, "parse error", err.Error())); writeErr != nil {
				return writeErr
			}
			continue
		}

		if req.JSONRPC != "2.0" {
			if !req.IsNotification() {
				if writeErr := encoder.Encode(errorResponse(req.ID, codeInvalidRequest, "unsupported JSON-RPC version", nil)); writeErr != nil {
					return writeErr
				}
			}
			continue
		}

		if req.IsNotification() {
			continue
		}

		if err := encoder.Encode(s.dispatch(ctx, &req)); err != nil {
			return err
		}
	}

	return scanner.Err()
}

// dispatch routes one request to its handler, converting panics into
// internal errors so the protocol loop survives.
func (s *Server) dispatch(ctx context.Context, req *Request) (resp Response) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("rpc handler panicked",
				zap.String("method", req.Method),
				zap.Any("panic", r),
			)
			resp = errorResponse(req.ID, codeInternalError, "internal error", fmt.Sprint(r))
		}
	}()

	handler, ok := s.handlers[req.Method]
	if !ok {
		return errorResponse(req.ID, codeMethodNotFound,
			fmt.Sprintf("method not found: %s", req.Method), nil)
	}

	result, rpcErr := handler(ctx, req.Params)
	if rpcErr != nil {
		return Response{JSONRPC: "2.0", ID: req.ID, Error: rpcErr}
	}

	return resultResponse(req.ID, result)
}
