package agentrpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/pkg/stdcopy"
)

// handlerFunc executes one RPC method. A non-nil *Error becomes the
// JSON-RPC error object of the response.
type handlerFunc func(ctx context.Context, params json.RawMessage) (any, *Error)

func (s *Server) methods() map[string]handlerFunc {
	return map[string]handlerFunc{
		"agent.ping":              s.handlePing,
		"agent.version":           s.handleVersion,
		"docker.info":             s.handleInfo,
		"docker.listContainers":   s.handleListContainers,
		"docker.startContainer":   s.handleStartContainer,
		"docker.stopContainer":    s.handleStopContainer,
		"docker.restartContainer": s.handleRestartContainer,
		"docker.removeContainer":  s.handleRemoveContainer,
		"docker.listImages":       s.handleListImages,
		"docker.containerLogs":    s.handleContainerLogs,
	}
}

func invalidParams(detail string) *Error {
	return &Error{Code: codeInvalidParams, Message: "invalid params", Data: detail}
}

func internalError(err error) *Error {
	return &Error{Code: codeInternalError, Message: "internal error", Data: err.Error()}
}

// containerParams is the common parameter shape for single-container
// operations.
type containerParams struct {
	ContainerID string `json:"container_id"`
	Timeout     *int   `json:"timeout,omitempty"`
	Force       bool   `json:"force,omitempty"`
	Tail        string `json:"tail,omitempty"`
}

func decodeContainerParams(params json.RawMessage) (containerParams, *Error) {
	var p containerParams
	if len(params) == 0 {
		return p, invalidParams("container_id is required")
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return p, invalidParams(fmt.Sprintf("malformed params: %v", err))
	}
	if p.ContainerID == "" {
		return p, invalidParams("container_id is required")
	}
	return p, nil
}

type listParams struct {
	All bool `json:"all,omitempty"`
}

func decodeListParams(params json.RawMessage) (listParams, *Error) {
	var p listParams
	if len(params) == 0 {
		return p, nil
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return p, invalidParams(fmt.Sprintf("malformed params: %v", err))
	}
	return p, nil
}

func (s *Server) handlePing(ctx context.Context, _ json.RawMessage) (any, *Error) {
	return map[string]string{"status": "ok"}, nil
}

func (s *Server) handleVersion(ctx context.Context, _ json.RawMessage) (any, *Error) {
	return map[string]string{"version": s.version}, nil
}

func (s *Server) handleInfo(ctx context.Context, _ json.RawMessage) (any, *Error) {
	cli, err := s.runtime.Client()
	if err != nil {
		return nil, internalError(err)
	}

	info, err := cli.Info(ctx)
	if err != nil {
		return nil, internalError(err)
	}
	return info, nil
}

func (s *Server) handleListContainers(ctx context.Context, params json.RawMessage) (any, *Error) {
	p, perr := decodeListParams(params)
	if perr != nil {
		return nil, perr
	}

	cli, err := s.runtime.Client()
	if err != nil {
		return nil, internalError(err)
	}

	containers, err := cli.ContainerList(ctx, container.ListOptions{All: p.All})
	if err != nil {
		return nil, internalError(err)
	}
	return containers, nil
}

func (s *Server) handleStartContainer(ctx context.Context, params json.RawMessage) (any, *Error) {
	p, perr := decodeContainerParams(params)
	if perr != nil {
		return nil, perr
	}

	cli, err := s.runtime.Client()
	if err != nil {
		return nil, internalError(err)
	}

	if err := cli.ContainerStart(ctx, p.ContainerID, container.StartOptions{}); err != nil {
		return nil, internalError(err)
	}
	return map[string]string{"container_id": p.ContainerID, "status": "started"}, nil
}

func (s *Server) handleStopContainer(ctx context.Context, params json.RawMessage) (any, *Error) {
	p, perr := decodeContainerParams(params)
	if perr != nil {
		return nil, perr
	}

	cli, err := s.runtime.Client()
	if err != nil {
		return nil, internalError(err)
	}

	if err := cli.ContainerStop(ctx, p.ContainerID, container.StopOptions{Timeout: p.Timeout}); err != nil {
		return nil, internalError(err)
	}
	return map[string]string{"container_id": p.ContainerID, "status": "stopped"}, nil
}

func (s *Server) handleRestartContainer(ctx context.Context, params json.RawMessage) (any, *Error) {
	p, perr := decodeContainerParams(params)
	if perr != nil {
		return nil, perr
	}

	cli, err := s.runtime.Client()
	if err != nil {
		return nil, internalError(err)
	}

	if err := cli.ContainerRestart(ctx, p.ContainerID, container.StopOptions{Timeout: p.Timeout}); err != nil {
		return nil, internalError(err)
	}
	return map[string]string{"container_id": p.ContainerID, "status": "restarted"}, nil
}

func (s *Server) handleRemoveContainer(ctx context.Context, params json.RawMessage) (any, *Error) {
	p, perr := decodeContainerParams(params)
	if perr != nil {
		return nil, perr
	}

	cli, err := s.runtime.Client()
	if err != nil {
		return nil, internalError(err)
	}

	if err := cli.ContainerRemove(ctx, p.ContainerID, container.RemoveOptions{Force: p.Force}); err != nil {
		return nil, internalError(err)
	}
	return map[string]string{"container_id": p.ContainerID, "status": "removed"}, nil
}

func (s *Server) handleListImages(ctx context.Context, params json.RawMessage) (any, *Error) {
	p, perr := decodeListParams(params)
	if perr != nil {
		return nil, perr
	}

	cli, err := s.runtime.Client()
	if err != nil {
		return nil, internalError(err)
	}

	images, err := cli.ImageList(ctx, image.ListOptions{All: p.All})
	if err != nil {
		return nil, internalError(err)
	}
	return images, nil
}

func (s *Server) handleContainerLogs(ctx context.Context, params json.RawMessage) (any, *Error) {
	p, perr := decodeContainerParams(params)
	if perr != nil {
		return nil, perr
	}

	tail := p.Tail
	if tail == "" {
		tail = "100"
	}

	cli, err := s.runtime.Client()
	if err != nil {
		return nil, internalError(err)
	}

	reader, err := cli.ContainerLogs(ctx, p.ContainerID, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Tail:       tail,
	})
	if err != nil {
		return nil, internalError(err)
	}
	defer reader.Close()

	var stdout, stderr bytes.Buffer
	if _, err := stdcopy.StdCopy(&stdout, &stderr, reader); err != nil {
		return nil, internalError(err)
	}

	return map[string]string{
		"stdout": stdout.String(),
		"stderr": stderr.String(),
	}, nil
}
