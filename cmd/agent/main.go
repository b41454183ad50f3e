package main

import (
	"context"
	"flag"
	"net"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/nodeforge/nodeforge/internal/agentrpc"
)

func main() {
	listenAddr := flag.String("listen", "127.0.0.1:9821", "address to listen on")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	var logger *zap.Logger
	var err error
	if *debug {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	listener, err := net.Listen("tcp", *listenAddr)
	if err != nil {
		logger.Fatal("failed to listen", zap.String("addr", *listenAddr), zap.Error(err))
	}

	logger.Info("agent listening", zap.String("addr", *listenAddr), zap.String("version", Version))

	runtime := agentrpc.NewRuntime(nil)
	defer runtime.Reset()

	server := agentrpc.NewServer(runtime, Version, logger)
	if err := server.Serve(ctx, listener); err != nil {
		logger.Fatal("serve failed", zap.Error(err))
	}
}
