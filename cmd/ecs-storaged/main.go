package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"

	"ckbecs.dev/ecs/config"
	"ckbecs.dev/ecs/internal/logging"
	"ckbecs.dev/ecs/storage"
	"ckbecs.dev/ecs/storage/grpccas"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stderr))
}

func run(ctx context.Context, args []string, errOut io.Writer) int {
	fs := flag.NewFlagSet("ecs-storaged", flag.ContinueOnError)
	fs.SetOutput(errOut)
	listen := fs.String("listen", "127.0.0.1:7777", "listen address")
	dir := fs.String("dir", "", "Serve a single local CAS directory")
	configPath := fs.String("config", "", "TOML configuration file (serves its [store] section)")
	logLevel := fs.String("log-level", "", "Log level (overrides config)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 0 || (*dir == "") == (*configPath == "") {
		fmt.Fprintln(errOut, "usage: ecs-storaged (--dir <path> | --config <file>) [--listen <addr>] [--log-level <level>]")
		return 2
	}

	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			fmt.Fprintf(errOut, "config: %v\n", err)
			return 2
		}
	} else {
		cfg.Store.Backends = []config.Backend{{Name: "dir", Kind: config.KindLocalFS, Dir: *dir}}
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	logger, err := logging.New("ecs-storaged", cfg.LogLevel, errOut)
	if err != nil {
		fmt.Fprintf(errOut, "logging: %v\n", err)
		return 2
	}

	cas, closeStore, err := cfg.OpenStore()
	defer closeStore()
	if err != nil {
		logger.Error().Err(err).Msg("open store")
		return 1
	}

	lis, err := net.Listen("tcp", *listen)
	if err != nil {
		logger.Error().Err(err).Str("listen", *listen).Msg("listen")
		return 1
	}
	if err := serve(ctx, lis, cas, logger); err != nil {
		logger.Error().Err(err).Msg("serve")
		return 1
	}
	return 0
}

// serve runs the CAS service on lis until ctx is done.
func serve(ctx context.Context, lis net.Listener, cas storage.CAS, logger zerolog.Logger) error {
	s := grpc.NewServer(grpc.UnaryInterceptor(grpccas.LoggingInterceptor(logger)))
	grpccas.RegisterCASServer(s, &grpccas.Server{CAS: cas})

	go func() {
		<-ctx.Done()
		s.GracefulStop()
	}()

	logger.Info().Str("addr", lis.Addr().String()).Msg("listening")
	if err := s.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}
	return nil
}
