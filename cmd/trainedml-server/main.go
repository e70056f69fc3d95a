// Command trainedml-server serves trainers over HTTP.
//
//	trainedml-server --addr :8080
//	curl -X POST localhost:8080/v1/trainers -d '{"dataset":"iris","model":"knn"}'
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	arg "github.com/alexflint/go-arg"
	"github.com/gin-gonic/gin"

	"github.com/YuminosukeSato/trainedml/config"
	"github.com/YuminosukeSato/trainedml/datasets"
	"github.com/YuminosukeSato/trainedml/pkg/errors"
	"github.com/YuminosukeSato/trainedml/pkg/log"
	"github.com/YuminosukeSato/trainedml/server"
)

const shutdownTimeout = 10 * time.Second

type args struct {
	Addr        string `arg:"--addr" help:"listen address (default: :8080)"`
	Config      string `arg:"--config" help:"config file (yaml, json or toml)"`
	LogLevel    string `arg:"--log-level" help:"debug, info, warn or error"`
	MaxTrainers int    `arg:"--max-trainers" help:"trainers kept in memory (default: 64)"`
}

func (args) Description() string {
	return "trainedml-server: train models and serve predictions over HTTP"
}

func main() {
	var a args
	arg.MustParse(&a)

	if err := serve(a); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		for _, h := range errors.Hints(err) {
			fmt.Fprintf(os.Stderr, "  hint: %s\n", h)
		}
		os.Exit(1)
	}
}

func serve(a args) error {
	cfg, err := config.Load(a.Config)
	if err != nil {
		return err
	}
	if a.Addr != "" {
		cfg.Server.Addr = a.Addr
	}
	if a.LogLevel != "" {
		cfg.Logger.Level = a.LogLevel
	}
	if a.MaxTrainers != 0 {
		cfg.Server.MaxTrainers = a.MaxTrainers
	}
	if err := log.SetupLogger(cfg.Logger.Level, cfg.Logger.Format, os.Stderr); err != nil {
		return err
	}
	logger := log.GetLogger()
	gin.SetMode(gin.ReleaseMode)

	loader, err := datasets.NewLoader(
		datasets.WithCacheDir(cfg.Cache.Dir),
		datasets.WithTimeout(cfg.HTTP.Timeout),
		datasets.WithMemoryEntries(cfg.Cache.MemoryEntries),
		datasets.WithLogger(logger),
		datasets.WithRemoteOnly(),
	)
	if err != nil {
		return err
	}
	s, err := server.New(
		server.WithLoader(loader),
		server.WithLogger(logger),
		server.WithMaxTrainers(cfg.Server.MaxTrainers),
		server.WithDefaults(cfg.Seed, cfg.TestSize),
	)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errc := make(chan error, 1)
	go func() {
		logger.Info("Server listening", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return errors.Wrap(err, "listen")
	case <-ctx.Done():
	}

	logger.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "shutdown")
	}
	logger.Info("Server stopped")
	return nil
}
