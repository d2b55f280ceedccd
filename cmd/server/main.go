package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/jrsteele09/go-billing-portal/internal/config"
	"github.com/jrsteele09/go-billing-portal/internal/logging"
	"github.com/jrsteele09/go-billing-portal/internal/telemetry"
	"github.com/jrsteele09/go-billing-portal/server"
	"github.com/jrsteele09/go-billing-portal/sessions"
	"github.com/jrsteele09/go-billing-portal/sessions/memstore"
	"github.com/jrsteele09/go-billing-portal/sessions/redisstore"
	"github.com/rs/zerolog/log"
)

func main() {
	for {
		if err := run(); err != nil {
			log.Error().Err(err).Msg("Error running server")
			time.Sleep(1 * time.Second)
		} else {
			break
		}
	}
	log.Info().Msg("Server stopped")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("panic", fmt.Sprint(r)).Str("stack", string(debug.Stack())).Msg("Recovered from panic")
			returnError = errors.New("panic recovered")
		}
	}()

	c := config.New()
	logging.Setup(c.GetEnv(), c.GetLogLevel())
	displayAppname(c.GetAppName())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing, err := telemetry.InitTraceProvider(ctx, c.GetOTLPEndpoint(), c.GetAppName(), c.GetVersion())
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			log.Err(err).Msg("trace provider shutdown")
		}
	}()

	store, closeStore, err := sessionStore(ctx, c)
	if err != nil {
		return err
	}
	defer closeStore()

	handler, err := server.New(c, store, server.Options{})
	if err != nil {
		return fmt.Errorf("server.New: %w", err)
	}

	httpServer := &http.Server{
		Addr:              c.GetPort(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errs := make(chan error, 1)
	go func() { errs <- listenAndServe(httpServer) }()

	select {
	case err := <-errs:
		return err
	case <-waitForStopSignal():
	}
	return shutdown(httpServer)
}

// sessionStore picks redis when REDIS_ADDR is set and process memory otherwise.
func sessionStore(ctx context.Context, c config.Config) (sessions.ServerStore, func(), error) {
	if addr := c.GetRedisAddr(); addr != "" {
		client, err := redisstore.Dial(ctx, addr, c.GetRedisPassword(), c.GetRedisDB())
		if err != nil {
			return nil, nil, fmt.Errorf("redis session store: %w", err)
		}
		log.Info().Str("addr", addr).Msg("sessions stored in redis")
		return redisstore.New(client, redisstore.DefaultPrefix), func() { _ = client.Close() }, nil
	}

	store := memstore.New()
	log.Warn().Msg("sessions stored in process memory, they will not survive a restart")
	return store, func() {}, nil
}

func listenAndServe(server *http.Server) error {
	log.Info().Str("addr", server.Addr).Msg("Server listening")
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
}

func waitForStopSignal() <-chan os.Signal {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	return stop
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
