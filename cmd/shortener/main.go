package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/acme/autocert"
	"golang.org/x/sync/errgroup"

	"github.com/atinyakov/shortlink/internal/app/server"
	grpcserver "github.com/atinyakov/shortlink/internal/app/server/grpc"
	"github.com/atinyakov/shortlink/internal/app/service"
	"github.com/atinyakov/shortlink/internal/config"
	"github.com/atinyakov/shortlink/internal/logger"
	"github.com/atinyakov/shortlink/internal/ssrf"
	"github.com/atinyakov/shortlink/internal/worker"

	_ "net/http/pprof"
)

var buildVersion string
var buildDate string
var buildCommit string

const (
	pprofAddr       = "localhost:6060"
	shutdownTimeout = 10 * time.Second
)

func main() {
	printBuildInfo(os.Stdout)

	options, err := config.Parse()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	log := logger.New()
	if err := log.Init(options.LogLevel); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, options, log); err != nil {
		log.Log.Error("shortener stopped with error", zap.Error(err))
		log.Sync()
		os.Exit(1)
	}
}

func printBuildInfo(w io.Writer) {
	orNA := func(s string) string {
		if s == "" {
			return "N/A"
		}
		return s
	}

	fmt.Fprintf(w, "Build version: %s\n", orNA(buildVersion))
	fmt.Fprintf(w, "Build date: %s\n", orNA(buildDate))
	fmt.Fprintf(w, "Build commit: %s\n", orNA(buildCommit))
}

// run serves until ctx is cancelled, then shuts every component down and
// lets the aggregator do its final flush before backends are closed.
func run(ctx context.Context, options *config.Options, log *logger.Logger) error {
	zapLogger := log.Log

	b, err := openBackends(ctx, options, zapLogger)
	if err != nil {
		return err
	}
	defer b.Close()

	if !options.RunAggregator && options.RedisURL == "" {
		zapLogger.Warn("in-process counter needs the in-process aggregator, enabling it")
		options.RunAggregator = true
	}

	shortener := service.NewURLShortener(b.store, b.cache, ssrf.NewGuard(nil), log.Component("shortener"), options.ResultHostname, options.CacheTTL)
	resolver := service.NewURLResolver(b.store, b.cache, b.counter, log.Component("resolver"), options.CacheTTL)
	urlService := service.NewURL(b.store, shortener, resolver)

	httpServer := &http.Server{
		Addr:              options.Port,
		Handler:           server.Init(urlService, log.Component("http")),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return serveHTTP(httpServer, options, zapLogger)
	})

	var grpcSrv *grpcserver.Server
	if options.GRPCAddress != "" {
		grpcSrv = grpcserver.New(options.GRPCAddress, log.Component("grpc"), urlService)
		g.Go(grpcSrv.Start)
	}

	if options.RunAggregator {
		agg := worker.NewClickAggregator(log.Component("aggregator"), b.store, b.counter, options.FlushInterval)
		g.Go(func() error { return agg.Run(gctx) })
	}

	sweeper := worker.NewOrphanSweeper(log.Component("sweeper"), b.store, options.SweepInterval, options.OrphanGrace)
	g.Go(func() error { return sweeper.Run(gctx) })

	var pprofServer *http.Server
	if options.EnablePprof {
		pprofServer = &http.Server{Addr: pprofAddr, ReadHeaderTimeout: 5 * time.Second}
		g.Go(func() error {
			zapLogger.Info("Starting pprof server", zap.String("addr", pprofAddr))
			if err := pprofServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				zapLogger.Error("pprof server error", zap.Error(err))
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		zapLogger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			zapLogger.Error("http shutdown", zap.Error(err))
		}
		if grpcSrv != nil {
			grpcSrv.GracefulStop()
		}
		if pprofServer != nil {
			_ = pprofServer.Shutdown(shutdownCtx)
		}
		return nil
	})

	return g.Wait()
}

func serveHTTP(srv *http.Server, options *config.Options, logger *zap.Logger) error {
	var err error

	if options.EnableHTTPS {
		manager := &autocert.Manager{
			Cache:      autocert.DirCache("cache-dir"),
			Prompt:     autocert.AcceptTOS,
			HostPolicy: autocert.HostWhitelist(options.TLSHosts...),
		}
		srv.Addr = ":443"
		srv.TLSConfig = manager.TLSConfig()

		logger.Info("Server is running with TLS", zap.Strings("hosts", options.TLSHosts))
		err = srv.ListenAndServeTLS("", "")
	} else {
		logger.Info("Server is running", zap.String("hostname", srv.Addr))
		err = srv.ListenAndServe()
	}

	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
