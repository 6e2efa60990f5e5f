package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"listing_harvester/internal/app"
	"listing_harvester/internal/harvest"
	"listing_harvester/internal/output"
	"listing_harvester/internal/service/web"
	"listing_harvester/internal/shared/config"
	"listing_harvester/internal/shared/logger"
	"listing_harvester/internal/shared/types"
)

func main() {
	configDir := flag.String("configdir", "configs", "Path to config directory")
	keywords := flag.String("keywords", "", "Keywords separated by \",,\"")
	locations := flag.String("locations", "", "Locations separated by \",,\", one per keyword")
	proxyList := flag.String("proxy", "", "Inline proxy list host:port[:user:pass] separated by \",,\"; enables proxies")
	proxySource := flag.String("proxy-source", "", "Proxy candidate file (txt or csv); enables proxies")
	outputPath := flag.String("output", "", "Output CSV path")
	flag.Parse()

	iniPath := filepath.Join(*configDir, "harvester.ini")
	envPath := filepath.Join(*configDir, ".env")

	cfg := types.DefaultConfig()
	if err := config.LoadIni(cfg, iniPath); err != nil {
		// Use standard fmt before logger is initialized.
		fmt.Fprintf(os.Stderr, "Fatal: Failed to load config file '%s': %v\n", iniPath, err)
		os.Exit(1)
	}
	if err := config.LoadEnv(cfg, envPath); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal: Failed to load env file '%s': %v\n", envPath, err)
		os.Exit(1)
	}

	// Flags take precedence over ini and env.
	if *keywords != "" {
		cfg.Keywords = *keywords
	}
	if *locations != "" {
		cfg.Locations = *locations
	}
	if *proxyList != "" {
		cfg.ProxyConf.Source = *proxyList
		cfg.ProxyConf.Enabled = true
	}
	if *proxySource != "" {
		cfg.ProxyConf.File = *proxySource
		cfg.ProxyConf.Enabled = true
	}
	if *outputPath != "" {
		cfg.Output = *outputPath
	}

	if err := logger.Init(cfg.LogConf); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal: Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	input, err := config.ParseRunInput(cfg.Keywords, cfg.Locations, cfg.ProxyConf)
	if err != nil {
		logger.Error().Err(err).Msg("Invalid run input.")
		os.Exit(2)
	}

	os.Exit(run(cfg, input))
}

func run(cfg *types.Config, input *config.RunInput) int {
	var wg sync.WaitGroup
	hub := web.NewHub()
	go hub.Run()
	defer hub.Stop()

	rc := harvest.NewRunContext(app.NewRunID(), func(ev harvest.ProgressEvent) {
		hub.BroadcastProgress(ev)
	})

	srv, err := web.StartServer(&wg, cfg.WebConf.Port, rc.State, hub)
	if err != nil {
		logger.Error().Err(err).Msg("Progress feed unavailable.")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		// First signal stops scheduling new work, a second one aborts in-flight requests.
		if _, ok := <-sigCh; !ok {
			return
		}
		logger.Warn().Msg("Stop requested, finishing in-flight requests. Press Ctrl+C again to abort.")
		rc.Stop()
		if _, ok := <-sigCh; !ok {
			return
		}
		logger.Warn().Msg("Aborting.")
		cancel()
	}()

	summary, err := app.New(cfg).Run(ctx, rc, input)
	hub.BroadcastStatusUpdate()

	if srv != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 3*time.Second)
		_ = srv.Shutdown(shutdownCtx)
		shutdownCancel()
		wg.Wait()
	}

	switch {
	case errors.Is(err, output.ErrNoData):
		return 0
	case config.IsConfigError(err):
		logger.Error().Err(err).Msg("Invalid configuration.")
		return 2
	case err != nil:
		logger.Error().Err(err).Msg("Run failed.")
		return 1
	}
	fmt.Printf("Saved %d records to %s\n", summary.Records, summary.OutputPath)
	return 0
}
