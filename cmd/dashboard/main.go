package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/banshee-data/sensors.dashboard/internal/chart"
	"github.com/banshee-data/sensors.dashboard/internal/config"
	"github.com/banshee-data/sensors.dashboard/internal/dashboard"
	"github.com/banshee-data/sensors.dashboard/internal/fsutil"
	"github.com/banshee-data/sensors.dashboard/internal/httputil"
	"github.com/banshee-data/sensors.dashboard/internal/monitoring"
	"github.com/banshee-data/sensors.dashboard/internal/security"
	"github.com/banshee-data/sensors.dashboard/internal/sth"
	"github.com/banshee-data/sensors.dashboard/internal/version"
)

var (
	configPath  = flag.String("config", "", "Path to a JSON config file")
	envFile     = flag.String("env-file", "", "Optional .env file with DASHBOARD_* variables")
	listen      = flag.String("listen", "", "Listen address (overrides config)")
	logLevel    = flag.String("log-level", "", "Log level: debug, info, warn, error (overrides config)")
	devMode     = flag.Bool("dev", false, "Poll a built-in fake STH-Comet instead of the configured host")
	writeConfig = flag.String("write-config", "", "Write the effective config as JSON to this path and exit")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

// applyFlags overrides cfg with the flags that were set explicitly on fs.
func applyFlags(cfg *config.Config, fs *flag.FlagSet) {
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "listen":
			cfg.Listen = f.Value.String()
		case "log-level":
			cfg.LogLevel = f.Value.String()
		}
	})
}

// startFakeSTH serves the fake STH-Comet for the given fiware-service on a
// loopback port until ctx is cancelled and returns its base URL.
func startFakeSTH(ctx context.Context, wg *sync.WaitGroup, service string) (string, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", fmt.Errorf("listen for fake STH: %w", err)
	}
	fake := sth.NewFakeServer(nil, 5*time.Second)
	fake.Service = service
	server := &http.Server{
		Handler:           fake.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		go func() {
			if err := server.Serve(ln); err != nil && err != http.ErrServerClosed {
				log.Printf("fake STH server error: %v", err)
			}
		}()
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			_ = server.Close()
		}
		log.Printf("fake STH routine stopped")
	}()

	return "http://" + ln.Addr().String(), nil
}

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}

	cfg, err := config.Load(fsutil.OSFileSystem{}, *configPath, *envFile)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	applyFlags(cfg, flag.CommandLine)
	if err := cfg.Validate(); err != nil {
		log.Fatalf("%v", err)
	}

	if *writeConfig != "" {
		if err := security.ValidateWritePath(*writeConfig); err != nil {
			log.Fatalf("refusing to write config: %v", err)
		}
		if err := cfg.Save(fsutil.OSFileSystem{}, *writeConfig); err != nil {
			log.Fatalf("%v", err)
		}
		return
	}

	if err := monitoring.Configure(cfg.LogLevel, cfg.LogJSON); err != nil {
		log.Fatalf("%v", err)
	}
	loc, err := cfg.Location()
	if err != nil {
		log.Fatalf("%v", err)
	}
	monitoring.Logf("sensors dashboard %s", version.String())

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	baseURL := cfg.BaseURL()
	if *devMode {
		baseURL, err = startFakeSTH(ctx, &wg, cfg.FiwareService)
		if err != nil {
			log.Fatalf("%v", err)
		}
		monitoring.Logf("dev mode: polling fake STH-Comet at %s", baseURL)
	}

	client := sth.NewClient(httputil.NewStandardClient(nil), baseURL)
	client.Service = cfg.FiwareService
	client.ServicePath = cfg.FiwareServicePath

	session := dashboard.NewSession(dashboard.DefaultSignals(), cfg.MaxHistory, loc, time.Now())
	poller := dashboard.NewPoller(session, client, dashboard.PollerConfig{
		Interval:     cfg.GetPollInterval(),
		LastN:        cfg.LastN,
		FetchTimeout: cfg.GetFetchTimeout(),
	})
	ws := dashboard.NewWebServer(dashboard.WebServerConfig{
		Address:         cfg.Listen,
		Session:         session,
		Poller:          poller,
		RefreshInterval: cfg.GetRefreshInterval(),
		AssetsHost:      cfg.AssetsHost,
	})
	monitoring.Logf("session %s: %d signals from %s, display timezone %s, assets %s",
		session.ID, len(session.Signals), baseURL, loc, assetsHost(cfg.AssetsHost))

	// poll loop
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := poller.Run(ctx); err != nil {
			log.Printf("poller error: %v", err)
		}
		log.Print("poll routine terminated")
	}()

	// HTTP server
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := ws.Start(ctx); err != nil {
			log.Printf("HTTP server error: %v", err)
			stop()
		}
	}()

	wg.Wait()
	log.Printf("Graceful shutdown complete")
}

func assetsHost(configured string) string {
	if configured == "" {
		return chart.DefaultAssetsHost
	}
	return configured
}
