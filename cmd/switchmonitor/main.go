package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"switchmonitor/internal/config"
	"switchmonitor/internal/metrics"
	"switchmonitor/internal/monitor"
	"switchmonitor/internal/probe"
	"switchmonitor/internal/server"
	"switchmonitor/internal/storage"
	"switchmonitor/internal/tui"
)

func main() {
	var (
		configPath = flag.String("config", "config.yaml", "path to configuration file (YAML)")
		addr       = flag.String("addr", "", "address for the web server (overrides web.addr)")
		noUI       = flag.Bool("no-ui", false, "disable the terminal display")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if *addr != "" {
		cfg.Web.Addr = *addr
	}
	if *noUI {
		cfg.UI.Enabled = false
	}

	// the terminal display owns stdout
	if cfg.UI.Enabled {
		logFile, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			log.Fatalf("open log file: %v", err)
		}
		defer logFile.Close()
		log.SetOutput(logFile)
	}
	log.Printf("Loaded %d device(s) from %s", len(cfg.Devices), cfg.DevicesFile)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Printf("SwitchMonitor failed: %v", err)
		if cfg.UI.Enabled {
			fmt.Fprintf(os.Stderr, "switchmonitor: %v\n", err)
		}
		stop()
		os.Exit(1)
	}
}

// display is the terminal view as run by the process.
type display interface {
	Run(ctx context.Context) error
}

var newDisplay = func(src tui.Source) (display, error) {
	ui, err := tui.New(src)
	if err != nil {
		return nil, err
	}
	return ui, nil
}

// run wires every component and blocks until ctx is done or the display
// quits. Everything started here is shut down before it returns.
func run(ctx context.Context, cfg config.Config) error {
	ctx, stop := context.WithCancel(ctx)
	defer stop()

	prober, err := probe.New(cfg.Probe)
	if err != nil {
		return fmt.Errorf("initialise probe: %w", err)
	}

	store, err := openStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initialise storage: %w", err)
	}
	defer store.Close()

	sinks, closers, err := buildSinks(ctx, cfg, store)
	if err != nil {
		return fmt.Errorf("initialise sinks: %w", err)
	}
	defer func() {
		for _, c := range closers {
			_ = c.Close()
		}
	}()

	met := metrics.New()
	engine := monitor.NewEngine(cfg.Devices, cfg.ProbeWorkers)
	interval := time.Duration(cfg.IntervalSeconds) * time.Second
	mon := monitor.New(engine, probe.DeviceFunc(prober), sinks, interval, met)
	mon.Start()
	defer mon.Stop()

	srv := server.New(cfg.Web.Addr, mon, store, met.Handler(), cfg.Web.HistoryLimit)
	go func() {
		log.Printf("SwitchMonitor listening on %s (%s probe, interval %s)", cfg.Web.Addr, cfg.Probe.Kind, interval)
		if err := srv.Run(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("server error: %v", err)
			stop()
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("server shutdown: %v", err)
		}
		log.Printf("SwitchMonitor stopped")
	}()

	if cfg.UI.Enabled {
		ui, err := newDisplay(mon)
		if err != nil {
			return fmt.Errorf("initialise display: %w", err)
		}
		if err := ui.Run(ctx); err != nil {
			log.Printf("display: %v", err)
		}
		return nil
	}
	<-ctx.Done()
	return nil
}

func openStore(ctx context.Context, cfg config.Config) (storage.Store, error) {
	switch cfg.Storage.Driver {
	case config.StorageMySQL:
		return storage.OpenMySQL(ctx, cfg.Storage.MySQL)
	default:
		return storage.NewFileStore(cfg.Storage.Path, cfg.Storage.MaxRecords)
	}
}

// buildSinks wraps the primary store and every enabled mirror in its own
// circuit breaker.
func buildSinks(ctx context.Context, cfg config.Config, primary storage.Store) ([]storage.Sink, []io.Closer, error) {
	openFor := time.Duration(cfg.Breaker.OpenSeconds) * time.Second
	wrap := func(s storage.Sink) storage.Sink {
		return storage.NewBreakerSink(s, cfg.Breaker.MaxFailures, openFor)
	}

	sinks := []storage.Sink{wrap(primary)}
	var closers []io.Closer

	if cfg.Influx.Enabled {
		influx, err := storage.NewInfluxSink(cfg.Influx)
		if err != nil {
			return nil, nil, err
		}
		sinks = append(sinks, wrap(influx))
		closers = append(closers, influx)
	}
	if cfg.MQTT.Enabled {
		mq, err := storage.NewMQTTSink(ctx, cfg.MQTT)
		if err != nil {
			for _, c := range closers {
				_ = c.Close()
			}
			return nil, nil, err
		}
		sinks = append(sinks, wrap(mq))
		closers = append(closers, mq)
	}
	return sinks, closers, nil
}
