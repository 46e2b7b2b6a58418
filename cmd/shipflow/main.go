// Command shipflow serves the mock checkout backend or drives a scripted demo
// through a shipment form session on the configured slot store.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"expvar"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"shipflow/internal/adapters/checkoutapi"
	"shipflow/internal/config"
	"shipflow/internal/core"
	"shipflow/internal/demo"
	"shipflow/internal/kv"
)

const shutdownTimeout = 5 * time.Second

var exitFunc = os.Exit

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := cli(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	exitFunc(code)
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "usage: shipflow <serve|demo|scenarios> [flags]")
}

func cli(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		usage(stderr)
		return 2
	}
	var err error
	switch args[0] {
	case "serve":
		err = runServe(ctx, args[1:], stderr)
	case "demo":
		err = runDemo(ctx, args[1:], stdout, stderr)
	case "scenarios":
		err = listScenarios(stdout)
	case "-h", "--help", "help":
		usage(stdout)
		return 0
	default:
		fmt.Fprintf(stderr, "unknown command %q\n", args[0])
		usage(stderr)
		return 2
	}
	switch {
	case err == nil:
		return 0
	case errors.Is(err, flag.ErrHelp):
		return 0
	case errors.Is(err, errBelowThreshold):
		fmt.Fprintln(stderr, err)
		return 1
	default:
		fmt.Fprintf(stderr, "shipflow %s: %v\n", args[0], err)
		return 1
	}
}

func loadConfig(path string) (config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

type serveFlags struct {
	configPath string
	addr       string
}

func runServe(ctx context.Context, args []string, stderr io.Writer) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var f serveFlags
	fs.StringVar(&f.configPath, "config", "", "path to shipflow.toml")
	fs.StringVar(&f.addr, "addr", "", "listen address (overrides config)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := loadConfig(f.configPath)
	if err != nil {
		return err
	}
	if f.addr != "" {
		cfg.HTTPAddr = f.addr
	}
	logger := cfg.NewLogger(stderr)

	store, err := kv.Open(ctx, cfg.KV)
	if err != nil {
		return fmt.Errorf("open slot store: %w", err)
	}
	defer func() {
		if cerr := kv.Close(store); cerr != nil {
			logger.Warn("close slot store", "err", cerr)
		}
	}()

	ln, err := net.Listen("tcp", cfg.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.HTTPAddr, err)
	}
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	mux, err := newMux(store, reg, logger)
	if err != nil {
		_ = ln.Close()
		return err
	}
	logger.Info("shipflow listening", "addr", ln.Addr().String(), "driver", store.Driver())
	return serve(ctx, ln, mux, logger)
}

func newMux(store kv.Store, reg *prometheus.Registry, logger *slog.Logger) (*http.ServeMux, error) {
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "shipflow_api_requests_total",
		Help: "Checkout API requests by status code and method.",
	}, []string{"code", "method"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "shipflow_api_request_duration_seconds",
		Help:    "Checkout API request latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"code", "method"})
	for _, c := range []prometheus.Collector{requests, latency} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register metrics: %w", err)
		}
	}

	svc := checkoutapi.NewService(checkoutapi.WithLogger(logger))
	api := promhttp.InstrumentHandlerDuration(latency,
		promhttp.InstrumentHandlerCounter(requests, checkoutapi.NewHandler(svc)))

	mux := http.NewServeMux()
	mux.Handle("/api/", api)
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.Handle("/debug/vars", expvar.Handler())
	mux.HandleFunc("/debug/slots", slotsHandler(store))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	return mux, nil
}

// slotsHandler lists stored slot keys, optionally filtered by ?prefix=.
func slotsHandler(store kv.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		keys, err := store.Keys(r.Context(), r.URL.Query().Get("prefix"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if keys == nil {
			keys = []string{}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"driver": store.Driver(), "keys": keys})
	}
}

func serve(ctx context.Context, ln net.Listener, h http.Handler, logger *slog.Logger) error {
	srv := &http.Server{Handler: h, ReadHeaderTimeout: 5 * time.Second}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve http: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shipflow shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(sctx)
	})
	return g.Wait()
}

var errBelowThreshold = errors.New("demo fill rate below threshold")

type demoFlags struct {
	configPath string
	scenario   string
	pace       time.Duration
	save       bool
}

func runDemo(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("demo", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var f demoFlags
	fs.StringVar(&f.configPath, "config", "", "path to shipflow.toml")
	fs.StringVar(&f.scenario, "scenario", "manufacturing", "scenario name (see shipflow scenarios)")
	fs.DurationVar(&f.pace, "pace", 0, "delay between scripted field writes")
	fs.BoolVar(&f.save, "save", true, "save the form once the scenario completes")
	if err := fs.Parse(args); err != nil {
		return err
	}
	sc, ok := demo.Lookup(f.scenario)
	if !ok {
		return fmt.Errorf("unknown scenario %q", f.scenario)
	}
	cfg, err := loadConfig(f.configPath)
	if err != nil {
		return err
	}
	logger := cfg.NewLogger(stderr)
	store, err := kv.Open(ctx, cfg.KV)
	if err != nil {
		return fmt.Errorf("open slot store: %w", err)
	}
	defer func() { _ = kv.Close(store) }()

	metrics := core.NewExpvarMetricsRecorder("")
	opts := append(cfg.SessionOptions(),
		core.WithStore(store),
		core.WithLogger(logger),
		core.WithMetricsRecorder(metrics),
	)
	form, err := core.NewShipmentForm(ctx, opts...)
	if err != nil {
		return fmt.Errorf("open shipment form: %w", err)
	}
	defer func() { _ = form.Close() }()

	if err := demo.Run(ctx, form, sc, f.pace); err != nil {
		return err
	}
	if f.save {
		if err := form.Save(ctx); err != nil {
			return fmt.Errorf("save form: %w", err)
		}
	}

	rate := demo.FillRate(form.Record(), sc)
	progress := form.Progress()
	fmt.Fprintf(stdout, "scenario:    %s (%s)\n", sc.Name, sc.Title)
	fmt.Fprintf(stdout, "fill rate:   %.0f%%\n", rate*100)
	fmt.Fprintf(stdout, "progress:    %d%% (%d/%d fields)\n", progress.Percentage, progress.CompletedFields, progress.TotalFields)
	fmt.Fprintf(stdout, "can advance: %t\n", form.CanNavigateNext())
	fmt.Fprintf(stdout, "saved to:    %s (%s)\n", form.StorageKey(), store.Driver())
	if rate < demo.PassThreshold {
		return fmt.Errorf("%w: %.2f < %.2f", errBelowThreshold, rate, demo.PassThreshold)
	}
	return nil
}

func listScenarios(stdout io.Writer) error {
	for _, sc := range demo.Scenarios() {
		fmt.Fprintf(stdout, "%-14s %s (%d steps)\n", sc.Name, sc.Title, len(sc.Steps))
	}
	return nil
}
