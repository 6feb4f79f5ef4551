package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gustycube/pingscope/internal/analysis"
	"github.com/gustycube/pingscope/internal/config"
	"github.com/gustycube/pingscope/internal/dedup"
	"github.com/gustycube/pingscope/internal/emit"
	"github.com/gustycube/pingscope/internal/health"
	"github.com/gustycube/pingscope/internal/ingest"
	"github.com/gustycube/pingscope/internal/logging"
	"github.com/gustycube/pingscope/internal/metrics"
	"github.com/gustycube/pingscope/internal/report"
	"github.com/gustycube/pingscope/internal/store"
	"github.com/gustycube/pingscope/internal/telemetry"
	"github.com/gustycube/pingscope/internal/topology"
)

const version = "1.0.0"

func main() {
	var configFile string
	var logs string
	var reportName string
	var outputFormat string
	var continuous int
	var debounce int
	var window int
	var threshold float64
	var networkDebounce int
	var skipHostDowntime bool
	var skipHostOverload bool
	var subnets string
	var concurrency int
	var watch bool
	var queueAddr string
	var publish bool
	var ingestURL string
	var dsn string
	var table string
	var runID string
	var spoolDir string
	var metricsAddr string
	var otelEndpoint string
	var otelInsecure bool
	var otelService string
	var mtlsCert, mtlsKey, mtlsCA string
	var showVersion bool

	flag.StringVar(&configFile, "config", "", "path to config file (YAML or JSON)")
	flag.StringVar(&logs, "log", "", "comma-separated ping log files (positional arguments are added too)")
	flag.StringVar(&reportName, "report", "", "report to print: downtime, overload, error or network")
	flag.StringVar(&outputFormat, "format", "", "output format (text, json, jsonl, csv)")
	flag.IntVar(&continuous, "continuous", 0, "set debounce, overload window and network debounce at once")
	flag.IntVar(&debounce, "debounce", 0, "minimum consecutive timeouts reported as host downtime")
	flag.IntVar(&window, "window", 0, "overload averaging window (samples)")
	flag.Float64Var(&threshold, "threshold", 0, "overload threshold (ms)")
	flag.IntVar(&networkDebounce, "network_debounce", 0, "per-host debounce before intersecting network downtime")
	flag.BoolVar(&skipHostDowntime, "skip_host_downtime", false, "leave host downtime out of the network report")
	flag.BoolVar(&skipHostOverload, "skip_host_overload", false, "leave host overload out of the network report")
	flag.StringVar(&subnets, "subnets", "", "comma-separated subnets used to group hosts")
	flag.IntVar(&concurrency, "concurrency", 0, "hosts analysed concurrently")
	flag.BoolVar(&watch, "watch", false, "re-run the report whenever a log file changes")
	flag.StringVar(&queueAddr, "queue", "", "redis addr to drain log lines from instead of files")
	flag.BoolVar(&publish, "publish", false, "publish events (to stdout when no ingest or dsn is set)")
	flag.StringVar(&ingestURL, "ingest", "", "ingest endpoint for detected events")
	flag.StringVar(&dsn, "dsn", "", "postgres DSN to upsert detected events into")
	flag.StringVar(&table, "table", "", "table for -dsn")
	flag.StringVar(&runID, "run", "", "run id attached to published batches")
	flag.StringVar(&spoolDir, "spool_dir", "", "spool dir for failed batches")
	flag.StringVar(&metricsAddr, "metrics_addr", "", "metrics listen addr (empty to disable)")
	flag.StringVar(&otelEndpoint, "otel_endpoint", "", "OTLP HTTP endpoint (host:port)")
	flag.BoolVar(&otelInsecure, "otel_insecure", true, "OTLP insecure (no TLS)")
	flag.StringVar(&otelService, "otel_service", "", "OTEL service.name")
	flag.StringVar(&mtlsCert, "mtls_cert", "", "client cert (PEM) for mTLS to ingest")
	flag.StringVar(&mtlsKey, "mtls_key", "", "client key (PEM) for mTLS to ingest")
	flag.StringVar(&mtlsCA, "mtls_ca", "", "CA bundle (PEM) for mTLS to ingest")
	flag.BoolVar(&showVersion, "version", false, "show version and exit")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "pingscope finds outages and overloads in ping logs\n\n")
		fmt.Fprintf(os.Stderr, "Usage: %s [options] [log ...]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s -report=downtime -debounce=3 ping_log.txt\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -report=network -subnets=10.20.0.0/16 ping_log.txt\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -config=config.yaml -watch\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -format=csv ping_log.txt > events.csv\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		fmt.Fprintf(os.Stderr, "  REDIS_ADDR       Redis server for event deduplication\n")
		fmt.Fprintf(os.Stderr, "  REDIS_QUEUE_ADDR Redis server to drain log lines from\n")
		fmt.Fprintf(os.Stderr, "  REDIS_QUEUE_KEY  Redis list holding log lines\n")
		fmt.Fprintf(os.Stderr, "  PINGSCOPE_DSN    Postgres DSN for the event table\n")
		fmt.Fprintf(os.Stderr, "  LOG_LEVEL        Log level (debug, info, warn, error)\n")
	}

	flag.Parse()

	if showVersion {
		fmt.Println("pingscope v" + version)
		fmt.Println("Built with Go", strings.TrimPrefix(runtime.Version(), "go"))
		os.Exit(0)
	}

	logFiles := append(splitList(logs), flag.Args()...)
	if len(logFiles) == 0 && configFile == "" && queueAddr == "" && os.Getenv("REDIS_QUEUE_ADDR") == "" {
		flag.Usage()
		os.Exit(2)
	}

	log := logging.New()
	defer log.Sync()

	var cfg *config.Config
	var err error
	if configFile != "" {
		cfg, err = config.LoadFromFile(configFile)
		if err != nil {
			log.Fatalw("failed to load config file", "file", configFile, "err", err)
		}
		log.Infow("loaded config from file", "file", configFile)
	} else {
		cfg = &config.Config{}
		cfg.SetDefaults()
	}

	cfg.LoadFromEnv()

	flags := explicitFlags(flag.CommandLine, map[string]interface{}{
		"log":                logFiles,
		"watch":              watch,
		"report":             reportName,
		"format":             outputFormat,
		"continuous":         continuous,
		"debounce":           debounce,
		"window":             window,
		"threshold":          threshold,
		"network_debounce":   networkDebounce,
		"skip_host_downtime": skipHostDowntime,
		"skip_host_overload": skipHostOverload,
		"subnets":            splitList(subnets),
		"concurrency":        concurrency,
		"queue":              queueAddr,
		"publish":            publish,
		"ingest":             ingestURL,
		"dsn":                dsn,
		"table":              table,
		"spool_dir":          spoolDir,
		"metrics_addr":       metricsAddr,
		"otel_endpoint":      otelEndpoint,
		"otel_insecure":      otelInsecure,
		"otel_service":       otelService,
		"mtls_cert":          mtlsCert,
		"mtls_key":           mtlsKey,
		"mtls_ca":            mtlsCA,
	})
	if flag.NArg() > 0 {
		flags["logs"] = logFiles
	}
	cfg.MergeWithFlags(flags)

	if err := cfg.Validate(); err != nil {
		log.Fatalw("invalid configuration", "err", err)
	}
	view, err := report.ParseView(cfg.Report)
	if err != nil {
		log.Fatalw("invalid configuration", "err", err)
	}
	prefixes, err := cfg.SubnetPrefixes()
	if err != nil {
		log.Fatalw("invalid configuration", "err", err)
	}
	params := analysis.Params{
		Debounce:          cfg.Debounce,
		OverloadWindow:    cfg.OverloadWindow,
		OverloadThreshold: cfg.OverloadThreshold,
		NetworkDebounce:   cfg.NetworkDebounce,
		HostDowntime:      !cfg.SkipHostDowntime,
		HostOverload:      !cfg.SkipHostOverload,
		Concurrency:       cfg.Concurrency,
	}
	params = view.Params(params)
	if err := params.Validate(); err != nil {
		log.Fatalw("invalid configuration", "err", err)
	}
	if runID == "" {
		runID = "run-" + strconv.FormatInt(time.Now().UTC().Unix(), 10)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	shutdown, err := telemetry.Init(ctx, cfg.OTELEndpoint, cfg.OTELService, version, cfg.OTELInsecure)
	if err != nil {
		log.Warnw("otel init failed", "err", err)
	} else {
		defer shutdown(context.Background())
	}

	healthHandler := health.NewHandler(log)
	healthHandler.SetMetadata("run", runID)
	healthHandler.SetMetadata("report", string(view))
	healthHandler.SetMetadata("version", version)

	if cfg.MetricsAddr != "" {
		go metrics.ServeWithHealth(cfg.MetricsAddr, healthHandler, log)
		log.Infow("metrics and health server started", "addr", cfg.MetricsAddr)
	}

	var emitter *emit.Emitter
	var closeSinks func()
	if cfg.Publishing() {
		emitter, closeSinks = newEmitter(ctx, cfg, runID, healthHandler, log)
	}

	// In watch mode re-runs feed one long-lived batcher, so FlushEvery and
	// BatchMax pace deliveries across runs.
	var events chan []report.Event
	emitDone := make(chan struct{})
	stopEmit := func() {}
	if emitter != nil && cfg.Watch {
		events = make(chan []report.Event, 16)
		runCtx, runCancel := context.WithCancel(context.Background())
		go func() {
			defer close(emitDone)
			emitter.Run(runCtx, events)
		}()
		stopEmit = func() {
			close(events)
			select {
			case <-emitDone:
			case <-time.After(30 * time.Second):
				log.Warnw("batcher did not finish, spooling the rest")
			}
			runCancel()
			<-emitDone
		}
	}

	var queue *ingest.RedisQueue
	if cfg.RedisQueueAddr != "" && len(cfg.Logs) == 0 {
		queue, err = ingest.NewRedis(ctx, cfg.RedisQueueAddr, cfg.RedisQueueKey, 5*time.Second, 30*time.Second)
		if err != nil {
			log.Fatalw("redis queue init", "err", err)
		}
		defer queue.Close()
		healthHandler.RegisterChecker("queue", health.NewPingChecker("redis queue", queue.Ping))
		log.Infow("redis queue enabled", "addr", cfg.RedisQueueAddr, "key", cfg.RedisQueueKey)
	}

	writer, err := report.NewStdoutWriter(cfg.Format)
	if err != nil {
		log.Fatalw("invalid configuration", "err", err)
	}
	classifier := topology.NewClassifier(prefixes, 0, time.Hour)
	runner := analysis.NewRunner(log)

	log.Infow("starting pingscope",
		"run", runID,
		"report", view,
		"logs", cfg.Logs,
		"debounce", params.Debounce,
		"overload_window", params.OverloadWindow,
		"overload_threshold", params.OverloadThreshold,
		"network_debounce", params.NetworkDebounce,
		"config_file", configFile,
	)
	healthHandler.SetReady(true)

	runOnce := func() (*analysis.Report, error) {
		reg := topology.NewRegistry(classifier)
		if queue != nil {
			recs, err := queue.Collect(ctx, log)
			if err != nil {
				return nil, fmt.Errorf("drain queue: %w", err)
			}
			metrics.RecordsTotal.WithLabelValues("queue").Add(float64(len(recs)))
			if err := reg.AddAll(recs); err != nil {
				return nil, err
			}
		} else {
			for _, path := range cfg.Logs {
				recs, err := ingest.LoadFile(path)
				if err != nil {
					if errors.Is(err, ingest.ErrMalformedRecord) {
						metrics.MalformedRecords.Inc()
					}
					return nil, err
				}
				metrics.RecordsTotal.WithLabelValues("file").Add(float64(len(recs)))
				if err := reg.AddAll(recs); err != nil {
					return nil, fmt.Errorf("%s: %w", path, err)
				}
			}
		}

		rep, err := runner.Run(ctx, reg, params)
		if err != nil {
			return nil, err
		}
		doc, err := report.Build(rep, view)
		if err != nil {
			return nil, err
		}
		if err := writer.Write(doc); err != nil {
			return nil, fmt.Errorf("write report: %w", err)
		}
		switch {
		case events != nil:
			select {
			case events <- doc.Events():
			case <-ctx.Done():
			}
		case emitter != nil:
			if err := emitter.Publish(ctx, doc.Events()); err != nil {
				log.Errorw("publish failed", "err", err)
			}
		}
		return rep, nil
	}

	rep, err := runOnce()
	if err != nil {
		log.Fatalw("analysis failed", "err", err)
	}
	failed := rep.Failed()

	if cfg.Watch {
		err := ingest.Watch(ctx, cfg.Logs, func(path string) {
			log.Infow("re-running report", "changed", path)
			rep, err := runOnce()
			if err != nil {
				log.Errorw("analysis failed", "err", err)
				return
			}
			failed = rep.Failed()
		}, log)
		if err != nil {
			log.Fatalw("watch", "err", err)
		}
	}

	healthHandler.SetReady(false)
	stopEmit()
	if emitter != nil {
		drainCtx, drainCancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := emitter.Drain(drainCtx); err != nil {
			log.Warnw("drain spool", "err", err)
		}
		drainCancel()
		closeSinks()
	}
	log.Infow("shutdown complete", "failed", failed)
	if failed {
		log.Sync()
		os.Exit(1)
	}
}

// newEmitter builds the sinks the configuration names. Without an ingest
// endpoint or a DSN, events go to stdout as JSON lines. The returned func
// closes the database and redis connections it opened.
func newEmitter(ctx context.Context, cfg *config.Config, runID string, hh *health.Handler, log *logging.Logger) (*emit.Emitter, func()) {
	var closers []io.Closer
	closeAll := func() {
		for _, c := range closers {
			if err := c.Close(); err != nil {
				log.Warnw("close", "err", err)
			}
		}
	}
	var sinks []emit.Sink
	if cfg.Ingest != "" {
		s, err := emit.NewHTTPSink(cfg.Ingest, emit.TLSFiles{Cert: cfg.MTLSCert, Key: cfg.MTLSKey, CA: cfg.MTLSCA})
		if err != nil {
			log.Fatalw("ingest sink", "err", err)
		}
		sinks = append(sinks, s)
	}
	if cfg.DSN != "" {
		s, err := store.Open(ctx, cfg.DSN, cfg.Table)
		if err != nil {
			log.Fatalw("sql sink", "err", err)
		}
		if err := s.EnsureSchema(ctx); err != nil {
			log.Fatalw("sql schema", "err", err)
		}
		hh.RegisterChecker("sql", health.NewPingChecker("sql sink", s.Ping))
		closers = append(closers, s)
		sinks = append(sinks, s)
		log.Infow("sql sink enabled", "table", cfg.Table)
	}
	if len(sinks) == 0 {
		sinks = append(sinks, emit.NewStdoutSink(os.Stdout))
	}

	var d dedup.Interface
	if cfg.RedisAddr != "" {
		rd, err := dedup.NewRedis(ctx, cfg.RedisAddr, 24*time.Hour, log)
		if err != nil {
			log.Fatalw("redis init", "err", err)
		}
		hh.RegisterChecker("redis", health.NewPingChecker("redis dedupe", rd.Ping))
		log.Infow("redis dedupe enabled", "addr", cfg.RedisAddr)
		closers = append(closers, rd)
		d = rd
	} else {
		d = dedup.NewMemory()
	}

	e, err := emit.NewEmitter(emit.Options{
		RunID:      runID,
		BatchMax:   cfg.BatchMaxEvents,
		FlushEvery: time.Duration(cfg.BatchFlushSec) * time.Second,
		SpoolDir:   cfg.SpoolDir,
		RatePerSec: cfg.IngestRate,
		Dedup:      d,
	}, log, sinks...)
	if err != nil {
		log.Fatalw("emitter init", "err", err)
	}
	hh.RegisterChecker("spool", health.NewSpoolChecker(e.Pending))
	return e, closeAll
}
