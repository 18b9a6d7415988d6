package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/roasbeef/smaart/internal/build"
	"github.com/roasbeef/smaart/internal/cache"
	"github.com/roasbeef/smaart/internal/db"
	"github.com/roasbeef/smaart/internal/enrich"
	"github.com/roasbeef/smaart/internal/inference"
	"github.com/roasbeef/smaart/internal/mcp"
	"github.com/roasbeef/smaart/internal/orchestrator"
	"github.com/roasbeef/smaart/internal/source"
	"github.com/roasbeef/smaart/internal/trending"
	"github.com/roasbeef/smaart/internal/web"
)

func main() {
	var (
		dbPath         = flag.String("db", "", "Path to SQLite database (default ~/.smaart/smaart.db)")
		webAddr        = flag.String("web", ":8000", "API server address (empty to disable)")
		mcpStdio       = flag.Bool("mcp", false, "Serve MCP tools over stdio")
		cacheBackend   = flag.String("cache", "memory", "Cache backend: memory or sqlite")
		cacheTTL       = flag.Duration("cache-ttl", cache.DefaultTTL, "Cache entry TTL")
		sourceOrder    = flag.String("sources", "", "Comma-separated source cascade order (default twitter,duckduckgo,wikipedia)")
		sourceTimeout  = flag.Duration("source-timeout", source.DefaultSourceTimeout, "Per-source fetch timeout")
		capacity       = flag.Int("inference-capacity", inference.DefaultCapacity, "Concurrent inference leases")
		acquireTimeout = flag.Duration("inference-acquire-timeout", inference.DefaultAcquireTimeout, "Inference lease acquisition timeout")
		modelServerURL = flag.String("model-server", inference.DefaultServerURL, "OpenAI-compatible model server URL")
		model          = flag.String("model", inference.DefaultModel, "Model identifier")
		deadline       = flag.Duration("request-deadline", orchestrator.DefaultRequestDeadline, "End-to-end request deadline")
		enrichURL      = flag.String("enrich-url", "", "Enrichment service base URL (empty to disable)")
		logDir         = flag.String("logdir", "", "Directory for rotating log files (empty for console only)")
	)
	flag.Parse()

	// Console logging always; a rotating JSON log file when -logdir is
	// set.
	logger := slog.Default()
	if *logDir != "" {
		rotWriter := build.NewRotatingLogWriter()
		rotCfg := build.DefaultLogRotatorConfig()
		rotCfg.LogDir = *logDir
		if err := rotWriter.InitLogRotator(rotCfg); err != nil {
			log.Fatalf("Failed to initialize log rotator: %v", err)
		}
		defer rotWriter.Close()

		logger = slog.New(build.NewHandlerSet(
			slog.NewTextHandler(os.Stderr, nil),
			slog.NewJSONHandler(rotWriter, nil),
		))
		slog.SetDefault(logger)
	}

	logger.Info("Starting smaartd", "version", build.Version())

	// The trending tables and the optional sqlite cache share one
	// database file.
	path := *dbPath
	if path == "" {
		var err error
		path, err = db.DefaultDBPath()
		if err != nil {
			log.Fatalf("Failed to resolve database path: %v", err)
		}
	}

	sqlDB, err := db.OpenSQLite(path)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer sqlDB.Close()

	trendStore, err := trending.NewStore(sqlDB, logger)
	if err != nil {
		log.Fatalf("Failed to initialize trending store: %v", err)
	}

	var store cache.Store
	switch *cacheBackend {
	case "memory":
		store = cache.NewMemoryStore()
	case "sqlite":
		store, err = cache.NewSQLiteStore(sqlDB, logger)
		if err != nil {
			log.Fatalf("Failed to initialize cache: %v", err)
		}
	default:
		log.Fatalf("Unknown cache backend %q", *cacheBackend)
	}

	// Assemble the source cascade in the configured order.
	cascadeCfg := source.DefaultConfig()
	if *sourceOrder != "" {
		cascadeCfg.Order = strings.Split(*sourceOrder, ",")
	}
	cascadeCfg.SourceTimeout = *sourceTimeout

	cascade := source.NewCascade(cascadeCfg, []source.Source{
		source.NewTwitterSource(os.Getenv("TWITTER_BEARER_TOKEN")),
		source.NewDuckDuckGoSource(),
		source.NewWikipediaSource(),
	}, logger)

	llamaCfg := inference.DefaultLlamaConfig()
	llamaCfg.ServerURL = *modelServerURL
	llamaCfg.Model = *model
	engine := inference.NewLlamaEngine(llamaCfg, logger)

	infCfg := inference.DefaultConfig()
	infCfg.Capacity = *capacity
	infCfg.AcquireTimeout = *acquireTimeout
	infMgr := inference.NewManager(infCfg, engine, logger)

	var enricher enrich.Enricher
	if *enrichURL != "" {
		enricher = enrich.NewHTTPEnricher(enrich.Config{
			BaseURL: *enrichURL,
		})
	}

	orchCfg := orchestrator.DefaultConfig()
	orchCfg.RequestDeadline = *deadline
	orchCfg.CacheTTL = *cacheTTL

	orch := orchestrator.New(
		orchCfg, store, cascade, enricher, infMgr, trendStore, logger,
	)

	// Set up signal handling for graceful shutdown.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		logger.Info("Shutting down")
		cancel()
	}()

	if *webAddr != "" {
		webCfg := web.DefaultConfig()
		webCfg.Addr = *webAddr

		webServer := web.NewServer(
			webCfg, orch, infMgr, trendStore, logger,
		)

		go func() {
			err := webServer.Start()
			if err != nil &&
				!errors.Is(err, http.ErrServerClosed) {

				logger.Error("API server error", "error", err)
				cancel()
			}
		}()

		go func() {
			<-ctx.Done()

			shutdownCtx, done := context.WithTimeout(
				context.Background(), 10*time.Second,
			)
			defer done()
			_ = webServer.Shutdown(shutdownCtx)
		}()
	}

	if *mcpStdio {
		mcpServer := mcp.NewServer(orch, trendStore, logger)
		logger.Info("Serving MCP tools on stdio")
		if err := mcpServer.Run(ctx, &sdkmcp.StdioTransport{}); err != nil {
			log.Fatalf("MCP server error: %v", err)
		}
		return
	}

	<-ctx.Done()
}
