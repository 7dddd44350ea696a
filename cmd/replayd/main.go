package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/edirooss/replayd/internal/config"
	"github.com/edirooss/replayd/internal/diag"
	"github.com/edirooss/replayd/internal/host"
	"github.com/edirooss/replayd/internal/host/hostsim"
	"github.com/edirooss/replayd/internal/http/handler"
	mw "github.com/edirooss/replayd/internal/http/middleware"
	"github.com/edirooss/replayd/internal/repo"
	"github.com/edirooss/replayd/internal/service"
	"github.com/edirooss/replayd/pkg/fmtt"
	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/secure"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func init() {
	// Handle version display
	handleVersion()
}

func main() {
	// Read env
	isDev := os.Getenv("ENV") == "dev"

	// Load config
	cfg, err := config.Load("replayd.yaml")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		fmtt.PrintErrChain(err)
		os.Exit(1)
	}
	if isDev {
		fmtt.Dump(cfg)
	}

	// Create Zap logger
	log := buildLogger()
	defer log.Sync()
	log = log.Named("main")

	// Core state: diagnostics ring + buffer registry + runtime settings
	dg := diag.New(log)
	reg := repo.NewRegistry(log, repo.BufferSpec{
		Retention: cfg.Retention(),
		VideoFPS:  cfg.VideoFPS,
		AudioRate: cfg.AudioRate,
	})
	settings := service.NewSettings(cfg.OutputDirectory)

	// Host binding. Without a real media pipeline attached we run against
	// the in-process simulator.
	var h host.Host
	var sim *hostsim.Sim
	if cfg.Simulate.Enabled {
		sim = hostsim.New(log, simConfig(cfg))
		h = sim
	} else {
		log.Fatal("no host pipeline configured; set simulate.enabled for a local run")
	}

	// Services
	capture := service.NewCaptureService(log, h, reg, dg, cfg.SourceGroups)
	if cfg.ActiveGroup != "" {
		capture.SetActiveGroup(cfg.ActiveGroup)
	}
	export := service.NewExportService(log, h, reg, dg, settings)
	replay := service.NewReplayService(log, h, reg, dg, export, settings, cfg.VideoFPS)
	summary := service.NewSummaryService(log, reg, service.SummaryOptions{
		TTL: 250 * time.Millisecond,
	})

	if cfg.Enabled {
		capture.Enable()
	}
	if sim != nil {
		sim.Start()
		defer sim.Stop()
	}

	// Create Gin router
	if !isDev {
		gin.SetMode(gin.ReleaseMode)
	}
	gin.DefaultWriter = zap.NewStdLog(log.Named("gin")).Writer() // Configure Gin's logger to use Zap
	r := gin.New()

	// Apply Gin middlewares
	{
		r.Use(gin.Recovery()) // Recovery first (outermost)
		r.Use(mw.RequestID()) // Attach request ID for tracing; early in the chain so it's available everywhere

		if isDev { // Enable CORS for local dashboards
			r.Use(cors.New(cors.Config{
				AllowOrigins:     []string{"http://localhost:5173", "http://localhost:3000"},
				AllowMethods:     []string{"GET", "POST", "PUT", "OPTIONS"},
				AllowHeaders:     []string{"X-Request-ID", "Content-Type"},
				ExposeHeaders:    []string{"X-Request-ID", "X-Cache", "X-Summary-Generated-At"},
				AllowCredentials: false,
				MaxAge:           12 * time.Hour,
			}))
		} else { // Behind a reverse proxy + TLS
			r.SetTrustedProxies([]string{"127.0.0.1"})
			r.Use(secure.New(secure.Config{
				SSLProxyHeaders: map[string]string{
					"X-Forwarded-Proto": "https", // Fix scheme for secure cookies
				},
			}))
		}

		r.Use(func(c *gin.Context) {
			// Enforce a hard 1MB max request body; control requests are tiny.
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, 1<<20)
			c.Next()
		})
	}

	// Register route handlers
	{
		r.GET("/api/ping", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"message": "pong"}) })

		hndlr := handler.NewReplayHandler(log, capture, replay, export, summary, dg, settings, reg)

		// Replay/export spawn workers and hold sinks; shed excess load early.
		heavy := r.Group("", mw.LimitConcurrentRequests(8))
		heavy.POST("/api/replay", hndlr.RequestReplay)
		heavy.POST("/api/replays/save-all", hndlr.SaveAllReplays)

		r.GET("/api/buffers/summary", hndlr.GetBufferSummary)
		r.GET("/api/diagnostics", hndlr.GetDiagnostics)
		r.PUT("/api/capture", hndlr.UpdateCapture)
		r.PUT("/api/config", hndlr.UpdateConfig)
		r.GET("/api/status", hndlr.GetStatus)
	}

	httpsrv := &http.Server{
		Addr:              cfg.ListenAddr + ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 2 * time.Second,  // kills header-drip Slowloris
		ReadTimeout:       10 * time.Second, // full request read (incl. body)
		WriteTimeout:      15 * time.Second, // avoid forever-hangs on writes
		IdleTimeout:       60 * time.Second, // keep-alive cap
		MaxHeaderBytes:    1 << 20,          // 1MB cap
	}

	log.Info("running HTTP server", zap.String("addr", httpsrv.Addr))
	if err := httpsrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal("server failed", zap.Error(err))
	}
	log.Info("server closed")
}

// handleVersion prints build metadata and exits when -v/--version is provided.
func handleVersion() {
	v := flag.Bool("v", false, "print version and exit")
	flag.BoolVar(v, "version", false, "print version and exit")
	flag.Parse()

	if *v {
		fmt.Printf("replayd %s (commit %s, built %s)\n", config.Version, config.GitCommit, config.BuildDate)
		os.Exit(0)
	}
}

// simConfig maps the yaml simulate block onto the simulator's config.
func simConfig(cfg *config.Config) hostsim.Config {
	sources := make([]hostsim.SourceConfig, 0, len(cfg.Simulate.Sources))
	for _, s := range cfg.Simulate.Sources {
		kind := host.KindInput
		if s.Kind == "scene" {
			kind = host.KindScene
		}
		sources = append(sources, hostsim.SourceConfig{
			Name:  s.Name,
			Kind:  kind,
			Video: s.Video,
			Audio: s.Audio,
		})
	}
	return hostsim.Config{
		Sources:   sources,
		VideoFPS:  cfg.VideoFPS,
		AudioRate: cfg.AudioRate,
	}
}

// helpers

func buildLogger() *zap.Logger {
	logConfig := zap.NewDevelopmentConfig()
	logConfig.EncoderConfig.TimeKey = ""
	logConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	logConfig.DisableStacktrace = true
	logConfig.DisableCaller = true
	logConfig.Level.SetLevel(zap.DebugLevel)
	return zap.Must(logConfig.Build())
}
