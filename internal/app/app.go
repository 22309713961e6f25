package app

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"

	server "github.com/fdamstra/speed-limit-demonstration"
	servernet "github.com/fdamstra/speed-limit-demonstration/internal/net"
	"github.com/fdamstra/speed-limit-demonstration/internal/telemetry"
	"github.com/fdamstra/speed-limit-demonstration/logging"
	loggingsinks "github.com/fdamstra/speed-limit-demonstration/logging/sinks"
)

// Config carries the process-level wiring overrides.
type Config struct {
	Logger telemetry.Logger
}

// Run wires the logging router, the hub, and the HTTP surface from the
// environment, then serves until the context is cancelled.
//
// Recognized environment variables: SIM_LISTEN_ADDR, SIM_AUTOSTART,
// LOG_SINKS, LOG_JSON_PATH, LOG_MIN_SEVERITY, CLIENT_DIR, DEBUG_TELEMETRY.
func Run(ctx context.Context, cfg Config) error {
	telemetryLogger := cfg.Logger
	if telemetryLogger == nil {
		telemetryLogger = telemetry.WrapLogger(log.Default())
	}

	logConfig := logging.DefaultConfig()
	if raw := os.Getenv("LOG_MIN_SEVERITY"); raw != "" {
		if severity, ok := parseSeverity(raw); ok {
			logConfig.MinimumSeverity = severity
		} else {
			telemetryLogger.Printf("invalid LOG_MIN_SEVERITY=%q", raw)
		}
	}
	if raw := os.Getenv("LOG_SINKS"); raw != "" {
		logConfig.EnabledSinks = splitCSV(raw)
	}

	namedSinks, cleanup, err := buildSinks(logConfig)
	if err != nil {
		return fmt.Errorf("failed to build log sinks: %w", err)
	}
	defer cleanup()

	router, err := logging.NewRouter(logging.SystemClock{}, logConfig, namedSinks)
	if err != nil {
		return fmt.Errorf("failed to construct logging router: %w", err)
	}
	defer func() {
		if cerr := router.Close(context.Background()); cerr != nil {
			telemetryLogger.Printf("failed to close logging router: %v", cerr)
		}
	}()

	hubCfg := server.DefaultHubConfig()
	hubCfg.Logger = telemetryLogger
	hubCfg.Metrics = telemetry.WrapMetrics(logging.NewMetrics())
	if raw := os.Getenv("SIM_AUTOSTART"); raw != "" {
		if value, err := strconv.ParseBool(raw); err == nil {
			hubCfg.Autostart = value
		} else {
			telemetryLogger.Printf("invalid SIM_AUTOSTART=%q: %v", raw, err)
		}
	}

	hub := server.NewHub(hubCfg, router)
	stop := make(chan struct{})
	go hub.RunSimulation(stop)
	defer close(stop)

	clientDir := os.Getenv("CLIENT_DIR")
	if clientDir == "" {
		clientDir = "client"
	}
	if _, err := os.Stat(clientDir); err != nil {
		clientDir = ""
	}

	handler := servernet.NewHTTPHandler(hub, servernet.HTTPHandlerConfig{
		ClientDir: clientDir,
		Logger:    telemetryLogger,
	})

	addr := os.Getenv("SIM_LISTEN_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	srv := &http.Server{Addr: addr, Handler: handler}
	telemetryLogger.Printf("server listening on %s", addr)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		srv.Shutdown(context.Background())
		return nil
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	}
}

func buildSinks(cfg logging.Config) ([]logging.NamedSink, func(), error) {
	var named []logging.NamedSink
	var closers []func()
	cleanup := func() {
		for _, closeFn := range closers {
			closeFn()
		}
	}

	for _, name := range cfg.EnabledSinks {
		switch name {
		case "console":
			named = append(named, logging.NamedSink{
				Name: "console",
				Sink: loggingsinks.NewConsoleSink(os.Stdout, cfg.Console),
			})
		case "json":
			path := os.Getenv("LOG_JSON_PATH")
			if path == "" {
				path = "events.ndjson"
			}
			file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
			if err != nil {
				cleanup()
				return nil, func() {}, err
			}
			closers = append(closers, func() { file.Close() })
			named = append(named, logging.NamedSink{
				Name: "json",
				Sink: loggingsinks.NewJSON(file, cfg.JSON.FlushInterval),
			})
		case "memory":
			named = append(named, logging.NamedSink{
				Name: "memory",
				Sink: loggingsinks.NewMemorySink(),
			})
		}
	}
	return named, cleanup, nil
}

func parseSeverity(raw string) (logging.Severity, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return logging.SeverityDebug, true
	case "info":
		return logging.SeverityInfo, true
	case "warn", "warning":
		return logging.SeverityWarn, true
	case "error":
		return logging.SeverityError, true
	default:
		return logging.SeverityInfo, false
	}
}

func splitCSV(raw string) []string {
	parts := strings.Split(raw, ",")
	values := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			values = append(values, trimmed)
		}
	}
	return values
}
