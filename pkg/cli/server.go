package cli

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/mchmarny/pricer/pkg/config"
	"github.com/mchmarny/pricer/pkg/logging"
	"github.com/urfave/cli/v3"
)

const (
	serverShutdownWaitSeconds = 5
	serverTimeoutSeconds      = 300
	serverMaxHeaderBytes      = 20
	bytesPerMB                = 1 << 20
)

var (
	//go:embed assets/* templates/*
	embedFS embed.FS

	portFlag = &cli.IntFlag{
		Name:  "port",
		Usage: fmt.Sprintf("Port on which the server will listen (default: config port or %d)", config.DefaultPort),
	}

	addressFlag = &cli.StringFlag{
		Name:  "address",
		Usage: "Interface on which the server will listen",
		Value: "127.0.0.1",
	}

	noBrowserFlag = &cli.BoolFlag{
		Name:    "no-browser",
		Aliases: []string{"nb"},
		Usage:   "Do not open browser automatically",
	}

	jsonLogsFlag = &cli.BoolFlag{
		Name:  "json-logs",
		Usage: "Write logs as JSON",
	}

	serverCmd = &cli.Command{
		Name:            "server",
		Aliases:         []string{"serve"},
		Usage:           "Start local HTTP server with the prediction form and API",
		HideHelpCommand: true,
		Action:          cmdStartServer,
		Flags: []cli.Flag{
			portFlag,
			addressFlag,
			noBrowserFlag,
			jsonLogsFlag,
		},
	}
)

// handlerDeps holds what the HTTP handlers share. The model behind scorer is
// read-only and safe for concurrent requests.
type handlerDeps struct {
	scorer         *scorer
	maxUploadBytes int64
	previewRows    int
}

func cmdStartServer(ctx context.Context, cmd *cli.Command) error {
	cfg := getConfig(cmd)
	if cmd.Bool(jsonLogsFlag.Name) {
		slog.SetDefault(logging.NewServerLogger(os.Stderr, cfg.Config.LogLevel))
	}

	sc, err := newScorer(cfg)
	if err != nil {
		return err
	}
	info := sc.runner.Adapter().Model()
	cfg.Metrics.SetModel(info.Name, info.Version)

	port := cmd.Int(portFlag.Name)
	if port <= 0 {
		port = cfg.Config.Port
	}
	address := fmt.Sprintf("%s:%d", cmd.String(addressFlag.Name), port)

	d := &handlerDeps{
		scorer:         sc,
		maxUploadBytes: int64(cfg.Config.MaxUploadMB) * bytesPerMB,
		previewRows:    cfg.Config.PreviewRows,
	}

	s := &http.Server{
		Addr:           address,
		Handler:        makeRouter(d),
		ReadTimeout:    serverTimeoutSeconds * time.Second,
		WriteTimeout:   serverTimeoutSeconds * time.Second,
		MaxHeaderBytes: 1 << serverMaxHeaderBytes,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := s.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("error starting server", "error", err)
			stop()
		}
	}()

	url := fmt.Sprintf("http://%s", address)
	slog.Info("server started", "address", url, "model", info.Name, "version", info.Version)

	if !cmd.Bool(noBrowserFlag.Name) {
		openBrowser(url)
	}

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), serverShutdownWaitSeconds*time.Second)
	defer cancel()

	if err := s.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("error shutting down server", "error", err)
	}
	slog.Info("server stopped")
	return nil
}

func makeRouter(d *handlerDeps) http.Handler {
	tmpl := template.Must(template.New("").Funcs(templateFuncs).ParseFS(embedFS, "templates/*.html"))

	mux := http.NewServeMux()

	// Static files
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServerFS(embedFS)))

	// Views
	mux.HandleFunc("GET /{$}", homeViewHandler(tmpl, d))
	mux.HandleFunc("POST /predict", predictViewHandler(tmpl, d))
	mux.HandleFunc("POST /batch", batchViewHandler(tmpl, d))

	// API
	mux.HandleFunc("POST /api/predict", predictAPIHandler(d))
	mux.HandleFunc("POST /api/batch", batchAPIHandler(d))
	mux.HandleFunc("GET /api/schema", schemaAPIHandler(d))
	mux.HandleFunc("GET /api/history", historyAPIHandler(d))

	// Ops
	mux.HandleFunc("GET /healthz", healthHandler(d))
	mux.Handle("GET /metrics", d.scorer.metrics.Handler())

	return withRequestLogging(mux, d)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// withRequestLogging logs each request and counts it by route pattern.
func withRequestLogging(next *http.ServeMux, d *handlerDeps) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		route := "unmatched"
		if _, p, ok := strings.Cut(r.Pattern, " "); ok {
			route = p
		}
		d.scorer.metrics.ObserveRequest(r.Method, route, rec.status)
		slog.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start).String())
	})
}

func openBrowser(url string) {
	var cmd string
	args := make([]string, 0, 1)

	switch runtime.GOOS {
	case "darwin":
		cmd = "open"
	case "linux":
		cmd = "xdg-open"
	default: // windows
		cmd = "rundll32"
		args = []string{"url.dll,FileProtocolHandler"}
	}

	args = append(args, url)
	if err := exec.Command(cmd, args...).Start(); err != nil {
		slog.Error("failed to open browser", "error", err)
	}
}
