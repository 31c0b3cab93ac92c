package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fpang/minipaint/internal/metrics"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var portFlag int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API used by the web UI",
	Long: `Serve starts a local HTTP server exposing the inventory, the settings,
part suggestions and plan generation as a JSON API.

Examples:
  minipaint serve
  minipaint serve --port 9090
  minipaint --provider local serve`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVarP(&portFlag, "port", "p", 8080, "Port to listen on")
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd.Context(), "serve", cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	srv := &http.Server{
		Addr:        fmt.Sprintf(":%d", portFlag),
		Handler:     a.routes(),
		ReadTimeout: 60 * time.Second,
		// A generation with rate-limit retries can take several minutes.
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info().Msg("Shutting down...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}()

	log.Info().Int("port", portFlag).Msg("Starting API server")
	fmt.Fprintf(cmd.OutOrStdout(), "\n  MiniPaint API: http://localhost:%d/api\n\n", portFlag)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (a *app) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", a.handleHealth)

	mux.HandleFunc("GET /api/settings", a.handleGetSettings)
	mux.HandleFunc("PUT /api/settings", a.handlePutSettings)

	mux.HandleFunc("GET /api/inventory", a.handleGetInventory)
	mux.HandleFunc("POST /api/inventory/paints", a.handleAddPaint)
	mux.HandleFunc("PUT /api/inventory/paints/{id}", a.handleUpdatePaint)
	mux.HandleFunc("POST /api/inventory/import", a.handleImport)
	mux.HandleFunc("POST /api/inventory/{kind}", a.handleAddTool)
	mux.HandleFunc("DELETE /api/inventory/{kind}/{id}", a.handleRemoveItem)

	mux.HandleFunc("POST /api/hex", a.handleHex)
	mux.HandleFunc("POST /api/parts", a.handleParts)

	mux.HandleFunc("POST /api/plans", a.handleGeneratePlan)
	mux.HandleFunc("GET /api/plans", a.handleListPlans)
	mux.HandleFunc("GET /api/plans/{id}", a.handleGetPlan)
	mux.HandleFunc("DELETE /api/plans/{id}", a.handleDeletePlan)

	return withLogging(withCORS(mux))
}

// --- Middleware ---

// statusRecorder wraps http.ResponseWriter to capture the status code.
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.statusCode = code
	sr.ResponseWriter.WriteHeader(code)
}

// withLogging logs every API request and emits latency metrics keyed by
// the matched route pattern.
func withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sr := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(sr, r)
		if !strings.HasPrefix(r.URL.Path, "/api/") {
			return
		}
		elapsed := time.Since(start)
		log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", sr.statusCode).
			Dur("duration", elapsed).
			Msg("API request")

		endpoint := r.Pattern
		if endpoint == "" {
			endpoint = "unmatched"
		}
		metrics.New(metrics.Namespace).
			Dimension("Endpoint", endpoint).
			Metric("RequestLatencyMs", float64(elapsed.Milliseconds()), metrics.UnitMilliseconds).
			Count("RequestCount").
			Property("statusCode", sr.statusCode).
			Flush()
	})
}

// withCORS allows the UI dev server on localhost.
func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && (strings.HasPrefix(origin, "http://localhost:") || strings.HasPrefix(origin, "http://127.0.0.1:")) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
