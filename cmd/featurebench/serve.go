package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/banshee-data/featurebench/internal/db"
	"github.com/banshee-data/featurebench/internal/httputil"
	"github.com/banshee-data/featurebench/internal/report"
)

func serveCmd(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(stderr)
	dbPath := fs.String("db", "results.db", "sqlite database written by featurebench run -db")
	listen := fs.String("listen", ":8080", "Listen address")
	logLevel := fs.String("log-level", "info", "Log level (debug, info, warn, error)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *listen == "" {
		fmt.Fprintln(stderr, "listen address is required")
		return 2
	}

	logger, err := newLogger(stderr, *logLevel)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}

	store, err := db.NewDB(*dbPath, logger)
	if err != nil {
		logger.Error("failed to connect to database", "err", err)
		return 1
	}
	defer store.Close()

	mux, err := newServeMux(store, logger)
	if err != nil {
		logger.Error("failed to set up routes", "err", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := serveHTTP(ctx, *listen, mux, logger); err != nil {
		logger.Error("server failed", "err", err)
		return 1
	}
	return 0
}

func newServeMux(store *db.DB, logger *slog.Logger) (*http.ServeMux, error) {
	if logger == nil {
		logger = slog.Default()
	}
	mux := http.NewServeMux()
	if err := store.AttachAdminRoutes(mux); err != nil {
		return nil, err
	}
	mux.HandleFunc("/charts", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			httputil.MethodNotAllowed(w)
			return
		}
		summaries, err := store.Summaries(0)
		if err != nil {
			httputil.InternalServerError(w, err.Error())
			return
		}
		var buf bytes.Buffer
		if err := report.RenderCharts(&buf, summaries); err != nil {
			httputil.InternalServerError(w, err.Error())
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if _, err := buf.WriteTo(w); err != nil {
			logger.Warn("failed to write charts", "err", err)
		}
	})
	mux.HandleFunc("/api/summaries", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			httputil.MethodNotAllowed(w)
			return
		}
		limit := 0
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				httputil.BadRequest(w, "limit must be a non-negative integer")
				return
			}
			limit = n
		}
		summaries, err := store.Summaries(limit)
		if err != nil {
			httputil.InternalServerError(w, err.Error())
			return
		}
		out := make([]report.SummaryJSON, len(summaries))
		for i, s := range summaries {
			out[i] = report.ToJSON(s)
		}
		httputil.WriteJSONOK(w, out)
	})
	return mux, nil
}

func serveHTTP(ctx context.Context, addr string, h http.Handler, logger *slog.Logger) error {
	server := &http.Server{
		Addr: addr,
		Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger.Debug("got request", "path", r.URL.Path)
			h.ServeHTTP(w, r)
		}),
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", addr)
		errc <- server.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP server shutdown error", "err", err)
		return server.Close()
	}
	return nil
}
