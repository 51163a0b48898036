package server

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"html/template"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/jo-hoe/gomashup/internal/common"
	"github.com/jo-hoe/gomashup/internal/config"
	"github.com/jo-hoe/gomashup/internal/driver"
	"github.com/jo-hoe/gomashup/internal/jobs"
	"github.com/jo-hoe/gomashup/internal/metrics"
)

// ReasonRateLimited labels rejections caused by the submission limiter.
const ReasonRateLimited = "rate"

const acceptedMessage = "Job started. You will receive a ZIP on email when ready."

//go:embed web/index.html
var indexHTML string

var indexTemplate = template.Must(template.New("index").Parse(indexHTML))

type Service struct {
	Log     *slog.Logger
	Cfg     *config.Config
	Driver  driver.Driver
	Limiter *rate.Limiter // nil disables rate limiting
	Metrics *metrics.Metrics
}

// NewLimiter returns a token bucket for submissions, or nil when perSecond is 0.
func NewLimiter(perSecond float64, burst int) *rate.Limiter {
	if perSecond <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(perSecond), burst)
}

// NewHTTPServer builds the http.Server with routes and middleware.
func NewHTTPServer(svc *Service) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc(http.MethodGet+" "+common.PathIndex+"{$}", svc.handleIndex)
	mux.HandleFunc(http.MethodGet+" "+common.PathHealthz, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.Handle(http.MethodGet+" "+common.PathMetrics, svc.Metrics.Handler())
	mux.HandleFunc(http.MethodPost+" "+common.PathGenerate, svc.withCommon(svc.handleGenerate))

	s := &http.Server{
		Addr:         svc.Cfg.Server.Addr,
		Handler:      loggingMiddleware(recoveryMiddleware(mux, svc.Log), svc.Log),
		ReadTimeout:  svc.Cfg.Server.ReadTimeout,
		WriteTimeout: svc.Cfg.Server.WriteTimeout,
		IdleTimeout:  svc.Cfg.Server.IdleTimeout,
	}
	return s
}

func (svc *Service) withCommon(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// Enforce API key if configured
		if key := strings.TrimSpace(svc.Cfg.Server.APIKey); key != "" {
			if r.Header.Get(common.HeaderAPIKey) != key {
				writeJSON(w, http.StatusUnauthorized, generateResponse{Error: "unauthorized"})
				return
			}
		}
		// Enforce max body size
		if max := safeInt64(svc.Cfg.Server.MaxFormSize); max > 0 {
			r.Body = http.MaxBytesReader(w, r.Body, max)
		}
		next.ServeHTTP(w, r)
	}
}

type indexData struct {
	MinSources, MaxSources, MinSourcesPlusOne    int
	MinDuration, MaxDuration, MinDurationPlusOne int
}

func (svc *Service) handleIndex(w http.ResponseWriter, r *http.Request) {
	l := svc.Cfg.Limits
	var buf bytes.Buffer
	err := indexTemplate.Execute(&buf, indexData{
		MinSources:         l.MinSources,
		MaxSources:         l.MaxSources,
		MinSourcesPlusOne:  l.MinSources + 1,
		MinDuration:        l.MinDuration,
		MaxDuration:        l.MaxDuration,
		MinDurationPlusOne: l.MinDuration + 1,
	})
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", common.ContentTypeHTML)
	_, _ = w.Write(buf.Bytes())
}

type generateResponse struct {
	OK      bool   `json:"ok"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
	Field   string `json:"field,omitempty"`
	JobID   string `json:"job_id,omitempty"`
}

func (svc *Service) handleGenerate(w http.ResponseWriter, r *http.Request) {
	if err := parseForm(r, safeInt64(svc.Cfg.Server.MaxFormSize)); err != nil {
		writeJSON(w, http.StatusBadRequest, generateResponse{Error: "invalid form: " + err.Error()})
		return
	}

	if svc.Limiter != nil && !svc.Limiter.Allow() {
		svc.Metrics.Rejected(ReasonRateLimited)
		writeJSON(w, http.StatusTooManyRequests, generateResponse{Error: "Too many requests, please try again later."})
		return
	}

	in := jobs.Input{
		Query:    r.FormValue(common.FieldSinger),
		Sources:  r.FormValue(common.FieldVideos),
		Duration: r.FormValue(common.FieldDuration),
		Email:    r.FormValue(common.FieldEmail),
	}
	// The request context ends with the response; queued jobs outlive it.
	rec, err := svc.Driver.Submit(context.WithoutCancel(r.Context()), in)
	if err != nil {
		var ve *jobs.ValidationError
		switch {
		case errors.As(err, &ve):
			writeJSON(w, http.StatusBadRequest, generateResponse{Error: ve.Message, Field: ve.Field})
		case errors.Is(err, jobs.ErrQueueFull), errors.Is(err, jobs.ErrQueueClosed):
			svc.logger().Warn("submission rejected", "err", err)
			writeJSON(w, http.StatusServiceUnavailable, generateResponse{Error: "Server is busy, please try again later."})
		default:
			svc.logger().Error("submit job", "err", err)
			writeJSON(w, http.StatusInternalServerError, generateResponse{Error: "internal error"})
		}
		return
	}

	svc.logger().Info("job accepted", "job_id", rec.JobID, "query", in.Query)
	writeJSON(w, http.StatusOK, generateResponse{OK: true, Message: acceptedMessage, JobID: rec.JobID})
}

func (svc *Service) logger() *slog.Logger {
	if svc.Log == nil {
		return discardLogger()
	}
	return svc.Log
}

func parseForm(r *http.Request, maxMemory int64) error {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if maxMemory <= 0 {
			maxMemory = 32 << 10
		}
		return r.ParseMultipartForm(maxMemory)
	}
	return r.ParseForm()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", common.ContentTypeJSON)
	if status != 0 {
		w.WriteHeader(status)
	}
	_ = json.NewEncoder(w).Encode(v)
}

func safeInt64(u config.ByteSize) int64 {
	if u > config.ByteSize(math.MaxInt64) {
		return math.MaxInt64
	}
	return int64(u) // #nosec G115 - safe cast after explicit upper-bound check
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func loggingMiddleware(next http.Handler, log *slog.Logger) http.Handler {
	if log == nil {
		log = discardLogger()
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &writeWrap{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(ww, r)
		log.Info("http",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.code,
			"duration", time.Since(start).String(),
			"remote", r.RemoteAddr)
	})
}

type writeWrap struct {
	http.ResponseWriter
	code int
}

func (w *writeWrap) WriteHeader(statusCode int) {
	w.code = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func recoveryMiddleware(next http.Handler, log *slog.Logger) http.Handler {
	if log == nil {
		log = discardLogger()
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				log.Error("panic in handler", "path", r.URL.Path, "panic", rec)
				http.Error(w, "internal error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
