package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/schema-engine/internal/config"
	"github.com/sells-group/schema-engine/internal/model"
	"github.com/sells-group/schema-engine/internal/modescore"
	"github.com/sells-group/schema-engine/internal/pipeline"
	"github.com/sells-group/schema-engine/internal/scoreerr"
	"github.com/sells-group/schema-engine/internal/store"
)

const maxRequestBytes = 1 << 20

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP scoring API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if servePort != 0 {
			cfg.Server.Port = servePort
		}
		env, err := initEngine(ctx, cfg, "serve", cfg.Store.Driver != "none" && cfg.Store.Driver != "")
		if err != nil {
			return err
		}
		defer env.Close()

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:           buildRouter(env, cfg.Server),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "server listen")
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

// buildRouter mounts the API. env.Store may be nil, in which case saving
// and result lookup answer 503.
func buildRouter(env *engineEnv, sc config.ServerConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)
	r.Use(requestLogger)
	r.Use(middleware.Timeout(30 * time.Second))

	origins := sc.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"X-Result-Id"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSONStatus(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	h := &apiHandler{engine: env.Engine, store: env.Store}
	r.Route("/v1", func(v1 chi.Router) {
		if sc.RateLimit > 0 {
			v1.Use(rateLimit(rate.NewLimiter(rate.Limit(sc.RateLimit), max(sc.RateBurst, 1))))
		}
		v1.Post("/normalize", h.normalize)
		v1.Post("/assessments", h.assess)
		v1.Post("/modes/score", h.scoreModes)
		v1.Get("/results", h.listResults)
		v1.Get("/results/{id}", h.getResult)
	})
	return r
}

type apiHandler struct {
	engine *pipeline.Engine
	store  store.Store
}

func (h *apiHandler) normalize(w http.ResponseWriter, r *http.Request) {
	var req pipeline.NormalizeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	res, err := h.engine.Normalize(req)
	if err != nil {
		resp := errorBody(err)
		if res != nil {
			resp.Failures = res.Failures
		}
		writeJSONStatus(w, statusFor(err), resp)
		return
	}
	writeJSONStatus(w, http.StatusOK, res)
}

func (h *apiHandler) assess(w http.ResponseWriter, r *http.Request) {
	var req pipeline.AssessRequest
	if !decodeBody(w, r, &req) {
		return
	}
	res, err := h.engine.Assess(req)
	if err != nil {
		writeError(w, err)
		return
	}
	if !h.maybeSave(w, r, model.ResultKindAssessment, assessmentSummary(res), res) {
		return
	}
	writeJSONStatus(w, http.StatusOK, res)
}

func (h *apiHandler) scoreModes(w http.ResponseWriter, r *http.Request) {
	var req modescore.Request
	if !decodeBody(w, r, &req) {
		return
	}
	res, err := h.engine.ScoreModes(req)
	if err != nil {
		writeError(w, err)
		return
	}
	if !h.maybeSave(w, r, model.ResultKindModes, modesSummary(res), res) {
		return
	}
	writeJSONStatus(w, http.StatusOK, res)
}

// maybeSave persists v when the request asks for it with ?save=true and
// sets X-Result-Id. It reports whether the handler should continue.
func (h *apiHandler) maybeSave(w http.ResponseWriter, r *http.Request, kind model.ResultKind, summary string, v any) bool {
	save, _ := strconv.ParseBool(r.URL.Query().Get("save"))
	if !save {
		return true
	}
	if h.store == nil {
		writeJSONStatus(w, http.StatusServiceUnavailable, apiError{Error: "result store is disabled"})
		return false
	}
	rec, err := store.NewRecord(kind, r.URL.Query().Get("label"), summary, v)
	if err == nil {
		err = h.store.SaveResult(r.Context(), rec)
	}
	if err != nil {
		zap.L().Error("serve: save result failed", zap.Error(err))
		writeError(w, err)
		return false
	}
	w.Header().Set("X-Result-Id", rec.ID)
	return true
}

func (h *apiHandler) getResult(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeJSONStatus(w, http.StatusServiceUnavailable, apiError{Error: "result store is disabled"})
		return
	}
	rec, err := h.store.GetResult(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSONStatus(w, http.StatusOK, rec)
}

func (h *apiHandler) listResults(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeJSONStatus(w, http.StatusServiceUnavailable, apiError{Error: "result store is disabled"})
		return
	}
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	recs, err := h.store.ListResults(r.Context(), store.ResultFilter{
		Kind:   model.ResultKind(q.Get("kind")),
		Label:  q.Get("label"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	if recs == nil {
		recs = []model.ResultRecord{}
	}
	writeJSONStatus(w, http.StatusOK, recs)
}

type apiError struct {
	Error    string              `json:"error"`
	Code     string              `json:"code,omitempty"`
	Subject  string              `json:"subject,omitempty"`
	Failures []model.ItemFailure `json:"failures,omitempty"`
}

func errorBody(err error) apiError {
	body := apiError{Error: err.Error()}
	if se, ok := scoreerr.As(err); ok {
		body.Error = se.Error()
		body.Code = string(se.Code)
		body.Subject = se.Subject
	}
	return body
}

// statusFor maps an error to its HTTP status: validation 422, unknown
// result 404, everything else 500.
func statusFor(err error) int {
	switch {
	case scoreerr.IsValidation(err):
		return http.StatusUnprocessableEntity
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	writeJSONStatus(w, statusFor(err), errorBody(err))
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeJSONStatus(w, http.StatusBadRequest, apiError{Error: "invalid request body: " + err.Error()})
		return false
	}
	return true
}

// writeJSONStatus encodes v before writing the header, so an unencodable
// body becomes a 500 instead of an empty response.
func writeJSONStatus(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		zap.L().Error("serve: encode response", zap.Error(err))
		status = http.StatusInternalServerError
		body, _ = json.Marshal(apiError{Error: "failed to encode response"})
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(append(body, '\n'))
}

// rateLimit rejects requests beyond the limiter's budget with 429.
func rateLimit(l *rate.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !l.Allow() {
				w.Header().Set("Retry-After", "1")
				writeJSONStatus(w, http.StatusTooManyRequests, apiError{Error: "rate limit exceeded"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// requestLogger logs each request through zap.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
