package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/orderrisk/internal/analytics"
	"github.com/sells-group/orderrisk/internal/matcher"
	"github.com/sells-group/orderrisk/internal/model"
	"github.com/sells-group/orderrisk/internal/report"
)

type routerOptions struct {
	DefaultDays    int
	DefaultTopN    int
	AllowedOrigins []string
	Now            func() time.Time
}

type api struct {
	env  *appEnv
	opts routerOptions
}

// buildRouter wires the query surface. Split out from serveCmd for tests.
func buildRouter(env *appEnv, opts routerOptions) http.Handler {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.DefaultDays < 1 {
		opts.DefaultDays = 90
	}
	if opts.DefaultTopN < 1 {
		opts.DefaultTopN = analytics.DefaultTopN
	}
	a := &api{env: env, opts: opts}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(env.Metrics.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Handle("/metrics", env.Metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", a.health)
		r.Get("/unmatched", a.unmatched)

		r.Route("/analytics", func(r chi.Router) {
			r.Get("/rodent-orders", a.query(func(e *analytics.Engine, w analytics.Window, _ int) (any, error) {
				return e.RodentOrders(w), nil
			}))
			r.Get("/revenue-by-grade", a.query(func(e *analytics.Engine, w analytics.Window, _ int) (any, error) {
				return e.RevenueByGrade(w), nil
			}))
			r.Get("/revenue-at-risk", a.query(func(e *analytics.Engine, w analytics.Window, _ int) (any, error) {
				return e.RevenueAtRisk(w), nil
			}))
			r.Get("/borough-breakdown", a.query(func(e *analytics.Engine, w analytics.Window, _ int) (any, error) {
				return e.BoroughBreakdown(w), nil
			}))
			r.Get("/watchlist", a.query(func(e *analytics.Engine, w analytics.Window, topN int) (any, error) {
				return e.Watchlist(w, topN)
			}))
			r.Get("/summary", a.query(func(e *analytics.Engine, w analytics.Window, _ int) (any, error) {
				return e.Summary(w), nil
			}))
		})

		r.Get("/report", a.report(report.FormatJSON))
		r.Get("/report/pdf", a.report(report.FormatPDF))
		r.Get("/report/xlsx", a.report(report.FormatXLSX))
	})

	return r
}

// params reads the window and top_n query parameters.
func (a *api) params(r *http.Request) (analytics.Window, int, error) {
	q := r.URL.Query()
	w, err := analytics.ParseWindow(a.opts.Now(), q.Get("days"), q.Get("start"), q.Get("end"), a.opts.DefaultDays)
	if err != nil {
		return analytics.Window{}, 0, err
	}

	topN := a.opts.DefaultTopN
	if raw := q.Get("top_n"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return analytics.Window{}, 0, eris.Wrapf(model.ErrInvalidParameter, "top_n %q is not an integer", raw)
		}
		if n < 1 {
			return analytics.Window{}, 0, eris.Wrapf(model.ErrInvalidParameter, "top_n must be >= 1, got %d", n)
		}
		topN = n
	}
	return w, topN, nil
}

type queryFunc func(e *analytics.Engine, w analytics.Window, topN int) (any, error)

func (a *api) query(fn queryFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		win, topN, err := a.params(r)
		if err != nil {
			writeError(w, r, err)
			return
		}
		eng, err := a.env.Engine()
		if err != nil {
			writeError(w, r, err)
			return
		}
		out, err := fn(eng, win, topN)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func (a *api) report(f report.Format) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		win, topN, err := a.params(r)
		if err != nil {
			writeError(w, r, err)
			return
		}
		eng, err := a.env.Engine()
		if err != nil {
			writeError(w, r, err)
			return
		}
		rep, err := report.Assemble(eng, win, topN, a.opts.Now())
		if err != nil {
			writeError(w, r, err)
			return
		}

		w.Header().Set("Content-Type", f.ContentType())
		if f != report.FormatJSON {
			w.Header().Set("Content-Disposition", "attachment; filename="+report.Filename(win.Days(), f))
		}
		if err := rep.Write(w, f); err != nil {
			zap.L().Error("report render failed", zap.String("format", string(f)), zap.Error(err))
		}
	}
}

type healthResponse struct {
	Status            string     `json:"status"`
	OrdersLoaded      int        `json:"orders_loaded"`
	InspectionsLoaded int        `json:"inspections_loaded"`
	RestaurantsMapped int        `json:"restaurants_mapped"`
	SnapshotID        string     `json:"snapshot_id,omitempty"`
	FetchedAt         *time.Time `json:"fetched_at,omitempty"`
	Stale             bool       `json:"stale"`
	BreakerState      string     `json:"breaker_state"`
}

func (a *api) health(w http.ResponseWriter, _ *http.Request) {
	st := a.env.Store.Status()
	resp := healthResponse{
		Status:            "ok",
		OrdersLoaded:      a.env.Orders.Len(),
		InspectionsLoaded: st.Records,
		SnapshotID:        st.SnapshotID,
		Stale:             st.Stale,
		BreakerState:      st.BreakerState,
	}
	if a.env.Matcher != nil {
		resp.RestaurantsMapped = a.env.Matcher.Len()
	}
	if st.Loaded {
		fetched := st.FetchedAt
		resp.FetchedAt = &fetched
	} else {
		resp.Status = "degraded"
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *api) unmatched(w http.ResponseWriter, r *http.Request) {
	if a.env.Orders == nil {
		writeError(w, r, eris.Wrap(model.ErrDataUnavailable, "orders not loaded"))
		return
	}
	names := matcher.Unmatched(a.env.Orders.Orders, a.env.Table)
	writeJSON(w, http.StatusOK, map[string]any{
		"count":           len(names),
		"unmatched_names": names,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps error kinds to status codes.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, model.ErrInvalidParameter):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, model.ErrDataUnavailable):
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": err.Error(),
			"state": "data_unavailable",
		})
	default:
		zap.L().Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		zap.L().Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
