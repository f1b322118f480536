package main

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/vpncompare/internal/lifecycle"
	"github.com/sells-group/vpncompare/internal/pricing"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps lifecycle failures onto HTTP statuses. Internal detail is
// logged, never sent to the client.
func writeError(w http.ResponseWriter, err error) {
	if ve, ok := lifecycle.AsValidation(err); ok {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":  "validation failed",
			"fields": ve.Fields,
		})
		return
	}
	switch {
	case eris.Is(err, lifecycle.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	case eris.Is(err, lifecycle.ErrTokenExpired):
		writeJSON(w, http.StatusGone, map[string]string{"error": "token expired"})
	default:
		zap.L().Error("request failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

// submitLimit throttles lead submissions across all clients.
func submitLimit(limiter *rate.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "too many requests"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// adminOnly gates the admin subtree behind a shared secret header.
func adminOnly(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if secret == "" || r.Header.Get("X-Admin-Secret") != secret {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// newRouter builds the HTTP API. Split out of the serve command so handlers
// are testable without a listener.
func newRouter(svc *lifecycle.Service, resolver *pricing.Resolver, adminSecret string, limiter *rate.Limiter) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Admin-Secret"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.With(submitLimit(limiter)).Post("/leads", func(w http.ResponseWriter, req *http.Request) {
			var in lifecycle.SubmitInput
			if err := json.NewDecoder(req.Body).Decode(&in); err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
				return
			}
			res, err := svc.Submit(req.Context(), in)
			if err != nil {
				writeError(w, err)
				return
			}
			writeJSON(w, http.StatusCreated, map[string]string{"lead_id": res.LeadID})
		})

		r.Get("/verify/{token}", func(w http.ResponseWriter, req *http.Request) {
			compID, err := svc.RedeemVerification(req.Context(), chi.URLParam(req, "token"))
			if err != nil {
				writeError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]string{"comparison_id": compID})
		})

		r.Get("/optout/{token}", func(w http.ResponseWriter, req *http.Request) {
			if err := svc.RedeemOptOut(req.Context(), chi.URLParam(req, "token")); err != nil {
				writeError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})

		r.Get("/comparison/sample", func(w http.ResponseWriter, req *http.Request) {
			writeJSON(w, http.StatusOK, svc.SampleComparison(req.Context()))
		})

		r.Get("/comparison/{id}", func(w http.ResponseWriter, req *http.Request) {
			snap, err := svc.GetComparison(req.Context(), chi.URLParam(req, "id"))
			if err != nil {
				writeError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, snap)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(adminOnly(adminSecret))

			r.Get("/leads", func(w http.ResponseWriter, req *http.Request) {
				leads, next, err := svc.ListLeads(req.Context(), req.URL.Query().Get("cursor"), 0)
				if err != nil {
					writeError(w, err)
					return
				}
				writeJSON(w, http.StatusOK, map[string]any{
					"leads":       leads,
					"next_cursor": next,
				})
			})

			r.Delete("/leads/{id}", func(w http.ResponseWriter, req *http.Request) {
				if err := svc.DeleteLead(req.Context(), chi.URLParam(req, "id")); err != nil {
					writeError(w, err)
					return
				}
				writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
			})

			r.Get("/stats", func(w http.ResponseWriter, req *http.Request) {
				stats, err := svc.Stats(req.Context())
				if err != nil {
					writeError(w, err)
					return
				}
				writeJSON(w, http.StatusOK, stats)
			})

			r.Get("/pricing", func(w http.ResponseWriter, req *http.Request) {
				writeJSON(w, http.StatusOK, resolver.List(req.Context()))
			})

			r.Put("/pricing/{vendorID}", func(w http.ResponseWriter, req *http.Request) {
				var in struct {
					BasePricePerMonth float64 `json:"base_price_per_month"`
					IsQuoteOnly       bool    `json:"is_quote_only"`
				}
				if err := json.NewDecoder(req.Body).Decode(&in); err != nil {
					writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
					return
				}
				vendorID := chi.URLParam(req, "vendorID")
				if err := resolver.SetOverride(req.Context(), vendorID, in.BasePricePerMonth, in.IsQuoteOnly); err != nil {
					writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
					return
				}
				writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
			})
		})
	})

	return r
}
