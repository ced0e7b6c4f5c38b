package httpserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"qc-ledger/internal/accounts"
	"qc-ledger/internal/admin"
	"qc-ledger/internal/auth"
	"qc-ledger/internal/httputil"
	"qc-ledger/internal/ledger"
	"qc-ledger/internal/marketdata"
	"qc-ledger/internal/notify"
)

type RouterDeps struct {
	AuthHandler     *auth.Handler
	AccountsHandler *accounts.Handler
	LedgerHandler   *ledger.Handler
	NotifyHandler   *notify.Handler
	MarketHandler   *marketdata.Handler
	AdminHandler    *admin.Handler
	AuthService     *auth.Service
	AdminService    *admin.Service
	InternalToken   string
	PricesWS        http.Handler
	Registry        *prometheus.Registry
}

func NewRouter(d RouterDeps) http.Handler {
	r := chi.NewRouter()

	// CORS middleware for development
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin == "" {
				origin = "*"
			}
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}
			next.ServeHTTP(w, r)
		})
	})

	r.Use(SecurityHeaders)
	r.Use(RateLimitMiddleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	if d.Registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(d.Registry, promhttp.HandlerOpts{}))
	}

	r.Route("/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", d.AuthHandler.Register)
			r.Post("/login", d.AuthHandler.Login)
		})
		r.Get("/market/prices", d.MarketHandler.Latest)
		if d.PricesWS != nil {
			r.Get("/market/ws", d.PricesWS.ServeHTTP)
		}

		r.Group(func(r chi.Router) {
			r.Use(WithAuth(d.AuthService))
			r.Get("/me", withUser(d.AuthHandler.Me))
			r.Get("/balance", withUser(d.AccountsHandler.Balance))
			r.Get("/history", withUser(d.AccountsHandler.History))
			r.Post("/faucet", withUser(d.AccountsHandler.Faucet))
			r.Post("/trades", withUser(d.AccountsHandler.Trade))
			r.Post("/deposits", withUser(d.LedgerHandler.CreateDeposit))
			r.Post("/withdrawals", withUser(d.LedgerHandler.CreateWithdrawal))
			r.Get("/transactions", withUser(d.LedgerHandler.List))
			r.Get("/transactions/{id}", withUser(d.LedgerHandler.Get))
			r.Get("/notifications", withUser(d.NotifyHandler.List))
			r.Post("/notifications/{id}/read", withUser(d.NotifyHandler.MarkRead))
		})

		r.Group(func(r chi.Router) {
			r.Use(InternalAuth(d.InternalToken))
			r.Post("/internal/prices", d.MarketHandler.Ingest)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Post("/login", d.AdminHandler.Login)
			r.Group(func(r chi.Router) {
				r.Use(WithAdminAuth(d.AdminService))
				r.Get("/transactions/pending", withAdmin(d.AdminHandler.ListPending))
				r.Get("/transactions/{id}", withAdmin(d.AdminHandler.GetEntry))
				r.Post("/transactions/{id}/approve", withAdmin(d.AdminHandler.Approve))
				r.Post("/transactions/{id}/reject", withAdmin(d.AdminHandler.Reject))
				r.Post("/accounts/{id}/deactivate", withAdmin(d.AdminHandler.DeactivateAccount))
			})
		})
	})
	return r
}

func withUser(fn func(http.ResponseWriter, *http.Request, string)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := UserID(r)
		if !ok {
			httputil.WriteJSON(w, http.StatusUnauthorized, httputil.ErrorResponse{Error: "unauthorized"})
			return
		}
		fn(w, r, userID)
	}
}

func withAdmin(fn func(http.ResponseWriter, *http.Request, string)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		adminID, ok := AdminID(r)
		if !ok {
			httputil.WriteJSON(w, http.StatusUnauthorized, httputil.ErrorResponse{Error: "unauthorized"})
			return
		}
		fn(w, r, adminID)
	}
}
