package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"lendingpool/crypto"
	"lendingpool/observability"
	"lendingpool/observability/logging"
	"lendingpool/services/poold/journal"
	"lendingpool/services/poold/service"
)

// Config captures the dependencies required to construct the server.
type Config struct {
	Service   *service.Service
	Journal   *journal.Journal
	Auth      AuthConfig
	RateLimit RateLimit
	Logger    *slog.Logger
}

// Server exposes one pool over HTTP.
type Server struct {
	svc     *service.Service
	journal *journal.Journal
	auth    *Authenticator
	limiter *RateLimiter
	logger  *slog.Logger

	router http.Handler
}

// New constructs the HTTP router.
func New(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		svc:     cfg.Service,
		journal: cfg.Journal,
		auth:    NewAuthenticator(cfg.Auth, logger),
		limiter: NewRateLimiter(cfg.RateLimit),
		logger:  logger,
	}
	s.router = otelhttp.NewHandler(s.buildRouter(), "poold")
	return s
}

// Handler exposes the configured HTTP router.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(api chi.Router) {
		api.Use(s.auth.Middleware)
		api.Use(s.limiter.Middleware)

		api.Get("/pool", s.handle("pool.summary", s.poolSummary))
		api.Get("/pool/accounts/{address}", s.handle("pool.account", s.accountSummary))
		api.Get("/pool/loans/{originator}/{loanID}", s.handle("pool.loan", s.loanSummary))
		api.Get("/pool/apy", s.handle("pool.apy", s.projectedAPY))
		api.Get("/pool/events", s.handle("pool.events", s.listEvents))

		api.Post("/assets/approve", s.handle("assets.approve", s.approve))
		api.Post("/assets/faucet", s.handle("assets.faucet", s.faucet))

		api.Post("/pool/deposit", s.handle("pool.deposit", s.deposit))
		api.Post("/pool/withdraw", s.handle("pool.withdraw", s.withdraw))
		api.Post("/pool/stake", s.handle("pool.stake", s.stake))
		api.Post("/pool/unstake", s.handle("pool.unstake", s.unstake))
		api.Post("/pool/protocol-earnings/withdraw", s.handle("pool.protocol_withdraw", s.withdrawProtocolEarnings))
		api.Post("/pool/manager-revenue/withdraw", s.handle("pool.manager_withdraw", s.withdrawManagerRevenue))

		api.Post("/loans/offers", s.handle("loans.offer", s.offer))
		api.Put("/loans/offers", s.handle("loans.offer_update", s.offerUpdate))
		api.Post("/loans/{loanID}/borrow", s.handle("loans.borrow", s.borrow))
		api.Post("/loans/{loanID}/repay", s.handle("loans.repay", s.repay))
		api.Post("/loans/{loanID}/close", s.handle("loans.close", s.closeLoan))
		api.Post("/loans/{loanID}/default", s.handle("loans.default", s.defaultLoan))

		api.Put("/admin/rates/{rate}", s.handle("admin.rate", s.setRate))
		api.Post("/admin/status/{action}", s.handle("admin.status", s.setStatus))
		api.Put("/admin/treasury", s.handle("admin.treasury", s.setTreasury))
		api.Put("/admin/originators/{address}", s.handle("admin.originator_add", s.authorizeOriginator))
		api.Delete("/admin/originators/{address}", s.handle("admin.originator_remove", s.revokeOriginator))
		api.Put("/admin/operator-pause", s.handle("admin.operator_pause", s.setOperatorPause))
	})
	return r
}

// handlerFunc serves an authenticated request and returns the JSON payload.
type handlerFunc func(r *http.Request, caller crypto.Address) (any, error)

func (s *Server) handle(operation string, fn handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		caller, _ := CallerFrom(r.Context())
		payload, err := fn(r, caller)
		status := statusFor(err)
		if err != nil {
			writeError(w, status, err)
		} else {
			writeJSON(w, status, payload)
		}
		observability.HTTP().Observe(operation, status, time.Since(start))

		attrs := []any{
			slog.String("operation", operation),
			slog.String("request_id", chimw.GetReqID(r.Context())),
			logging.MaskField("caller", caller.String()),
			slog.Int("status", status),
		}
		switch {
		case status >= http.StatusInternalServerError:
			s.logger.Error("request failed", append(attrs, slog.Any("error", err))...)
		case err != nil:
			s.logger.Info("request rejected", append(attrs, slog.String("reason", err.Error()))...)
		default:
			s.logger.Debug("request served", attrs...)
		}
	}
}
