package main

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-co-op/gocron"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/backend-kasir/internal/analytics"
	"github.com/noah-isme/backend-kasir/internal/app"
	"github.com/noah-isme/backend-kasir/internal/audit"
	"github.com/noah-isme/backend-kasir/internal/auth"
	"github.com/noah-isme/backend-kasir/internal/catalog"
	"github.com/noah-isme/backend-kasir/internal/common"
	"github.com/noah-isme/backend-kasir/internal/config"
	"github.com/noah-isme/backend-kasir/internal/health"
	"github.com/noah-isme/backend-kasir/internal/obs"
	"github.com/noah-isme/backend-kasir/internal/order"
	"github.com/noah-isme/backend-kasir/internal/ratelimit"
	"github.com/noah-isme/backend-kasir/internal/security"
	"github.com/noah-isme/backend-kasir/internal/terminal"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := obs.NewLogger(cfg.LogFormat, cfg.LogLevel).With().Str("env", cfg.AppEnv).Logger()

	metricsNamespace := envOrDefault("OBS_METRICS_NAMESPACE", "kasir")
	metricsEnabled := envBool("OBS_ENABLE_PROMETHEUS", true)
	obs.MustRegisterDomainMetrics(metricsNamespace, nil)

	tracingEnabled := cfg.TracingEnabled
	if tracingEnabled {
		shutdown, err := obs.InitTracer(context.Background(), obs.TracingConfig{
			ServiceName:   "kasir-api",
			Endpoint:      cfg.OTLPEndpoint,
			Exporter:      envOrDefault("OBS_TRACING_EXPORTER", "otlp"),
			SamplingRatio: cfg.TraceSampling,
			Environment:   cfg.AppEnv,
		})
		if err != nil {
			logger.Error().Err(err).Msg("initialise tracing")
			tracingEnabled = false
		} else {
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					logger.Error().Err(err).Msg("shutdown tracer")
				}
			}()
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	startCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	deps, err := app.New(startCtx, cfg, logger, app.Options{
		ApplicationName: "kasir-api",
		RedisMetrics:    metricsEnabled,
		Seed:            cfg.StoreSeed,
	})
	cancel()
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise dependencies")
	}
	defer deps.Close()

	services, err := deps.Services()
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise services")
	}

	catalogHandler := catalog.NewHandler(catalog.HandlerConfig{Service: services.Catalog})
	orderHandler := &order.Handler{
		Transactions: deps.Store,
		Refunds:      deps.Store,
		Renderer:     services.Renderer,
	}
	if services.Receipts != nil && cfg.SMTPEnabled() {
		orderHandler.Receipts = services.Receipts
	}
	analyticsHandler := &analytics.Handler{Svc: services.Analytics}
	authHandler := &auth.Handler{Service: services.Auth}
	authMiddleware := auth.Middleware{Service: services.Auth}

	var auditStore audit.Store = &audit.MemoryLog{}
	if deps.Redis != nil {
		auditStore = audit.RedisLog{R: deps.Redis, Key: cfg.RedisPrefix + "audit"}
	}
	auditor := audit.HTTPRecorder{
		Service: &audit.Service{Store: auditStore, Enabled: envBool("AUDIT_ENABLED", true), SamplingRate: 1},
		OnError: func(err error) { logger.Warn().Err(err).Msg("audit record failed") },
	}
	auditHandler := audit.Handler{Store: auditStore}

	idem := common.Idem{R: deps.Redis, TTL: cfg.IdempotencyTTL, Prefix: cfg.RedisPrefix}

	loginLimiter, err := ratelimit.NewFixed(deps.Redis, cfg.RedisPrefix+"limiter")
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise login limiter")
	}
	loginLimit := ratelimit.Handler{
		Limiter: loginLimiter,
		Config:  ratelimit.Config{Key: ratelimit.KeyByIP("login"), Window: cfg.LoginRateWindow, Max: cfg.LoginRateLimit},
		OnError: func(err error) { logger.Warn().Err(err).Msg("login rate limiter unavailable") },
	}

	var checkoutLimit func(http.Handler) http.Handler = passthrough
	if deps.Redis != nil {
		checkoutLimit = ratelimit.Handler{
			Limiter: ratelimit.Sliding{Client: deps.Redis, Prefix: cfg.RedisPrefix + "rl:"},
			Config:  ratelimit.Config{Key: ratelimit.KeyByOperator("checkout"), Window: time.Minute, Max: envInt("CHECKOUT_RATE_LIMIT", 60)},
			OnError: func(err error) { logger.Warn().Err(err).Msg("checkout rate limiter unavailable") },
		}.Middleware
	}

	checkoutChain := []func(http.Handler) http.Handler{
		checkoutLimit,
		idem.Middleware,
		auditor.Middleware(audit.HTTPConfig{Action: "checkout", ResourceType: "transaction"}),
	}
	terminalHandler := terminal.NewHandler(terminal.HandlerConfig{
		Registry:           services.Registry,
		Catalog:            services.Catalog,
		Checkout:           services.Checkout,
		TaxBps:             cfg.TaxRateBps,
		MaxDiscountBps:     cfg.MaxDiscountBps,
		Logger:             logger.With().Str("component", "terminal").Logger(),
		CheckoutMiddleware: checkoutChain,
	})

	var httpMetrics *obs.HTTPMetrics
	if metricsEnabled {
		httpMetrics = obs.NewHTTPMetrics(metricsNamespace, obs.ParseBucketsCSV(cfg.MetricsBuckets), nil)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if tracingEnabled {
		r.Use(obs.TracingMiddleware)
	}
	if httpMetrics != nil {
		r.Use(obs.HTTPObs{Metrics: httpMetrics}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: logger, Quiet: []string{"/health", "/metrics"}}.Middleware)
	r.Use(security.Headers{Enable: cfg.SecurityHeaders, EnableHSTS: cfg.AppEnv == "production", HSTSMaxAge: 31536000}.Middleware)
	r.Use(security.CORS(strings.Join(cfg.CORSAllowedOrigins, ",")))
	r.Use(security.BodyLimit{Max: cfg.BodyLimitBytes}.Middleware)

	if metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}
	if envBool("OBS_ENABLE_PPROF", false) {
		user := envOrDefault("SECURE_PPROF_BASIC_AUTH_USER", "")
		pass := envOrDefault("SECURE_PPROF_BASIC_AUTH_PASS", "")
		r.Mount("/debug/pprof", protectPprof(newPprofMux(), user, pass))
	}

	healthHandler := health.Handler{
		Checker:      health.Probes{Store: deps.Store, Redis: deps.Redis},
		StoreTimeout: envDurationMillis("HEALTH_READY_STORE_TIMEOUT_MS", 500),
		RedisTimeout: envDurationMillis("HEALTH_READY_REDIS_TIMEOUT_MS", 300),
	}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	r.Route("/api/v1", func(v chi.Router) {
		v.Get("/payment-methods", order.PaymentMethods)
		v.Get("/refund-reasons", order.RefundReasons)

		v.Route("/auth", func(a chi.Router) {
			a.Post("/register", authHandler.Register)
			a.With(loginLimit.Middleware).Post("/login", authHandler.Login)
			a.Post("/password/question", authHandler.Question)
			a.Post("/password/reset", authHandler.ResetPassword)
			a.With(authMiddleware.RequireAuth).Get("/me", authHandler.Me)
		})

		v.Group(func(p chi.Router) {
			p.Use(authMiddleware.RequireAuth)

			p.Get("/products", catalogHandler.Products)
			p.Get("/products/{id}", catalogHandler.Product)
			p.Get("/categories", catalogHandler.Categories)
			p.With(auditor.Middleware(audit.HTTPConfig{Action: "product.create", ResourceType: "product"})).
				Post("/products", catalogHandler.Create)
			p.With(auditor.Middleware(audit.HTTPConfig{Action: "product.update", ResourceType: "product", ResourceIDParam: "id"})).
				Put("/products/{id}", catalogHandler.Update)
			p.With(auditor.Middleware(audit.HTTPConfig{Action: "product.delete", ResourceType: "product", ResourceIDParam: "id"})).
				Delete("/products/{id}", catalogHandler.Delete)

			p.Route("/terminal", func(t chi.Router) {
				t.Use(auditor.Middleware(audit.HTTPConfig{Action: "refund.process", ResourceType: "refund", Filter: isRefundProcess}))
				terminalHandler.Routes(t)
			})

			p.Get("/transactions", orderHandler.List)
			p.Get("/transactions/{id}", orderHandler.Get)
			p.Get("/transactions/{id}/receipt", orderHandler.Receipt)
			p.With(idem.Middleware).Post("/transactions/{id}/receipt/email", orderHandler.EmailReceipt)
			p.Get("/refunds", orderHandler.ListRefunds)
			p.Get("/refunds/{id}/receipt", orderHandler.RefundReceipt)

			p.Get("/dashboard", analyticsHandler.Dashboard)
			p.Get("/dashboard/sales", analyticsHandler.Sales)
			p.Get("/dashboard/top-products", analyticsHandler.TopProducts)
			p.Get("/audit", auditHandler.List)
		})
	})

	scheduler := gocron.NewScheduler(time.Local)
	if cfg.SessionIdleTTL > 0 {
		if _, err := scheduler.Every(time.Minute).Do(func() {
			if n := services.Registry.Sweep(); n > 0 {
				logger.Info().Int("sessions", n).Msg("idle terminal sessions dropped")
			}
		}); err != nil {
			logger.Error().Err(err).Msg("schedule session sweep")
		}
	}
	scheduler.StartAsync()
	defer scheduler.Stop()

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		health.SetReady(false)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("server shutdown")
		}
	}()

	health.SetReady(true)
	logger.Info().Str("addr", srv.Addr).Str("store", cfg.StoreDriver).Msg("server starting")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("server exited unexpectedly")
	}
	logger.Info().Msg("server stopped")
}

func isRefundProcess(r *http.Request) bool {
	return r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/refund/process")
}

func passthrough(next http.Handler) http.Handler { return next }

func envOrDefault(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		trimmed := strings.TrimSpace(val)
		if trimmed != "" {
			return trimmed
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "1", "t", "true", "yes", "on":
			return true
		case "0", "f", "false", "no", "off":
			return false
		}
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(strings.TrimSpace(val)); err == nil {
			return parsed
		}
	}
	return fallback
}

func envDurationMillis(key string, fallback int) time.Duration {
	return time.Duration(envInt(key, fallback)) * time.Millisecond
}

func newPprofMux() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", pprof.Index)
	mux.HandleFunc("/cmdline", pprof.Cmdline)
	mux.HandleFunc("/profile", pprof.Profile)
	mux.HandleFunc("/symbol", pprof.Symbol)
	mux.HandleFunc("/trace", pprof.Trace)
	mux.Handle("/allocs", pprof.Handler("allocs"))
	mux.Handle("/goroutine", pprof.Handler("goroutine"))
	mux.Handle("/heap", pprof.Handler("heap"))
	return mux
}

func protectPprof(handler http.Handler, user, pass string) http.Handler {
	user = strings.TrimSpace(user)
	pass = strings.TrimSpace(pass)
	if user == "" {
		return handler
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || subtle.ConstantTimeCompare([]byte(u), []byte(user)) != 1 || subtle.ConstantTimeCompare([]byte(p), []byte(pass)) != 1 {
			w.Header().Set("WWW-Authenticate", "Basic realm=restricted")
			http.Error(w, "unauthorised", http.StatusUnauthorized)
			return
		}
		handler.ServeHTTP(w, r)
	})
}
