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
	"github.com/go-chi/cors"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/extra/redisotel/v9"

	"github.com/noah-isme/backend-vat/internal/app"
	"github.com/noah-isme/backend-vat/internal/audit"
	"github.com/noah-isme/backend-vat/internal/auth"
	"github.com/noah-isme/backend-vat/internal/billing"
	"github.com/noah-isme/backend-vat/internal/catalog"
	"github.com/noah-isme/backend-vat/internal/common"
	"github.com/noah-isme/backend-vat/internal/config"
	"github.com/noah-isme/backend-vat/internal/country"
	"github.com/noah-isme/backend-vat/internal/events"
	"github.com/noah-isme/backend-vat/internal/health"
	"github.com/noah-isme/backend-vat/internal/obs"
	"github.com/noah-isme/backend-vat/internal/order"
	"github.com/noah-isme/backend-vat/internal/platformtax"
	"github.com/noah-isme/backend-vat/internal/quote"
	"github.com/noah-isme/backend-vat/internal/ratelimit"
	"github.com/noah-isme/backend-vat/internal/rates"
	"github.com/noah-isme/backend-vat/internal/security"
	"github.com/noah-isme/backend-vat/internal/tax"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logFormat := envOrDefault("OBS_LOG_FORMAT", "json")
	logLevel := envOrDefault("OBS_LOG_LEVEL", "info")
	logger := obs.NewLogger(logFormat, logLevel).With().Str("env", cfg.AppEnv).Logger()

	metricsNamespace := envOrDefault("OBS_METRICS_NAMESPACE", "vat")
	metricsEnabled := envBool("OBS_ENABLE_PROMETHEUS", true)
	obs.MustRegisterDomainMetrics(metricsNamespace, nil)

	tracingEnabled := envBool("OBS_ENABLE_TRACING", true)
	if tracingEnabled {
		sampling := envFloat("OBS_TRACING_SAMPLING_RATIO", 1.0)
		shutdown, err := obs.InitTracer(context.Background(), obs.TracingConfig{
			ServiceName:   "vat-api",
			Endpoint:      envOrDefault("OBS_OTLP_ENDPOINT", ""),
			Exporter:      envOrDefault("OBS_TRACING_EXPORTER", "otlp"),
			SamplingRatio: sampling,
			Environment:   cfg.AppEnv,
		})
		if err != nil {
			logger.Error().Err(err).Msg("initialise tracing")
			tracingEnabled = false
		} else {
			defer func() {
				ctx := context.Background()
				if err := shutdown(ctx); err != nil {
					logger.Error().Err(err).Msg("shutdown tracer")
				}
			}()
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.MigrateUp(cfg.DatabaseURL); err != nil {
		logger.Fatal().Err(err).Msg("apply migrations")
	}

	pool, err := app.NewPool(ctx, cfg.DatabaseURL, "vat-api")
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	defer pool.Close()

	redisClient, err := app.NewRedis(ctx, cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect redis")
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close redis")
		}
	}()
	if err := redisotel.InstrumentTracing(redisClient); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if metricsEnabled {
		if err := redisotel.InstrumentMetrics(redisClient); err != nil {
			logger.Error().Err(err).Msg("instrument redis metrics")
		}
	}

	bus := &events.Bus{Store: events.NewStore(pool)}

	rateStore := rates.NewStore(pool)
	rateCache := rates.NewCache(redisClient, cfg.RateCacheTTL)
	overrides := rates.NewCachingStore(rateStore, rateCache, logger)

	platform := platformtax.NewStore(pool)
	products := catalog.NewStore(pool)
	expander := catalog.Expander{Products: products}

	taxCfg := cfg.TaxConfig()
	if flushed, err := rateCache.SyncSettings(ctx, rates.SettingsFingerprint(taxCfg, cfg.RateCacheTTL)); err != nil {
		logger.Warn().Err(err).Msg("sync rate cache settings")
	} else if flushed {
		logger.Info().Msg("override settings changed, rate cache flushed")
	}
	resolver := tax.Resolver{Cfg: taxCfg, Overrides: overrides, Defaults: platform}
	aggregator := tax.Aggregator{Resolver: resolver}

	countryResolver := country.Resolver{BaseCountry: cfg.BaseCountry}
	if cfg.GeoIPBaseURL != "" {
		countryResolver.Geo = country.NewGeoClient(cfg.GeoIPBaseURL)
	}

	ratesService := rates.NewService(rates.ServiceConfig{
		Rates:    overrides,
		Products: products,
		Bus:      bus,
		Log:      logger,
	})
	ratesHandler := rates.NewHandler(rates.HandlerConfig{Service: ratesService})
	platformHandler := platformtax.Handler{Store: platform}

	quoteService := quote.NewService(quote.ServiceConfig{
		Resolver:   resolver,
		Aggregator: aggregator,
		Expander:   expander,
		Mode:       cfg.BundleDisplay,
	})
	quoteHandler := quote.NewHandler(quote.HandlerConfig{Service: quoteService, Country: countryResolver})

	orderStore := order.NewStore(pool)
	orderService := order.NewService(order.ServiceConfig{
		Store:      orderStore,
		Expander:   expander,
		Aggregator: aggregator,
		Mode:       cfg.BundleDisplay,
		Bus:        bus,
		Log:        logger,
	})
	orderHandler := order.NewHandler(order.HandlerConfig{
		Service:  orderService,
		Products: products,
		Country:  countryResolver,
		Mailer:   common.NopEmailSender{},
	})

	asynqOpt, err := app.AsynqRedisOpt(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url for task queue")
	}
	taskClient := asynq.NewClient(asynqOpt)
	defer func() {
		if err := taskClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close task client")
		}
	}()

	billingService := billing.NewService(billing.ServiceConfig{
		Store:    billing.NewStore(pool),
		Resolver: resolver,
		Bus:      bus,
		Log:      logger,
	})
	billingHandler := billing.NewHandler(billing.HandlerConfig{
		Service:  billingService,
		Enqueuer: billing.Enqueuer{Client: taskClient},
		Country:  countryResolver,
		Period:   cfg.RenewalPeriod,
		Log:      logger,
	})

	auditService := &audit.Service{
		Store:        audit.NewStore(pool),
		Enabled:      cfg.AuditEnabled,
		SamplingRate: cfg.AuditSampleRate,
	}
	auditRecorder := audit.HTTPRecorder{
		Service: auditService,
		OnError: func(err error) { logger.Error().Err(err).Msg("record audit log") },
	}
	auditHandler := audit.Handler{Store: auditService.Store}

	authService, err := auth.NewService(auth.Config{
		Secret:         cfg.JWTSecret,
		AccessTokenTTL: cfg.AccessTokenTTL,
		Issuer:         "vat-api",
		Audience:       "vat-admin",
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise auth service")
	}
	authMiddleware := auth.Middleware{Service: authService}

	idem := common.Idem{R: redisClient, TTL: cfg.IdempotencyTTL}

	limiterStore, err := app.NewLimiterStore(redisClient)
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise limiter store")
	}
	adminLimiter := ratelimit.Handler{
		Limiter: ratelimit.StoreLimiter{Store: limiterStore},
		Config: ratelimit.Config{
			Key:    func(r *http.Request) string { return "admin:" + common.ClientIP(r) },
			Window: cfg.AdminRateLimitWindow,
			Max:    int(cfg.AdminRateLimit),
		},
		OnError: func(err error) { logger.Error().Err(err).Msg("rate limit check") },
	}
	// Per-product mutations get a tighter sliding-window budget so one noisy
	// product cannot consume the whole admin allowance.
	productLimiter := ratelimit.Handler{
		Limiter: ratelimit.Limiter{Client: redisClient, Prefix: "vat:limiter:product:"},
		Config: ratelimit.Config{
			Key: func(r *http.Request) string {
				return chi.URLParam(r, "productID") + ":" + common.ClientIP(r)
			},
			Window: cfg.AdminRateLimitWindow,
			Max:    int(cfg.ProductMutationRateLimit),
		},
		OnError: func(err error) { logger.Error().Err(err).Msg("product rate limit check") },
	}

	var httpMetrics *obs.HTTPMetrics
	if metricsEnabled {
		buckets := obs.ParseBucketsCSV(envOrDefault("OBS_METRICS_BUCKETS_MS", ""))
		httpMetrics = obs.NewHTTPMetrics(metricsNamespace, buckets, nil)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(obs.RoutePatternMiddleware)
	if tracingEnabled {
		r.Use(obs.TracingMiddleware)
	}
	if metricsEnabled && httpMetrics != nil {
		r.Use(obs.HTTPObs{Metrics: httpMetrics}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: logger}.Middleware)
	r.Use(security.Headers{Enable: true, EnableHSTS: cfg.AppEnv == "production"}.Middleware)
	r.Use(security.BodyLimit{Max: cfg.MaxBodyBytes}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(cfg),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key"},
		ExposedHeaders:   []string{"X-Total-Count"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	if metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}
	if envBool("OBS_ENABLE_PPROF", false) {
		user := envOrDefault("SECURE_PPROF_BASIC_AUTH_USER", "")
		pass := envOrDefault("SECURE_PPROF_BASIC_AUTH_PASS", "")
		r.Mount("/debug/pprof", protectPprof(newPprofMux(), user, pass))
	}

	healthHandler := health.Handler{
		Checker:      app.Checker{DB: pool, Redis: redisClient},
		DBTimeout:    envDurationMillis("HEALTH_READY_DB_TIMEOUT_MS", 500),
		RedisTimeout: envDurationMillis("HEALTH_READY_REDIS_TIMEOUT_MS", 300),
	}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	r.Route("/api/v1", func(v chi.Router) {
		v.Get("/tax/resolve", quoteHandler.Resolve)
		v.Post("/tax/quote", quoteHandler.Quote)

		v.Route("/orders", func(o chi.Router) {
			o.With(idem.Middleware).Post("/", orderHandler.Finalize)
			o.Get("/{orderID}", orderHandler.Get)
			o.Get("/{orderID}/tax-summary", orderHandler.TaxSummary)
			o.Get("/{orderID}/receipt", orderHandler.Receipt)
		})

		v.With(idem.Middleware).Post("/subscriptions", billingHandler.Subscribe)

		v.Route("/admin", func(admin chi.Router) {
			admin.Use(authMiddleware.RequireAdmin)
			admin.Use(adminLimiter.Middleware)
			admin.Use(auditRecorder.Middleware(audit.HTTPConfig{}))

			admin.Get("/rates", ratesHandler.List)
			admin.With(idem.Middleware).Delete("/rates", ratesHandler.DeleteAll)
			admin.Get("/rates/export", ratesHandler.Export)
			admin.With(idem.Middleware).Post("/rates/import", ratesHandler.Import)

			admin.Route("/products/{productID}/rates", func(p chi.Router) {
				p.Get("/", ratesHandler.ProductRates)
				p.With(productLimiter.Middleware, idem.Middleware).Delete("/", ratesHandler.DeleteProduct)
				p.With(productLimiter.Middleware, idem.Middleware).Put("/{country}", ratesHandler.Upsert)
				p.With(productLimiter.Middleware, idem.Middleware).Delete("/{country}", ratesHandler.Delete)
			})

			admin.Get("/default-rates", platformHandler.List)
			admin.With(idem.Middleware).Put("/default-rates/{country}", platformHandler.Set)

			admin.Get("/audit-logs", auditHandler.List)
		})
	})

	srv := &http.Server{
		Addr:    cfg.HTTPAddr(),
		Handler: r,
	}

	go func() {
		stop := make(chan os.Signal, 1)
		signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
		<-stop
		health.SetReady(false)
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("shutdown server")
		}
	}()

	logger.Info().Str("addr", srv.Addr).Msg("server starting")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("server exited unexpectedly")
	}
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.CORSAllowedOrigins
}

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

func envFloat(key string, fallback float64) float64 {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseFloat(strings.TrimSpace(val), 64); err == nil {
			return parsed
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
	mux.Handle("/block", pprof.Handler("block"))
	mux.Handle("/goroutine", pprof.Handler("goroutine"))
	mux.Handle("/heap", pprof.Handler("heap"))
	mux.Handle("/mutex", pprof.Handler("mutex"))
	mux.Handle("/threadcreate", pprof.Handler("threadcreate"))
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
