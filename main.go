package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/itopex/opex-backend/internal/auth"
	"github.com/itopex/opex-backend/internal/closing"
	"github.com/itopex/opex-backend/internal/config"
	"github.com/itopex/opex-backend/internal/db"
	"github.com/itopex/opex-backend/internal/events"
	"github.com/itopex/opex-backend/internal/execution"
	"github.com/itopex/opex-backend/internal/fiscal"
	"github.com/itopex/opex-backend/internal/ledger"
	"github.com/itopex/opex-backend/internal/logger"
	"github.com/itopex/opex-backend/internal/masters"
	"github.com/itopex/opex-backend/internal/metrics"
	"github.com/itopex/opex-backend/internal/middleware"
	"github.com/itopex/opex-backend/internal/projects"
	"github.com/itopex/opex-backend/internal/report"
	"github.com/itopex/opex-backend/internal/sap"
)

func RootHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	fmt.Fprintln(w, "Server is up!")
}

func main() {
	_ = godotenv.Load(".env.local")

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	log, err := logger.New("opex-backend", cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, "init logger:", err)
		os.Exit(1)
	}
	defer log.Sync()

	// The UI works with plain JSON numbers.
	decimal.MarshalJSONWithoutQuotes = true

	if err := db.Connect(cfg.DatabaseURL, cfg.DBLogLevel); err != nil {
		log.Fatal("database connection failed", zap.Error(err))
	}

	inits := []struct {
		name string
		fn   func() error
	}{
		{"auth", func() error { return auth.Init(db.DB) }},
		{"masters", func() error { return masters.Init(db.DB) }},
		{"projects", func() error { return projects.Init(db.DB) }},
		{"ledger", func() error { return ledger.Init(db.DB) }},
		{"sap", func() error { return sap.Init(db.DB) }},
	}
	for _, in := range inits {
		if err := in.fn(); err != nil {
			log.Fatal("schema setup failed", zap.String("module", in.name), zap.Error(err))
		}
	}

	var publisher events.Publisher = events.Nop{}
	if cfg.AMQPURL != "" {
		amqp, err := events.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange, log)
		if err != nil {
			log.Fatal("AMQP connection failed", zap.Error(err))
		}
		defer amqp.Close()
		publisher = amqp
		log.Info("publishing ledger events", zap.String("exchange", cfg.AMQPExchange))
	}

	ledgerSvc := ledger.NewService(
		ledger.NewGormStore(db.DB),
		ledger.WithPublisher(publisher),
		ledger.WithLogger(log.Named("ledger")),
	)
	sapSvc := sap.NewService(db.DB, ledgerSvc, log.Named("sap"))

	if cfg.SAPMappingSchedule != "" {
		scheduler, err := sap.StartScheduler(cfg.SAPMappingSchedule, cfg.Location(), sapSvc, log.Named("sap.cron"))
		if err != nil {
			log.Fatal("SAP mapping scheduler failed", zap.Error(err))
		}
		defer scheduler.Stop()
	}

	guard := middleware.RequireAuth(cfg.AuthRequired, auth.SessionInfo{})
	limiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.CORSOrigins))
	r.Use(limiter.Middleware)
	r.Use(middleware.RequestLogger(log.Named("http")))

	r.Get("/", RootHandler)
	r.Handle("/metrics", metrics.Handler())

	mastersHandler := masters.NewHandler(db.DB, log.Named("masters"))
	depts := projects.NewDeptResolver(cfg.DeptRules, cfg.DefaultDept)

	r.Route("/api/v1", func(r chi.Router) {
		r.Mount("/auth", auth.SetupRoutes())
		r.Mount("/closing", closing.SetupRoutes(closing.NewHandler(ledgerSvc, log.Named("closing")), guard))
		r.Mount("/execution", execution.SetupRoutes(execution.NewHandler(ledgerSvc, log.Named("execution")), guard))
		r.Mount("/projects", projects.SetupRoutes(projects.NewHandler(db.DB, ledgerSvc, depts, log.Named("projects")), guard))
		r.Mount("/vendors", masters.SetupVendorRoutes(mastersHandler, guard))
		r.Mount("/services", masters.SetupServiceRoutes(mastersHandler, guard))
		r.Mount("/accounts", masters.SetupAccountRoutes(mastersHandler, guard))
		r.Mount("/sap", sap.SetupRoutes(sap.NewHandler(sapSvc, log.Named("sap")), guard))
		r.Mount("/report", report.SetupRoutes(report.NewHandler(report.NewBuilder(ledgerSvc), log.Named("report"))))
		r.Mount("/utils", fiscal.SetupRoutes(cfg.MinFiscalYear, time.Now))
	})

	srv := &http.Server{
		Addr:              "0.0.0.0:" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("server listening", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("graceful shutdown failed", zap.Error(err))
	}
	log.Info("server stopped")
}
