package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cmlabs-hris/payroll-backend-go/internal/config"
	"github.com/cmlabs-hris/payroll-backend-go/internal/domain/payroll"
	"github.com/cmlabs-hris/payroll-backend-go/internal/fixtures"
	appHTTP "github.com/cmlabs-hris/payroll-backend-go/internal/handler/http"
	"github.com/cmlabs-hris/payroll-backend-go/internal/pkg/database"
	"github.com/cmlabs-hris/payroll-backend-go/internal/pkg/jwt"
	"github.com/cmlabs-hris/payroll-backend-go/internal/pkg/pubsub"
	"github.com/cmlabs-hris/payroll-backend-go/internal/pkg/sse"
	"github.com/cmlabs-hris/payroll-backend-go/internal/repository/postgresql"
	payrollService "github.com/cmlabs-hris/payroll-backend-go/internal/service/payroll"
	"github.com/go-chi/httplog/v3"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logFormat := httplog.SchemaECS.Concise(cfg.App.Env != "production")
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level:       cfg.SlogLevel(),
		ReplaceAttr: logFormat.ReplaceAttr,
	})).With(
		slog.String("app", "payroll-backend"),
		slog.String("env", cfg.App.Env),
	)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgreSQLDB(ctx, cfg.DatabaseURL(), database.PoolConfig{
		MaxConns:        cfg.Database.MaxConns,
		MinConns:        cfg.Database.MinConns,
		MaxConnLifetime: cfg.Database.MaxConnLifetime,
		MaxConnIdleTime: cfg.Database.MaxConnIdleTime,
	})
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer db.Close()

	txManager := postgresql.NewTransactionManager(db)
	runRepo := postgresql.NewPayrollRunRepository(db)
	salaryConfigRepo := postgresql.NewSalaryConfigRepository(db)
	employeeRepo := postgresql.NewEmployeeRepository(db)
	attendanceRepo := postgresql.NewAttendanceRepository(db)
	authorizer := postgresql.NewRoleAuthorizer(db)

	if cfg.Payroll.CatalogPath != "" {
		catalog, err := fixtures.NewCatalogLoader(cfg.Payroll.CatalogPath).Load()
		if err != nil {
			return fmt.Errorf("load salary catalog: %w", err)
		}
		if err := fixtures.Seed(ctx, catalog, salaryConfigRepo, txManager); err != nil {
			return fmt.Errorf("seed salary catalog: %w", err)
		}
	}

	hub := sse.NewHub()
	var notifier payroll.Notifier = hub
	if cfg.Redis.Addr != "" {
		rdb, err := pubsub.NewRedisClient(ctx, pubsub.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return err
		}
		defer rdb.Close()

		notifier = pubsub.NewRedisNotifier(rdb, cfg.Redis.Channel)
		go func() {
			if err := pubsub.Relay(ctx, rdb, cfg.Redis.Channel, hub); err != nil {
				slog.Error("payroll event relay stopped", "error", err)
			}
		}()
		slog.Info("payroll events published through redis", "channel", cfg.Redis.Channel)
	}

	payrollSvc := payrollService.NewPayrollService(
		txManager,
		runRepo,
		employeeRepo,
		salaryConfigRepo,
		attendanceRepo,
		notifier,
		authorizer,
		cfg.Payroll.MaxWorkers,
	)

	JWTService := jwt.NewJWTService(cfg.JWT.Secret)
	payrollHandler := appHTTP.NewPayrollHandler(payrollSvc, hub)

	router, err := appHTTP.NewRouter(appHTTP.RouterConfig{
		AllowedOrigins: cfg.App.CORSAllowedOrigins,
		RateLimit:      cfg.App.RateLimit,
		Logger:         logger,
	}, JWTService, payrollHandler)
	if err != nil {
		return fmt.Errorf("build router: %w", err)
	}

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.App.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server running", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	slog.Info("shutting down server")
	return server.Shutdown(shutdownCtx)
}
