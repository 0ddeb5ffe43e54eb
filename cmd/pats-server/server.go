package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/fhir/pats/internal/config"
	"github.com/fhir/pats/internal/domain/patient"
	"github.com/fhir/pats/internal/platform/db"
	"github.com/fhir/pats/internal/platform/httperr"
	"github.com/fhir/pats/internal/platform/jsonx"
	"github.com/fhir/pats/internal/platform/metrics"
	"github.com/fhir/pats/internal/platform/middleware"
)

const (
	serviceName    = "Patient FHIR REST API Service"
	serviceVersion = "1.0"
)

// store bundles the profile repository with the handles needed for health
// checks and migrations.
type store struct {
	name     string
	repo     patient.ProfileRepository
	migrator *db.Migrator
	pool     *pgxpool.Pool
	sqlDB    *sql.DB
}

func openStore(ctx context.Context, cfg *config.Config) (*store, error) {
	if db.IsSQLiteURL(cfg.DatabaseURL) {
		sqlDB, err := db.OpenSQLite(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		return &store{
			name:     "sqlite",
			repo:     patient.NewProfileRepoSQLite(sqlDB),
			migrator: db.NewSQLiteMigrator(sqlDB, db.SQLiteMigrations()),
			sqlDB:    sqlDB,
		}, nil
	}

	pool, err := db.NewPool(ctx, cfg.DatabaseURL, db.PoolOptions{
		MaxConns:        cfg.DBMaxConns,
		MinConns:        cfg.DBMinConns,
		ApplicationName: "pats-server",
		Schema:          cfg.DBSchema,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	return &store{
		name:     "postgres",
		repo:     patient.NewProfileRepoPG(pool),
		migrator: db.NewMigrator(pool, cfg.DBSchema, db.PostgresMigrations()),
		pool:     pool,
	}, nil
}

func (s *store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
	if s.sqlDB != nil {
		_ = s.sqlDB.Close()
	}
}

// newServer builds the echo instance with middleware and every route.
func newServer(cfg *config.Config, logger zerolog.Logger, st *store, reg *prometheus.Registry) *echo.Echo {
	m := metrics.New(reg)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.JSONSerializer = jsonx.Serializer{}
	e.HTTPErrorHandler = httperr.Handler(logger, patient.ErrorRules()...)
	e.Logger.SetOutput(io.Discard)

	e.Use(middleware.RequestID())
	e.Use(middleware.Metrics(m))
	e.Use(middleware.Logger(logger))
	e.Use(middleware.Recovery(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:  cfg.CORSOrigins,
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders:  []string{echo.HeaderContentType, echo.HeaderXRequestID},
		ExposeHeaders: []string{echo.HeaderLocation, echo.HeaderXRequestID},
	}))
	e.Use(middleware.BodyLimit(cfg.BodyLimit))

	e.GET("/", indexHandler)
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/health/db", db.HealthHandler(st.repo, st.name, st.pool))
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})))

	svc := patient.NewService(st.repo, patient.Options{RequireNamePrefix: cfg.RequireNamePrefix}, logger, m)
	patient.NewHandler(svc).RegisterRoutes(e.Group(""))

	return e
}

func indexHandler(c echo.Context) error {
	base := c.Scheme() + "://" + c.Request().Host
	return c.JSON(http.StatusOK, map[string]string{
		"name":    serviceName,
		"version": serviceVersion,
		"paths":   strings.TrimSuffix(base, "/") + "/pats",
	})
}

func printStatus(w io.Writer, statuses []db.MigrationStatus) {
	fmt.Fprintf(w, "%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
	fmt.Fprintln(w, "---------- ---------------------------------------- ---------- --------------------")
	for _, s := range statuses {
		status, appliedAt := "pending", ""
		if s.Applied {
			status = "applied"
			if s.AppliedAt != nil {
				appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
			}
		}
		fmt.Fprintf(w, "%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
	}
}
