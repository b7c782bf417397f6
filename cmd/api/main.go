package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/yourorg/remediation-worker/internal/app"
	"github.com/yourorg/remediation-worker/internal/config"
	"github.com/yourorg/remediation-worker/internal/orchestrator"
	"github.com/yourorg/remediation-worker/internal/store"
)

type scanRequest struct {
	RepoURL      string   `json:"repo_url"`
	CommitSHA    string   `json:"commit_sha"`
	ScannerTypes []string `json:"scanner_types"`
}

func main() {
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load(".env")

	cfg := config.Load()

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	deps, err := app.Build(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("startup failed", zap.Error(err))
	}
	defer deps.Close()
	orc := deps.Orchestrator

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "healthy"})
	})

	api := e.Group("/api/v1")

	api.POST("/scan", func(c echo.Context) error {
		var req scanRequest
		if err := c.Bind(&req); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		if req.RepoURL == "" {
			return echo.NewHTTPError(http.StatusBadRequest, "repo_url is required")
		}
		result, err := orc.Ingest(c.Request().Context(), req.RepoURL, req.CommitSHA, req.ScannerTypes)
		if err != nil {
			logger.Error("scan ingestion failed", zap.Error(err))
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		return c.JSON(http.StatusOK, result)
	})

	api.GET("/scans", func(c echo.Context) error {
		items, err := orc.ListScans(c.Request().Context())
		if err != nil {
			logger.Error("list scans failed", zap.Error(err))
			return echo.NewHTTPError(http.StatusInternalServerError, "failed to retrieve scans")
		}
		if items == nil {
			items = []store.ListItem{}
		}
		return c.JSON(http.StatusOK, items)
	})

	api.GET("/scans/:id", func(c echo.Context) error {
		job, err := orc.GetScan(c.Request().Context(), c.Param("id"))
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return echo.NewHTTPError(http.StatusNotFound, "scan not found")
			}
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		return c.JSON(http.StatusOK, job)
	})

	api.DELETE("/scans/:id", func(c echo.Context) error {
		if err := orc.DeleteScan(c.Request().Context(), c.Param("id")); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return echo.NewHTTPError(http.StatusNotFound, "scan not found")
			}
			logger.Error("delete scan failed", zap.Error(err))
			return echo.NewHTTPError(http.StatusInternalServerError, "failed to delete scan")
		}
		return c.JSON(http.StatusOK, map[string]string{"status": "deleted", "scan_id": c.Param("id")})
	})

	api.POST("/scan/:id/remediate/:findingID", func(c echo.Context) error {
		proposal, err := orc.RemediateOne(c.Request().Context(), c.Param("id"), c.Param("findingID"))
		switch {
		case errors.Is(err, store.ErrNotFound):
			return echo.NewHTTPError(http.StatusNotFound, "scan not found")
		case errors.Is(err, orchestrator.ErrFindingNotFound):
			return echo.NewHTTPError(http.StatusNotFound, "finding not found")
		case err != nil:
			logger.Error("remediation failed", zap.Error(err))
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		case proposal == nil:
			return echo.NewHTTPError(http.StatusNotFound, "remediation could not be generated")
		}
		return c.JSON(http.StatusOK, proposal)
	})

	api.POST("/scan/:id/remediate-all", func(c echo.Context) error {
		scanID := c.Param("id")
		// long-running; runs detached like the worker's jobs
		go func() {
			bgCtx, bgCancel := context.WithTimeout(context.Background(), 30*time.Minute)
			defer bgCancel()
			n, err := orc.RemediateAll(bgCtx, scanID)
			if err != nil {
				logger.Error("batch remediation failed",
					zap.String("scan_id", scanID), zap.Error(err))
				return
			}
			logger.Info("batch remediation finished",
				zap.String("scan_id", scanID), zap.Int("generated", n))
		}()
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "started",
			"message": "batch remediation started in background",
		})
	})

	go func() {
		<-ctx.Done()
		shctx, shcancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shcancel()
		_ = e.Shutdown(shctx)
	}()

	logger.Info("api server starting", zap.String("addr", cfg.HTTPAddr))
	if err := e.Start(cfg.HTTPAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("api server", zap.Error(err))
	}
}
