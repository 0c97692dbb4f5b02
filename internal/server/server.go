package server

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	appconfig "github.com/forensicflow/forensicflow/config"
	"github.com/forensicflow/forensicflow/internal/engine"
	"github.com/forensicflow/forensicflow/internal/provider"
	"github.com/forensicflow/forensicflow/internal/search"
	"github.com/forensicflow/forensicflow/internal/store"
)

// Run wires the store, cache, provider and engine, then serves the API.
func Run(cfg *appconfig.Config) error {
	e := newEcho()

	dsn := cfg.Storage.Postgres.DSN()
	if err := Migrate("file://migrations", dsn, "up", 0); err != nil {
		log.Printf("migrate: %v", err)
	}

	ctx := context.Background()
	st, err := store.NewWithDSN(ctx, dsn)
	if err != nil {
		return err
	}

	var cache engine.Cache
	if cfg.Storage.Redis.Host != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Storage.Redis.Addr(),
			Password: cfg.Storage.Redis.Password,
			DB:       cfg.Storage.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis connection failed (%s): %w", cfg.Storage.Redis.Addr(), err)
		}
		cache = engine.NewRedisCache(rdb)
	}

	llm, err := provider.New(provider.Config{
		Kind:        provider.Kind(cfg.LLM.Provider),
		APIKey:      cfg.LLM.APIKey,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
		Timeout:     cfg.LLM.Timeout,
	})
	if err != nil {
		return err
	}
	if llm == nil {
		log.Printf("no reasoning provider configured, queries run in fallback mode")
	}

	eng := engine.New(llm, cache, log.Default(), engine.Options{
		MaxGraphItems:     cfg.Engine.MaxGraphItems,
		MaxToolIterations: cfg.Engine.MaxToolIterations,
		QueryTimeout:      cfg.Engine.QueryTimeout,
		SynthesisTimeout:  cfg.Engine.SynthesisTimeout,
	})
	idx := search.NewRegistry()
	registerRoutes(e, st, idx, eng)

	addr := cfg.Server.Address
	if addr == "" {
		addr = ":10080"
	}
	log.Printf("listening on %s", addr)
	return e.Start(addr)
}

// newEcho builds the echo instance with recovery, CORS and a unified JSON
// error handler.
func newEcho() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	baseLogger := log.New(log.Writer(), "[HTTP] ", log.LstdFlags)
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		baseLogger.Printf("%d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
		if !c.Response().Committed {
			_ = c.JSON(code, map[string]interface{}{"error": msg})
		}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Cookie"},
		AllowCredentials: true,
	}))
	e.GET("/healthz", func(c echo.Context) error { return c.String(200, "ok") })
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	return e
}

func registerRoutes(e *echo.Echo, st *store.Store, idx *search.Registry, eng *engine.Engine) {
	api := e.Group("/api")
	cases := api.Group("/cases")

	(&CasesHandler{Store: st}).Register(cases)
	(&EvidenceHandler{Store: st, Search: idx}).Register(cases)
	(&AskHandler{Store: st, Search: idx, Engine: eng, Conversations: NewConversations()}).Register(cases)
	(&InsightsHandler{Store: st, Search: idx}).Register(cases)
	(&SessionsHandler{Store: st}).Register(cases)
	(&ReportHandler{Store: st}).Register(cases)
}
