package main

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/coachmatch/internal/adapters/redisledger"
	service "github.com/okian/coachmatch/internal/app"
	"github.com/okian/coachmatch/internal/config"
	"github.com/okian/coachmatch/pkg/logger"
)

func setEnv(t *testing.T, kv map[string]string) {
	t.Helper()
	for k, v := range kv {
		t.Setenv(k, v)
	}
}

func TestConfigFromEnvironment(t *testing.T) {
	convey.Convey("Given environment overrides", t, func() {
		setEnv(t, map[string]string{
			"COACHMATCH_ADDR":          ":8080",
			"COACHMATCH_QUEUE_SIZE":    "1000",
			"COACHMATCH_WORKER_COUNT":  "4",
			"COACHMATCH_SHORTLIST_CAP": "3",
		})

		convey.Convey("Then configuration picks them up", func() {
			cfg, err := config.Load(context.Background())
			convey.So(err, convey.ShouldBeNil)
			convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
			convey.So(cfg.QueueSize, convey.ShouldEqual, 1000)
			convey.So(cfg.WorkerCount, convey.ShouldEqual, 4)
			convey.So(cfg.ShortlistCap, convey.ShouldEqual, 3)
		})
	})

	convey.Convey("Given an empty listen address", t, func() {
		setEnv(t, map[string]string{"COACHMATCH_ADDR": ""})

		convey.Convey("Then loading fails", func() {
			cfg, err := config.Load(context.Background())
			convey.So(err, convey.ShouldNotBeNil)
			convey.So(cfg, convey.ShouldBeNil)
		})
	})
}

func TestNewService(t *testing.T) {
	log := logger.Get()

	convey.Convey("Given the default configuration", t, func() {
		ctx := context.Background()
		cfg := config.New()

		convey.Convey("Then the memory backends are used", func() {
			svc, err := newService(ctx, cfg, log)
			convey.So(err, convey.ShouldBeNil)
			convey.So(svc.Start(ctx), convey.ShouldBeNil)
			defer svc.Stop()

			stats := svc.GetStats()
			convey.So(stats["started"], convey.ShouldEqual, true)
			convey.So(stats["shortlistCap"], convey.ShouldEqual, 4)
		})
	})

	convey.Convey("Given the sqlite store backend", t, func() {
		ctx := context.Background()
		cfg := config.New()
		cfg.StoreBackend = config.StoreSQLite
		cfg.DatabaseURL = ":memory:"

		convey.Convey("Then the service records transitions in sqlite", func() {
			svc, err := newService(ctx, cfg, log)
			convey.So(err, convey.ShouldBeNil)
			convey.So(svc.Start(ctx), convey.ShouldBeNil)
			defer svc.Stop()

			list, err := svc.ListEngagementsForClient(ctx, "client-1")
			convey.So(err, convey.ShouldBeNil)
			convey.So(list, convey.ShouldBeEmpty)
		})
	})

	convey.Convey("Given an unreachable redis ledger", t, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		cfg := config.New()
		cfg.DedupeBackend = config.DedupeRedis
		cfg.RedisURL = "redis://127.0.0.1:1/0"

		convey.Convey("Then construction fails with a connect error", func() {
			svc, err := newService(ctx, cfg, log)
			convey.So(svc, convey.ShouldBeNil)
			convey.So(err, convey.ShouldNotBeNil)
			convey.So(errors.Is(err, redisledger.ErrConnect), convey.ShouldBeTrue)
		})
	})
}

func TestRouter(t *testing.T) {
	convey.Convey("Given a started service behind the router", t, func() {
		ctx := context.Background()
		svc := service.New(service.WithWorkerCount(1))
		convey.So(svc.Start(ctx), convey.ShouldBeNil)
		defer svc.Stop()

		srv := httptest.NewServer(newRouter(ctx, svc))
		defer srv.Close()

		for _, path := range []string{"/healthz", "/stats", "/api-docs", "/openapi.yaml"} {
			resp, err := http.Get(srv.URL + path)
			convey.So(err, convey.ShouldBeNil)
			_ = resp.Body.Close()
			convey.So(resp.StatusCode, convey.ShouldEqual, http.StatusOK)
		}
	})
}

func TestMetricsUpdaters(t *testing.T) {
	convey.Convey("Given the background metric updaters", t, func() {
		svc := service.New()

		convey.Convey("Then they return once the context ends", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
			defer cancel()
			convey.So(func() { startSystemMetricsUpdater(ctx) }, convey.ShouldNotPanic)
			convey.So(func() { startServiceMetricsUpdater(ctx, svc) }, convey.ShouldNotPanic)
		})

		convey.Convey("Then a single update does not panic on a stopped service", func() {
			convey.So(updateSystemMetrics, convey.ShouldNotPanic)
			convey.So(func() { updateServiceMetrics(svc) }, convey.ShouldNotPanic)
		})
	})
}

func TestMain(m *testing.M) {
	_ = logger.InitWithFormat(logger.FormatText, os.Stderr)
	_ = logger.SetLevelString("error")
	os.Exit(m.Run())
}
