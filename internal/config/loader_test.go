package config_test

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/okian/coachmatch/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()

		convey.Convey("When loading config with defaults only", func() {
			clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
				convey.So(cfg.ShortlistCap, convey.ShouldEqual, 4)
				convey.So(cfg.StoreBackend, convey.ShouldEqual, config.StoreMemory)
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("COACHMATCH_ADDR", ":8080")
			_ = os.Setenv("COACHMATCH_QUEUE_SIZE", "512")
			_ = os.Setenv("COACHMATCH_WORKER_COUNT", "3")
			_ = os.Setenv("COACHMATCH_SHORTLIST_CAP", "6")
			_ = os.Setenv("COACHMATCH_PROJECTOR_MAX_RETRIES", "2")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.QueueSize, convey.ShouldEqual, 512)
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 3)
				convey.So(cfg.ShortlistCap, convey.ShouldEqual, 6)
				convey.So(cfg.ProjectorMaxRetries, convey.ShouldEqual, 2)
			})
		})

		convey.Convey("When loading config with a YAML file", func() {
			tmpFile := createTempConfigFile(`
addr: ":9090"
log_format: json
store_backend: sqlite
database_url: "file::memory:?cache=shared"
dedupe_backend: redis
redis_url: "redis://localhost:6379/0"
dedupe_ttl_seconds: 60
`)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("COACHMATCH_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load from the file", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.LogFormat, convey.ShouldEqual, "json")
				convey.So(cfg.StoreBackend, convey.ShouldEqual, config.StoreSQLite)
				convey.So(cfg.DedupeBackend, convey.ShouldEqual, config.DedupeRedis)
				convey.So(cfg.DedupeTTLSeconds, convey.ShouldEqual, 60)
				convey.So(cfg.ShortlistCap, convey.ShouldEqual, 4)
			})
		})

		convey.Convey("When both file and environment variables are set", func() {
			tmpFile := createTempConfigFile(`
addr: ":9090"
worker_count: 24
`)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("COACHMATCH_CONFIG", tmpFile)
			_ = os.Setenv("COACHMATCH_WORKER_COUNT", "32")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then environment variables should win", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 32)
			})
		})

		convey.Convey("When loading config with an invalid YAML file", func() {
			tmpFile := createTempConfigFile(`invalid: yaml: content: [`)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("COACHMATCH_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a load error", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with a missing file", func() {
			_ = os.Setenv("COACHMATCH_CONFIG", "/non/existent/file.yaml")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with empty addr", func() {
			_ = os.Setenv("COACHMATCH_ADDR", "")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a validation error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(err.Error(), convey.ShouldContainSubstring, "addr must not be empty")
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with invalid numeric environment variables", func() {
			_ = os.Setenv("COACHMATCH_SHORTLIST_CAP", "four")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When selecting postgres without a dsn", func() {
			_ = os.Setenv("COACHMATCH_STORE_BACKEND", "postgres")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then validation should fail", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(err.Error(), convey.ShouldContainSubstring, "database_url")
				convey.So(cfg, convey.ShouldBeNil)
			})
		})
	})
}

// Helper functions.

func clearConfigEnvVars() {
	envVars := []string{
		"COACHMATCH_CONFIG",
		"COACHMATCH_ADDR",
		"COACHMATCH_QUEUE_SIZE",
		"COACHMATCH_WORKER_COUNT",
		"COACHMATCH_SHORTLIST_CAP",
		"COACHMATCH_PROJECTOR_MAX_RETRIES",
		"COACHMATCH_STORE_BACKEND",
	}
	for _, envVar := range envVars {
		_ = os.Unsetenv(envVar)
	}
}

func createTempConfigFile(content string) string {
	tmpFile, err := os.CreateTemp("", "coachmatch-config-*.yaml")
	if err != nil {
		panic(err)
	}

	if _, err := tmpFile.WriteString(content); err != nil {
		panic(err)
	}

	if err := tmpFile.Close(); err != nil {
		panic(err)
	}

	return tmpFile.Name()
}
