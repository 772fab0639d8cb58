package config_test

import (
	"errors"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/okian/dayflow/internal/config"
	"github.com/okian/dayflow/internal/domain/blocks"
	"github.com/okian/dayflow/internal/domain/forecast"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with defaults", t, func() {
		cfg := config.New()

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.BlockDurationMinutes, convey.ShouldEqual, 15)
			convey.So(cfg.WorkerCount, convey.ShouldEqual, runtime.NumCPU())
			convey.So(cfg.Strategy, convey.ShouldEqual, config.StrategyMarkov)
			convey.So(cfg.Validate(), convey.ShouldBeNil)

			l, err := cfg.Layout()
			convey.So(err, convey.ShouldBeNil)
			convey.So(l.BlocksPerDay(), convey.ShouldEqual, 96)
		})

		convey.Convey("Then file paths resolve under the data directory", func() {
			cfg.DataDir = "/tmp/x"
			convey.So(cfg.RawFile(), convey.ShouldEqual, filepath.Join("/tmp/x", config.DefaultRawFile))
			convey.So(cfg.BlockFile(), convey.ShouldEqual, filepath.Join("/tmp/x", config.DefaultBlockFile))
			cfg.DBPath = "/var/lib/models.db"
			convey.So(cfg.DBFile(), convey.ShouldEqual, "/var/lib/models.db")
		})
	})
}

func TestConfig_Validate(t *testing.T) {
	convey.Convey("Given configs with a single bad field", t, func() {
		cases := map[string]func(*config.Config){
			"log level":       func(c *config.Config) { c.LogLevel = "loud" },
			"log format":      func(c *config.Config) { c.LogFormat = "xml" },
			"empty addr":      func(c *config.Config) { c.Addr = "" },
			"workers":         func(c *config.Config) { c.WorkerCount = -1 },
			"forecast count":  func(c *config.Config) { c.ForecastCount = 0 },
			"count above max": func(c *config.Config) { c.ForecastCount = c.MaxForecastCount + 1 },
			"max count":       func(c *config.Config) { c.MaxForecastCount = 0 },
			"max count cap":   func(c *config.Config) { c.MaxForecastCount = forecast.MaxCount + 1 },
			"strategy":        func(c *config.Config) { c.Strategy = "oracle" },
			"metrics refresh": func(c *config.Config) { c.MetricsRefreshSeconds = 0 },
		}
		for name, mutate := range cases {
			cfg := config.New()
			mutate(cfg)
			convey.Convey("When the "+name+" is invalid", func() {
				convey.So(errors.Is(cfg.Validate(), config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		}

		convey.Convey("When the block duration does not divide a day", func() {
			cfg := config.New()
			cfg.BlockDurationMinutes = 7
			err := cfg.Validate()
			convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			convey.So(errors.Is(err, blocks.ErrInvalidBlockDuration), convey.ShouldBeTrue)
		})
	})
}
