package app

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rbright/hark/internal/config"
	"github.com/rbright/hark/internal/events"
	"github.com/rbright/hark/internal/metrics"
	"github.com/samber/do/v2"
)

type injector = do.Injector

// newInjector registers the process-wide services. Sessions are created per
// command because each command needs a different model.
func newInjector(loaded config.Loaded, logger *slog.Logger) *do.RootScope {
	i := do.New()

	do.ProvideValue(i, loaded)
	do.ProvideValue(i, logger)

	do.Provide(i, func(i do.Injector) (*prometheus.Registry, error) {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		return reg, nil
	})
	do.Provide(i, func(i do.Injector) (*metrics.Metrics, error) {
		return metrics.New(do.MustInvoke[*prometheus.Registry](i)), nil
	})
	do.Provide(i, func(i do.Injector) (*events.Publisher, error) {
		cfg := do.MustInvoke[config.Loaded](i).Config
		return events.New(cfg.Events, do.MustInvoke[*slog.Logger](i), do.MustInvoke[*metrics.Metrics](i)), nil
	})

	return i
}

func configFrom(i injector) config.Config {
	return do.MustInvoke[config.Loaded](i).Config
}

func loggerFrom(i injector) *slog.Logger {
	return do.MustInvoke[*slog.Logger](i)
}

func metricsFrom(i injector) *metrics.Metrics {
	return do.MustInvoke[*metrics.Metrics](i)
}

func publisherFrom(i injector) *events.Publisher {
	return do.MustInvoke[*events.Publisher](i)
}
