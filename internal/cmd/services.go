package cmd

import (
	"context"

	"github.com/fulmenhq/gofulmen/logging"

	"github.com/postly/postly/internal/ailink"
	"github.com/postly/postly/internal/config"
	"github.com/postly/postly/internal/generate"
	"github.com/postly/postly/internal/quota"
	"github.com/postly/postly/internal/server/handlers"
)

// generator bundles the wired generation stack.
type generator struct {
	service *generate.Service
	model   *ailink.Service
	quota   *quota.Tracker
}

// newGenerator wires the model client and the generation service from cfg.
// The quota tracker is attached only when withQuota is set; local CLI runs
// are not metered.
func newGenerator(cfg *config.Config, logger *logging.Logger, withQuota bool) (*generator, error) {
	model, err := ailink.NewService(cfg.AILink)
	if err != nil {
		return nil, err
	}

	g := &generator{
		model: model,
		service: &generate.Service{
			Model: model,
			Image: generate.ImageOptions{
				MaxDimension: cfg.Image.MaxDimension,
				JPEGQuality:  cfg.Image.JPEGQuality,
				MaxPixels:    cfg.Image.MaxPixels,
			},
			Logger: logger,
		},
	}

	if withQuota {
		loc, err := cfg.Quota.Location()
		if err != nil {
			return nil, err
		}
		tracker := quota.NewTracker(quota.NewMemoryStore(), cfg.Quota.AnalyzeDailyLimit, cfg.Quota.ImproveDailyLimit)
		tracker.Location = loc
		g.quota = tracker
		g.service.Quota = tracker
	}

	return g, nil
}

// modelHealthChecker reports degraded when no provider credential is configured.
func modelHealthChecker(model *ailink.Service) handlers.HealthChecker {
	return handlers.CheckFunc(func(ctx context.Context) error {
		if model == nil || model.Providers == nil || !model.Providers.Configured() {
			return &handlers.DegradedError{Reason: "no AI provider credential configured"}
		}
		return nil
	})
}
