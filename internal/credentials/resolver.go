package credentials

import (
	"context"
	"errors"

	"pixel-relay/internal/models"
	"pixel-relay/internal/util"

	"go.uber.org/zap"
)

// ErrConfigNotFound means no destination configuration matched the request.
var ErrConfigNotFound = errors.New("destination configuration not found")

// ConfigSource reads destination configurations from durable storage.
type ConfigSource interface {
	GetConfigs(ctx context.Context, shopID int64, filter models.ConfigFilter) ([]models.DestinationConfig, error)
}

// ConfigCache is an explicit cache in front of the source. Lookups fail open:
// a cache error falls through to the source.
type ConfigCache interface {
	GetConfigs(ctx context.Context, shopID int64) ([]models.DestinationConfig, bool, error)
	SetConfigs(ctx context.Context, shopID int64, configs []models.DestinationConfig) error
	InvalidateConfigs(ctx context.Context, shopID int64) error
}

// Decryptor opens a config's encrypted credential bundle.
type Decryptor interface {
	Decrypt(cfg *models.DestinationConfig, platform string) (*models.CredentialBundle, error)
}

// Resolver selects one destination configuration per delivery request and
// decrypts its credentials.
type Resolver struct {
	source    ConfigSource
	cache     ConfigCache
	decryptor Decryptor
	logger    *zap.Logger
}

// NewResolver creates a resolver. cache may be nil (no caching).
func NewResolver(source ConfigSource, cache ConfigCache, decryptor Decryptor) *Resolver {
	return &Resolver{
		source:    source,
		cache:     cache,
		decryptor: decryptor,
		logger:    util.GetLogger(),
	}
}

// Resolve picks exactly one configuration for (shop, platform, environment)
// honoring the request's config_id / platform_id, then decrypts its bundle.
//
// Selection order: an explicit config_id must match or the resolution hard
// fails; a requested platform_id falls back to the shop's default config for
// the platform with a logged warning; otherwise the default (empty
// platform_id) wins over sub-account configs.
func (r *Resolver) Resolve(ctx context.Context, shopID int64, dest models.DestinationRequest, environment string) (*models.DestinationConfig, *models.CredentialBundle, error) {
	configs, err := r.loadConfigs(ctx, shopID)
	if err != nil {
		return nil, nil, err
	}

	matching := make([]models.DestinationConfig, 0, len(configs))
	for _, c := range configs {
		if c.Platform == dest.Platform && c.Environment == environment && c.Enabled {
			matching = append(matching, c)
		}
	}
	if len(matching) == 0 {
		return nil, nil, ErrConfigNotFound
	}

	cfg, err := r.pick(matching, dest, shopID, environment)
	if err != nil {
		return nil, nil, err
	}

	bundle, err := r.decryptor.Decrypt(cfg, dest.Platform)
	if err != nil {
		return nil, nil, err
	}
	return cfg, bundle, nil
}

func (r *Resolver) pick(matching []models.DestinationConfig, dest models.DestinationRequest, shopID int64, environment string) (*models.DestinationConfig, error) {
	// An explicit config id is an exact contract: silently sending to a
	// different account would be worse than failing.
	if dest.ConfigID != 0 {
		for i := range matching {
			if matching[i].ID == dest.ConfigID {
				return &matching[i], nil
			}
		}
		r.logger.Warn("Requested config id not found",
			zap.Int64("shop_id", shopID),
			zap.String("platform", dest.Platform),
			zap.Int64("config_id", dest.ConfigID))
		return nil, ErrConfigNotFound
	}

	if dest.PlatformID != "" {
		for i := range matching {
			if matching[i].PlatformID == dest.PlatformID {
				return &matching[i], nil
			}
		}
		r.logger.Warn("Requested platform id not found, falling back to default config",
			zap.Int64("shop_id", shopID),
			zap.String("platform", dest.Platform),
			zap.String("platform_id", dest.PlatformID),
			zap.String("environment", environment))
	}

	// Default config (empty platform_id) wins; otherwise first match.
	for i := range matching {
		if matching[i].PlatformID == "" {
			return &matching[i], nil
		}
	}
	return &matching[0], nil
}

// loadConfigs reads through the cache, falling back to the source on miss or
// cache failure.
func (r *Resolver) loadConfigs(ctx context.Context, shopID int64) ([]models.DestinationConfig, error) {
	if r.cache != nil {
		configs, found, err := r.cache.GetConfigs(ctx, shopID)
		if err != nil {
			r.logger.Warn("Config cache read failed, falling back to source",
				zap.Int64("shop_id", shopID), zap.Error(err))
		} else if found {
			return configs, nil
		}
	}

	configs, err := r.source.GetConfigs(ctx, shopID, models.ConfigFilter{})
	if err != nil {
		return nil, err
	}

	if r.cache != nil {
		if err := r.cache.SetConfigs(ctx, shopID, configs); err != nil {
			r.logger.Warn("Config cache write failed",
				zap.Int64("shop_id", shopID), zap.Error(err))
		}
	}
	return configs, nil
}

// Invalidate drops a shop's cached configurations; exposed alongside every
// configuration write path.
func (r *Resolver) Invalidate(ctx context.Context, shopID int64) error {
	if r.cache == nil {
		return nil
	}
	return r.cache.InvalidateConfigs(ctx, shopID)
}
