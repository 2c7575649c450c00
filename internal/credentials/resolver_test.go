package credentials

import (
	"context"
	"errors"
	"testing"

	"pixel-relay/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	configs []models.DestinationConfig
	err     error
	calls   int
}

func (f *fakeSource) GetConfigs(ctx context.Context, shopID int64, filter models.ConfigFilter) ([]models.DestinationConfig, error) {
	f.calls++
	return f.configs, f.err
}

type fakeCache struct {
	configs []models.DestinationConfig
	found   bool
	getErr  error
	setErr  error
	sets    int
}

func (f *fakeCache) GetConfigs(ctx context.Context, shopID int64) ([]models.DestinationConfig, bool, error) {
	return f.configs, f.found, f.getErr
}

func (f *fakeCache) SetConfigs(ctx context.Context, shopID int64, configs []models.DestinationConfig) error {
	f.sets++
	f.configs = configs
	f.found = true
	return f.setErr
}

func (f *fakeCache) InvalidateConfigs(ctx context.Context, shopID int64) error {
	f.found = false
	f.configs = nil
	return nil
}

type passthroughDecryptor struct{}

func (passthroughDecryptor) Decrypt(cfg *models.DestinationConfig, platform string) (*models.CredentialBundle, error) {
	return &models.CredentialBundle{AccessToken: cfg.EncryptedCredentials}, nil
}

func metaConfig(id int64, platformID string) models.DestinationConfig {
	return models.DestinationConfig{
		ID:                   id,
		ShopID:               7,
		Platform:             models.PlatformMeta,
		PlatformID:           platformID,
		Environment:          models.EnvironmentLive,
		Enabled:              true,
		EncryptedCredentials: "sealed",
	}
}

func TestResolveExplicitConfigID(t *testing.T) {
	src := &fakeSource{configs: []models.DestinationConfig{metaConfig(1, ""), metaConfig(2, "acct-b")}}
	r := NewResolver(src, nil, passthroughDecryptor{})

	cfg, bundle, err := r.Resolve(context.Background(), 7,
		models.DestinationRequest{Platform: models.PlatformMeta, ConfigID: 2}, models.EnvironmentLive)
	require.NoError(t, err)
	assert.Equal(t, int64(2), cfg.ID)
	assert.Equal(t, "sealed", bundle.AccessToken)
}

func TestResolveExplicitConfigIDMissIsHardFailure(t *testing.T) {
	src := &fakeSource{configs: []models.DestinationConfig{metaConfig(1, "")}}
	r := NewResolver(src, nil, passthroughDecryptor{})

	_, _, err := r.Resolve(context.Background(), 7,
		models.DestinationRequest{Platform: models.PlatformMeta, ConfigID: 99}, models.EnvironmentLive)
	assert.ErrorIs(t, err, ErrConfigNotFound)
}

func TestResolvePlatformIDFallsBackToDefault(t *testing.T) {
	src := &fakeSource{configs: []models.DestinationConfig{metaConfig(1, ""), metaConfig(2, "acct-b")}}
	r := NewResolver(src, nil, passthroughDecryptor{})

	cfg, _, err := r.Resolve(context.Background(), 7,
		models.DestinationRequest{Platform: models.PlatformMeta, PlatformID: "acct-missing"}, models.EnvironmentLive)
	require.NoError(t, err)
	assert.Equal(t, int64(1), cfg.ID, "falls back to the default (empty platform_id) config")
}

func TestResolveDefaultPreferredOverSubAccounts(t *testing.T) {
	src := &fakeSource{configs: []models.DestinationConfig{metaConfig(2, "acct-b"), metaConfig(1, "")}}
	r := NewResolver(src, nil, passthroughDecryptor{})

	cfg, _, err := r.Resolve(context.Background(), 7,
		models.DestinationRequest{Platform: models.PlatformMeta}, models.EnvironmentLive)
	require.NoError(t, err)
	assert.Equal(t, int64(1), cfg.ID)
}

func TestResolveFiltersDisabledAndWrongEnvironment(t *testing.T) {
	disabled := metaConfig(1, "")
	disabled.Enabled = false
	testEnv := metaConfig(2, "")
	testEnv.Environment = models.EnvironmentTest

	src := &fakeSource{configs: []models.DestinationConfig{disabled, testEnv}}
	r := NewResolver(src, nil, passthroughDecryptor{})

	_, _, err := r.Resolve(context.Background(), 7,
		models.DestinationRequest{Platform: models.PlatformMeta}, models.EnvironmentLive)
	assert.ErrorIs(t, err, ErrConfigNotFound)
}

func TestResolveUsesCacheOnHit(t *testing.T) {
	src := &fakeSource{}
	cache := &fakeCache{configs: []models.DestinationConfig{metaConfig(1, "")}, found: true}
	r := NewResolver(src, cache, passthroughDecryptor{})

	cfg, _, err := r.Resolve(context.Background(), 7,
		models.DestinationRequest{Platform: models.PlatformMeta}, models.EnvironmentLive)
	require.NoError(t, err)
	assert.Equal(t, int64(1), cfg.ID)
	assert.Zero(t, src.calls, "source must not be hit on cache hit")
}

func TestResolveCacheErrorFailsOpen(t *testing.T) {
	src := &fakeSource{configs: []models.DestinationConfig{metaConfig(1, "")}}
	cache := &fakeCache{getErr: errors.New("redis down")}
	r := NewResolver(src, cache, passthroughDecryptor{})

	cfg, _, err := r.Resolve(context.Background(), 7,
		models.DestinationRequest{Platform: models.PlatformMeta}, models.EnvironmentLive)
	require.NoError(t, err)
	assert.Equal(t, int64(1), cfg.ID)
	assert.Equal(t, 1, src.calls)
}

func TestResolvePopulatesCacheOnMiss(t *testing.T) {
	src := &fakeSource{configs: []models.DestinationConfig{metaConfig(1, "")}}
	cache := &fakeCache{}
	r := NewResolver(src, cache, passthroughDecryptor{})

	_, _, err := r.Resolve(context.Background(), 7,
		models.DestinationRequest{Platform: models.PlatformMeta}, models.EnvironmentLive)
	require.NoError(t, err)
	assert.Equal(t, 1, cache.sets)

	// second resolve served from cache
	_, _, err = r.Resolve(context.Background(), 7,
		models.DestinationRequest{Platform: models.PlatformMeta}, models.EnvironmentLive)
	require.NoError(t, err)
	assert.Equal(t, 1, src.calls)
}
