package store

import (
	"context"
	"fmt"

	"pixel-relay/internal/models"
)

// GetConfigs retrieves a shop's destination configurations, read-only. The
// admin app owns writes; this pipeline only selects.
func (s *Store) GetConfigs(ctx context.Context, shopID int64, filter models.ConfigFilter) ([]models.DestinationConfig, error) {
	query := `SELECT * FROM destination_configs WHERE shop_id = $1`
	args := []interface{}{shopID}

	if filter.Platform != "" {
		args = append(args, filter.Platform)
		query += fmt.Sprintf(" AND platform = $%d", len(args))
	}
	if filter.Environment != "" {
		args = append(args, filter.Environment)
		query += fmt.Sprintf(" AND environment = $%d", len(args))
	}
	if filter.EnabledOnly {
		query += " AND enabled = TRUE"
	}
	query += " ORDER BY platform, platform_id"

	var configs []models.DestinationConfig
	err := s.db.SelectContext(ctx, &configs, query, args...)
	return configs, err
}
