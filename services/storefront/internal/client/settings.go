package client

import (
	"context"

	"github.com/utafrali/EcommerceGo/services/storefront/internal/domain"
)

// SettingsClient reads store-wide settings.
type SettingsClient struct {
	base
}

// NewSettingsClient creates a settings client for the API at baseURL.
func NewSettingsClient(doer HTTPDoer, baseURL string) *SettingsClient {
	return &SettingsClient{base: newBase(doer, baseURL, "settings")}
}

// GetSettings returns tax, shipping and currency settings.
func (c *SettingsClient) GetSettings(ctx context.Context) (*domain.Settings, error) {
	var resp envelope[domain.Settings]
	if err := c.get(ctx, "/settings", nil, "", &resp); err != nil {
		return nil, err
	}
	return &resp.Data, nil
}
