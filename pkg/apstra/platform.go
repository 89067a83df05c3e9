package apstra

import (
	"context"
	"encoding/json"
)

// Controller-wide inventory. These endpoints are not blueprint scoped.

// ListDeviceOSPlatforms is GET /api/device-os/platforms.
func (c *Client) ListDeviceOSPlatforms(ctx context.Context) ([]Object, error) {
	return c.getItems(ctx, "/api/device-os/platforms", "device OS platforms", true)
}

// ListChassisProfiles is GET /api/chassis-profiles.
func (c *Client) ListChassisProfiles(ctx context.Context) ([]Object, error) {
	return c.getItems(ctx, "/api/chassis-profiles", "chassis profiles", true)
}

// ListSystems returns the managed devices known to the controller.
func (c *Client) ListSystems(ctx context.Context) ([]Object, error) {
	return c.getItems(ctx, "/api/systems", "systems", true)
}

// GetVersion is GET /api/versions/server.
func (c *Client) GetVersion(ctx context.Context) (Object, error) {
	return c.getObject(ctx, "/api/versions/server", "server version")
}

// GetAlerts is GET /api/alert-events.
func (c *Client) GetAlerts(ctx context.Context) (json.RawMessage, error) {
	return c.getDocument(ctx, "/api/alert-events", "alert events")
}

// ListLicenses is GET /api/cluster/licenses.
func (c *Client) ListLicenses(ctx context.Context) ([]Object, error) {
	return c.getItems(ctx, "/api/cluster/licenses", "licenses", true)
}

// ListVNIPools returns the VNI resource pools; an absent "items" is empty.
func (c *Client) ListVNIPools(ctx context.Context) ([]Object, error) {
	return c.getItems(ctx, "/api/resources/vni-pools", "VNI pools", false)
}
