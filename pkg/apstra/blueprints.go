package apstra

import (
	"context"
	"encoding/json"
	"net/http"
)

const (
	DefaultTemplateName = "Rack Based"
	DefaultInitType     = "template_reference"
)

// ListBlueprints is GET /api/blueprints.
func (c *Client) ListBlueprints(ctx context.Context) ([]Object, error) {
	return c.getItems(ctx, "/api/blueprints", "blueprints", true)
}

// ListRacks is GET /api/blueprints/{id}/racks.
func (c *Client) ListRacks(ctx context.Context, blueprintID string) ([]Object, error) {
	if err := requireArg("blueprint_id", blueprintID); err != nil {
		return nil, err
	}
	return c.getItems(ctx, blueprintPath(blueprintID, "racks"), "racks", true)
}

// GetDiffStatus returns the staged-versus-active status of a blueprint.
func (c *Client) GetDiffStatus(ctx context.Context, blueprintID string) (Object, error) {
	if err := requireArg("blueprint_id", blueprintID); err != nil {
		return nil, err
	}
	return c.getObject(ctx, blueprintPath(blueprintID, "diff-status"), "diff status")
}

type deployRequest struct {
	Version     int    `json:"version"`
	Description string `json:"description"`
}

// Deploy commits staging version of a blueprint to the fabric.
func (c *Client) Deploy(ctx context.Context, blueprintID, description string, version int) (Object, error) {
	if err := requireArg("blueprint_id", blueprintID); err != nil {
		return nil, err
	}
	return c.send(ctx, http.MethodPut, blueprintPath(blueprintID, "deploy"), "deploy",
		deployRequest{Version: version, Description: description})
}

// DeleteBlueprint removes a blueprint. The controller answers with an empty
// body, so success is reported as an acknowledgement.
func (c *Client) DeleteBlueprint(ctx context.Context, blueprintID string) (Object, error) {
	if err := requireArg("blueprint_id", blueprintID); err != nil {
		return nil, err
	}
	if _, err := c.exec.Do(ctx, http.MethodDelete, blueprintPath(blueprintID), nil); err != nil {
		return nil, err
	}
	return Object{"message": "Blueprint deleted successfully", "id": blueprintID}, nil
}

// BlueprintFromTemplate describes a blueprint to create from a named
// template. Empty InitType and TemplateName take the defaults.
type BlueprintFromTemplate struct {
	Label        string
	InitType     string
	TemplateName string
}

type createBlueprintRequest struct {
	Label      string `json:"label"`
	TemplateID string `json:"template_id"`
	InitType   string `json:"init_type"`
}

// CreateBlueprintFromTemplate resolves TemplateName to a template id, then
// creates the blueprint. A missing template returns *NotFoundError and no
// create request is sent.
func (c *Client) CreateBlueprintFromTemplate(ctx context.Context, in BlueprintFromTemplate) (Object, error) {
	if err := requireArg("label", in.Label); err != nil {
		return nil, err
	}
	if in.InitType == "" {
		in.InitType = DefaultInitType
	}
	if in.TemplateName == "" {
		in.TemplateName = DefaultTemplateName
	}

	templates, err := c.ListTemplates(ctx)
	if err != nil {
		return nil, err
	}
	var templateID string
	for _, t := range templates {
		if t.Name == in.TemplateName {
			templateID = t.ID
			break
		}
	}
	if templateID == "" {
		return nil, &NotFoundError{Resource: "blueprint template", Name: in.TemplateName}
	}

	c.log.InfoContext(ctx, "creating blueprint from template",
		"label", in.Label,
		"template", in.TemplateName,
		"template_id", templateID,
	)
	return c.send(ctx, http.MethodPost, "/api/blueprints", "create blueprint", createBlueprintRequest{
		Label:      in.Label,
		TemplateID: templateID,
		InitType:   in.InitType,
	})
}

// ListTemplates is GET /api/blueprints/templates.
func (c *Client) ListTemplates(ctx context.Context) ([]Template, error) {
	resp, err := c.exec.Do(ctx, http.MethodGet, "/api/blueprints/templates", nil)
	if err != nil {
		return nil, err
	}
	return decodeItems[Template](resp, "templates", false)
}

// GetMetrics reads the metric database index. The endpoint is not scoped to
// a blueprint; the id is only validated.
func (c *Client) GetMetrics(ctx context.Context, blueprintID string) (json.RawMessage, error) {
	if err := requireArg("blueprint_id", blueprintID); err != nil {
		return nil, err
	}
	return c.getDocument(ctx, "/api/metricdb/metric", "metrics")
}

// GetRemoteGateways is GET /api/blueprints/{id}/remote_gateways.
func (c *Client) GetRemoteGateways(ctx context.Context, blueprintID string) (json.RawMessage, error) {
	if err := requireArg("blueprint_id", blueprintID); err != nil {
		return nil, err
	}
	return c.getDocument(ctx, blueprintPath(blueprintID, "remote_gateways"), "remote gateways")
}

// ListPropertySets is GET /api/blueprints/{id}/property-sets.
func (c *Client) ListPropertySets(ctx context.Context, blueprintID string) ([]Object, error) {
	if err := requireArg("blueprint_id", blueprintID); err != nil {
		return nil, err
	}
	return c.getItems(ctx, blueprintPath(blueprintID, "property-sets"), "property sets", true)
}

// ListConfiglets is GET /api/blueprints/{id}/configlets.
func (c *Client) ListConfiglets(ctx context.Context, blueprintID string) ([]Object, error) {
	if err := requireArg("blueprint_id", blueprintID); err != nil {
		return nil, err
	}
	return c.getItems(ctx, blueprintPath(blueprintID, "configlets"), "configlets", true)
}
