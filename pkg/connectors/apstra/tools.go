// Package apstra binds the Apstra operation catalog to the tool registry:
// one tool per operation, each with a params struct that yields its input
// schema and its validation rules.
package apstra

import (
	"context"
	"encoding/json"
	"fmt"

	aos "github.com/bturcanu/apstra-mcp/pkg/apstra"
	"github.com/bturcanu/apstra-mcp/pkg/connectors"
)

// ──────────────────────────────────────────────────────────────────────────────
// Params
// ──────────────────────────────────────────────────────────────────────────────

type noParams struct{}

type blueprintParams struct {
	BlueprintID string `json:"blueprint_id" validate:"required" jsonschema_description:"Blueprint ID"`
}

// Some controller-wide tools historically took a blueprint id; it is accepted
// and ignored.
type optionalBlueprintParams struct {
	BlueprintID string `json:"blueprint_id,omitempty" jsonschema_description:"Ignored; the endpoint is controller-wide"`
}

type virtualNetworkParams struct {
	BlueprintID    string `json:"blueprint_id" validate:"required" jsonschema_description:"Blueprint ID"`
	SecurityZoneID string `json:"security_zone_id" validate:"required" jsonschema_description:"Routing zone (security zone) ID"`
	VNName         string `json:"vn_name" validate:"required" jsonschema_description:"Virtual network label"`
}

type deployParams struct {
	BlueprintID    string `json:"blueprint_id" validate:"required" jsonschema_description:"Blueprint ID"`
	Description    string `json:"description" validate:"required" jsonschema_description:"Revision description"`
	StagingVersion int    `json:"staging_version" validate:"required,gte=1" jsonschema:"minimum=1" jsonschema_description:"Staging version from get_diff_status"`
}

type blueprintFromTemplateParams struct {
	Label        string `json:"label" validate:"required" jsonschema_description:"Name of the new blueprint"`
	InitType     string `json:"init_type,omitempty" jsonschema:"default=template_reference" jsonschema_description:"Blueprint init type"`
	TemplateName string `json:"template_name,omitempty" jsonschema:"default=Rack Based" jsonschema_description:"Name of the design template to instantiate"`
}

type securityZoneParams struct {
	BlueprintID string `json:"blueprint_id" validate:"required" jsonschema_description:"Blueprint ID"`
	Label       string `json:"label" validate:"required" jsonschema_description:"Routing zone label"`
	VLANID      int    `json:"vlan_id" validate:"required,gte=1,lte=4094" jsonschema:"minimum=1,maximum=4094" jsonschema_description:"VLAN ID used for the routing zone"`
	RouteTarget string `json:"route_target,omitempty" jsonschema_description:"Route target, e.g. 100:100"`
	VNI         int    `json:"vni,omitempty" validate:"omitempty,gte=1" jsonschema:"minimum=1" jsonschema_description:"L3 VNI; allocated by the controller when omitted"`
	VRFName     string `json:"vrf_name,omitempty" jsonschema_description:"VRF name; defaults to the label"`
}

// ──────────────────────────────────────────────────────────────────────────────
// Registration
// ──────────────────────────────────────────────────────────────────────────────

// Register adds every catalog tool backed by c to reg.
func Register(reg *connectors.Registry, c *aos.Client) error {
	for _, t := range Tools(c) {
		if err := reg.Register(t); err != nil {
			return fmt.Errorf("apstra.Register: %w", err)
		}
	}
	return nil
}

// NewRegistry builds a registry with the catalog registered and Apstra error
// classification installed.
func NewRegistry(c *aos.Client, opts ...connectors.Option) (*connectors.Registry, error) {
	opts = append([]connectors.Option{connectors.WithClassifier(ClassifyError)}, opts...)
	reg := connectors.NewRegistry(opts...)
	if err := Register(reg, c); err != nil {
		return nil, err
	}
	return reg, nil
}

// Tools returns the catalog.
func Tools(c *aos.Client) []connectors.Tool {
	return []connectors.Tool{
		bind("get_bp", "Gets blueprint information", readOnly,
			func(ctx context.Context, _ noParams) (any, error) {
				return c.ListBlueprints(ctx)
			}),
		bind("get_racks", "Gets rack information for a blueprint", readOnly,
			func(ctx context.Context, p blueprintParams) (any, error) {
				return c.ListRacks(ctx, p.BlueprintID)
			}),
		bind("get_rz", "Gets routing zone information for a blueprint", readOnly,
			func(ctx context.Context, p blueprintParams) (any, error) {
				return c.GetRoutingZones(ctx, p.BlueprintID)
			}),
		bind("create_vn", "Creates a VXLAN virtual network in a routing zone", mutating,
			func(ctx context.Context, p virtualNetworkParams) (any, error) {
				return c.CreateVirtualNetwork(ctx, p.BlueprintID, p.SecurityZoneID, p.VNName)
			}),
		bind("get_diff_status", "Gets the staged versus active difference status of a blueprint", readOnly,
			func(ctx context.Context, p blueprintParams) (any, error) {
				return c.GetDiffStatus(ctx, p.BlueprintID)
			}),
		bind("deploy", "Deploys the staging version of a blueprint to the fabric", mutating,
			func(ctx context.Context, p deployParams) (any, error) {
				return c.Deploy(ctx, p.BlueprintID, p.Description, p.StagingVersion)
			}),
		bind("delete_bp", "Deletes a blueprint", destructive,
			func(ctx context.Context, p blueprintParams) (any, error) {
				return c.DeleteBlueprint(ctx, p.BlueprintID)
			}),
		bind("create_blueprint_from_template", "Creates a blueprint from a named design template", mutating,
			func(ctx context.Context, p blueprintFromTemplateParams) (any, error) {
				return c.CreateBlueprintFromTemplate(ctx, aos.BlueprintFromTemplate{
					Label:        p.Label,
					InitType:     p.InitType,
					TemplateName: p.TemplateName,
				})
			}),
		bind("list_virtual_networks", "Lists the virtual networks of a blueprint", readOnly,
			func(ctx context.Context, p blueprintParams) (any, error) {
				return c.ListVirtualNetworks(ctx, p.BlueprintID)
			}),
		bind("delete_vn", "Deletes a virtual network by name within a routing zone", destructive,
			func(ctx context.Context, p virtualNetworkParams) (any, error) {
				return c.DeleteVirtualNetwork(ctx, p.BlueprintID, p.SecurityZoneID, p.VNName)
			}),
		bind("get_devices_os", "Gets supported device OS platforms", readOnly,
			func(ctx context.Context, _ optionalBlueprintParams) (any, error) {
				return c.ListDeviceOSPlatforms(ctx)
			}),
		bind("get_chassis_profiles", "Gets chassis profiles", readOnly,
			func(ctx context.Context, _ optionalBlueprintParams) (any, error) {
				return c.ListChassisProfiles(ctx)
			}),
		bind("get_apstra_version", "Gets the Apstra server version", readOnly,
			func(ctx context.Context, _ noParams) (any, error) {
				return c.GetVersion(ctx)
			}),
		bind("get_alert", "Gets alert events", readOnly,
			func(ctx context.Context, _ noParams) (any, error) {
				return c.GetAlerts(ctx)
			}),
		bind("get_license", "Gets cluster license information", readOnly,
			func(ctx context.Context, _ noParams) (any, error) {
				return c.ListLicenses(ctx)
			}),
		bind("get_vni_pools", "Gets VNI resource pools", readOnly,
			func(ctx context.Context, _ noParams) (any, error) {
				return c.ListVNIPools(ctx)
			}),
		bind("get_systems", "Gets managed systems (switches)", readOnly,
			func(ctx context.Context, _ optionalBlueprintParams) (any, error) {
				return c.ListSystems(ctx)
			}),
		bind("create_security_zone", "Creates an EVPN routing zone with VLAN ID, route target and VNI", mutating,
			func(ctx context.Context, p securityZoneParams) (any, error) {
				return c.CreateSecurityZone(ctx, p.BlueprintID, aos.SecurityZoneSpec{
					Label:       p.Label,
					VLANID:      p.VLANID,
					RouteTarget: p.RouteTarget,
					VNI:         p.VNI,
					VRFName:     p.VRFName,
				})
			}),
		bind("get_blueprint_metrics", "Gets the metric database index", readOnly,
			func(ctx context.Context, p blueprintParams) (any, error) {
				return c.GetMetrics(ctx, p.BlueprintID)
			}),
		bind("get_remote_gw", "Gets remote EVPN gateways of a blueprint", readOnly,
			func(ctx context.Context, p blueprintParams) (any, error) {
				return c.GetRemoteGateways(ctx, p.BlueprintID)
			}),
		bind("get_property_set", "Gets property sets of a blueprint", readOnly,
			func(ctx context.Context, p blueprintParams) (any, error) {
				return c.ListPropertySets(ctx, p.BlueprintID)
			}),
		bind("get_srx_configlet", "Gets configlets of a blueprint", readOnly,
			func(ctx context.Context, p blueprintParams) (any, error) {
				return c.ListConfiglets(ctx, p.BlueprintID)
			}),
	}
}

type effect int

const (
	readOnly effect = iota
	mutating
	destructive
)

func bind[P any](name, description string, e effect, run func(context.Context, P) (any, error)) connectors.Tool {
	return connectors.Tool{
		Spec: connectors.ToolSpec{
			Name:        name,
			Description: description,
			InputSchema: connectors.MustSchemaFor[P](),
			ReadOnly:    e == readOnly,
			Destructive: e == destructive,
		},
		Handler: func(ctx context.Context, raw json.RawMessage) (any, error) {
			p, err := connectors.DecodeParams[P](raw)
			if err != nil {
				return nil, err
			}
			return run(ctx, p)
		},
	}
}
