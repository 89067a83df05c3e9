package apstra

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

// GetRoutingZones returns the security-zones document of a blueprint as is.
func (c *Client) GetRoutingZones(ctx context.Context, blueprintID string) (json.RawMessage, error) {
	if err := requireArg("blueprint_id", blueprintID); err != nil {
		return nil, err
	}
	return c.getDocument(ctx, blueprintPath(blueprintID, "security-zones"), "security zones")
}

// SecurityZoneSpec describes an EVPN routing zone. Zero RouteTarget and VNI
// are left for the controller to allocate; empty VRFName defaults to Label.
type SecurityZoneSpec struct {
	Label       string
	VLANID      int
	RouteTarget string
	VNI         int
	VRFName     string
}

type securityZoneRequest struct {
	Label            string `json:"label"`
	VLANID           int    `json:"vlan_id"`
	SZType           string `json:"sz_type"`
	VRFName          string `json:"vrf_name"`
	JunosEVPNIRBMode string `json:"junos_evpn_irb_mode"`
	RouteTarget      string `json:"route_target,omitempty"`
	VNIID            int    `json:"vni_id,omitempty"`
}

// CreateSecurityZone creates an EVPN routing zone with asymmetric IRB.
func (c *Client) CreateSecurityZone(ctx context.Context, blueprintID string, spec SecurityZoneSpec) (Object, error) {
	if err := requireArg("blueprint_id", blueprintID); err != nil {
		return nil, err
	}
	if err := requireArg("label", spec.Label); err != nil {
		return nil, err
	}
	vrf := spec.VRFName
	if vrf == "" {
		vrf = spec.Label
	}
	return c.send(ctx, http.MethodPost, blueprintPath(blueprintID, "security-zones"), "create security zone",
		securityZoneRequest{
			Label:            spec.Label,
			VLANID:           spec.VLANID,
			SZType:           "evpn",
			VRFName:          vrf,
			JunosEVPNIRBMode: "asymmetric",
			RouteTarget:      spec.RouteTarget,
			VNIID:            spec.VNI,
		})
}

type virtualNetworkRequest struct {
	Label          string `json:"label"`
	VNType         string `json:"vn_type"`
	SecurityZoneID string `json:"security_zone_id"`
}

// CreateVirtualNetwork creates a VXLAN virtual network in a routing zone.
func (c *Client) CreateVirtualNetwork(ctx context.Context, blueprintID, securityZoneID, name string) (Object, error) {
	if err := requireArg("blueprint_id", blueprintID); err != nil {
		return nil, err
	}
	if err := requireArg("security_zone_id", securityZoneID); err != nil {
		return nil, err
	}
	if err := requireArg("vn_name", name); err != nil {
		return nil, err
	}
	return c.send(ctx, http.MethodPost, blueprintPath(blueprintID, "virtual-networks"), "create virtual network",
		virtualNetworkRequest{Label: name, VNType: "vxlan", SecurityZoneID: securityZoneID})
}

// ListVirtualNetworks reads the web-experience view of virtual networks. A
// blueprint without networks may omit "items"; that is an empty list.
func (c *Client) ListVirtualNetworks(ctx context.Context, blueprintID string) ([]Object, error) {
	if err := requireArg("blueprint_id", blueprintID); err != nil {
		return nil, err
	}
	return c.getItems(ctx, virtualNetworksViewPath(blueprintID), "virtual networks", false)
}

// DeleteVirtualNetwork deletes the network labelled name in securityZoneID.
// It lists the blueprint's networks to find the id; when none matches it
// returns *NotFoundError without sending the delete.
func (c *Client) DeleteVirtualNetwork(ctx context.Context, blueprintID, securityZoneID, name string) (Object, error) {
	if err := requireArg("blueprint_id", blueprintID); err != nil {
		return nil, err
	}
	if err := requireArg("security_zone_id", securityZoneID); err != nil {
		return nil, err
	}
	if err := requireArg("vn_name", name); err != nil {
		return nil, err
	}

	vnID, err := c.resolveVirtualNetwork(ctx, blueprintID, securityZoneID, name)
	if err != nil {
		return nil, err
	}

	path := blueprintPath(blueprintID, "virtual-networks", url.PathEscape(vnID))
	if _, err := c.exec.Do(ctx, http.MethodDelete, path, nil); err != nil {
		return nil, err
	}
	c.log.InfoContext(ctx, "virtual network deleted",
		"blueprint_id", blueprintID,
		"security_zone_id", securityZoneID,
		"label", name,
		"id", vnID,
	)
	return Object{
		"message": "Virtual network deleted successfully",
		"id":      vnID,
		"label":   name,
	}, nil
}

func (c *Client) resolveVirtualNetwork(ctx context.Context, blueprintID, securityZoneID, name string) (string, error) {
	resp, err := c.exec.Do(ctx, http.MethodGet, virtualNetworksViewPath(blueprintID), nil)
	if err != nil {
		return "", err
	}
	vns, err := decodeItems[VirtualNetwork](resp, "virtual networks", false)
	if err != nil {
		return "", err
	}
	for _, vn := range vns {
		if vn.Label == name && vn.SecurityZoneID == securityZoneID {
			if vn.ID == "" {
				return "", decodeError("virtual networks", fmt.Errorf("virtual network %q has no id", name))
			}
			return vn.ID, nil
		}
	}
	return "", &NotFoundError{
		Resource: "virtual network",
		Name:     name,
		Scope:    "security zone " + securityZoneID,
	}
}

func virtualNetworksViewPath(blueprintID string) string {
	return blueprintPath(blueprintID, "experience", "web", "virtual-networks")
}
