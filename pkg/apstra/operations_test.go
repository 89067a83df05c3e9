package apstra

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
	"testing"

	"github.com/bturcanu/apstra-mcp/pkg/types"
)

func TestListRacks_ReturnsItems(t *testing.T) {
	fc, srv := newFakeController(t)
	fc.respond("GET /api/blueprints/bp-1/racks", http.StatusOK, `{"items":[{"id":"r1"}]}`)
	c := newTestClient(t, srv)

	racks, err := c.ListRacks(context.Background(), "bp-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []Object{{"id": "r1"}}
	if !reflect.DeepEqual(racks, want) {
		t.Errorf("expected %v, got %v", want, racks)
	}
}

func TestListBlueprints_MissingItemsIsDecodeError(t *testing.T) {
	fc, srv := newFakeController(t)
	fc.respond("GET /api/blueprints", http.StatusOK, `{"total":0}`)
	c := newTestClient(t, srv)

	_, err := c.ListBlueprints(context.Background())
	var transport *TransportError
	if !errors.As(err, &transport) || !transport.Codec {
		t.Fatalf("expected codec TransportError, got %v", err)
	}
	if !errors.Is(err, errMissingItems) {
		t.Errorf("expected missing items cause, got %v", err)
	}
	if transport.Retryable() {
		t.Error("decode failures should not be retryable")
	}
}

func TestListBlueprints_WrongShapeIsDecodeError(t *testing.T) {
	fc, srv := newFakeController(t)
	fc.respond("GET /api/blueprints", http.StatusOK, `{"items":{"bp-1":{}}}`)
	c := newTestClient(t, srv)

	_, err := c.ListBlueprints(context.Background())
	var transport *TransportError
	if !errors.As(err, &transport) {
		t.Fatalf("expected TransportError, got %v", err)
	}
}

func TestListVirtualNetworks_DefaultsToEmpty(t *testing.T) {
	fc, srv := newFakeController(t)
	fc.respond("GET /api/blueprints/bp-1/experience/web/virtual-networks", http.StatusOK, `{}`)
	c := newTestClient(t, srv)

	vns, err := c.ListVirtualNetworks(context.Background(), "bp-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if vns == nil || len(vns) != 0 {
		t.Errorf("expected empty non-nil list, got %#v", vns)
	}
}

func TestGetRoutingZones_PassesObjectThrough(t *testing.T) {
	fc, srv := newFakeController(t)
	fc.respond("GET /api/blueprints/bp-1/security-zones", http.StatusOK,
		`{"items":{"sz1":{"label":"default","vrf_name":"default"}}}`)
	c := newTestClient(t, srv)

	zones, err := c.GetRoutingZones(context.Background(), "bp-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var doc struct {
		Items map[string]map[string]any `json:"items"`
	}
	if err := json.Unmarshal(zones, &doc); err != nil || doc.Items["sz1"] == nil {
		t.Errorf("expected zone sz1 in passthrough, got %s (%v)", zones, err)
	}
}

func TestPassThroughReads_AcceptAnyJSONDocument(t *testing.T) {
	fc, srv := newFakeController(t)
	fc.respond("GET /api/alert-events", http.StatusOK, `[{"id":"a1","severity":"critical"}]`)
	fc.respond("GET /api/metricdb/metric", http.StatusOK, "")
	fc.respond("GET /api/blueprints/bp-1/remote_gateways", http.StatusOK, `not json`)
	c := newTestClient(t, srv)
	ctx := context.Background()

	alerts, err := c.GetAlerts(ctx)
	if err != nil {
		t.Fatalf("alerts: %v", err)
	}
	if string(alerts) != `[{"id":"a1","severity":"critical"}]` {
		t.Errorf("expected the array verbatim, got %s", alerts)
	}

	metrics, err := c.GetMetrics(ctx, "bp-1")
	if err != nil || string(metrics) != `{}` {
		t.Errorf("expected empty object for empty body, got %s (%v)", metrics, err)
	}

	_, err = c.GetRemoteGateways(ctx, "bp-1")
	var transport *TransportError
	if !errors.As(err, &transport) || !transport.Codec {
		t.Fatalf("expected codec TransportError, got %v", err)
	}
}

func TestDeleteBlueprint_EmptyBodyAcknowledged(t *testing.T) {
	fc, srv := newFakeController(t)
	fc.respond("DELETE /api/blueprints/bp-1", http.StatusNoContent, "")
	c := newTestClient(t, srv)

	ack, err := c.DeleteBlueprint(context.Background(), "bp-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ack["message"] != "Blueprint deleted successfully" {
		t.Errorf("unexpected ack %v", ack)
	}
}

func TestDeleteVirtualNetwork_ResolvesByName(t *testing.T) {
	fc, srv := newFakeController(t)
	fc.respond("GET /api/blueprints/bp-1/experience/web/virtual-networks", http.StatusOK,
		`{"items":[{"label":"vn1","security_zone_id":"z1","id":"vnid1"},{"label":"vn1","security_zone_id":"z2","id":"vnid2"}]}`)
	fc.respond("DELETE /api/blueprints/bp-1/virtual-networks/vnid1", http.StatusNoContent, "")
	c := newTestClient(t, srv)

	ack, err := c.DeleteVirtualNetwork(context.Background(), "bp-1", "z1", "vn1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ack["id"] != "vnid1" {
		t.Errorf("expected resolved id vnid1, got %v", ack["id"])
	}
	want := []string{
		"GET /api/blueprints/bp-1/experience/web/virtual-networks",
		"DELETE /api/blueprints/bp-1/virtual-networks/vnid1",
	}
	if got := fc.recorded(); !reflect.DeepEqual(got, want) {
		t.Errorf("expected calls %v, got %v", want, got)
	}
}

func TestDeleteVirtualNetwork_NotFoundSkipsDelete(t *testing.T) {
	fc, srv := newFakeController(t)
	fc.respond("GET /api/blueprints/bp-1/experience/web/virtual-networks", http.StatusOK,
		`{"items":[{"label":"vn1","security_zone_id":"z1","id":"vnid1"}]}`)
	c := newTestClient(t, srv)

	_, err := c.DeleteVirtualNetwork(context.Background(), "bp-1", "z1", "vn2")
	var nf *NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
	if nf.Name != "vn2" {
		t.Errorf("expected name vn2, got %q", nf.Name)
	}
	if calls := fc.recorded(); len(calls) != 1 {
		t.Errorf("expected only the list call, got %v", calls)
	}
}

func TestCreateBlueprintFromTemplate_ResolvesTemplate(t *testing.T) {
	fc, srv := newFakeController(t)
	fc.respond("GET /api/blueprints/templates", http.StatusOK,
		`{"items":[{"id":"t-pod","name":"Pod Based"},{"id":"t-rack","name":"Rack Based"}]}`)
	fc.respond("POST /api/blueprints", http.StatusCreated, `{"id":"bp-new"}`)
	c := newTestClient(t, srv)

	out, err := c.CreateBlueprintFromTemplate(context.Background(), BlueprintFromTemplate{Label: "dc1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out["id"] != "bp-new" {
		t.Errorf("unexpected response %v", out)
	}

	var body map[string]string
	if err := json.Unmarshal(fc.bodyOf("POST /api/blueprints"), &body); err != nil {
		t.Fatalf("create body: %v", err)
	}
	want := map[string]string{"label": "dc1", "template_id": "t-rack", "init_type": "template_reference"}
	if !reflect.DeepEqual(body, want) {
		t.Errorf("expected body %v, got %v", want, body)
	}
}

func TestCreateBlueprintFromTemplate_TemplateMissing(t *testing.T) {
	fc, srv := newFakeController(t)
	fc.respond("GET /api/blueprints/templates", http.StatusOK, `{"items":[{"id":"t-pod","name":"Pod Based"}]}`)
	c := newTestClient(t, srv)

	_, err := c.CreateBlueprintFromTemplate(context.Background(), BlueprintFromTemplate{Label: "dc1"})
	var nf *NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
	if nf.Error() != `blueprint template "Rack Based" not found` {
		t.Errorf("unexpected message %q", nf.Error())
	}
	for _, call := range fc.recorded() {
		if call == "POST /api/blueprints" {
			t.Fatal("create must not be sent when the template is missing")
		}
	}
}

func TestCreateSecurityZone_Payload(t *testing.T) {
	fc, srv := newFakeController(t)
	fc.respond("POST /api/blueprints/bp-1/security-zones", http.StatusCreated, `{"id":"sz-1"}`)
	c := newTestClient(t, srv)

	_, err := c.CreateSecurityZone(context.Background(), "bp-1", SecurityZoneSpec{Label: "blue", VLANID: 100})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var body map[string]any
	if err := json.Unmarshal(fc.bodyOf("POST /api/blueprints/bp-1/security-zones"), &body); err != nil {
		t.Fatalf("body: %v", err)
	}
	if body["vrf_name"] != "blue" || body["sz_type"] != "evpn" || body["junos_evpn_irb_mode"] != "asymmetric" {
		t.Errorf("unexpected body %v", body)
	}
	if body["vlan_id"] != float64(100) {
		t.Errorf("expected vlan_id 100, got %v", body["vlan_id"])
	}
	if _, ok := body["vni_id"]; ok {
		t.Error("vni_id should be omitted when unset")
	}
	if _, ok := body["route_target"]; ok {
		t.Error("route_target should be omitted when unset")
	}
}

func TestDeploy_Payload(t *testing.T) {
	fc, srv := newFakeController(t)
	fc.respond("PUT /api/blueprints/bp-1/deploy", http.StatusAccepted, `{"status":"queued"}`)
	c := newTestClient(t, srv)

	out, err := c.Deploy(context.Background(), "bp-1", "initial", 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out["status"] != "queued" {
		t.Errorf("unexpected response %v", out)
	}
	var body map[string]any
	if err := json.Unmarshal(fc.bodyOf("PUT /api/blueprints/bp-1/deploy"), &body); err != nil {
		t.Fatalf("body: %v", err)
	}
	if body["version"] != float64(3) || body["description"] != "initial" {
		t.Errorf("unexpected body %v", body)
	}
}

func TestCreateVirtualNetwork_Payload(t *testing.T) {
	fc, srv := newFakeController(t)
	fc.respond("POST /api/blueprints/bp-1/virtual-networks", http.StatusCreated, `{"id":"vn-9"}`)
	c := newTestClient(t, srv)

	if _, err := c.CreateVirtualNetwork(context.Background(), "bp-1", "z1", "web"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var body map[string]string
	if err := json.Unmarshal(fc.bodyOf("POST /api/blueprints/bp-1/virtual-networks"), &body); err != nil {
		t.Fatalf("body: %v", err)
	}
	want := map[string]string{"label": "web", "vn_type": "vxlan", "security_zone_id": "z1"}
	if !reflect.DeepEqual(body, want) {
		t.Errorf("expected %v, got %v", want, body)
	}
}

func TestBlueprintScopedOps_RequireBlueprintID(t *testing.T) {
	fc, srv := newFakeController(t)
	c := newTestClient(t, srv)

	_, err := c.ListRacks(context.Background(), " ")
	var verr *types.ValidationError
	if !errors.As(err, &verr) || verr.Field != "blueprint_id" {
		t.Fatalf("expected blueprint_id validation error, got %v", err)
	}
	if n := fc.loginCount(); n != 0 {
		t.Errorf("validation failure should not log in, got %d logins", n)
	}
}

func TestBlueprintPath_EscapesSegments(t *testing.T) {
	if got := blueprintPath("a/b", "racks"); got != "/api/blueprints/a%2Fb/racks" {
		t.Errorf("unexpected path %q", got)
	}
}
