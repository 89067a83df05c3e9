package apstra

import (
	"bytes"
	"encoding/json"
	"errors"
)

// Object is a controller payload passed through untouched. The controller
// owns these schemas; only the fields this package acts on are typed.
type Object map[string]any

// Template is the subset of a blueprint template needed to resolve a name.
type Template struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// VirtualNetwork is the subset of a virtual network needed to resolve a
// label within a security zone.
type VirtualNetwork struct {
	ID             string `json:"id"`
	Label          string `json:"label"`
	SecurityZoneID string `json:"security_zone_id"`
}

// itemsEnvelope is the {"items": [...]} shape shared by list endpoints. A
// pointer distinguishes an absent field from an empty list.
type itemsEnvelope[T any] struct {
	Items *[]T `json:"items"`
}

// decodeObject decodes a whole-object response. An empty body decodes to an
// empty Object.
func decodeObject(resp *Response, op string) (Object, error) {
	if resp.Empty() {
		return Object{}, nil
	}
	var obj Object
	if err := json.Unmarshal(resp.Body, &obj); err != nil {
		return nil, decodeError(op, err)
	}
	if obj == nil {
		obj = Object{}
	}
	return obj, nil
}

// errInvalidJSON marks a pass-through body that is not JSON at all.
var errInvalidJSON = errors.New("response body is not valid JSON")

// decodeDocument returns a read-only response as the controller sent it,
// whatever its top-level JSON type. An empty body yields an empty object.
func decodeDocument(resp *Response, op string) (json.RawMessage, error) {
	if resp.Empty() {
		return json.RawMessage(`{}`), nil
	}
	body := bytes.TrimSpace(resp.Body)
	if !json.Valid(body) {
		return nil, decodeError(op, errInvalidJSON)
	}
	return json.RawMessage(body), nil
}

// decodeItems extracts "items". When required is false an empty body or a
// missing field yields an empty list; otherwise both are decode errors.
func decodeItems[T any](resp *Response, op string, required bool) ([]T, error) {
	if resp.Empty() {
		if required {
			return nil, decodeError(op, errEmptyBody)
		}
		return []T{}, nil
	}
	var env itemsEnvelope[T]
	if err := json.Unmarshal(resp.Body, &env); err != nil {
		return nil, decodeError(op, err)
	}
	if env.Items == nil {
		if required {
			return nil, decodeError(op, errMissingItems)
		}
		return []T{}, nil
	}
	return *env.Items, nil
}
