package transport

import (
	"encoding/json"
	"fmt"
)

// Meta carries the envelope fields that sit next to data. They are handed
// back to the caller untouched.
type Meta struct {
	Timestamp string
	Message   string

	// Extra holds any other envelope keys verbatim
	Extra map[string]json.RawMessage
}

// Decode unwraps a {success, data, timestamp} envelope into target.
//
// A body without a success key is decoded whole, so endpoints that answer
// with a bare object still work. A success=false envelope delivered with a
// 2xx status is returned as a *Failure carrying the body.
func Decode(resp *Response, target any) (Meta, error) {
	var meta Meta
	if resp == nil || len(resp.Body) == 0 {
		return meta, nil
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(resp.Body, &fields); err != nil {
		// Not an object; let the target try it directly.
		if target == nil {
			return meta, nil
		}
		if err := json.Unmarshal(resp.Body, target); err != nil {
			return meta, &Failure{StatusCode: resp.StatusCode, Body: resp.Body, Err: fmt.Errorf("failed to decode response: %w", err)}
		}
		return meta, nil
	}

	rawSuccess, enveloped := fields["success"]
	if !enveloped {
		if target != nil {
			if err := json.Unmarshal(resp.Body, target); err != nil {
				return meta, &Failure{StatusCode: resp.StatusCode, Body: resp.Body, Err: fmt.Errorf("failed to decode response: %w", err)}
			}
		}
		return meta, nil
	}

	var success bool
	if err := json.Unmarshal(rawSuccess, &success); err != nil {
		return meta, &Failure{StatusCode: resp.StatusCode, Body: resp.Body, Err: fmt.Errorf("malformed success flag: %w", err)}
	}
	if !success {
		return meta, &Failure{StatusCode: resp.StatusCode, Body: resp.Body}
	}

	for key, raw := range fields {
		switch key {
		case "success", "data":
		case "timestamp":
			_ = json.Unmarshal(raw, &meta.Timestamp)
		case "message":
			_ = json.Unmarshal(raw, &meta.Message)
		default:
			if meta.Extra == nil {
				meta.Extra = make(map[string]json.RawMessage)
			}
			meta.Extra[key] = raw
		}
	}

	data, ok := fields["data"]
	if !ok || target == nil || string(data) == "null" {
		return meta, nil
	}
	if err := json.Unmarshal(data, target); err != nil {
		return meta, &Failure{StatusCode: resp.StatusCode, Body: resp.Body, Err: fmt.Errorf("failed to decode data: %w", err)}
	}
	return meta, nil
}
