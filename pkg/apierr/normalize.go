package apierr

import (
	"encoding/json"
	"errors"
)

// PayloadCarrier is implemented by transport failures that received a
// response body from the remote service.
type PayloadCarrier interface {
	error
	HTTPStatus() int
	Payload() []byte
}

type errorBody struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// Normalize converts any failure into an *Error. It never fails: payloads
// that cannot be parsed produce the SYSTEM fallback. A nil input returns nil.
func Normalize(err error) *Error {
	if err == nil {
		return nil
	}

	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr
	}

	var carrier PayloadCarrier
	if errors.As(err, &carrier) {
		if body, ok := parsePayload(carrier.Payload()); ok {
			e := New(body.Code, body.Message, body.Details).withCause(err)
			e.StatusCode = carrier.HTTPStatus()
			return e
		}

		e := ErrInternal.withCause(err)
		e.StatusCode = carrier.HTTPStatus()
		return e
	}

	return ErrInternal.withCause(err)
}

// parsePayload extracts {code, message, details} from either the failure
// envelope ({"success": false, "error": {...}}) or a bare error object. Each
// field is decoded on its own so a mistyped message or details does not cost
// the server code.
func parsePayload(payload []byte) (errorBody, bool) {
	if len(payload) == 0 {
		return errorBody{}, false
	}

	var envelope struct {
		Error json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(payload, &envelope); err == nil && len(envelope.Error) > 0 {
		if body, ok := parseBody(envelope.Error); ok {
			return body, true
		}
	}

	return parseBody(payload)
}

func parseBody(raw []byte) (errorBody, bool) {
	var fields struct {
		Code    json.RawMessage `json:"code"`
		Message json.RawMessage `json:"message"`
		Details json.RawMessage `json:"details"`
	}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return errorBody{}, false
	}

	var body errorBody
	if err := json.Unmarshal(fields.Code, &body.Code); err != nil || body.Code == "" {
		return errorBody{}, false
	}
	_ = json.Unmarshal(fields.Message, &body.Message)
	if err := json.Unmarshal(fields.Details, &body.Details); err != nil {
		body.Details = nil
	}
	return body, true
}
