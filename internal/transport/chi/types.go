package chi

import (
	"encoding/json"
	"time"
)

// ErrorResponseCode is the machine-readable error code of an ErrorResponse.
type ErrorResponseCode string

// Error codes.
const (
	ErrorResponseCodeBadRequest       ErrorResponseCode = "bad_request"
	ErrorResponseCodeUnauthorized     ErrorResponseCode = "unauthorized"
	ErrorResponseCodeNotAuthenticated ErrorResponseCode = "not_authenticated"
	ErrorResponseCodeForbidden        ErrorResponseCode = "forbidden"
	ErrorResponseCodeEntityNotFound   ErrorResponseCode = "entity_not_found"
	ErrorResponseCodeNotFound         ErrorResponseCode = "not_found"
	ErrorResponseCodeMethodNotAllowed ErrorResponseCode = "method_not_allowed"
	ErrorResponseCodeStoreUnavailable ErrorResponseCode = "store_unavailable"
	ErrorResponseCodeInternalError    ErrorResponseCode = "internal_error"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    ErrorResponseCode `json:"code"`
	Message string            `json:"message"`
}

// FlagResponse is returned by every flag and lifecycle operation.
type FlagResponse struct {
	EntityID string `json:"entity_id"`
	ParentID string `json:"parent_id,omitempty"`
	Flagged  bool   `json:"flagged"`
	Changed  bool   `json:"changed"`
}

// SetFlagRequest is the body of PUT /v1/entities/{id}/flag.
// "answered" is accepted as an alias of "flagged".
type SetFlagRequest struct {
	Flagged  *FlagValue `json:"flagged,omitempty"`
	Answered *FlagValue `json:"answered,omitempty"`
}

// Desired is the requested flag value. "flagged" wins over "answered";
// a body naming neither, or naming them as null, asks for false.
func (r SetFlagRequest) Desired() bool {
	switch {
	case r.Flagged != nil:
		return bool(*r.Flagged)
	case r.Answered != nil:
		return bool(*r.Answered)
	default:
		return false
	}
}

// FlagValue decodes true, "true", 1 and "1" as set. Any other value is unset.
type FlagValue bool

// UnmarshalJSON implements json.Unmarshaler.
func (v *FlagValue) UnmarshalJSON(b []byte) error {
	var raw any
	if err := json.Unmarshal(b, &raw); err != nil {
		return err //nolint:wrapcheck // surfaced as a bad request
	}
	switch t := raw.(type) {
	case bool:
		*v = FlagValue(t)
	case float64:
		*v = t == 1
	case string:
		*v = t == "true" || t == "1"
	default:
		*v = false
	}
	return nil
}

// FlaggedItem is one entry of a flagged listing.
type FlaggedItem struct {
	EntityID  string    `json:"entity_id"`
	FlaggedAt time.Time `json:"flagged_at"`
}

// FlaggedListResponse is a page of a flagged index.
type FlaggedListResponse struct {
	Items      []FlaggedItem `json:"items"`
	NextCursor *string       `json:"next_cursor,omitempty"`
	HasMore    bool          `json:"has_more"`
	Total      int64         `json:"total"`
}

// ReindexResponse reports a full repair sweep.
type ReindexResponse struct {
	Scanned int `json:"scanned"`
	Fixed   int `json:"fixed"`
	Failed  int `json:"failed"`
	Stale   int `json:"stale"`
}

// ReconcileResponse reports the repair of a single entity.
type ReconcileResponse struct {
	EntityID string   `json:"entity_id"`
	Vanished bool     `json:"vanished"`
	Fixed    []string `json:"fixed"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}
