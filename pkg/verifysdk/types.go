package verifysdk

import (
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"slices"
	"strconv"
	"time"

	"github.com/aussiebroadwan/trustkit/pkg/transport"
)

// Type is the kind of identity proof a verification collects. It is fixed
// when the verification starts.
type Type string

const (
	TypeEmail    Type = "email"
	TypePhone    Type = "phone"
	TypeDocument Type = "document"
	TypeVideo    Type = "video"
	TypeSocial   Type = "social"
	TypeWallet   Type = "wallet"
)

var allTypes = []Type{TypeEmail, TypePhone, TypeDocument, TypeVideo, TypeSocial, TypeWallet}

// Types returns every supported verification type.
func Types() []Type {
	return slices.Clone(allTypes)
}

// Valid reports whether t is one of the supported types.
func (t Type) Valid() bool {
	return slices.Contains(allTypes, t)
}

// Status is the position of a verification in its lifecycle.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
	StatusExpired  Status = "expired"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected, StatusExpired:
		return true
	}
	return false
}

// Terminal reports whether no further transition is possible from s.
func (s Status) Terminal() bool {
	return s == StatusApproved || s == StatusRejected || s == StatusExpired
}

type DeviceInfo struct {
	Platform string `json:"platform"`
	Browser  string `json:"browser"`
	Version  string `json:"version"`
}

type Location struct {
	Country     string      `json:"country"`
	City        string      `json:"city"`
	Coordinates *[2]float64 `json:"coordinates,omitempty"`
}

// Metadata describes where and how a verification is being completed.
// AttemptCount is maintained by the service.
type Metadata struct {
	AttemptCount int         `json:"attempt_count,omitempty"`
	LastAttempt  *time.Time  `json:"last_attempt,omitempty"`
	IPAddress    string      `json:"ip_address,omitempty" validate:"omitempty,ip"`
	Source       string      `json:"source,omitempty" validate:"omitempty,oneof=telegram website api"`
	DeviceInfo   *DeviceInfo `json:"device_info,omitempty"`
	Location     *Location   `json:"location,omitempty"`
}

// Verification is one identity-proof record. Data holds the type-specific
// payload; use DecodeData to read it into one of the *Data structs.
type Verification struct {
	ID          string          `json:"id"`
	UserID      string          `json:"user_id"`
	Type        Type            `json:"type"`
	Status      Status          `json:"status"`
	Data        json.RawMessage `json:"data,omitempty"`
	Metadata    Metadata        `json:"metadata"`
	ExpiresAt   *time.Time      `json:"expires_at,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`

	Meta transport.Meta `json:"-"`
}

// Expired reports whether expires_at has passed at now.
func (v *Verification) Expired(now time.Time) bool {
	return v.ExpiresAt != nil && now.After(*v.ExpiresAt)
}

// EffectiveStatus is Status with clock expiry applied: a pending record past
// its expires_at is expired, whatever the service last said.
func (v *Verification) EffectiveStatus(now time.Time) Status {
	if v.Status == StatusPending && v.Expired(now) {
		return StatusExpired
	}
	return v.Status
}

// DecodeData unmarshals the type-specific payload into target.
func (v *Verification) DecodeData(target any) error {
	if len(v.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(v.Data, target); err != nil {
		return fmt.Errorf("decode %s data: %w", v.Type, err)
	}
	return nil
}

// CheckError is the failure reason attached to a CheckResult.
type CheckError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// CheckResult is the outcome of a confirmation or status check.
type CheckResult struct {
	Valid     bool           `json:"valid"`
	Status    Status         `json:"status"`
	ExpiresAt *time.Time     `json:"expires_at,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Error     *CheckError    `json:"error,omitempty"`

	Meta transport.Meta `json:"-"`
}

// attemptCount returns the attempt counter reported in Metadata.
func (r *CheckResult) attemptCount() (int, bool) {
	switch n := r.Metadata["attempt_count"].(type) {
	case float64:
		return int(n), true
	case json.Number:
		i, err := n.Int64()
		return int(i), err == nil
	}
	return 0, false
}

// Document is one file of a document upload. Field names the form part,
// e.g. "front", "back" or "selfie".
type Document struct {
	Field       string
	Name        string
	ContentType string
	Content     io.Reader
}

// UpdateRequest patches a verification. Zero fields are left unchanged.
type UpdateRequest struct {
	Status   Status         `json:"status,omitempty"`
	Data     map[string]any `json:"data,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Pagination selects a page of a list. Zero values let the service choose.
type Pagination struct {
	Page      int    `validate:"gte=0"`
	Limit     int    `validate:"gte=0,lte=100"`
	SortBy    string `validate:"omitempty,oneof=created_at updated_at type status"`
	SortOrder string `validate:"omitempty,oneof=asc desc"`
}

func (p Pagination) query() url.Values {
	q := url.Values{}
	if p.Page > 0 {
		q.Set("page", strconv.Itoa(p.Page))
	}
	if p.Limit > 0 {
		q.Set("limit", strconv.Itoa(p.Limit))
	}
	if p.SortBy != "" {
		q.Set("sort_by", p.SortBy)
	}
	if p.SortOrder != "" {
		q.Set("sort_order", p.SortOrder)
	}
	return q
}

type PageInfo struct {
	Total      int  `json:"total"`
	Page       int  `json:"page"`
	Limit      int  `json:"limit"`
	TotalPages int  `json:"total_pages"`
	HasNext    bool `json:"has_next"`
	HasPrev    bool `json:"has_prev"`
}

// Page is one page of a paginated list.
type Page[T any] struct {
	Data       []T      `json:"data"`
	Pagination PageInfo `json:"pagination"`

	Meta transport.Meta `json:"-"`
}

// Requirements lists the verification types a user still needs.
type Requirements struct {
	Required  []Type `json:"required"`
	Completed []Type `json:"completed"`
	Pending   []Type `json:"pending"`

	Meta transport.Meta `json:"-"`
}

// Missing returns the required types that are neither completed nor pending.
func (r *Requirements) Missing() []Type {
	var out []Type
	for _, t := range r.Required {
		if !slices.Contains(r.Completed, t) && !slices.Contains(r.Pending, t) {
			out = append(out, t)
		}
	}
	return out
}
