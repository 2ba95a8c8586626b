package testidp

import (
	"fmt"
	"io"
	"maps"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/aussiebroadwan/trustkit/pkg/apierr"
	"github.com/aussiebroadwan/trustkit/pkg/idx"
	"github.com/go-chi/chi/v5"
)

// Verification is the server-side record, in wire form.
type Verification struct {
	ID          string         `json:"id"`
	UserID      string         `json:"user_id"`
	Type        string         `json:"type"`
	Status      string         `json:"status"`
	Data        map[string]any `json:"data"`
	Metadata    map[string]any `json:"metadata"`
	ExpiresAt   *time.Time     `json:"expires_at,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
}

type checkResult struct {
	Valid     bool           `json:"valid"`
	Status    string         `json:"status"`
	ExpiresAt *time.Time     `json:"expires_at,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Error     *errorBody     `json:"error,omitempty"`
}

var knownTypes = []string{"email", "phone", "document", "video", "social", "wallet"}

var knownStatuses = []string{"pending", "approved", "rejected", "expired"}

// Verification returns a copy of the stored record.
func (s *Server) Verification(id string) (Verification, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.verifications[id]
	if !ok {
		return Verification{}, false
	}
	return v.clone(), true
}

// SetVerificationStatus forces the stored status, as an operator would.
func (s *Server) SetVerificationStatus(id, status string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if v, ok := s.verifications[id]; ok {
		v.Status = status
		v.UpdatedAt = s.nowLocked()
	}
}

// BackdateExpiry moves expires_at into the past without touching status,
// which is what a stale remote record looks like.
func (s *Server) BackdateExpiry(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if v, ok := s.verifications[id]; ok {
		past := s.nowLocked().Add(-time.Minute)
		v.ExpiresAt = &past
	}
}

func (v *Verification) clone() Verification {
	cp := *v
	cp.Data = maps.Clone(v.Data)
	cp.Metadata = maps.Clone(v.Metadata)
	return cp
}

func (v *Verification) attempts() int {
	n, _ := v.Metadata["attempt_count"].(int)
	return n
}

// terminalError is the error a pending-only operation reports for a record
// that has left pending.
func terminalError(status string) string {
	switch status {
	case "approved":
		return apierr.CodeAlreadyVerified
	case "expired":
		return apierr.CodeExpiredCode
	default:
		return apierr.CodeVerificationFailed
	}
}

// lookupLocked finds a record owned by the caller.
func (s *Server) lookupLocked(w http.ResponseWriter, r *http.Request) (*Verification, bool) {
	v, ok := s.verifications[chi.URLParam(r, "id")]
	if !ok || v.UserID != userIDFromCtx(r.Context()) {
		s.writeError(w, http.StatusNotFound, apierr.CodeVerificationFailed, "verification not found", nil)
		return nil, false
	}
	return v, true
}

// requirePendingLocked applies clock expiry and rejects non-pending records.
func (s *Server) requirePendingLocked(w http.ResponseWriter, v *Verification) bool {
	now := s.nowLocked()
	if v.Status == "pending" && v.ExpiresAt != nil && now.After(*v.ExpiresAt) {
		v.Status = "expired"
		v.UpdatedAt = now
	}
	if v.Status != "pending" {
		s.writeError(w, http.StatusConflict, terminalError(v.Status), "", map[string]any{
			"verification_id": v.ID,
			"status":          v.Status,
		})
		return false
	}
	return true
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Type     string         `json:"type"`
		Data     map[string]any `json:"data"`
		Metadata map[string]any `json:"metadata"`
	}
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, apierr.CodeInvalidFormat, "", nil)
		return
	}
	if !slices.Contains(knownTypes, req.Type) {
		s.writeError(w, http.StatusBadRequest, apierr.CodeUnsupportedType, "", map[string]any{"type": req.Type})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.nowLocked()
	expires := now.Add(s.verificationTTL)

	metadata := map[string]any{"source": "api"}
	maps.Copy(metadata, req.Metadata)
	metadata["attempt_count"] = 0

	data := req.Data
	if data == nil {
		data = map[string]any{}
	}

	v := &Verification{
		ID:        idx.NewAt(now).String(),
		UserID:    userIDFromCtx(r.Context()),
		Type:      req.Type,
		Status:    "pending",
		Data:      data,
		Metadata:  metadata,
		ExpiresAt: &expires,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.verifications[v.ID] = v

	s.writeData(w, http.StatusCreated, v)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.lookupLocked(w, r)
	if !ok {
		return
	}
	s.writeData(w, http.StatusOK, v)
}

// handleStatus reports the stored status as is; it never applies clock
// expiry, so clients see stale pending records.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.lookupLocked(w, r)
	if !ok {
		return
	}
	s.writeData(w, http.StatusOK, checkResult{
		Valid:     v.Status == "approved",
		Status:    v.Status,
		ExpiresAt: v.ExpiresAt,
		Metadata:  map[string]any{"attempt_count": v.attempts()},
	})
}

func (s *Server) handleConfirm(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code string `json:"code"`
	}
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, apierr.CodeInvalidFormat, "", nil)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.lookupLocked(w, r)
	if !ok || !s.requirePendingLocked(w, v) {
		return
	}

	now := s.nowLocked()
	v.Metadata["attempt_count"] = v.attempts() + 1
	v.Metadata["last_attempt"] = now
	v.UpdatedAt = now

	result := checkResult{ExpiresAt: v.ExpiresAt}
	switch {
	case req.Code == ConfirmCode:
		v.Status = "approved"
		v.CompletedAt = &now
		result.Valid = true
	case v.attempts() >= MaxAttempts:
		v.Status = "rejected"
		v.CompletedAt = &now
		result.Error = &errorBody{Code: apierr.CodeTooManyAttempts, Message: apierr.DefaultMessage(apierr.CodeTooManyAttempts)}
	default:
		result.Error = &errorBody{Code: apierr.CodeInvalidCode, Message: apierr.DefaultMessage(apierr.CodeInvalidCode)}
	}
	result.Status = v.Status
	result.Metadata = map[string]any{"attempt_count": v.attempts()}

	s.writeData(w, http.StatusOK, result)
}

func (s *Server) handleDocuments(w http.ResponseWriter, r *http.Request) {
	mr, err := r.MultipartReader()
	if err != nil {
		s.writeError(w, http.StatusBadRequest, apierr.CodeInvalidFormat, "expected multipart body", nil)
		return
	}

	fields := map[string]any{}
	files := map[string]any{}
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			s.writeError(w, http.StatusBadRequest, apierr.CodeInvalidFormat, "malformed multipart body", nil)
			return
		}

		content, _ := io.ReadAll(part)
		if part.FileName() == "" {
			fields[part.FormName()] = string(content)
			continue
		}
		files[part.FormName()] = fmt.Sprintf("upload://%s/%d", part.FileName(), len(content))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.lookupLocked(w, r)
	if !ok {
		return
	}
	if v.Type != "document" {
		s.writeError(w, http.StatusBadRequest, apierr.CodeInvalidDocument, "documents are only accepted for document verification", map[string]any{"type": v.Type})
		return
	}
	if !s.requirePendingLocked(w, v) {
		return
	}
	if len(files) == 0 {
		s.writeError(w, http.StatusBadRequest, apierr.CodeInvalidDocument, "no files uploaded", nil)
		return
	}

	maps.Copy(v.Data, fields)
	existing, _ := v.Data["files"].(map[string]any)
	if existing == nil {
		existing = map[string]any{}
	}
	maps.Copy(existing, files)
	v.Data["files"] = existing
	v.UpdatedAt = s.nowLocked()

	s.writeData(w, http.StatusOK, v)
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status   string         `json:"status"`
		Data     map[string]any `json:"data"`
		Metadata map[string]any `json:"metadata"`
	}
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, apierr.CodeInvalidFormat, "", nil)
		return
	}
	if req.Status != "" && !slices.Contains(knownStatuses, req.Status) {
		s.writeError(w, http.StatusBadRequest, apierr.CodeInvalidFormat, "unknown status", map[string]any{"status": req.Status})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.lookupLocked(w, r)
	if !ok {
		return
	}

	now := s.nowLocked()
	if req.Status != "" && req.Status != v.Status {
		v.Status = req.Status
		if req.Status != "pending" {
			v.CompletedAt = &now
		}
	}
	maps.Copy(v.Data, req.Data)
	delete(req.Metadata, "attempt_count")
	maps.Copy(v.Metadata, req.Metadata)
	v.UpdatedAt = now

	s.writeData(w, http.StatusOK, v)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.lookupLocked(w, r)
	if !ok || !s.requirePendingLocked(w, v) {
		return
	}

	now := s.nowLocked()
	v.Status = "rejected"
	v.Metadata["cancelled"] = true
	v.CompletedAt = &now
	v.UpdatedAt = now

	s.writeData(w, http.StatusOK, nil)
}

type pagination struct {
	Total      int  `json:"total"`
	Page       int  `json:"page"`
	Limit      int  `json:"limit"`
	TotalPages int  `json:"total_pages"`
	HasNext    bool `json:"has_next"`
	HasPrev    bool `json:"has_prev"`
}

func queryInt(r *http.Request, key string, def int) int {
	n, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func (s *Server) handleListVerifications(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "user_id")
	if userID != userIDFromCtx(r.Context()) {
		s.writeError(w, http.StatusForbidden, apierr.CodeInvalidToken, "cannot list another user's verifications", nil)
		return
	}

	page := queryInt(r, "page", 1)
	limit := min(queryInt(r, "limit", 20), 100)
	sortBy := r.URL.Query().Get("sort_by")
	desc := !strings.EqualFold(r.URL.Query().Get("sort_order"), "asc")

	s.mu.Lock()
	defer s.mu.Unlock()

	var all []*Verification
	for _, v := range s.verifications {
		if v.UserID == userID {
			all = append(all, v)
		}
	}

	slices.SortFunc(all, func(a, b *Verification) int {
		var c int
		switch sortBy {
		case "type":
			c = strings.Compare(a.Type, b.Type)
		case "status":
			c = strings.Compare(a.Status, b.Status)
		case "updated_at":
			c = a.UpdatedAt.Compare(b.UpdatedAt)
		default:
			c = a.CreatedAt.Compare(b.CreatedAt)
		}
		if c == 0 {
			c = strings.Compare(a.ID, b.ID)
		}
		if desc {
			return -c
		}
		return c
	})

	total := len(all)
	start := min((page-1)*limit, total)
	end := min(start+limit, total)
	totalPages := (total + limit - 1) / limit

	data := make([]*Verification, 0, end-start)
	data = append(data, all[start:end]...)

	s.writeData(w, http.StatusOK, map[string]any{
		"data": data,
		"pagination": pagination{
			Total:      total,
			Page:       page,
			Limit:      limit,
			TotalPages: totalPages,
			HasNext:    page < totalPages,
			HasPrev:    page > 1,
		},
	})
}

func (s *Server) handleRequirements(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "user_id")
	if userID != userIDFromCtx(r.Context()) {
		s.writeError(w, http.StatusForbidden, apierr.CodeInvalidToken, "", nil)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	completed := []string{}
	pending := []string{}
	for _, v := range s.verifications {
		if v.UserID != userID {
			continue
		}
		switch v.Status {
		case "approved":
			if !slices.Contains(completed, v.Type) {
				completed = append(completed, v.Type)
			}
		case "pending":
			if !slices.Contains(pending, v.Type) {
				pending = append(pending, v.Type)
			}
		}
	}
	slices.Sort(completed)
	slices.Sort(pending)

	s.writeData(w, http.StatusOK, map[string]any{
		"required":  s.required,
		"completed": completed,
		"pending":   pending,
	})
}
