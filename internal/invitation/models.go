package invitation

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"tenant-console/internal/rbac"
)

type Status string

const (
	StatusPending  Status = "PENDING"
	StatusAccepted Status = "ACCEPTED"
	StatusRejected Status = "REJECTED"
	StatusExpired  Status = "EXPIRED"
)

// Terminal reports whether s has no outgoing transitions. Unknown statuses are terminal.
func (s Status) Terminal() bool { return machine(s).Terminal(s) }

type ProjectRef struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// Invitation is an offer of tenant membership addressed to one email.
// ProjectIDs is fixed when the invitation is created and never re-resolved.
type Invitation struct {
	ID             string       `json:"id"`
	TenantID       string       `json:"tenantId"`
	TenantName     string       `json:"tenantName"`
	InvitedEmail   string       `json:"invitedEmail"`
	InvitedByEmail string       `json:"invitedByEmail,omitempty"`
	Role           string       `json:"role"`
	ProjectIDs     []string     `json:"projectIds"`
	Projects       []ProjectRef `json:"projects,omitempty"`
	Token          string       `json:"token"`
	ExpiresAt      time.Time    `json:"expiresAt"`
	Status         Status       `json:"status"`
}

// wireInvitation accepts the field spellings the tenant service has used over time.
type wireInvitation struct {
	ID             string          `json:"id"`
	TenantID       string          `json:"tenantId"`
	TenantName     string          `json:"tenantName"`
	ResourceName   string          `json:"resourceName"`
	InvitedEmail   string          `json:"invitedEmail"`
	Email          string          `json:"email"`
	InvitedByEmail string          `json:"invitedByEmail"`
	InviterEmail   string          `json:"inviterEmail"`
	Role           string          `json:"role"`
	ProjectIDs     []string        `json:"projectIds"`
	Projects       []ProjectRef    `json:"projects"`
	Token          string          `json:"token"`
	ExpiresAt      json.RawMessage `json:"expiresAt"`
	Status         string          `json:"status"`
}

func (i *Invitation) UnmarshalJSON(b []byte) error {
	var w wireInvitation
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	exp, err := parseTime(w.ExpiresAt)
	if err != nil {
		return fmt.Errorf("invitation %s: expiresAt: %w", w.ID, err)
	}
	// The grant derived from an invitation carries this role, so it is never guessed.
	role, ok := rbac.NormalizeTenantRole(w.Role)
	if !ok || strings.TrimSpace(w.Role) == "" {
		return fmt.Errorf("invitation %s: role %q is not a tenant role", w.ID, w.Role)
	}

	ids := w.ProjectIDs
	if len(ids) == 0 {
		for _, p := range w.Projects {
			ids = append(ids, p.ID)
		}
	}

	status := Status(strings.ToUpper(strings.TrimSpace(w.Status)))
	if status == "" {
		status = StatusPending
	}

	*i = Invitation{
		ID:             w.ID,
		TenantID:       w.TenantID,
		TenantName:     firstNonEmpty(w.TenantName, w.ResourceName),
		InvitedEmail:   firstNonEmpty(w.InvitedEmail, w.Email),
		InvitedByEmail: firstNonEmpty(w.InvitedByEmail, w.InviterEmail),
		Role:           role,
		ProjectIDs:     uniqueNonEmpty(ids),
		Projects:       w.Projects,
		Token:          w.Token,
		ExpiresAt:      exp,
		Status:         status,
	}
	return nil
}

// DecodeList decodes a listing item by item so one malformed invitation cannot hide the rest.
// Items that fail to decode are reported in bad, in listing order.
func DecodeList(items []json.RawMessage) (good []Invitation, bad []error) {
	good = make([]Invitation, 0, len(items))
	for n, raw := range items {
		var inv Invitation
		if err := json.Unmarshal(raw, &inv); err != nil {
			bad = append(bad, fmt.Errorf("item %d: %w", n, err))
			continue
		}
		good = append(good, inv)
	}
	return good, bad
}

// Backends emit RFC 3339, a zoneless local date-time string (read as UTC),
// or Jackson's array form [year, month, day, hour, minute, second?, nanos?].
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

func parseTime(raw json.RawMessage) (time.Time, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return time.Time{}, nil
	}
	var ms int64
	if err := json.Unmarshal(raw, &ms); err == nil {
		return time.UnixMilli(ms).UTC(), nil
	}
	var parts []int
	if err := json.Unmarshal(raw, &parts); err == nil {
		return timeFromParts(parts)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return time.Time{}, err
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time %q", s)
}

func timeFromParts(p []int) (time.Time, error) {
	if len(p) < 3 || len(p) > 7 {
		return time.Time{}, fmt.Errorf("date-time array needs 3 to 7 fields, got %d", len(p))
	}
	f := make([]int, 7)
	copy(f, p)
	if f[1] < 1 || f[1] > 12 || f[2] < 1 || f[2] > 31 || f[3] > 23 || f[4] > 59 || f[5] > 59 {
		return time.Time{}, fmt.Errorf("date-time array %v out of range", p)
	}
	return time.Date(f[0], time.Month(f[1]), f[2], f[3], f[4], f[5], f[6], time.UTC), nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func uniqueNonEmpty(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

type TenantGrant struct {
	TenantID string `json:"tenantId"`
	UserID   string `json:"userId"`
	Role     string `json:"role"`
}

type ProjectGrant struct {
	ProjectID string `json:"projectId"`
	UserID    string `json:"userId"`
	Role      string `json:"role"`
}

// Grant is the membership produced by one accepted invitation.
type Grant struct {
	Tenant   TenantGrant    `json:"tenant"`
	Projects []ProjectGrant `json:"projects"`
}
