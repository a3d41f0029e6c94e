package tenant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"tenant-console/internal/auth"
	"tenant-console/internal/gateway"
	"tenant-console/internal/invitation"
	"tenant-console/internal/rbac"
	"tenant-console/pkg/logger"
)

var ErrInvalidInput = errors.New("invalid input")

type Doer interface {
	Do(ctx context.Context, call gateway.Call, out any) error
}

type Identity interface {
	Current() (auth.Identity, bool)
}

type Service struct {
	gw Doer
	id Identity
}

func NewService(gw Doer, id Identity) *Service {
	return &Service{gw: gw, id: id}
}

// ListMine returns the tenants the current user belongs to.
func (s *Service) ListMine(ctx context.Context) ([]Tenant, error) {
	if _, ok := s.id.Current(); !ok {
		return nil, gateway.ErrNoSession
	}
	out := []Tenant{}
	err := s.gw.Do(ctx, gateway.Call{
		Op:      "list tenants",
		Service: gateway.TenantService,
		Method:  http.MethodGet,
		Path:    "/api/tenants/me",
		Actor:   gateway.ActorUserID,
	}, &out)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) Get(ctx context.Context, id string) (Tenant, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Tenant{}, fmt.Errorf("get tenant: %w: id is required", ErrInvalidInput)
	}
	var t Tenant
	err := s.gw.Do(ctx, gateway.Call{
		Op:      "get tenant",
		Service: gateway.TenantService,
		Method:  http.MethodGet,
		Path:    "/api/tenants/" + url.PathEscape(id),
	}, &t)
	return t, err
}

type CreateRequest struct {
	Name string `json:"name"`
	Slug string `json:"slug"`
}

var (
	slugRe      = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)
	nonSlugRune = regexp.MustCompile(`[^a-z0-9]+`)
)

// Slugify lower-cases name and collapses everything but letters and digits into single dashes.
func Slugify(name string) string {
	return strings.Trim(nonSlugRune.ReplaceAllString(strings.ToLower(name), "-"), "-")
}

func (r *CreateRequest) normalize() error {
	r.Name = strings.TrimSpace(r.Name)
	r.Slug = strings.ToLower(strings.TrimSpace(r.Slug))
	if r.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	if r.Slug == "" {
		r.Slug = Slugify(r.Name)
	}
	if !slugRe.MatchString(r.Slug) {
		return fmt.Errorf("%w: slug %q must be lower-case letters, digits and dashes", ErrInvalidInput, r.Slug)
	}
	return nil
}

// Create registers a new tenant owned by the current user. An empty slug is derived from the name.
func (s *Service) Create(ctx context.Context, req CreateRequest) (Tenant, error) {
	if err := req.normalize(); err != nil {
		return Tenant{}, fmt.Errorf("create tenant: %w", err)
	}
	var t Tenant
	err := s.gw.Do(ctx, gateway.Call{
		Op:      "create tenant",
		Service: gateway.TenantService,
		Method:  http.MethodPost,
		Path:    "/api/tenants",
		Body:    req,
		Actor:   gateway.ActorUserID,
	}, &t)
	return t, err
}

// InviteRequest is the outbound invite shape. ProjectIDs always serializes as an array.
type InviteRequest struct {
	Email      string   `json:"email"`
	Role       string   `json:"role"`
	ProjectIDs []string `json:"projectIds"`
}

func (r *InviteRequest) normalize() error {
	r.Email = strings.TrimSpace(r.Email)
	if r.Email == "" || !strings.Contains(r.Email, "@") {
		return fmt.Errorf("%w: a valid email is required", ErrInvalidInput)
	}
	role, ok := rbac.NormalizeTenantRole(r.Role)
	if !ok {
		return fmt.Errorf("%w: role must be %s or %s", ErrInvalidInput, rbac.TenantAdmin, rbac.TenantUser)
	}
	r.Role = role

	ids := make([]string, 0, len(r.ProjectIDs))
	seen := make(map[string]struct{}, len(r.ProjectIDs))
	for _, id := range r.ProjectIDs {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	r.ProjectIDs = ids
	return nil
}

// Invite sends an invitation on behalf of the current user.
func (s *Service) Invite(ctx context.Context, tenantID string, req InviteRequest) (invitation.Invitation, error) {
	tenantID = strings.TrimSpace(tenantID)
	if tenantID == "" {
		return invitation.Invitation{}, fmt.Errorf("invite member: %w: tenant id is required", ErrInvalidInput)
	}
	if err := req.normalize(); err != nil {
		return invitation.Invitation{}, fmt.Errorf("invite member: %w", err)
	}
	if _, ok := s.id.Current(); !ok {
		return invitation.Invitation{}, fmt.Errorf("invite member: %w", gateway.ErrNoSession)
	}

	var inv invitation.Invitation
	err := s.gw.Do(ctx, gateway.Call{
		Op:      "invite member",
		Service: gateway.MemberService,
		Method:  http.MethodPost,
		Path:    "/api/tenants/" + url.PathEscape(tenantID) + "/members/invite",
		Body:    req,
		Actor:   gateway.ActorUserID | gateway.ActorEmail,
	}, &inv)
	return inv, err
}

// ListInvitations returns every invitation issued by a tenant.
// Items that fail to decode are logged and left out.
func (s *Service) ListInvitations(ctx context.Context, tenantID string) ([]invitation.Invitation, error) {
	tenantID = strings.TrimSpace(tenantID)
	if tenantID == "" {
		return nil, fmt.Errorf("list tenant invitations: %w: tenant id is required", ErrInvalidInput)
	}
	var raw []json.RawMessage
	err := s.gw.Do(ctx, gateway.Call{
		Op:      "list tenant invitations",
		Service: gateway.TenantService,
		Method:  http.MethodGet,
		Path:    "/api/tenants/" + url.PathEscape(tenantID) + "/invitations",
	}, &raw)
	if err != nil {
		return nil, err
	}
	out, bad := invitation.DecodeList(raw)
	for _, err := range bad {
		logger.From(ctx).Warn("skipping undecodable invitation", "tenant_id", tenantID, "err", err)
	}
	return out, nil
}
