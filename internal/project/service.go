package project

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"tenant-console/internal/auth"
	"tenant-console/internal/gateway"
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

// ListByTenant returns every project of a tenant.
func (s *Service) ListByTenant(ctx context.Context, tenantID string) ([]Project, error) {
	tenantID = strings.TrimSpace(tenantID)
	if tenantID == "" {
		return nil, fmt.Errorf("list projects: %w: tenant id is required", ErrInvalidInput)
	}
	out := []Project{}
	err := s.gw.Do(ctx, gateway.Call{
		Op:       "list projects",
		Service:  gateway.ProjectService,
		Method:   http.MethodGet,
		Path:     "/api/projects",
		Query:    map[string]string{"tenantId": tenantID},
		TenantID: tenantID,
	}, &out)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ListMine returns the current user's project memberships grouped by tenant id.
func (s *Service) ListMine(ctx context.Context) (map[string][]Project, error) {
	who, ok := s.id.Current()
	if !ok {
		return nil, gateway.ErrNoSession
	}
	var rows []Project
	err := s.gw.Do(ctx, gateway.Call{
		Op:      "list user projects",
		Service: gateway.MemberService,
		Method:  http.MethodGet,
		Path:    "/api/internal/users/" + url.PathEscape(who.UserID) + "/projects",
		Actor:   gateway.ActorUserID,
	}, &rows)
	if err != nil {
		return nil, err
	}
	return GroupByTenant(rows), nil
}

// GroupByTenant buckets projects by tenant id, each bucket sorted by name.
func GroupByTenant(ps []Project) map[string][]Project {
	out := make(map[string][]Project)
	for _, p := range ps {
		out[p.TenantID] = append(out[p.TenantID], p)
	}
	for _, bucket := range out {
		sort.SliceStable(bucket, func(i, j int) bool { return bucket[i].Name < bucket[j].Name })
	}
	return out
}

type CreateRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (s *Service) Create(ctx context.Context, tenantID string, req CreateRequest) (Project, error) {
	tenantID = strings.TrimSpace(tenantID)
	req.Name = strings.TrimSpace(req.Name)
	req.Description = strings.TrimSpace(req.Description)
	if tenantID == "" || req.Name == "" {
		return Project{}, fmt.Errorf("create project: %w: tenant id and name are required", ErrInvalidInput)
	}
	var p Project
	err := s.gw.Do(ctx, gateway.Call{
		Op:       "create project",
		Service:  gateway.ProjectService,
		Method:   http.MethodPost,
		Path:     "/api/projects",
		Body:     req,
		Actor:    gateway.ActorUserID,
		TenantID: tenantID,
	}, &p)
	return p, err
}

func (s *Service) Delete(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("delete project: %w: id is required", ErrInvalidInput)
	}
	return s.gw.Do(ctx, gateway.Call{
		Op:      "delete project",
		Service: gateway.ProjectService,
		Method:  http.MethodDelete,
		Path:    "/api/projects/" + url.PathEscape(id),
		Actor:   gateway.ActorUserID,
	}, nil)
}
