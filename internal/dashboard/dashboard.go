// Package dashboard loads the independent reads behind the landing view in parallel.
package dashboard

import (
	"context"
	"fmt"
	"sync"

	"tenant-console/internal/gateway"
	"tenant-console/internal/invitation"
	"tenant-console/internal/project"
	"tenant-console/internal/tenant"
	"tenant-console/pkg/logger"

	"golang.org/x/sync/errgroup"
)

type Section string

const (
	SectionTenants     Section = "tenants"
	SectionInvitations Section = "invitations"
	SectionProjects    Section = "projects"
)

type TenantLister interface {
	ListMine(ctx context.Context) ([]tenant.Tenant, error)
}

type InvitationLister interface {
	ListPending(ctx context.Context) ([]invitation.Invitation, error)
}

type ProjectLister interface {
	ListMine(ctx context.Context) (map[string][]project.Project, error)
}

// View is the joined result. A section that failed is empty and has an entry in Errors.
type View struct {
	Tenants          []tenant.Tenant
	Invitations      []invitation.Invitation
	ProjectsByTenant map[string][]project.Project
	Errors           map[Section]error
}

// Projects returns the current user's projects in tenantID.
func (v View) Projects(tenantID string) []project.Project {
	return v.ProjectsByTenant[tenantID]
}

type Loader struct {
	tenants     TenantLister
	invitations InvitationLister
	projects    ProjectLister
}

func NewLoader(t TenantLister, i InvitationLister, p ProjectLister) *Loader {
	return &Loader{tenants: t, invitations: i, projects: p}
}

// Load fires the three reads concurrently and joins them.
// A rejected session aborts the whole load; any other failure is kept per section.
// If ctx ends before the join, results are discarded and ctx's error returned.
func (l *Loader) Load(ctx context.Context) (View, error) {
	log := logger.From(ctx)
	g, gctx := errgroup.WithContext(ctx)

	var (
		mu   sync.Mutex
		view = View{
			ProjectsByTenant: map[string][]project.Project{},
			Errors:           map[Section]error{},
		}
	)
	fail := func(s Section, err error) error {
		if gateway.IsSessionExpired(err) {
			return err
		}
		log.Warn("dashboard section failed", "section", s, "err", err)
		mu.Lock()
		view.Errors[s] = err
		mu.Unlock()
		return nil
	}

	g.Go(func() error {
		ts, err := l.tenants.ListMine(gctx)
		if err != nil {
			return fail(SectionTenants, err)
		}
		mu.Lock()
		view.Tenants = ts
		mu.Unlock()
		return nil
	})
	g.Go(func() error {
		invs, err := l.invitations.ListPending(gctx)
		if err != nil {
			return fail(SectionInvitations, err)
		}
		mu.Lock()
		view.Invitations = invs
		mu.Unlock()
		return nil
	})
	g.Go(func() error {
		byTenant, err := l.projects.ListMine(gctx)
		if err != nil {
			return fail(SectionProjects, err)
		}
		mu.Lock()
		view.ProjectsByTenant = byTenant
		mu.Unlock()
		return nil
	})

	if err := g.Wait(); err != nil {
		return View{}, fmt.Errorf("load dashboard: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return View{}, err
	}
	return view, nil
}
