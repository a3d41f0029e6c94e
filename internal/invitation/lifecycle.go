package invitation

import (
	"fmt"
	"strings"
	"time"

	"tenant-console/internal/rbac"
	"tenant-console/pkg/fsm"
)

// machine encodes the only legal moves: PENDING to any terminal status.
func machine(from Status) *fsm.Machine[Status] {
	return fsm.New(from).Allow(StatusPending, StatusAccepted, StatusRejected, StatusExpired)
}

// EffectiveStatus is the stored status, except that a pending invitation past its deadline is EXPIRED.
// A zero ExpiresAt never expires.
func EffectiveStatus(inv Invitation, now time.Time) Status {
	if inv.Status == StatusPending && !inv.ExpiresAt.IsZero() && !now.Before(inv.ExpiresAt) {
		return StatusExpired
	}
	return inv.Status
}

// Check reports whether actorEmail may act on inv at now.
// Order: email mismatch, then a stored terminal status, then the deadline.
func Check(inv Invitation, actorEmail string, now time.Time) error {
	if !sameEmail(inv.InvitedEmail, actorEmail) {
		return ErrEmailMismatch
	}
	if inv.Status.Terminal() {
		return ErrAlreadyResolved
	}
	if EffectiveStatus(inv, now) == StatusExpired {
		return ErrExpired
	}
	return nil
}

// Resolve returns inv moved to target. inv itself is not modified, and on error nothing changes.
func Resolve(inv Invitation, actorEmail string, target Status, now time.Time) (Invitation, error) {
	if target != StatusAccepted && target != StatusRejected {
		return inv, fmt.Errorf("resolve to %s: not an actor decision", target)
	}
	if err := Check(inv, actorEmail, now); err != nil {
		return inv, err
	}
	m := machine(inv.Status)
	if err := m.Transition(target); err != nil {
		return inv, fmt.Errorf("%w: %v", ErrAlreadyResolved, err)
	}
	out := inv
	out.ProjectIDs = append([]string(nil), inv.ProjectIDs...)
	out.Status = m.Current()
	return out, nil
}

// DeriveGrant yields the tenant grant plus one PROJECT_MEMBER grant per listed project.
// The tenant grant carries the invitation's role as decoded; project grants never inherit it.
func DeriveGrant(inv Invitation, userID string) Grant {
	g := Grant{
		Tenant:   TenantGrant{TenantID: inv.TenantID, UserID: userID, Role: inv.Role},
		Projects: make([]ProjectGrant, 0, len(inv.ProjectIDs)),
	}
	for _, pid := range uniqueNonEmpty(inv.ProjectIDs) {
		g.Projects = append(g.Projects, ProjectGrant{ProjectID: pid, UserID: userID, Role: rbac.ProjectMember})
	}
	return g
}

func sameEmail(a, b string) bool {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	return a != "" && strings.EqualFold(a, b)
}
