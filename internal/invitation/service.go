package invitation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"sync"
	"time"

	"tenant-console/internal/audit"
	"tenant-console/internal/auth"
	"tenant-console/internal/gateway"
)

// Doer is the gateway as seen by this package.
type Doer interface {
	Do(ctx context.Context, call gateway.Call, out any) error
}

// Identity supplies the acting user. session.Store implements it.
type Identity interface {
	Current() (auth.Identity, bool)
}

type record struct {
	inv Invitation
	// settled is set when the tenant service reported the invitation as already resolved
	// but did not say how.
	settled bool
}

// Service acts on invitations addressed to the current user.
// The tenant service is authoritative; the local registry only prevents double action.
type Service struct {
	gw    Doer
	id    Identity
	audit *audit.Service
	log   *slog.Logger
	clock func() time.Time

	mu    sync.Mutex
	known map[string]*record
	locks map[string]*sync.Mutex
}

func NewService(gw Doer, id Identity, a *audit.Service, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		gw:    gw,
		id:    id,
		audit: a,
		log:   log,
		clock: time.Now,
		known: make(map[string]*record),
		locks: make(map[string]*sync.Mutex),
	}
}

// ListPending fetches invitations addressed to the current user's email and refreshes the registry.
// Only invitations that can still be acted on are returned, soonest deadline first.
// A locally resolved invitation is never downgraded back to pending by a stale listing, and
// an item that fails to decode is logged and skipped without affecting the others.
func (s *Service) ListPending(ctx context.Context) ([]Invitation, error) {
	who, ok := s.id.Current()
	if !ok {
		return nil, gateway.ErrNoSession
	}

	var raw []json.RawMessage
	err := s.gw.Do(ctx, gateway.Call{
		Op:      "list pending invitations",
		Service: gateway.TenantService,
		Method:  http.MethodGet,
		Path:    "/api/tenants/invitations/pending",
		Actor:   gateway.ActorEmail,
	}, &raw)
	if err != nil {
		return nil, err
	}
	fetched, bad := DecodeList(raw)
	for _, err := range bad {
		s.log.Warn("skipping undecodable invitation", "err", err)
	}

	now := s.clock()
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Invitation, 0, len(fetched))
	for _, inv := range fetched {
		if inv.Token == "" {
			continue
		}
		rec, ok := s.known[inv.Token]
		switch {
		case !ok:
			s.known[inv.Token] = &record{inv: inv}
		case rec.settled || rec.inv.Status.Terminal():
			continue
		default:
			rec.inv = inv
		}
		if EffectiveStatus(inv, now) == StatusPending && sameEmail(inv.InvitedEmail, who.Email) {
			out = append(out, inv)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ExpiresAt.Before(out[j].ExpiresAt) })
	return out, nil
}

// Get returns the registry's view of the invitation with token, refreshing the registry once
// when the token is unknown. The stored status is returned as is; see EffectiveStatus.
func (s *Service) Get(ctx context.Context, token string) (Invitation, error) {
	if _, ok := s.id.Current(); !ok {
		return Invitation{}, gateway.ErrNoSession
	}
	if token == "" {
		return Invitation{}, ErrNotFound
	}
	rec, err := s.lookup(ctx, token)
	if err != nil {
		return Invitation{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return rec.inv, nil
}

// Accept accepts the invitation and returns the membership it grants.
func (s *Service) Accept(ctx context.Context, token string) (Grant, error) {
	var grant Grant
	err := s.act(ctx, token, StatusAccepted, func(inv Invitation, who auth.Identity) {
		grant = DeriveGrant(inv, who.UserID)
	})
	if err != nil {
		return Grant{}, err
	}
	return grant, nil
}

// Reject declines the invitation. It produces no grant.
func (s *Service) Reject(ctx context.Context, token string) error {
	return s.act(ctx, token, StatusRejected, nil)
}

// act runs check, remote call and local transition for one token while holding that token's lock.
func (s *Service) act(ctx context.Context, token string, target Status, onDone func(Invitation, auth.Identity)) error {
	op := "accept invitation"
	action := "accept"
	if target == StatusRejected {
		op, action = "reject invitation", "reject"
	}

	who, ok := s.id.Current()
	if !ok {
		return fmt.Errorf("%s: %w", op, gateway.ErrNoSession)
	}
	if token == "" {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}

	unlock := s.lock(token)
	defer unlock()

	rec, err := s.lookup(ctx, token)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.mu.Lock()
	inv, settled := rec.inv, rec.settled
	s.mu.Unlock()
	if settled {
		return fmt.Errorf("%s: %w", op, ErrAlreadyResolved)
	}

	now := s.clock()
	if err := Check(inv, who.Email, now); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	err = s.gw.Do(ctx, gateway.Call{
		Op:      op,
		Service: gateway.TenantService,
		Method:  http.MethodPost,
		Path:    "/api/tenants/invitations/" + url.PathEscape(token) + "/" + action,
		Body:    struct{}{},
		Actor:   gateway.ActorUserID,
	}, nil)
	if err != nil {
		mapped, ok := remoteError(err)
		if !ok {
			return err
		}
		if errors.Is(mapped, ErrAlreadyResolved) {
			s.mu.Lock()
			rec.settled = true
			s.mu.Unlock()
		}
		s.log.Info("invitation action refused", "op", op, "invitation_id", inv.ID, "err", err)
		return fmt.Errorf("%s: %w", op, mapped)
	}

	resolved, err := Resolve(inv, who.Email, target, now)
	if err != nil {
		// The remote accepted the action; keep the registry consistent with it.
		s.log.Error("local transition failed after remote success", "op", op, "err", err)
		resolved = inv
		resolved.Status = target
	}
	s.mu.Lock()
	rec.inv = resolved
	s.mu.Unlock()

	typ := audit.EventInvitationAccepted
	if target == StatusRejected {
		typ = audit.EventInvitationRejected
	}
	s.audit.Record(ctx, audit.Event{
		Type:         typ,
		UserID:       who.UserID,
		Email:        who.Email,
		TenantID:     resolved.TenantID,
		InvitationID: resolved.ID,
		Message:      resolved.TenantName,
	})

	if onDone != nil {
		onDone(resolved, who)
	}
	return nil
}

// lookup finds token in the registry, refreshing it from the tenant service once when unknown.
func (s *Service) lookup(ctx context.Context, token string) (*record, error) {
	s.mu.Lock()
	rec, ok := s.known[token]
	s.mu.Unlock()
	if ok {
		return rec, nil
	}

	if _, err := s.ListPending(ctx); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.known[token]; ok {
		return rec, nil
	}
	return nil, ErrNotFound
}

func (s *Service) lock(token string) func() {
	s.mu.Lock()
	l, ok := s.locks[token]
	if !ok {
		l = &sync.Mutex{}
		s.locks[token] = l
	}
	s.mu.Unlock()

	l.Lock()
	return l.Unlock
}
