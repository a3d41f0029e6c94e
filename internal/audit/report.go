package audit

import (
	"context"
	"errors"
	"sort"
	"time"
)

var ErrInvalidRequest = errors.New("audit: invalid request")

type TimeRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// SummaryRequest asks for one user's activity over a range. UserID is required.
type SummaryRequest struct {
	UserID string    `json:"user_id"`
	Range  TimeRange `json:"range"`
}

type ActivitySummary struct {
	UserID string    `json:"user_id"`
	Range  TimeRange `json:"range"`

	TotalEvents         int `json:"total_events"`
	SessionsEstablished int `json:"sessions_established"`
	SessionsEnded       int `json:"sessions_ended"`
	SessionsExpired     int `json:"sessions_expired"`
	InvitationsAccepted int `json:"invitations_accepted"`
	InvitationsRejected int `json:"invitations_rejected"`

	// TenantsJoined lists tenant ids from accepted invitations, sorted, without duplicates.
	TenantsJoined []string `json:"tenants_joined"`

	LastActivity time.Time `json:"last_activity,omitempty"`
}

func (s *Service) Summary(ctx context.Context, req SummaryRequest) (ActivitySummary, error) {
	if req.UserID == "" {
		return ActivitySummary{}, ErrInvalidRequest
	}
	if req.Range.From.IsZero() || req.Range.To.IsZero() || !req.Range.To.After(req.Range.From) {
		return ActivitySummary{}, ErrInvalidRequest
	}

	events, err := s.List(ctx, Filter{UserID: req.UserID, From: req.Range.From, To: req.Range.To})
	if err != nil {
		return ActivitySummary{}, err
	}

	out := ActivitySummary{UserID: req.UserID, Range: req.Range, TenantsJoined: []string{}}
	joined := map[string]struct{}{}
	for _, e := range events {
		out.TotalEvents++
		if e.CreatedAt.After(out.LastActivity) {
			out.LastActivity = e.CreatedAt
		}
		switch e.Type {
		case EventSessionEstablished:
			out.SessionsEstablished++
		case EventSessionEnded:
			out.SessionsEnded++
		case EventSessionExpired:
			out.SessionsExpired++
		case EventInvitationAccepted:
			out.InvitationsAccepted++
			if e.TenantID != "" {
				joined[e.TenantID] = struct{}{}
			}
		case EventInvitationRejected:
			out.InvitationsRejected++
		}
	}
	for id := range joined {
		out.TenantsJoined = append(out.TenantsJoined, id)
	}
	sort.Strings(out.TenantsJoined)
	return out, nil
}
