package tenant

import "fmt"

type Tenant struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Slug   string  `json:"slug"`
	Plan   string  `json:"plan"`
	Status string  `json:"status"`
	Usage  *Usage  `json:"usage,omitempty"`
	Limits *Limits `json:"limits,omitempty"`
}

type Usage struct {
	CurrentUsers    int `json:"currentUsers"`
	CurrentProjects int `json:"currentProjects"`
	CurrentDomains  int `json:"currentDomains"`
}

// Unlimited in a Limits field means the plan has no cap.
const Unlimited = -1

type Limits struct {
	MaxUsers    int `json:"maxUsers"`
	MaxProjects int `json:"maxProjects"`
	MaxDomains  int `json:"maxDomains"`
}

// Quota is one usage counter against its plan limit.
type Quota struct {
	Label   string
	Current int
	Max     int
}

// NearLimit reports usage at or above 80% of a finite, non-zero limit.
func (q Quota) NearLimit() bool {
	if q.Max == Unlimited || q.Max <= 0 {
		return false
	}
	return q.Current*5 >= q.Max*4
}

func (q Quota) String() string {
	if q.Max == Unlimited {
		return fmt.Sprintf("%s: %d/unlimited", q.Label, q.Current)
	}
	return fmt.Sprintf("%s: %d/%d", q.Label, q.Current, q.Max)
}

// Quotas is empty unless the tenant service reported both usage and limits.
func (t Tenant) Quotas() []Quota {
	if t.Usage == nil || t.Limits == nil {
		return nil
	}
	return []Quota{
		{Label: "Users", Current: t.Usage.CurrentUsers, Max: t.Limits.MaxUsers},
		{Label: "Projects", Current: t.Usage.CurrentProjects, Max: t.Limits.MaxProjects},
		{Label: "Domains", Current: t.Usage.CurrentDomains, Max: t.Limits.MaxDomains},
	}
}

// Warnings lists the quotas that are close to their plan limit.
func (t Tenant) Warnings() []string {
	var out []string
	for _, q := range t.Quotas() {
		if q.NearLimit() {
			out = append(out, q.String())
		}
	}
	return out
}
