package project

import "encoding/json"

type Project struct {
	ID          string `json:"id"`
	TenantID    string `json:"tenantId"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Status      string `json:"status,omitempty"`
	// Role is set on membership listings only.
	Role        string `json:"role,omitempty"`
	DomainCount int    `json:"domainCount"`
	RepoCount   int    `json:"repoCount"`
}

// UnmarshalJSON also reads membership rows, which carry projectId instead of id.
func (p *Project) UnmarshalJSON(b []byte) error {
	type plain Project
	var w struct {
		plain
		ProjectID string `json:"projectId"`
	}
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	*p = Project(w.plain)
	if p.ID == "" {
		p.ID = w.ProjectID
	}
	return nil
}
