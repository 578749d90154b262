package model

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// LeadStatus represents where a lead sits in the outreach funnel.
// The set is closed: anything outside it is rejected at the boundary
// instead of silently becoming a new status.
type LeadStatus string

const (
	LeadStatusNew        LeadStatus = "new"
	LeadStatusResearched LeadStatus = "researched"
	LeadStatusContacted  LeadStatus = "contacted"
	LeadStatusQualified  LeadStatus = "qualified"
	LeadStatusConverted  LeadStatus = "converted"
)

// LeadStatuses lists every valid status in funnel order.
func LeadStatuses() []LeadStatus {
	return []LeadStatus{LeadStatusNew, LeadStatusResearched, LeadStatusContacted, LeadStatusQualified, LeadStatusConverted}
}

// ParseLeadStatus validates a raw status string, case-insensitively.
func ParseLeadStatus(s string) (LeadStatus, error) {
	normalized := LeadStatus(strings.ToLower(strings.TrimSpace(s)))
	for _, valid := range LeadStatuses() {
		if normalized == valid {
			return valid, nil
		}
	}
	return "", eris.Errorf("model: unknown lead status %q", s)
}

// Candidate is a discovered business record before dedup and scoring.
// Name is the only required attribute; everything else may be absent.
type Candidate struct {
	Name          string   `json:"name"`
	Website       string   `json:"website,omitempty"`
	Email         string   `json:"email,omitempty"`
	Phone         string   `json:"phone,omitempty"`
	Industry      string   `json:"industry,omitempty"`
	Location      string   `json:"location,omitempty"`
	EmployeeCount int      `json:"employee_count,omitempty"`
	PainPoints    []string `json:"pain_points,omitempty"`
	TechStack     []string `json:"tech_stack,omitempty"`
	Source        string   `json:"source,omitempty"`
}

// ScoreFactor is one component of an ICP score breakdown.
// Breakdowns are ordered lists so identical inputs render identically.
type ScoreFactor struct {
	Factor string  `json:"factor"`
	Points float64 `json:"points"`
}

// Lead is an admitted candidate with its computed score and identity keys.
type Lead struct {
	ID             string        `json:"id"`
	CompanyName    string        `json:"company_name"`
	Website        string        `json:"website,omitempty"`
	ContactEmail   string        `json:"contact_email,omitempty"`
	ContactPhone   string        `json:"contact_phone,omitempty"`
	Industry       string        `json:"industry,omitempty"`
	Location       string        `json:"location,omitempty"`
	EmployeeCount  int           `json:"employee_count,omitempty"`
	PainPoints     []string      `json:"pain_points,omitempty"`
	TechStack      []string      `json:"tech_stack,omitempty"`
	Score          float64       `json:"score"`
	ScoreBreakdown []ScoreFactor `json:"score_breakdown,omitempty"`
	Status         LeadStatus    `json:"status"`
	Source         string        `json:"source,omitempty"`
	NameKey        string        `json:"-"`
	WebsiteKey     string        `json:"-"`
	PhoneKey       string        `json:"-"`
	CreatedAt      time.Time     `json:"created_at"`
}
