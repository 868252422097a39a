// internal/models/opportunity.go
package models

import "time"

type OpportunityStatus string

const (
	OpportunityOpen   OpportunityStatus = "open"
	OpportunityClosed OpportunityStatus = "closed"
)

type Opportunity struct {
	ID             string            `json:"id"`
	OwnerID        string            `json:"ownerId"`
	Title          string            `json:"title"`
	Organization   string            `json:"organization"`
	Description    string            `json:"description"`
	Location       string            `json:"location,omitempty"`
	Deadline       time.Time         `json:"deadline"`
	Slots          int               `json:"slots"`
	SlotsAvailable int               `json:"slotsAvailable"`
	Status         OpportunityStatus `json:"status"`
	ClosedAt       *time.Time        `json:"closedAt,omitempty"`
	CreatedAt      time.Time         `json:"createdAt"`
	UpdatedAt      time.Time         `json:"updatedAt"`
}

// AcceptsApplications reports whether a new application may be filed at now.
func (o Opportunity) AcceptsApplications(now time.Time) bool {
	return o.Status == OpportunityOpen && now.Before(o.Deadline) && o.SlotsAvailable > 0
}
