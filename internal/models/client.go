// internal/models/client.go
package models

import (
	"strings"
	"time"
)

// ClientStatus is the pipeline stage of a CRM client.
type ClientStatus string

const (
	ClientStatusLead   ClientStatus = "Lead"
	ClientStatusActive ClientStatus = "Active"
	ClientStatusClosed ClientStatus = "Closed"
	ClientStatusLost   ClientStatus = "Lost"
)

// ParseClientStatus matches s against the known statuses ignoring case.
func ParseClientStatus(s string) (ClientStatus, bool) {
	for _, st := range []ClientStatus{ClientStatusLead, ClientStatusActive, ClientStatusClosed, ClientStatusLost} {
		if strings.EqualFold(strings.TrimSpace(s), string(st)) {
			return st, true
		}
	}
	return "", false
}

// Client is a CRM record. Optional columns are pointers.
type Client struct {
	ID              int64        `json:"id"`
	FirstName       string       `json:"first_name"`
	LastName        string       `json:"last_name"`
	Email           *string      `json:"email"`
	Phone           *string      `json:"phone"`
	Status          ClientStatus `json:"status"`
	Source          *string      `json:"source"`
	LastContactDate *time.Time   `json:"last_contact_date"`
	NextFollowUp    *time.Time   `json:"next_follow_up"`
	BudgetMin       *float64     `json:"budget_min"`
	BudgetMax       *float64     `json:"budget_max"`
	PropertyType    *string      `json:"property_type"`
	AssignedAgent   *string      `json:"assigned_agent"`
	Notes           *string      `json:"notes"`
	CreatedAt       time.Time    `json:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at"`
}

// FullName joins first and last name.
func (c *Client) FullName() string {
	return strings.TrimSpace(c.FirstName + " " + c.LastName)
}
