// internal/crm/resolver/result.go
package resolver

import "dibs-assistant/internal/models"

// Kind is the shape of a resolution.
type Kind string

const (
	KindSingleClient Kind = "single_client"
	KindClientList   Kind = "client_list"
	KindFollowUpList Kind = "follow_up_list"
	KindNoMatch      Kind = "no_match"
)

// Values of Result.MatchedBy.
const (
	MatchedByEmail     = "email"
	MatchedByID        = "id"
	MatchedByName      = "name"
	MatchedByFirstName = "first_name"
	MatchedByLastName  = "last_name"
	MatchedByStatus    = "status"
	MatchedByDays      = "days"
)

// Result is the outcome of resolving one intent. Client is set for
// KindSingleClient, Clients for the two list kinds.
type Result struct {
	Kind         Kind            `json:"kind"`
	Client       *models.Client  `json:"client,omitempty"`
	Clients      []models.Client `json:"clients,omitempty"`
	MatchedBy    string          `json:"matchedBy,omitempty"`
	MatchedValue string          `json:"matchedValue,omitempty"`
	PhoneHint    bool            `json:"phoneHint"`
}

// Found reports whether the result carries records.
func (r *Result) Found() bool {
	return r != nil && r.Kind != KindNoMatch
}

// Records returns the matched records in order.
func (r *Result) Records() []models.Client {
	if r == nil {
		return nil
	}
	if r.Client != nil {
		return []models.Client{*r.Client}
	}
	return r.Clients
}

func noMatch(phoneHint bool) *Result {
	return &Result{Kind: KindNoMatch, PhoneHint: phoneHint}
}
