// Package intent turns a free-text chat message into at most one CRM
// lookup intent using an ordered table of regular-expression rules.
package intent

import "fmt"

// Kind identifies which lookup an intent asks for.
type Kind string

const (
	KindByID                Kind = "by_id"
	KindByName              Kind = "by_name"
	KindByEmail             Kind = "by_email"
	KindByStatus            Kind = "by_status"
	KindByFollowUpWindow    Kind = "by_follow_up_window"
	KindByPropertyOwnerName Kind = "by_property_owner_name"
)

// MaxFollowUpDays caps a follow-up window at roughly ten years.
const MaxFollowUpDays = 3650

// QueryIntent is the structured interpretation of one message. Only the
// field matching Kind is set.
type QueryIntent struct {
	Kind      Kind   `json:"kind"`
	ID        int64  `json:"id,omitempty"`
	Name      string `json:"name,omitempty"`
	Email     string `json:"email,omitempty"`
	Status    string `json:"status,omitempty"`
	Days      int    `json:"days,omitempty"`
	PhoneHint bool   `json:"phoneHint"`
	// Rule names the extraction rule that produced the intent.
	Rule string `json:"rule"`
}

// Value returns the searched value as text.
func (q *QueryIntent) Value() string {
	switch q.Kind {
	case KindByID:
		return fmt.Sprintf("%d", q.ID)
	case KindByName, KindByPropertyOwnerName:
		return q.Name
	case KindByEmail:
		return q.Email
	case KindByStatus:
		return q.Status
	case KindByFollowUpWindow:
		return fmt.Sprintf("%d", q.Days)
	}
	return ""
}
