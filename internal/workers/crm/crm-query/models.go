package crmquery

import (
	"dibs-assistant/internal/crm/intent"
	"dibs-assistant/internal/crm/resolver"
)

type Input struct {
	Question string `json:"question"`
}

// Output is written back as process variables. Intent is null when the
// question did not look like any known lookup.
type Output struct {
	Intent              *intent.QueryIntent `json:"intent"`
	Resolution          *resolver.Result    `json:"resolution"`
	ContextBlock        string              `json:"contextBlock"`
	HadCandidatePattern bool                `json:"hadCandidatePattern"`
}
