// Package augment turns a resolution into instruction text appended to the
// assistant's system prompt.
package augment

import (
	"encoding/json"
	"fmt"
	"strings"

	"dibs-assistant/internal/common/logger"
	"dibs-assistant/internal/crm/intent"
	"dibs-assistant/internal/crm/resolver"
)

// Persona is the fixed preamble every instruction context starts with.
const Persona = "You are Dibs AI, an intelligent real estate assistant. You help users find, analyze, " +
	"and make smarter property decisions with AI-powered insights. Be helpful, accurate, and provide " +
	"detailed information about real estate topics including property values, market trends, investment " +
	"strategies, mortgages, and more. You also have access to the agency's CRM client records."

const DefaultMaxRecords = 5

const foundGuidance = `When answering:
- Use the CRM data above as the source of truth for this client information.
- Reference concrete fields where relevant: contact details (email, phone), property type preferences, budget range, status, follow-up dates and notes.
- Make clear that the information comes from the CRM records.
- Do not invent fields that are null or missing; say they are not on file.`

const phoneGuidance = `The user is asking about a phone number. Put the client's phone number prominently at the start of your answer. If a matched record has no phone number on file, say so explicitly.`

const recoveryGuidance = `Respond as follows:
- Acknowledge that you searched the CRM and did not find a matching record.
- Offer to add this person as a new client, or to refine the search.
- Ask for more specific identifying details such as the full name, email address or client ID.
- Suggest checking the spelling or trying an alternate name or term.`

const fallbackGuidance = `No CRM records were retrieved for this message. If the user asks about specific clients, properties or data you do not have, say that you do not have that information instead of making it up.`

type Augmenter struct {
	maxRecords int
	logger     logger.Logger
}

// New caps serialized record lists at maxRecords; values below 1 use the
// default of five.
func New(maxRecords int, log logger.Logger) *Augmenter {
	if maxRecords < 1 {
		maxRecords = DefaultMaxRecords
	}
	return &Augmenter{maxRecords: maxRecords, logger: log}
}

// Augment appends the block for result to base. message is the raw user text;
// it is only used to name the person in the recovery script.
func (a *Augmenter) Augment(base string, result *resolver.Result, hadCandidatePattern bool, message string) string {
	var b strings.Builder
	b.WriteString(base)
	b.WriteString("\n\n")

	switch {
	case result.Found():
		a.writeFound(&b, result)
	case hadCandidatePattern:
		a.writeRecovery(&b, intent.CandidateName(message))
	default:
		b.WriteString(fallbackGuidance)
	}
	return b.String()
}

func (a *Augmenter) writeFound(b *strings.Builder, result *resolver.Result) {
	records := result.Records()

	fmt.Fprintf(b, "## CRM data\nMatch type: %s\nMatched by: %s\nSearched value: %q\n\n",
		matchLabel(result.Kind), result.MatchedBy, result.MatchedValue)

	var payload interface{}
	shown := len(records)
	if result.Kind == resolver.KindSingleClient {
		payload = result.Client
	} else {
		if shown > a.maxRecords {
			shown = a.maxRecords
		}
		payload = records[:shown]
	}

	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		a.logger.Error("failed to serialize client records", map[string]interface{}{"error": err.Error()})
		data = []byte("[]")
	}
	b.WriteString("```json\n")
	b.Write(data)
	b.WriteString("\n```\n")
	if shown < len(records) {
		fmt.Fprintf(b, "(Showing %d of %d results)\n", shown, len(records))
	}

	b.WriteString("\n")
	b.WriteString(foundGuidance)
	if result.PhoneHint {
		b.WriteString("\n\n")
		b.WriteString(phoneGuidance)
	}
}

func (a *Augmenter) writeRecovery(b *strings.Builder, name string) {
	if name != "" {
		fmt.Fprintf(b, "## CRM search\nI searched the CRM for %q but found no matching client records.\n", name)
		fmt.Fprintf(b, "Mention %s by name when you explain that no record was found.\n\n", name)
	} else {
		b.WriteString("## CRM search\nI searched the CRM for the requested client but found no matching records.\n\n")
	}
	b.WriteString(recoveryGuidance)
}

func matchLabel(k resolver.Kind) string {
	switch k {
	case resolver.KindSingleClient:
		return "single client"
	case resolver.KindClientList:
		return "client list"
	case resolver.KindFollowUpList:
		return "upcoming follow-ups"
	}
	return string(k)
}
