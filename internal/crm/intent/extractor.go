// internal/crm/intent/extractor.go
package intent

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"dibs-assistant/internal/common/logger"
	"dibs-assistant/internal/common/metrics"
)

type rule struct {
	name  string
	re    *regexp.Regexp
	build func(groups []string, emails []string) (QueryIntent, bool)
}

// Extractor holds the ordered rule table. It keeps no per-call state, so a
// single instance is safe for concurrent use and Extract is a pure function
// of its input.
type Extractor struct {
	rules  []rule
	logger logger.Logger
}

func NewExtractor(log logger.Logger) *Extractor {
	return &Extractor{rules: defaultRules(), logger: log}
}

// Extract returns the first intent any rule produces, or nil.
func (e *Extractor) Extract(message string) *QueryIntent {
	text, emails := isolateEmails(message)

	for _, r := range e.rules {
		var groups []string
		if r.re != nil {
			groups = r.re.FindStringSubmatch(text)
			if groups == nil {
				continue
			}
		}
		qi, ok := r.build(groups, emails)
		if !ok {
			e.logger.Debug("rule matched but capture was rejected", map[string]interface{}{"rule": r.name})
			continue
		}
		qi.Rule = r.name
		qi.PhoneHint = hasPhoneHint(text)

		e.logger.Debug("intent extracted", map[string]interface{}{
			"rule":      r.name,
			"kind":      string(qi.Kind),
			"value":     qi.Value(),
			"phoneHint": qi.PhoneHint,
		})
		metrics.CRMIntents.WithLabelValues(string(qi.Kind)).Inc()
		return &qi
	}

	metrics.CRMIntents.WithLabelValues("none").Inc()
	return nil
}

// LooksLikeLookup is a broader test than the rule table: it reports whether
// the message reads like a request for CRM data at all.
func LooksLikeLookup(message string) bool {
	return reLookupLike.MatchString(message)
}

// CandidateName makes a best effort to pull a person's name out of a message
// that no rule resolved, so a miss can be acknowledged by name.
func CandidateName(message string) string {
	text, _ := isolateEmails(message)
	for _, re := range []*regexp.Regexp{reNameExplicit, reNameTellMe, reNameDetails, reNameFind, reNameDoWeHave, rePropertyOf, rePhoneOf, reAboutName} {
		if m := re.FindStringSubmatch(text); m != nil {
			if name, ok := cleanName(m[1]); ok {
				return name
			}
		}
	}
	for _, m := range reCapitalized.FindAllStringSubmatch(text, -1) {
		if name, ok := cleanName(m[1]); ok {
			return name
		}
	}
	return ""
}

func defaultRules() []rule {
	return []rule{
		{name: "explicit_id", re: reExplicitID, build: buildID},
		{name: "isolated_email", build: buildIsolatedEmail},
		{name: "email_phrase", re: reEmailPhrase, build: buildEmailPhrase},
		{name: "name_explicit", re: reNameExplicit, build: buildName(KindByName)},
		{name: "name_tell_me_about", re: reNameTellMe, build: buildName(KindByName)},
		{name: "name_possessive_details", re: reNameDetails, build: buildName(KindByName)},
		{name: "name_find", re: reNameFind, build: buildName(KindByName)},
		{name: "name_do_we_have", re: reNameDoWeHave, build: buildName(KindByName)},
		{name: "property_owner", re: rePropertyOf, build: buildName(KindByPropertyOwnerName)},
		{name: "status_with", re: reStatusWith, build: buildStatus},
		{name: "status_list", re: reStatusList, build: buildStatus},
		{name: "follow_up_in_days", re: reFollowUpIn, build: buildDays},
		{name: "follow_up_next_days", re: reFollowUpNext, build: buildDays},
		{name: "days_then_follow_up", re: reDaysFollowUp, build: buildDays},
	}
}

func buildID(g []string, _ []string) (QueryIntent, bool) {
	id, err := strconv.ParseInt(g[1], 10, 64)
	if err != nil {
		return QueryIntent{}, false
	}
	return QueryIntent{Kind: KindByID, ID: id}, true
}

func buildIsolatedEmail(_ []string, emails []string) (QueryIntent, bool) {
	if len(emails) == 0 {
		return QueryIntent{}, false
	}
	return QueryIntent{Kind: KindByEmail, Email: strings.ToLower(emails[0])}, true
}

func buildEmailPhrase(g []string, _ []string) (QueryIntent, bool) {
	email := strings.ToLower(strings.Trim(g[1], `."'`))
	if email == "" || emailHolder.MatchString(email) {
		return QueryIntent{}, false
	}
	return QueryIntent{Kind: KindByEmail, Email: email}, true
}

func buildName(kind Kind) func([]string, []string) (QueryIntent, bool) {
	return func(g []string, _ []string) (QueryIntent, bool) {
		name, ok := cleanName(g[1])
		if !ok {
			return QueryIntent{}, false
		}
		return QueryIntent{Kind: kind, Name: name}, true
	}
}

var statusRejects = map[string]bool{
	"all": true, "my": true, "our": true, "the": true, "of": true, "me": true,
	"any": true, "your": true, "these": true, "those": true, "some": true,
}

func buildStatus(g []string, _ []string) (QueryIntent, bool) {
	status := strings.ToLower(g[1])
	if statusRejects[status] {
		return QueryIntent{}, false
	}
	return QueryIntent{Kind: KindByStatus, Status: status}, true
}

func buildDays(g []string, _ []string) (QueryIntent, bool) {
	days, err := strconv.Atoi(g[1])
	if err != nil {
		return QueryIntent{}, false
	}
	if days > MaxFollowUpDays {
		days = MaxFollowUpDays
	}
	return QueryIntent{Kind: KindByFollowUpWindow, Days: days}, true
}

// hasPhoneHint also fires on any bare "phone" or "number" anywhere in the
// text. That over-matches unrelated messages and is kept until the phrasings
// that must carry the hint are settled.
func hasPhoneHint(text string) bool {
	return rePhoneOf.MatchString(text) || rePhoneWord.MatchString(text)
}

// isolateEmails swaps every email for an opaque placeholder so name rules
// never see an address.
func isolateEmails(message string) (string, []string) {
	var emails []string
	text := emailToken.ReplaceAllStringFunc(message, func(m string) string {
		emails = append(emails, m)
		return fmt.Sprintf("__email_%d__", len(emails)-1)
	})
	return text, emails
}

var (
	rejectFirst = map[string]bool{
		"all": true, "any": true, "every": true, "each": true, "everyone": true, "everybody": true,
	}
	leadingFiller = map[string]bool{
		"me": true, "us": true, "is": true, "are": true, "was": true, "the": true, "a": true, "an": true,
		"about": true, "for": true, "on": true, "of": true, "what": true, "whats": true,
		"show": true, "get": true, "give": true, "find": true, "tell": true, "check": true,
		"see": true, "do": true, "we": true, "have": true, "our": true, "my": true, "to": true,
		"client": true, "customer": true, "contact": true, "lead": true, "named": true, "called": true,
		"anything": true, "something": true, "info": true, "data": true,
		"mr": true, "mrs": true, "ms": true, "miss": true, "dr": true,
	}
	trailingFiller = map[string]bool{"please": true, "now": true, "today": true, "again": true}
	collective     = map[string]bool{
		"clients": true, "customers": true, "contacts": true, "leads": true, "people": true,
		"records": true, "record": true, "follow": true, "followups": true, "follow-ups": true,
		"ups": true, "status": true, "days": true, "crm": true, "database": true, "someone": true,
		"anyone": true, "everyone": true, "information": true, "details": true,
	}
	// A capture holding any of these is a property search, not a person.
	propertyNouns = map[string]bool{
		"house": true, "houses": true, "home": true, "homes": true, "condo": true, "condos": true,
		"apartment": true, "apartments": true, "property": true, "properties": true,
		"listing": true, "listings": true,
	}
	// Matched case-sensitively so capitalised surnames still pass.
	locationWords = map[string]bool{"in": true, "near": true, "at": true, "around": true}
)

const maxNameTokens = 4

// cleanName normalises a raw capture into a plausible person name.
func cleanName(raw string) (string, bool) {
	if emailHolder.MatchString(raw) {
		return "", false
	}
	tokens := strings.Fields(raw)
	for i, tok := range tokens {
		tokens[i] = strings.Trim(tok, `.,!?;:"()`)
	}
	if len(tokens) > 0 && rejectFirst[strings.ToLower(tokens[0])] {
		return "", false
	}

	for len(tokens) > 0 && (tokens[0] == "" || leadingFiller[strings.ToLower(tokens[0])]) {
		tokens = tokens[1:]
	}
	for len(tokens) > 0 && (tokens[len(tokens)-1] == "" || trailingFiller[strings.ToLower(tokens[len(tokens)-1])]) {
		tokens = tokens[:len(tokens)-1]
	}
	if len(tokens) == 0 || len(tokens) > maxNameTokens {
		return "", false
	}

	for i, tok := range tokens {
		tok = strings.TrimSuffix(strings.TrimSuffix(tok, "'s"), "’s")
		lower := strings.ToLower(tok)
		if collective[lower] || propertyNouns[lower] || locationWords[tok] || !isNameToken(tok) {
			return "", false
		}
		tokens[i] = tok
	}
	return strings.Join(tokens, " "), true
}

func isNameToken(tok string) bool {
	if tok == "" {
		return false
	}
	hasLetter := false
	for _, r := range tok {
		switch {
		case unicode.IsLetter(r):
			hasLetter = true
		case r == '-' || r == '\'' || r == '’' || r == '.':
		default:
			return false
		}
	}
	return hasLetter
}
