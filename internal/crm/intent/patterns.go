// internal/crm/intent/patterns.go
package intent

import "regexp"

// term ends a lazy capture: a possessive, a trailing "in the CRM", sentence
// punctuation, a joining word, an isolated email, or the end of the text.
const term = `(?:['’]s\b|\s+in\s+(?:the\s+|our\s+)?(?:crm|database|system|records?)\b|[?.!,;:]|\s+(?:and|with|who|that|from|please)\b|\s*__email_\d+__|$)`

const entity = `(?:client|customer|contact)`

var (
	emailToken     = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)
	emailHolder    = regexp.MustCompile(`__email_\d+__`)
	reExplicitID   = regexp.MustCompile(`(?i)\b` + entity + `s?\s+(?:with\s+(?:the\s+|an\s+)?)?(?:id|#)\s*(?:number\s*)?[:#=]?\s*(\d+)\b`)
	reEmailPhrase  = regexp.MustCompile(`(?i)\b` + entity + `s?\s+with\s+(?:the\s+|an\s+)?e-?mail(?:\s+address)?\s*(?:of\s+|[:=]\s*)?([^\s,;?!]+)`)
	reNameExplicit = regexp.MustCompile(`(?i)\b` + entity + `s?\s+(?:named|called)\s+(.+?)` + term)
	reNameTellMe   = regexp.MustCompile(`(?i)\btell\s+me\s+(?:more\s+)?about\s+(.+?)['’]s\b`)
	reNameDetails  = regexp.MustCompile(`(?i)(?:^|[\s,;:"(])([a-z][a-z\-]*(?:\s+[a-z][a-z\-]*)?)['’]s\s+(?:information|info|details|contact(?:\s+info(?:rmation)?)?|profile|record|data|phone(?:\s+number)?|number|email|budget|status|notes|preferences)\b`)
	reNameFind     = regexp.MustCompile(`(?i)\b(?:find|search(?:\s+for)?|look\s*up|locate|pull\s+up)\s+(?:me\s+)?(?:the\s+)?(?:` + entity + `s?\s+)?(?:named\s+|called\s+)?(.+?)` + term)
	reNameDoWeHave = regexp.MustCompile(`(?i)\bdo\s+we\s+have\s+(?:a\s+|an\s+|any\s+)?(?:` + entity + `s?\s+)?(?:named\s+|called\s+)?(.+?)` + term)
	rePropertyOf   = regexp.MustCompile(`(?i)\babout\s+(.+?)['’]s\s+(?:property|properties|house|home|listing|condo|apartment)\b`)
	reStatusWith   = regexp.MustCompile(`(?i)\b` + entity + `s?\s+(?:with|in|having)\s+(?:a\s+|the\s+)?status\s+(?:of\s+)?["']?([a-z]+)`)
	reStatusList   = regexp.MustCompile(`(?i)\b(?:show|find|list|get|display|give)\s+(?:me\s+)?(?:all\s+)?(?:of\s+)?(?:the\s+|my\s+|our\s+)?([a-z]+)\s+(?:clients|customers|contacts)\b`)
	reFollowUpIn   = regexp.MustCompile(`(?i)\bfollow[\s\-]?ups?\b.*?\b(?:in|for|within|over)\s+(?:the\s+)?(?:next\s+)?(\d+)\s+days?\b`)
	reFollowUpNext = regexp.MustCompile(`(?i)\bfollow[\s\-]?ups?\b.*?\bnext\s+(\d+)\s+days?\b`)
	reDaysFollowUp = regexp.MustCompile(`(?i)\b(?:in|for|within|over)\s+(?:the\s+)?(?:next\s+)?(\d+)\s+days?\b.*?\bfollow[\s\-]?ups?\b`)
	rePhoneOf      = regexp.MustCompile(`(?i)\bphone(?:\s+number)?\s+(?:for|of)\s+(.+?)` + term)
	rePhoneWord    = regexp.MustCompile(`(?i)\b(?:phone|number)\b`)
	reLookupLike   = regexp.MustCompile(`(?i)\b(?:clients?|customers?|contacts?|leads?|crm|records?|database|find|search|look\s*up|lookup|who\s+is|tell\s+me\s+about|info(?:rmation)?\s+(?:on|about|for)|details|phone|e-?mail|follow[\s\-]?ups?|budget)\b`)
	reCapitalized  = regexp.MustCompile(`\b([A-Z][a-z]+(?:[\s\-][A-Z][a-z]+)+)\b`)
	reAboutName    = regexp.MustCompile(`(?i)\b(?:about|for|named|called)\s+(.+?)` + term)
)
