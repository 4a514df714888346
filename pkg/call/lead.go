package call

import (
	"regexp"
	"strings"
)

// Decision classifies a finished call.
type Decision string

const (
	DecisionFinal     Decision = "FINAL"
	DecisionAbandoned Decision = "ABANDONED"
)

// DecisionReason explains an ABANDONED classification.
type DecisionReason string

const (
	ReasonMissingName     DecisionReason = "missing_name"
	ReasonMissingSubject  DecisionReason = "missing_subject"
	ReasonMissingCallback DecisionReason = "missing_callback_number"
)

// SubjectWordThreshold is the minimum word count for a transcript line to
// qualify as the lead's subject, unless it matches a short-intent pattern.
const SubjectWordThreshold = 3

var (
	// namePattern matches self-introductions and captures up to two
	// following name words.
	namePattern = regexp.MustCompile(`(?i)\b(?:my name is|my name's|this is|i am|i'm)\s+([A-Za-z][A-Za-z'\-]*(?:\s+[A-Za-z][A-Za-z'\-]*)?)`)

	// shortIntentPattern whitelists terse utterances that still carry a
	// complete request.
	shortIntentPattern = regexp.MustCompile(`(?i)\b(?:call (?:me |us )?back|callback|return my call|ring me back)\b`)

	// digitRunPattern finds a spoken or typed phone number: at least ten
	// digits allowing separators.
	digitRunPattern = regexp.MustCompile(`\+?\d[\d\s().-]{8,}\d`)

	nonDigit = regexp.MustCompile(`\D`)
)

// LeadRecord is the captured lead summary. Mutated only by Extractor as
// transcripts arrive; read-only after finalization.
type LeadRecord struct {
	FullName         string
	Subject          string
	CallbackToNumber string
	Reason           DecisionReason
}

// Extractor applies the deterministic field-extraction rules to caller
// transcript lines. First match wins for every field.
type Extractor struct {
	lead           LeadRecord
	callerWithheld bool
	defaultCountry string
}

// NewExtractor creates an extractor. defaultCountry (e.g. "+1") is prefixed
// when normalizing bare local numbers.
func NewExtractor(callerWithheld bool, defaultCountry string) *Extractor {
	return &Extractor{
		callerWithheld: callerWithheld,
		defaultCountry: defaultCountry,
	}
}

// Lead returns the record captured so far.
func (x *Extractor) Lead() *LeadRecord {
	return &x.lead
}

// Apply runs the extraction rules against one completed caller utterance.
func (x *Extractor) Apply(text string) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return
	}

	nameMatch := namePattern.FindStringSubmatch(trimmed)
	if nameMatch != nil && x.lead.FullName == "" {
		x.lead.FullName = titleCase(nameMatch[1])
	}

	// A spoken number only counts as the callback number when the caller
	// id is withheld; otherwise the caller's own number wins.
	if x.callerWithheld && x.lead.CallbackToNumber == "" {
		if run := digitRunPattern.FindString(trimmed); run != "" {
			if normalized := NormalizeNumber(run, x.defaultCountry); normalized != "" {
				x.lead.CallbackToNumber = normalized
			}
		}
	}

	if x.lead.Subject == "" {
		x.applySubject(trimmed, nameMatch)
	}
}

// applySubject decides whether this utterance is the lead's request. A
// whitelisted short intent always qualifies; otherwise the line must carry
// enough words beyond any name introduction and must not be a bare number.
func (x *Extractor) applySubject(text string, nameMatch []string) {
	if shortIntentPattern.MatchString(text) {
		x.lead.Subject = text
		return
	}

	candidate := text
	if nameMatch != nil {
		candidate = strings.Replace(candidate, nameMatch[0], "", 1)
	}
	candidate = digitRunPattern.ReplaceAllString(candidate, "")
	candidate = strings.TrimSpace(candidate)

	if wordCount(candidate) >= SubjectWordThreshold {
		x.lead.Subject = text
	}
}

// Decide evaluates the lead-completeness predicate and sets the decision
// reason. callerNumber is the caller's own identified number; it supplies
// the callback number when the caller id was not withheld.
func Decide(lead *LeadRecord, callerNumber string, callerWithheld bool, defaultCountry string) Decision {
	if !callerWithheld && callerNumber != "" && lead.CallbackToNumber == "" {
		lead.CallbackToNumber = NormalizeNumber(callerNumber, defaultCountry)
	}

	switch {
	case lead.FullName == "":
		lead.Reason = ReasonMissingName
		return DecisionAbandoned
	case !subjectComplete(lead.Subject):
		lead.Reason = ReasonMissingSubject
		return DecisionAbandoned
	case lead.CallbackToNumber == "":
		lead.Reason = ReasonMissingCallback
		return DecisionAbandoned
	}
	lead.Reason = ""
	return DecisionFinal
}

// subjectComplete is the subject leg of the predicate: enough words, or a
// whitelisted short intent.
func subjectComplete(subject string) bool {
	if subject == "" {
		return false
	}
	return wordCount(subject) >= SubjectWordThreshold || shortIntentPattern.MatchString(subject)
}

// NormalizeNumber reduces a spoken or formatted number to international
// format. Bare 10-digit local numbers get the default country code; 11-digit
// numbers starting with the country digit are treated as national format.
// Anything else that is not already international is returned digits-only
// with a plus, best effort.
func NormalizeNumber(raw, defaultCountry string) string {
	hadPlus := strings.HasPrefix(strings.TrimSpace(raw), "+")
	digits := nonDigit.ReplaceAllString(raw, "")
	if len(digits) < 10 {
		return ""
	}

	countryDigits := strings.TrimPrefix(defaultCountry, "+")

	switch {
	case hadPlus:
		return "+" + digits
	case len(digits) == 10:
		return defaultCountry + digits
	case countryDigits != "" && strings.HasPrefix(digits, countryDigits) &&
		len(digits) == 10+len(countryDigits):
		return "+" + digits
	default:
		return "+" + digits
	}
}

func wordCount(s string) int {
	return len(strings.Fields(s))
}

func titleCase(name string) string {
	words := strings.Fields(strings.ToLower(name))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
