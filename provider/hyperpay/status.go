package hyperpay

import "regexp"

// Family is a group of result codes with the same outcome
type Family string

const (
	FamilySuccess       Family = "SUCCESS"
	FamilySuccessReview Family = "SUCCESS_REVIEW"
	FamilyPending       Family = "PENDING"
	FamilyWaiting       Family = "WAITING"
	FamilyRejected      Family = "REJECTED"
	FamilyUnknown       Family = "UNKNOWN"
)

// InvalidStatusMessage is stored for codes outside every family
const InvalidStatusMessage = "HyperPay: Invalid payment status."

type familyPatterns struct {
	family   Family
	patterns []*regexp.Regexp
}

func compile(exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(exprs))
	for i, e := range exprs {
		out[i] = regexp.MustCompile(e)
	}
	return out
}

// Order matters: 000.200.000 is listed for review and would otherwise fall
// into the pending range.
var families = []familyPatterns{
	{FamilySuccess, compile(
		`^(000\.000\.|000\.100\.1|000\.[36])`,
		`^(000\.400\.[1][12]0)`,
	)},
	{FamilySuccessReview, compile(
		`^(000\.400\.0[^3]|000\.400\.100)`,
		`^000\.200\.000$`,
	)},
	{FamilyPending, compile(
		`^(000\.200)`,
	)},
	{FamilyWaiting, compile(
		`^(800\.400\.5|100\.400\.500)`,
	)},
	{FamilyRejected, compile(
		// 3DS and intercard risk
		`^(000\.400\.[1][0-9][1-9]|000\.400\.2)`,
		`^(100\.39[765])`,
		// external bank and risk system
		`^(800\.[17]00|800\.800\.[123])`,
		`^(900\.[1234]00|000\.400\.030)`,
		`^(800\.[56]|600\.1|800\.800\.[84])`,
		`^(100\.400|100\.38|100\.370\.100|100\.370\.11)`,
		`^(800\.400\.1)`,
		`^(800\.400\.2|100\.390)`,
		`^(800\.[32])`,
		`^(800\.1[123456]0)`,
		// configuration and registration
		`^(600\.[23]|500\.[12]|800\.121)`,
		`^(100\.[13]50)`,
		`^(100\.250|100\.360)`,
		`^(700\.[1345][05]0)`,
		// format and reference validation
		`^(200\.[123]|100\.[53][07]|800\.900|100\.[69]00\.500)`,
		`^(100\.800)`,
		`^(100\.700|100\.900\.[123467890])`,
		`^(100\.100)`,
		`^(100\.2[01])`,
		`^(100\.55)`,
		`^(100\.380\.[23]|100\.380\.101)`,
		`^(000\.100\.2)`,
	)},
}

// Classify maps a result code to its family, first match wins
func Classify(code string) Family {
	if code == "" {
		return FamilyUnknown
	}
	for _, f := range families {
		for _, re := range f.patterns {
			if re.MatchString(code) {
				return f.family
			}
		}
	}
	return FamilyUnknown
}

// Outcome is the transition a family implies
type Outcome struct {
	Family  Family
	State   State
	Message string
}

var defaultMessages = map[Family]string{
	FamilySuccess:       "Authorised",
	FamilySuccessReview: "Review",
	FamilyPending:       "Pending",
	FamilyWaiting:       "Waiting",
	FamilyRejected:      "Rejected",
}

// StateFor returns the transaction state of a family. Pending and waiting
// codes close the transaction as an error.
func StateFor(f Family) State {
	switch f {
	case FamilySuccess:
		return StateDone
	case FamilySuccessReview:
		return StatePendingReview
	default:
		return StateError
	}
}

// Resolve classifies a result into the state and message to store. The
// provider's description is kept when present.
func Resolve(r Result) Outcome {
	f := Classify(r.Code)
	if f == FamilyUnknown {
		return Outcome{Family: f, State: StateError, Message: InvalidStatusMessage}
	}
	msg := r.Description
	if msg == "" {
		msg = defaultMessages[f]
	}
	return Outcome{Family: f, State: StateFor(f), Message: msg}
}
