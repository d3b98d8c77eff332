package rpa

import "time"

// Field codes the remote system uses in reader search payloads.
const (
	FieldFirstName   = "FIRST_NAME"
	FieldLastName    = "LAST_NAME"
	FieldCardBarcode = "LIBRARY_CARD_BARCODE"
	FieldEmail       = "EMAIL"
)

// ReaderField is one displayed attribute of a reader record.
type ReaderField struct {
	Code  string `json:"code"`
	Value string `json:"value"`
}

// ReaderRecord is one result of a reader search. ExternalID is the opaque
// identifier the remote system assigns; it may arrive from the search
// response, from DOM attributes, or be back-filled by probing, and is never
// guessed.
type ReaderRecord struct {
	ExternalID int64          `json:"externalId"`
	Fields     []ReaderField  `json:"fields"`
	Raw        map[string]any `json:"-"`
}

// Field returns the value for a field code, or "" when absent.
func (r ReaderRecord) Field(code string) string {
	for _, f := range r.Fields {
		if f.Code == code {
			return f.Value
		}
	}
	return ""
}

// OperationKind selects the UI action to perform.
type OperationKind string

const (
	OpIssue  OperationKind = "issue"
	OpReturn OperationKind = "return"
)

// ActionRequest describes one issue or return to drive through the UI.
// LoanDays must already be clamped to the configured policy range by the
// caller; ReaderID is carried for records and logging only, since the
// workspace search cannot resolve raw identifiers.
type ActionRequest struct {
	Kind             OperationKind
	ItemBarcode      string
	ReaderID         int64
	ReaderMatchQuery string
	LoanDays         int
}

// Outcome is the classified result of one operation.
type Outcome string

const (
	OutcomeSuccess           Outcome = "success"
	OutcomeFailure           Outcome = "failure"
	OutcomeSecurityRejection Outcome = "security-rejection"
	// OutcomeAmbiguous means neither the network nor the DOM produced an
	// explicit signal. The operation most likely succeeded (the barcode
	// field clearing is a weak positive), but callers should treat it as
	// unconfirmed rather than proven.
	OutcomeAmbiguous Outcome = "ambiguous"
)

// ActionResult is produced exactly once per ActionRequest.
type ActionResult struct {
	OK                bool           `json:"ok"`
	Outcome           Outcome        `json:"outcome"`
	Message           string         `json:"message"`
	Barcode           string         `json:"barcode"`
	ReaderID          int64          `json:"reader_id,omitempty"`
	LoanDays          int            `json:"loan_days,omitempty"`
	SecurityRejection bool           `json:"security_rejection,omitempty"`
	RawResponse       map[string]any `json:"raw_response,omitempty"`
}

// HealthStatus is the best-effort report of the session's state.
type HealthStatus struct {
	OK       bool   `json:"ok"`
	PageOpen bool   `json:"page_open"`
	URL      string `json:"url"`
	LoggedIn bool   `json:"logged_in"`
	Message  string `json:"message"`
}

// ManualLoginStatus reports the result of opening the browser for a human.
type ManualLoginStatus struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
	URL     string `json:"url,omitempty"`
}

// Timeouts and polling intervals. Every wait is bounded; a timeout always
// resolves to a reported error, never a silent hang.
const (
	navTimeout           = 30 * time.Second
	strategyProbeTimeout = 1500 * time.Millisecond
	quickProbeTimeout    = 300 * time.Millisecond
	shortProbeTimeout    = 500 * time.Millisecond
	controlWaitTimeout   = 10 * time.Second
	markerWaitTimeout    = 5 * time.Second

	loginWaitTimeout    = 30 * time.Second
	loginWaitInterval   = 500 * time.Millisecond
	loginBusyTimeout    = 40 * time.Second
	loginBusyInterval   = time.Second
	searchWaitTimeout   = 5 * time.Second
	searchWaitInterval  = 300 * time.Millisecond
	dropdownAppearTries = 20
	dropdownAppearPause = 250 * time.Millisecond
	matchPollTries      = 10
	matchPollPause      = 500 * time.Millisecond
	outcomePollTries    = 10
	outcomePollPause    = 500 * time.Millisecond

	typeDelay      = 50 * time.Millisecond
	settlePause    = 300 * time.Millisecond
	tabSwitchPause = 500 * time.Millisecond

	// Back-filling identifiers by clicking results is bounded so a broad
	// search cannot stall the desk.
	maxProfileProbes = 5
)

// DefaultMaxResults is the reader search result cap used when the caller
// passes a non-positive limit.
const DefaultMaxResults = 4
