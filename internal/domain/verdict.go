package domain

import "time"

// Status is the terminal state of one pipeline run.
type Status string

const (
	StatusInvalid     Status = "invalid"
	StatusValid       Status = "valid"
	StatusUnknown     Status = "unknown"
	StatusCheckFailed Status = "check_failed"
)

// SubStatusBadFormat refines StatusInvalid when the address shape is wrong.
const SubStatusBadFormat = "bad_format"

// Step names, in pipeline order.
const (
	StepFormatCheck     = "format_check"
	StepTypoCorrection  = "typo_correction"
	StepKnownValidCheck = "known_valid_check"
	StepDomainCheck     = "domain_check"
)

// Source tags recorded alongside persisted entries.
const (
	SourceValidationService = "validation-service"
	SourceAPI               = "api"
	SourceAPIBatch          = "api-batch"
	SourceHubSpotWebhook    = "hubspot-webhook"
	SourceCLI               = "cli"
)

// Step records the outcome of one executed pipeline stage. The correction
// fields are only populated for the typo_correction step.
type Step struct {
	Name      string `json:"step"`
	Passed    bool   `json:"passed"`
	Applied   *bool  `json:"applied,omitempty"`
	Original  string `json:"original,omitempty"`
	Corrected string `json:"corrected,omitempty"`
}

// Verdict is the structured outcome of running one address through the
// validation pipeline.
type Verdict struct {
	OriginalAddress string    `json:"originalEmail"`
	CurrentAddress  string    `json:"currentEmail"`
	FormatValid     bool      `json:"formatValid"`
	WasCorrected    bool      `json:"wasCorrected"`
	IsKnownValid    bool      `json:"isKnownValid"`
	DomainValid     bool      `json:"domainValid"`
	Status          Status    `json:"status"`
	SubStatus       *string   `json:"subStatus"`
	RecheckNeeded   bool      `json:"recheckNeeded"`
	Steps           []Step    `json:"validationSteps"`
	Error           string    `json:"error,omitempty"`
	CheckedAt       time.Time `json:"checkedAt"`
}

// KnownValidEntry records an address previously confirmed valid. Email is
// always stored lower-cased.
type KnownValidEntry struct {
	Email       string    `json:"email" db:"email"`
	ValidatedAt time.Time `json:"validated_at" db:"validated_at"`
	Source      string    `json:"source" db:"source"`
}

// ResultLogEntry is one append-only record of a pipeline run.
type ResultLogEntry struct {
	ID             string    `json:"id" db:"id"`
	OriginalEmail  string    `json:"original_email" db:"original_email"`
	CorrectedEmail string    `json:"corrected_email" db:"corrected_email"`
	Status         Status    `json:"status" db:"status"`
	ValidatedAt    time.Time `json:"validated_at" db:"validated_at"`
	RecheckNeeded  bool      `json:"recheck_needed" db:"recheck_needed"`
	Source         string    `json:"source" db:"source"`
}
