package definitions

import (
	"time"

	"github.com/samber/lo"
)

type Severity string

const (
	SeverityBlocking Severity = "blocking"
	SeverityAdvisory Severity = "advisory"
)

type Outcome string

const (
	OutcomePassed  Outcome = "passed"
	OutcomeFailed  Outcome = "failed"
	OutcomeSkipped Outcome = "skipped"
)

// ConnectionAttempt records one strategy tried by the resolver.
type ConnectionAttempt struct {
	Strategy  string         `json:"strategy"`
	Transport ConnectionType `json:"transport"`
	Target    string         `json:"target"`
	Succeeded bool           `json:"succeeded"`
	ErrorKind ErrorKind      `json:"error_kind,omitempty"`
	Error     string         `json:"error,omitempty"`
	Duration  time.Duration  `json:"duration"`
}

// StepResult records one verification step.
type StepResult struct {
	Name      string        `json:"name"`
	Severity  Severity      `json:"severity"`
	Outcome   Outcome       `json:"outcome"`
	Detail    string        `json:"detail,omitempty"`
	ErrorKind ErrorKind     `json:"error_kind,omitempty"`
	Error     string        `json:"error,omitempty"`
	Duration  time.Duration `json:"duration"`
}

func (r StepResult) Passed() bool {
	return r.Outcome == OutcomePassed
}

type VerificationReport struct {
	Steps          []StepResult `json:"steps"`
	OverallSuccess bool         `json:"overall_success"`
}

// Failed returns the steps that ran and failed, in order.
func (v VerificationReport) Failed() []StepResult {
	return lo.Filter(v.Steps, func(s StepResult, _ int) bool {
		return s.Outcome == OutcomeFailed
	})
}

func (v VerificationReport) Step(name string) (StepResult, bool) {
	return lo.Find(v.Steps, func(s StepResult) bool {
		return s.Name == name
	})
}

type PackageCheck struct {
	Package   string `json:"package"`
	Installed bool   `json:"installed"`
	Error     string `json:"error,omitempty"`
}

// Report is the outcome of a full readiness check against one device.
type Report struct {
	ID             string              `json:"id"`
	Address        Address             `json:"address"`
	StartedAt      time.Time           `json:"started_at"`
	Duration       time.Duration       `json:"duration"`
	Attempts       []ConnectionAttempt `json:"attempts"`
	ConnectedVia   string              `json:"connected_via,omitempty"`
	Properties     *Properties         `json:"properties,omitempty"`
	Verification   *VerificationReport `json:"verification,omitempty"`
	PackageCheck   *PackageCheck       `json:"package_check,omitempty"`
	OverallSuccess bool                `json:"overall_success"`
	ErrorKind      ErrorKind           `json:"error_kind,omitempty"`
}
