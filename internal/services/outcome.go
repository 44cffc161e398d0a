package services

import "fmt"

// OutcomeKind distinguishes per-item results during batch expansion.
type OutcomeKind string

const (
	OutcomeOK    OutcomeKind = "ok"
	OutcomeSkip  OutcomeKind = "skip"
	OutcomeFatal OutcomeKind = "fatal"
)

// Outcome records what happened to a single candidate. A Skip never aborts a
// batch; a Fatal carries the error that should.
type Outcome struct {
	Kind    OutcomeKind
	Locator string
	Title   string
	Reason  string
	Err     error
}

// Skip builds a skip outcome for the given item.
func Skip(locator, title, reason string) Outcome {
	return Outcome{Kind: OutcomeSkip, Locator: locator, Title: title, Reason: reason}
}

// Fatal builds a fatal outcome wrapping err.
func Fatal(locator, title string, err error) Outcome {
	reason := ""
	if err != nil {
		reason = err.Error()
	}
	return Outcome{Kind: OutcomeFatal, Locator: locator, Title: title, Reason: reason, Err: err}
}

// IsSkip reports whether the outcome is a skip.
func (o Outcome) IsSkip() bool { return o.Kind == OutcomeSkip }

// IsFatal reports whether the outcome is fatal.
func (o Outcome) IsFatal() bool { return o.Kind == OutcomeFatal }

// Subject returns the most descriptive identifier available for log lines.
func (o Outcome) Subject() string {
	if o.Title != "" {
		return o.Title
	}
	return o.Locator
}

func (o Outcome) String() string {
	switch o.Kind {
	case OutcomeSkip:
		return fmt.Sprintf("skip %s: %s", o.Subject(), o.Reason)
	case OutcomeFatal:
		return fmt.Sprintf("fatal %s: %s", o.Subject(), o.Reason)
	default:
		return fmt.Sprintf("ok %s", o.Subject())
	}
}
