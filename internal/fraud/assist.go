package fraud

import "context"

// AssistResult is the opaque model contribution: a 0-100 score plus
// free-text insight.
type AssistResult struct {
	Contribution float64 `json:"contribution"`
	Insight      string  `json:"insight,omitempty"`
}

// Assist is the pluggable scoring collaborator. Callers treat it as
// possibly unavailable: any error or missed sub-deadline degrades to a
// conservative default contribution, never to zero, so an assist outage can
// not silently lower risk.
type Assist interface {
	Score(ctx context.Context, payment PaymentContext) (AssistResult, error)
}

// AssistFunc adapts a function to the Assist interface.
type AssistFunc func(ctx context.Context, payment PaymentContext) (AssistResult, error)

func (f AssistFunc) Score(ctx context.Context, payment PaymentContext) (AssistResult, error) {
	return f(ctx, payment)
}
