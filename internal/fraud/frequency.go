package fraud

import (
	"sync"
	"time"
)

// frequencyWindow counts submissions per (provider, patient, service) within
// a rolling 24 hour window. Timestamps are pruned on access, so memory stays
// proportional to recent activity.
type frequencyWindow struct {
	mu      sync.Mutex
	window  time.Duration
	history map[string][]time.Time
}

func newFrequencyWindow(window time.Duration) *frequencyWindow {
	return &frequencyWindow{
		window:  window,
		history: make(map[string][]time.Time),
	}
}

func frequencyKey(payment PaymentContext) string {
	return payment.ProviderID + "|" + payment.PatientID + "|" + payment.ServiceCode
}

// observe records the submission and returns how many fall inside the
// window, the new one included.
func (f *frequencyWindow) observe(payment PaymentContext) int {
	key := frequencyKey(payment)
	at := payment.Timestamp
	cutoff := at.Add(-f.window)

	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.history[key][:0]
	for _, ts := range f.history[key] {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	kept = append(kept, at)
	f.history[key] = kept
	return len(kept)
}
