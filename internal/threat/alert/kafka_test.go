package alert

import (
	"testing"

	"github.com/stretchr/testify/require"

	"sentra/internal/threat"
	id "sentra/pkg/domain"
)

func TestPublishNeverBlocks(t *testing.T) {
	drops := 0
	p, err := NewKafkaPublisher([]string{"localhost:9092"}, "threat-alerts", 2, WithDropHook(func() { drops++ }))
	require.NoError(t, err)

	alert := threat.Alert{ThreatID: id.NewThreatID(), Type: threat.TypeBruteForce, SourceIP: "203.0.113.9"}
	// Without a running drain loop the queue fills; overflow drops instead of
	// stalling the detector.
	p.Publish(alert)
	p.Publish(alert)
	p.Publish(alert)
	p.Publish(alert)

	require.Equal(t, 2, drops)
}
