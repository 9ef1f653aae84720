package intel

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

// newTestEnricher builds an enricher on the heuristic path: the VirusTotal
// key enables the provider branch without wiring the live AbuseIPDB client.
func newTestEnricher(t *testing.T, withKey bool) *Enricher {
	t.Helper()
	cfg := DefaultConfig()
	cfg.AbuseIPDBKeyEnv = "TEST_ABUSE_IPDB_KEY"
	cfg.VirusTotalKeyEnv = "TEST_VIRUSTOTAL_KEY"
	if withKey {
		t.Setenv(cfg.VirusTotalKeyEnv, "test-key")
	}
	return NewEnricher(cfg, zap.NewNop())
}

func TestCheckIPReputationMockWithoutKeys(t *testing.T) {
	e := newTestEnricher(t, false)
	assert.False(t, e.Enabled())

	rec := e.CheckIPReputation(context.Background(), "203.0.113.5")
	assert.Equal(t, "203.0.113.5", rec.IP)
	assert.Equal(t, SourceMock, rec.Source)
	assert.False(t, rec.IsMalicious)
	assert.Zero(t, rec.AbuseScore)
	assert.Equal(t, "Unknown", rec.Country)
}

func TestCheckIPReputationHeuristicFlagsDocumentationRange(t *testing.T) {
	e := newTestEnricher(t, true)
	assert.True(t, e.Enabled())

	rec := e.CheckIPReputation(context.Background(), "203.0.113.5")
	assert.Equal(t, SourceHeuristic, rec.Source)
	assert.True(t, rec.IsMalicious)
	assert.Equal(t, 75, rec.AbuseScore)
	assert.Equal(t, 5, rec.Reports)
}

func TestCheckIPReputationHeuristicCleanAddress(t *testing.T) {
	e := newTestEnricher(t, true)

	for _, ip := range []string{"8.8.8.8", "192.168.1.10", "203.1.0.1", "not-an-ip"} {
		rec := e.CheckIPReputation(context.Background(), ip)
		assert.False(t, rec.IsMalicious, "ip %s", ip)
		assert.Equal(t, SourceHeuristic, rec.Source)
	}
}

func TestCheckIPReputationCachesResults(t *testing.T) {
	e := newTestEnricher(t, true)

	first := e.CheckIPReputation(context.Background(), "203.0.113.99")
	assert.True(t, first.IsMalicious)

	// A cached entry is returned as stored even if the enabled state would
	// now produce something different.
	e.enabled = false
	second := e.CheckIPReputation(context.Background(), "203.0.113.99")
	assert.Equal(t, first, second)
}
