package intel

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newProviderEnricher(t *testing.T, baseURL string) *Enricher {
	t.Helper()
	cfg := DefaultConfig()
	cfg.AbuseIPDBKeyEnv = "TEST_ABUSEIPDB_CLIENT_KEY"
	cfg.VirusTotalKeyEnv = "TEST_ABUSEIPDB_CLIENT_VT"
	cfg.AbuseIPDBBaseURL = baseURL
	t.Setenv(cfg.AbuseIPDBKeyEnv, "test-key")
	return NewEnricher(cfg, zap.NewNop())
}

func TestAbuseIPDBCheckMalicious(t *testing.T) {
	var gotKey, gotIP string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("Key")
		gotIP = r.URL.Query().Get("ipAddress")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":{"ipAddress":"198.51.100.7","abuseConfidenceScore":92,"countryCode":"NL","totalReports":340,"isWhitelisted":false}}`))
	}))
	defer srv.Close()

	e := newProviderEnricher(t, srv.URL)
	rec := e.CheckIPReputation(context.Background(), "198.51.100.7")

	assert.Equal(t, "test-key", gotKey)
	assert.Equal(t, "198.51.100.7", gotIP)
	assert.Equal(t, SourceAbuseIPDB, rec.Source)
	assert.True(t, rec.IsMalicious)
	assert.Equal(t, 92, rec.AbuseScore)
	assert.Equal(t, "NL", rec.Country)
	assert.Equal(t, 340, rec.Reports)
}

func TestAbuseIPDBCheckBelowThreshold(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":{"ipAddress":"8.8.8.8","abuseConfidenceScore":12,"countryCode":"US","totalReports":2,"isWhitelisted":false}}`))
	}))
	defer srv.Close()

	e := newProviderEnricher(t, srv.URL)
	rec := e.CheckIPReputation(context.Background(), "8.8.8.8")
	assert.False(t, rec.IsMalicious)
	assert.Equal(t, 12, rec.AbuseScore)
}

func TestAbuseIPDBWhitelistedNeverMalicious(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":{"ipAddress":"1.1.1.1","abuseConfidenceScore":80,"countryCode":"AU","totalReports":10,"isWhitelisted":true}}`))
	}))
	defer srv.Close()

	e := newProviderEnricher(t, srv.URL)
	rec := e.CheckIPReputation(context.Background(), "1.1.1.1")
	assert.False(t, rec.IsMalicious)
}

func TestAbuseIPDBErrorFallsBackToHeuristic(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	e := newProviderEnricher(t, srv.URL)
	rec := e.CheckIPReputation(context.Background(), "203.0.113.9")
	require.Equal(t, SourceHeuristic, rec.Source)
	assert.True(t, rec.IsMalicious)
}
