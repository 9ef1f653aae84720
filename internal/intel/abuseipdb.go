package intel

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/securewatch/securewatch/internal/models"
)

const (
	abuseIPDBDefaultBaseURL = "https://api.abuseipdb.com/api/v2"
	abuseMaxAgeDays         = 90

	// Scores at or above this are treated as malicious, matching the
	// AbuseIPDB documentation's recommended reporting threshold.
	abuseMaliciousScore = 50
)

// Reputation provenance tag for live AbuseIPDB lookups.
const SourceAbuseIPDB = "abuseipdb"

// abuseIPDBClient queries the AbuseIPDB check endpoint. The API key is read
// from the environment on every request so rotation does not need a restart.
type abuseIPDBClient struct {
	baseURL    string
	keyEnv     string
	httpClient *http.Client
	logger     *zap.Logger
}

func newAbuseIPDBClient(baseURL, keyEnv string, timeout time.Duration, logger *zap.Logger) *abuseIPDBClient {
	if baseURL == "" {
		baseURL = abuseIPDBDefaultBaseURL
	}
	return &abuseIPDBClient{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		keyEnv:     keyEnv,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

type abuseIPDBResponse struct {
	Data struct {
		IPAddress            string `json:"ipAddress"`
		AbuseConfidenceScore int    `json:"abuseConfidenceScore"`
		CountryCode          string `json:"countryCode"`
		TotalReports         int    `json:"totalReports"`
		IsWhitelisted        bool   `json:"isWhitelisted"`
	} `json:"data"`
}

// Check looks up one address. Transport and decode faults are returned so the
// caller can degrade to its offline path.
func (c *abuseIPDBClient) Check(ctx context.Context, ip string) (models.ReputationRecord, error) {
	endpoint := fmt.Sprintf("%s/check?ipAddress=%s&maxAgeInDays=%d",
		c.baseURL, url.QueryEscape(ip), abuseMaxAgeDays)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return models.ReputationRecord{}, fmt.Errorf("creating check request: %w", err)
	}
	req.Header.Set("Key", os.Getenv(c.keyEnv))
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return models.ReputationRecord{}, fmt.Errorf("abuseipdb lookup failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return models.ReputationRecord{}, fmt.Errorf("abuseipdb authentication failed: invalid API key")
	}
	if resp.StatusCode != http.StatusOK {
		return models.ReputationRecord{}, fmt.Errorf("abuseipdb returned status %d", resp.StatusCode)
	}

	var decoded abuseIPDBResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return models.ReputationRecord{}, fmt.Errorf("decoding abuseipdb response: %w", err)
	}

	country := decoded.Data.CountryCode
	if country == "" {
		country = "Unknown"
	}

	return models.ReputationRecord{
		IP:          ip,
		IsMalicious: !decoded.Data.IsWhitelisted && decoded.Data.AbuseConfidenceScore >= abuseMaliciousScore,
		AbuseScore:  decoded.Data.AbuseConfidenceScore,
		Country:     country,
		Reports:     decoded.Data.TotalReports,
		Source:      SourceAbuseIPDB,
	}, nil
}
