// Package detection implements the anomaly detection core: feature
// extraction, model-backed and rule-based scoring, severity mapping, and
// threat type classification.
package detection

import (
	"strconv"
	"strings"
	"time"
)

// Keyword signature lists. Checks are case-insensitive substring tests.
var (
	sqlKeywords = []string{"select", "union", "drop", "delete", "insert", "update", "' or '1'='1", "--"}

	scriptKeywords = []string{"<script>", "javascript:"}

	failedLoginKeywords = []string{"failed login", "authentication failed", "unauthorized"}
)

// FeatureSet holds the derived attributes of one event used for scoring.
// Identical event content always yields an identical FeatureSet.
type FeatureSet struct {
	Hour           int
	DayOfWeek      int
	SourceIPInt    int64
	DestIPInt      int64
	LogLength      int
	HasSQLKeywords bool
	HasScriptTags  bool
	FailedLogin    bool
}

// Vector returns the features as a fixed-order numeric vector, the order the
// model was trained with: hour, day_of_week, source_ip_int, dest_ip_int,
// log_length, has_sql_keywords, has_script_tags, failed_login.
func (f FeatureSet) Vector() []float64 {
	return []float64{
		float64(f.Hour),
		float64(f.DayOfWeek),
		float64(f.SourceIPInt),
		float64(f.DestIPInt),
		float64(f.LogLength),
		boolToFloat(f.HasSQLKeywords),
		boolToFloat(f.HasScriptTags),
		boolToFloat(f.FailedLogin),
	}
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// RawEvent is the minimal view of an event needed for feature extraction.
type RawEvent struct {
	SourceIP      string
	DestinationIP string
	RawLog        string
	Timestamp     time.Time
}

// ExtractFeatures derives a FeatureSet from a raw event. A zero timestamp is
// substituted with the current time; this is recoverable, not an error.
func ExtractFeatures(ev RawEvent) FeatureSet {
	ts := ev.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	lower := strings.ToLower(ev.RawLog)

	return FeatureSet{
		Hour:           ts.Hour(),
		DayOfWeek:      int(ts.Weekday()),
		SourceIPInt:    IPToInt(ev.SourceIP),
		DestIPInt:      IPToInt(ev.DestinationIP),
		LogLength:      len(ev.RawLog),
		HasSQLKeywords: containsAny(lower, sqlKeywords),
		HasScriptTags:  containsAny(lower, scriptKeywords),
		FailedLogin:    containsAny(lower, failedLoginKeywords),
	}
}

// IPToInt encodes a dotted-quad address as a comparable integer
// (sum of octet_i * 256^(3-i)). Anything that does not parse into exactly
// four integer octets encodes to 0.
func IPToInt(ip string) int64 {
	parts := strings.Split(ip, ".")
	if len(parts) != 4 {
		return 0
	}
	var out int64
	for _, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil {
			return 0
		}
		out = out<<8 + int64(n)
	}
	return out
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}
