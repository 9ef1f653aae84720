package detection

import "strings"

// Threat categories produced by ClassifyThreat. ThreatUnknown disables
// playbook execution downstream.
const (
	ThreatSQLInjection     = "sql_injection"
	ThreatBruteForce       = "brute_force"
	ThreatDataExfiltration = "data_exfiltration"
	ThreatPortScan         = "port_scan"
	ThreatUnknown          = "unknown"
)

var threatSignatures = []struct {
	category string
	keywords []string
}{
	{ThreatSQLInjection, []string{"sql", "union", "select", "' or '1'='1", "--"}},
	{ThreatBruteForce, []string{"failed login", "brute force"}},
	{ThreatDataExfiltration, []string{"exfiltrat", "large data", "gb", "mb"}},
	{ThreatPortScan, []string{"port scan"}},
}

// ClassifyThreat maps raw log content to a threat category by first-match
// priority over the signature lists.
func ClassifyThreat(rawLog string) string {
	lower := strings.ToLower(rawLog)
	for _, sig := range threatSignatures {
		if containsAny(lower, sig.keywords) {
			return sig.category
		}
	}
	return ThreatUnknown
}
