package detection

import "github.com/securewatch/securewatch/internal/models"

// techniqueByThreat maps each threat category to its ATT&CK technique.
// Categories without a meaningful mapping (unknown) are absent.
var techniqueByThreat = map[string]models.TechniqueRef{
	ThreatSQLInjection: {
		TechniqueID:   "T1190",
		TechniqueName: "Exploit Public-Facing Application",
		Tactic:        "initial-access",
		URL:           "https://attack.mitre.org/techniques/T1190/",
	},
	ThreatBruteForce: {
		TechniqueID:   "T1110",
		TechniqueName: "Brute Force",
		Tactic:        "credential-access",
		URL:           "https://attack.mitre.org/techniques/T1110/",
	},
	ThreatDataExfiltration: {
		TechniqueID:   "T1048",
		TechniqueName: "Exfiltration Over Alternative Protocol",
		Tactic:        "exfiltration",
		URL:           "https://attack.mitre.org/techniques/T1048/",
	},
	ThreatPortScan: {
		TechniqueID:   "T1046",
		TechniqueName: "Network Service Discovery",
		Tactic:        "discovery",
		URL:           "https://attack.mitre.org/techniques/T1046/",
	},
}

// TechniqueForThreat returns the ATT&CK technique for a threat category, nil
// when no mapping exists.
func TechniqueForThreat(threatType string) *models.TechniqueRef {
	if ref, ok := techniqueByThreat[threatType]; ok {
		return &ref
	}
	return nil
}
