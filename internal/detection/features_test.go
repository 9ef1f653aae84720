package detection

import (
	"testing"
	"time"
)

func TestIPToInt(t *testing.T) {
	tests := []struct {
		ip   string
		want int64
	}{
		{"192.168.1.10", 3232235786},
		{"0.0.0.0", 0},
		{"255.255.255.255", 4294967295},
		{"10.0.0.1", 167772161},
		{"not.an.ip", 0},
		{"1.2.3", 0},
		{"", 0},
		{"1.2.3.4.5", 0},
	}
	for _, tt := range tests {
		if got := IPToInt(tt.ip); got != tt.want {
			t.Errorf("IPToInt(%q) = %d, want %d", tt.ip, got, tt.want)
		}
	}
}

func TestExtractFeaturesKeywordFlags(t *testing.T) {
	base := time.Date(2026, 3, 9, 14, 30, 0, 0, time.UTC)

	tests := []struct {
		name       string
		raw        string
		wantSQL    bool
		wantScript bool
		wantLogin  bool
	}{
		{"sql injection", "GET /items?id=1 UNION SELECT * FROM users --", true, false, false},
		{"script tag", `POST /comment body=<script>alert(1)</script>`, false, true, false},
		{"failed login", "Failed login for admin from 10.0.0.5", false, false, true},
		{"auth failed", "sshd: Authentication failed for root", false, false, true},
		{"clean", "GET /index.html 200", false, false, false},
		{"case insensitive", "sElEcT * FROM accounts", true, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := ExtractFeatures(RawEvent{RawLog: tt.raw, Timestamp: base})
			if f.HasSQLKeywords != tt.wantSQL {
				t.Errorf("HasSQLKeywords = %v, want %v", f.HasSQLKeywords, tt.wantSQL)
			}
			if f.HasScriptTags != tt.wantScript {
				t.Errorf("HasScriptTags = %v, want %v", f.HasScriptTags, tt.wantScript)
			}
			if f.FailedLogin != tt.wantLogin {
				t.Errorf("FailedLogin = %v, want %v", f.FailedLogin, tt.wantLogin)
			}
			if f.LogLength != len(tt.raw) {
				t.Errorf("LogLength = %d, want %d", f.LogLength, len(tt.raw))
			}
		})
	}
}

func TestExtractFeaturesDeterminism(t *testing.T) {
	ev := RawEvent{
		SourceIP:      "203.0.113.5",
		DestinationIP: "192.168.1.10",
		RawLog:        "Failed password for root from 203.0.113.5 port 22 ssh2",
		Timestamp:     time.Date(2026, 3, 9, 4, 15, 0, 0, time.UTC),
	}

	first := ExtractFeatures(ev)
	second := ExtractFeatures(ev)
	if first != second {
		t.Fatalf("identical events produced different feature sets: %+v vs %+v", first, second)
	}
	if first.Hour != 4 {
		t.Errorf("Hour = %d, want 4", first.Hour)
	}
	if first.DayOfWeek != int(time.Monday) {
		t.Errorf("DayOfWeek = %d, want %d", first.DayOfWeek, int(time.Monday))
	}
	if first.DestIPInt != 3232235786 {
		t.Errorf("DestIPInt = %d, want 3232235786", first.DestIPInt)
	}
}

func TestExtractFeaturesZeroTimestampUsesNow(t *testing.T) {
	f := ExtractFeatures(RawEvent{RawLog: "test"})
	if f.Hour < 0 || f.Hour > 23 {
		t.Errorf("Hour = %d out of range", f.Hour)
	}
	if f.DayOfWeek < 0 || f.DayOfWeek > 6 {
		t.Errorf("DayOfWeek = %d out of range", f.DayOfWeek)
	}
}

func TestFeatureVectorOrder(t *testing.T) {
	f := FeatureSet{
		Hour:           4,
		DayOfWeek:      2,
		SourceIPInt:    100,
		DestIPInt:      200,
		LogLength:      42,
		HasSQLKeywords: true,
		FailedLogin:    true,
	}
	vec := f.Vector()
	want := []float64{4, 2, 100, 200, 42, 1, 0, 1}
	if len(vec) != len(want) {
		t.Fatalf("vector length = %d, want %d", len(vec), len(want))
	}
	for i := range want {
		if vec[i] != want[i] {
			t.Errorf("vec[%d] = %g, want %g", i, vec[i], want[i])
		}
	}
}
