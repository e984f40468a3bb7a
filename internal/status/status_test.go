package status

import "testing"

func TestNormalizeKnownVocabulary(t *testing.T) {
	cases := map[string]Status{
		"running":     Running,
		"in_progress": Running,
		"RUNNING":     Running,
		"success":     Success,
		"completed":   Success,
		"done":        Success,
		"failed":      Failed,
		"error":       Failed,
		"blocked":     Blocked,
	}
	for raw, want := range cases {
		if got := Normalize(raw); got != want {
			t.Errorf("Normalize(%q) = %q, want %q", raw, got, want)
		}
	}
}

func TestNormalizeUnknownDefaultsToPending(t *testing.T) {
	for _, raw := range []string{"", "wat", "  ", "succeeded-ish"} {
		if got := Normalize(raw); got != Pending {
			t.Errorf("Normalize(%q) = %q, want pending", raw, got)
		}
	}
}

func TestIsTerminal(t *testing.T) {
	if !Success.IsTerminal() || !Failed.IsTerminal() {
		t.Fatal("success and failed should be terminal")
	}
	if Pending.IsTerminal() || Running.IsTerminal() || Blocked.IsTerminal() {
		t.Fatal("pending, running and blocked are not terminal")
	}
}
