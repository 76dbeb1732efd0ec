package hash

import "testing"

func TestSHA256String(t *testing.T) {
	h1 := SHA256String("hello")
	h2 := SHA256String("hello")
	h3 := SHA256String("world")

	if h1 != h2 {
		t.Error("same input should produce same hash")
	}
	if h1 == h3 {
		t.Error("different input should produce different hash")
	}
	if len(h1) != 64 {
		t.Errorf("expected 64 hex chars, got %d", len(h1))
	}
}

func TestSHA256Short(t *testing.T) {
	h := SHA256Short([]byte("hello"), 16)
	if len(h) != 16 {
		t.Errorf("expected 16 chars, got %d", len(h))
	}

	// n larger than hash length returns full hash
	full := SHA256Short([]byte("hello"), 200)
	if len(full) != 64 {
		t.Errorf("expected full hash, got %d chars", len(full))
	}
}

func TestPlanKey(t *testing.T) {
	k1 := PlanKey("total revenue", "fp1", "hybrid")
	k2 := PlanKey("total revenue", "fp1", "hybrid")
	if k1 != k2 {
		t.Error("identical inputs should produce identical keys")
	}

	if PlanKey("total revenue", "fp1", "traditional") == k1 {
		t.Error("mode must contribute to the key")
	}
	if PlanKey("total revenue", "fp2", "hybrid") == k1 {
		t.Error("schema fingerprint must contribute to the key")
	}
}

func TestSetFingerprintOrderIndependent(t *testing.T) {
	a := SetFingerprint([]string{"pdf", "docx", "tabular"}, []string{"person", "org"})
	b := SetFingerprint([]string{"tabular", "pdf", "docx"}, []string{"org", "person"})
	if a != b {
		t.Error("fingerprint must be independent of set ordering")
	}

	c := SetFingerprint([]string{"pdf"}, []string{"person", "org"})
	if a == c {
		t.Error("different sets must produce different fingerprints")
	}
}

func TestSetFingerprintSetBoundaries(t *testing.T) {
	// Elements must not migrate between sets.
	a := SetFingerprint([]string{"x", "y"}, []string{"z"})
	b := SetFingerprint([]string{"x"}, []string{"y", "z"})
	if a == b {
		t.Error("set boundaries must contribute to the fingerprint")
	}
}
