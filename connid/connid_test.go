package connid

import "testing"

func TestNextNeverRepeats(t *testing.T) {
	g := New()
	seen := map[string]bool{}
	for i := 0; i < 1000; i++ {
		id, err := g.Next()
		if err != nil {
			t.Fatal(err)
		}
		if seen[id] {
			t.Fatalf("id %q repeated at iteration %d", id, i)
		}
		seen[id] = true
	}
}

func TestNextSharesHostnamePrefix(t *testing.T) {
	g := New()
	a, err := g.Next()
	if err != nil {
		t.Fatal(err)
	}
	b, err := g.Next()
	if err != nil {
		t.Fatal(err)
	}
	p, err := prefix()
	if err != nil {
		t.Fatal(err)
	}
	wantPrefixA := p + "_"
	if len(a) <= len(wantPrefixA) || a[:len(wantPrefixA)] != wantPrefixA {
		t.Errorf("id %q does not start with %q", a, wantPrefixA)
	}
	if a == b {
		t.Errorf("consecutive ids must differ: %q == %q", a, b)
	}
}
