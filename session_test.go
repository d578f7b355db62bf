package easel

import (
	"sync"
	"testing"
)

func TestSessionRegistry_DenseIDs(t *testing.T) {
	r := NewSessionRegistry()
	tok1, sid1 := r.NewSession()
	tok2, sid2 := r.NewSession()
	if sid1 != 1 || sid2 != 2 {
		t.Errorf("sids = %d, %d; want 1, 2", sid1, sid2)
	}
	if tok1 == tok2 {
		t.Error("tokens must be unique")
	}
	if r.Len() != 2 {
		t.Errorf("Len = %d", r.Len())
	}
}

func TestSessionRegistry_SidIdempotent(t *testing.T) {
	r := NewSessionRegistry()
	sid := r.Sid("external-token")
	if sid != 1 {
		t.Errorf("first sid = %d", sid)
	}
	if again := r.Sid("external-token"); again != sid {
		t.Errorf("repeated Sid = %d, want %d", again, sid)
	}
	if r.Token(sid) != "external-token" {
		t.Errorf("Token(%d) = %q", sid, r.Token(sid))
	}
	if r.Token(99) != "" {
		t.Error("unknown sid should map to empty token")
	}
}

func TestSessionRegistry_Concurrent(t *testing.T) {
	r := NewSessionRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				r.Sid("shared")
				r.NewSession()
			}
		}()
	}
	wg.Wait()
	// One shared token plus 800 minted sessions.
	if r.Len() != 801 {
		t.Errorf("Len = %d, want 801", r.Len())
	}
}
