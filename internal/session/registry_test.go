package session

import "testing"

func TestSetKeyEvictsPreviousSession(t *testing.T) {
	r := NewRegistry()

	if _, evicted := r.SetKey("alpha", 100); evicted {
		t.Fatalf("first key must not evict")
	}

	old, evicted := r.SetKey("alpha", 200)
	if !evicted || old != 100 {
		t.Fatalf("expected eviction of key 100, got old=%d evicted=%v", old, evicted)
	}

	key, ok := r.LookupByName("alpha")
	if !ok || key != 200 {
		t.Fatalf("lookup must return the new key, got %d %v", key, ok)
	}
	if r.Count() != 1 {
		t.Fatalf("account may hold only one session, got %d", r.Count())
	}
}

func TestSetKeySameKeyIsNotAnEviction(t *testing.T) {
	r := NewRegistry()
	r.SetKey("alpha", 100)
	if _, evicted := r.SetKey("alpha", 100); evicted {
		t.Fatalf("re-setting the same key must not evict")
	}
}

func TestAccountsAreIndependent(t *testing.T) {
	r := NewRegistry()
	r.SetKey("alpha", 100)
	r.SetKey("beta", 200)

	if _, evicted := r.SetKey("alpha", 300); !evicted {
		t.Fatalf("alpha rekey must evict")
	}
	key, ok := r.LookupByName("beta")
	if !ok || key != 200 {
		t.Fatalf("beta session disturbed: %d %v", key, ok)
	}
	if _, ok := r.LookupByName("gamma"); ok {
		t.Fatalf("unknown account must miss")
	}
}
