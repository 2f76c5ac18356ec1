package session

import (
	"fmt"
	"sync"
	"testing"
)

func TestMemoryLifecycle(t *testing.T) {
	s := NewMemory()

	if s.Has("u1") {
		t.Fatal("Has(u1) = true on empty store")
	}
	if _, ok := s.Get("u1"); ok {
		t.Fatal("Get(u1) reported a session on empty store")
	}

	s.Set("u1", "tok", "a@b.com", "ann")
	if !s.Has("u1") {
		t.Fatal("Has(u1) = false after Set")
	}
	got, ok := s.Get("u1")
	if !ok || got.Token != "tok" || got.Email != "a@b.com" || got.Username != "ann" {
		t.Errorf("Get(u1) = %+v, %v", got, ok)
	}

	s.Set("u1", "tok2", "a@b.com", "ann")
	if got, _ := s.Get("u1"); got.Token != "tok2" {
		t.Errorf("re-login token = %q, want tok2", got.Token)
	}
	if s.Len() != 1 {
		t.Errorf("Len() = %d, want 1", s.Len())
	}

	s.Delete("u1")
	if s.Has("u1") {
		t.Error("Has(u1) = true after Delete")
	}

	// Deleting an unknown user must not panic.
	s.Delete("nobody")
}

func TestMemoryConcurrentAccess(t *testing.T) {
	s := NewMemory()
	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("u%d", i%5)
			s.Set(id, "t", "e", "n")
			_ = s.Has(id)
			if i%3 == 0 {
				s.Delete(id)
			}
		}(i)
	}
	wg.Wait()
	if s.Len() > 5 {
		t.Errorf("Len() = %d, want at most 5", s.Len())
	}
}
