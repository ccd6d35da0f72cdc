package prefixtree

import (
	"testing"
)

func TestPutGetDelete(t *testing.T) {
	tree := New[int]()

	tree.Put("agents/a.json", 1)
	tree.Put("agents/b.json", 2)
	tree.Put("agents/a.json", 3)

	if got := tree.Len(); got != 2 {
		t.Errorf("expected 2 keys, got %d", got)
	}

	v, ok := tree.Get("agents/a.json")
	if !ok || v != 3 {
		t.Errorf("expected (3, true), got (%d, %v)", v, ok)
	}

	if !tree.Delete("agents/a.json") {
		t.Error("expected delete to report presence")
	}
	if tree.Delete("agents/a.json") {
		t.Error("expected second delete to report absence")
	}
	if _, ok := tree.Get("agents/a.json"); ok {
		t.Error("expected key to be gone after delete")
	}
}

func TestGetMissing(t *testing.T) {
	tree := New[string]()
	if v, ok := tree.Get("nope"); ok || v != "" {
		t.Errorf("expected zero value for missing key, got (%q, %v)", v, ok)
	}
}

func TestWalkPrefixSortedAndScoped(t *testing.T) {
	tree := New[int]()
	tree.Put("sessions/a1/s1.json", 1)
	tree.Put("sessions/a1/s2.json", 2)
	tree.Put("sessions/a2/s9.json", 3)
	tree.Put("agents/a1.json", 4)

	var keys []string
	tree.WalkPrefix("sessions/a1/", func(key string, _ int) bool {
		keys = append(keys, key)
		return true
	})

	want := []string{"sessions/a1/s1.json", "sessions/a1/s2.json"}
	if len(keys) != len(want) {
		t.Fatalf("expected %d keys, got %d: %v", len(want), len(keys), keys)
	}
	for i, key := range want {
		if keys[i] != key {
			t.Errorf("expected keys[%d] = %q, got %q", i, key, keys[i])
		}
	}
}

func TestWalkPrefixStopsEarly(t *testing.T) {
	tree := New[int]()
	tree.Put("a", 1)
	tree.Put("b", 2)
	tree.Put("c", 3)

	visited := 0
	tree.WalkPrefix("", func(string, int) bool {
		visited++
		return visited < 2
	})

	if visited != 2 {
		t.Errorf("expected walk to stop after 2 visits, got %d", visited)
	}
}
