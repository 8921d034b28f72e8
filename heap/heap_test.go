package heap

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestBasics(t *testing.T) {
	h := New(func(a, b int) bool {
		return a < b
	})
	h.Push(10)
	h.Push(4)
	h.Push(100)
	h.Push(8)
	h.Push(20)
	for _, i := range []int{4, 8, 10, 20, 100} {
		if top, found := h.Peek(); !found || top != i {
			t.Errorf("got %v, %v, want %v, true", top, found, i)
		}
		if top, found := h.Pop(); !found || top != i {
			t.Errorf("got %v, %v, want %v, true", top, found, i)
		}
	}
	if _, found := h.Peek(); found {
		t.Errorf("got %v, want false", found)
	}
	if _, found := h.Pop(); found {
		t.Errorf("got %v, want false", found)
	}
}

type scheduled struct {
	at   int
	name string
}

func TestStableTies(t *testing.T) {
	h := New(func(a, b scheduled) bool {
		return a.at < b.at
	})
	for _, s := range []scheduled{{3, "a"}, {1, "b"}, {3, "c"}, {1, "d"}, {2, "e"}, {3, "f"}} {
		h.Push(s)
	}
	var got []string
	for s, found := h.Pop(); found; s, found = h.Pop() {
		got = append(got, s.name)
	}
	if diff := cmp.Diff([]string{"b", "d", "e", "a", "c", "f"}, got); diff != "" {
		t.Errorf("unexpected pop order: %s", diff)
	}
}

func TestPopWhile(t *testing.T) {
	h := New(func(a, b int) bool {
		return a < b
	})
	for _, i := range []int{5, 1, 3, 2, 4} {
		h.Push(i)
	}
	got := h.PopWhile(func(i int) bool { return i <= 3 })
	if diff := cmp.Diff([]int{1, 2, 3}, got); diff != "" {
		t.Errorf("unexpected popped values: %s", diff)
	}
	if h.Size() != 2 {
		t.Errorf("got size %v, want 2", h.Size())
	}
	h.Clear()
	if h.Size() != 0 {
		t.Errorf("got size %v after clear, want 0", h.Size())
	}
}
