package service

import "testing"

func TestRegistry_AddAndFindLast(t *testing.T) {
	r := NewRegistry[string]()
	var observed []string
	r.Observe(func(s string) { observed = append(observed, s) })

	r.Add("a1")
	r.Add("b1")
	r.Add("a2")

	got, ok := r.FindLast(func(s string) bool { return s[0] == 'a' })
	if !ok || got != "a2" {
		t.Errorf("Expected newest match a2, got %q", got)
	}
	if _, ok := r.FindLast(func(s string) bool { return s[0] == 'z' }); ok {
		t.Error("Expected no match")
	}
	if r.Len() != 3 {
		t.Errorf("Expected 3 entries, got %d", r.Len())
	}
	if len(observed) != 3 || observed[2] != "a2" {
		t.Errorf("Expected observer to see every add, got %v", observed)
	}
}

func TestRegistry_ItemsIsSnapshot(t *testing.T) {
	r := NewRegistry[int]()
	r.Add(1)
	items := r.Items()
	items[0] = 99
	r.Add(2)

	if got := r.Items(); got[0] != 1 || len(got) != 2 {
		t.Errorf("Expected [1 2], got %v", got)
	}
}

func TestRegistry_ObserverMayReadRegistry(t *testing.T) {
	r := NewRegistry[int]()
	sizes := []int{}
	r.Observe(func(int) { sizes = append(sizes, r.Len()) })

	r.Add(1)
	r.Add(2)

	if len(sizes) != 2 || sizes[1] != 2 {
		t.Errorf("Expected observer to see sizes [1 2], got %v", sizes)
	}
}

func TestRegistry_ObserverAddedDuringNotifySeesLaterAdds(t *testing.T) {
	r := NewRegistry[int]()
	var late []int
	r.Observe(func(n int) {
		if n == 1 {
			r.Observe(func(m int) { late = append(late, m) })
		}
	})

	r.Add(1)
	r.Add(2)

	if len(late) != 1 || late[0] != 2 {
		t.Errorf("Expected late observer to see only [2], got %v", late)
	}
}
