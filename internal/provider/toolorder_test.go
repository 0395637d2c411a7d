package provider

import "testing"

func TestSortToolsPreferredThenAlphabetical(t *testing.T) {
	r := &Request{
		Tools: []Tool{{Name: "zeta"}, {Name: "read"}, {Name: "alpha"}, {Name: "write"}},
		PreferredToolOrder: []string{"write", "read"},
	}
	r = SortTools(r)
	got := make([]string, len(r.Tools))
	for i, tl := range r.Tools {
		got[i] = tl.Name
	}
	want := []string{"write", "read", "alpha", "zeta"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got order %v, want %v", got, want)
		}
	}
}
