package cleaner

import "testing"

func TestClean(t *testing.T) {
	c := New(DefaultMarkers())
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"plain text unchanged", "  Dolo 650 rack B2 par hai. ", "  Dolo 650 rack B2 par hai. "},
		{"final answer", "Thinking Process: check rack\nFinal Answer:  Rack A1  ", "Rack A1"},
		{"last final answer wins", "Final Answer: draft\nFinal Answer: Rack C3", "Rack C3"},
		{"thinking then answer", "Thinking Process: look up price\nAnswer: Rs 10", "Rs 10"},
		{"thinking then jawab", "Thinking Process: dawa dhundo Jawab: Rack A1 mein hai", "Rack A1 mein hai"},
		{"every trace removed", "Thinking Process: a Answer: one Thinking Process: b Jawab: two", "one  two"},
		{"thinking without answer is trimmed only", "  Thinking Process: nothing to say  ", "Thinking Process: nothing to say"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := c.Clean(tc.in); got != tc.want {
				t.Errorf("Clean(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestCleanIsIdempotentOnCleanOutput(t *testing.T) {
	c := New(DefaultMarkers())
	inputs := []string{
		"Final Answer: Rack A1",
		"Thinking Process: x Answer: Rs 10",
		"Paracetamol is in A1",
	}
	for _, in := range inputs {
		once := c.Clean(in)
		if twice := c.Clean(once); twice != once {
			t.Errorf("Clean not idempotent for %q: %q then %q", in, once, twice)
		}
	}
}

func TestCustomMarkersAreLiteral(t *testing.T) {
	c := New(Markers{Final: "ANS(1):", Thinking: "[think]", Answer: []string{"=>"}})
	if got := c.Clean("[think] hmm => Rack D4"); got != "Rack D4" {
		t.Errorf("unexpected %q", got)
	}
	if got := c.Clean("x ANS(1): y"); got != "y" {
		t.Errorf("unexpected %q", got)
	}
}
