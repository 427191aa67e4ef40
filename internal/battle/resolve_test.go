package battle

import "testing"

func TestResolveCorrectLabelPriority(t *testing.T) {
	opts := []Option{
		{Label: "A", Text: "Lionel Messi"},
		{Label: "B", Text: "Pele"},
	}

	cases := []struct {
		name string
		q    Question
		want string
	}{
		{
			"flagged option wins over fields",
			Question{Options: []Option{{Label: "A", Text: "x", Correct: true}, {Label: "B", Text: "y"}}, CorrectAnswer: "B"},
			"A",
		},
		{
			"correct_answer by label",
			Question{Options: opts, CorrectAnswer: "b"},
			"B",
		},
		{
			"correct_answer by option text",
			Question{Options: opts, CorrectAnswer: "pele"},
			"B",
		},
		{
			"correct_option fallback",
			Question{Options: opts, CorrectOption: "A"},
			"A",
		},
		{
			"answer field last",
			Question{Options: opts, Answer: "Lionel Messi"},
			"A",
		},
		{
			"earlier field shadows later one",
			Question{Options: opts, CorrectAnswer: "A", Answer: "Pele"},
			"A",
		},
		{
			"unresolvable",
			Question{Options: opts, CorrectAnswer: "Maradona"},
			"",
		},
		{
			"no options",
			Question{CorrectAnswer: "A"},
			"",
		},
	}
	for _, tc := range cases {
		if got := ResolveCorrectLabel(&tc.q); got != tc.want {
			t.Errorf("%s: got %q, want %q", tc.name, got, tc.want)
		}
	}
}

func TestResolveCorrectLabelNil(t *testing.T) {
	if got := ResolveCorrectLabel(nil); got != "" {
		t.Fatalf("nil question resolved to %q", got)
	}
}

func TestMatchOptionTrimsAndIgnoresCase(t *testing.T) {
	q := &Question{Options: []Option{{Label: "A", Text: " Zidane "}, {Label: "B", Text: "Ronaldo"}}}
	if got := matchOption(q, "  a "); got != "A" {
		t.Fatalf("label match: got %q", got)
	}
	if got := matchOption(q, "RONALDO"); got != "B" {
		t.Fatalf("text match: got %q", got)
	}
	if got := matchOption(q, ""); got != "" {
		t.Fatalf("empty input matched %q", got)
	}
}
