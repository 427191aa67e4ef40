package battle

import "strings"

// Correct-answer extraction rules, tried in priority order. Older generator
// versions mark the option itself; newer ones put the label (or the full
// option text) in one of several question-level fields. This shim keeps the
// engine compatible with all of them.
var correctLabelRules = []func(q *Question) string{
	func(q *Question) string {
		for _, o := range q.Options {
			if o.Correct {
				return o.Label
			}
		}
		return ""
	},
	func(q *Question) string { return matchOption(q, q.CorrectAnswer) },
	func(q *Question) string { return matchOption(q, q.CorrectOption) },
	func(q *Question) string { return matchOption(q, q.Answer) },
}

// ResolveCorrectLabel returns the label of the question's designated correct
// option, or "" when no rule can resolve one. An unresolvable question is
// scored as incorrect by the caller, never rejected.
func ResolveCorrectLabel(q *Question) string {
	if q == nil {
		return ""
	}
	for _, rule := range correctLabelRules {
		if label := rule(q); label != "" {
			return label
		}
	}
	return ""
}

// matchOption maps a raw field value onto an option label. The value may be
// the label itself or the option's text.
func matchOption(q *Question, raw string) string {
	v := strings.TrimSpace(raw)
	if v == "" {
		return ""
	}
	for _, o := range q.Options {
		if strings.EqualFold(o.Label, v) {
			return o.Label
		}
	}
	for _, o := range q.Options {
		if strings.EqualFold(strings.TrimSpace(o.Text), v) {
			return o.Label
		}
	}
	return ""
}
