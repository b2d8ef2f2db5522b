package question

// Option is a single selectable choice, keyed by an uppercase letter.
type Option struct {
	Key  string `json:"key"`
	Text string `json:"text"`
}

// Question is the normalized exam item delivered to the session engine.
// CorrectKey may be empty when the stored document carried no resolvable
// answer field; such questions always score as incorrect.
type Question struct {
	ID          string   `json:"id"`
	Text        string   `json:"text"`
	Options     []Option `json:"options"`
	CorrectKey  string   `json:"correctKey,omitempty"`
	Marks       int      `json:"marks"`
	Explanation string   `json:"explanation,omitempty"`
}

// HasOption reports whether key is one of the question's option keys.
func (q Question) HasOption(key string) bool {
	for _, opt := range q.Options {
		if opt.Key == key {
			return true
		}
	}
	return false
}

// Issues returns data-quality findings for the question. These are
// non-fatal; callers log them and keep going.
func (q Question) Issues() []string {
	var issues []string
	if q.CorrectKey == "" {
		issues = append(issues, "no resolvable correct answer")
	} else if !q.HasOption(q.CorrectKey) {
		issues = append(issues, "correct answer "+q.CorrectKey+" is not an option key")
	}
	return issues
}
