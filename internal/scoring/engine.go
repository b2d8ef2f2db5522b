package scoring

import (
	"strings"

	"github.com/dotest/exam-platform/internal/question"
)

// Summary is the authoritative score breakdown for one finished attempt.
//
// Percentage is the headline score and counts questions, not marks; the
// marks-weighted figure is reported separately as MarksPercentage. The two
// differ whenever per-question marks are uneven.
type Summary struct {
	TotalQuestions  int     `json:"totalQuestions"`
	CorrectCount    int     `json:"correctCount"`
	IncorrectCount  int     `json:"incorrectCount"`
	SkippedCount    int     `json:"skippedCount"`
	TotalMarks      int     `json:"totalMarks"`
	ObtainedMarks   int     `json:"obtainedMarks"`
	Percentage      float64 `json:"percentage"`
	MarksPercentage float64 `json:"marksPercentage"`
}

// Score recomputes the result from scratch over the full answer set. Nothing
// is accumulated while answering, so back-navigation and answer changes can
// never drift the final figures.
//
// answers is index-aligned with questions; an empty string marks an
// unanswered slot. A question with no resolvable correct key never scores.
func Score(questions []question.Question, answers []string) Summary {
	s := Summary{TotalQuestions: len(questions)}

	for i, q := range questions {
		marks := q.Marks
		if marks <= 0 {
			marks = 1
		}
		s.TotalMarks += marks

		var answer string
		if i < len(answers) {
			answer = answers[i]
		}
		switch {
		case answer == "":
			s.SkippedCount++
		case IsCorrect(q, answer):
			s.CorrectCount++
			s.ObtainedMarks += marks
		default:
			s.IncorrectCount++
		}
	}

	if s.TotalQuestions > 0 {
		s.Percentage = float64(s.CorrectCount) / float64(s.TotalQuestions) * 100
	}
	if s.TotalMarks > 0 {
		s.MarksPercentage = float64(s.ObtainedMarks) / float64(s.TotalMarks) * 100
	}
	return s
}

// IsCorrect reports whether answer matches the question's resolved correct
// key, case-insensitively.
func IsCorrect(q question.Question, answer string) bool {
	if q.CorrectKey == "" || answer == "" {
		return false
	}
	return strings.EqualFold(answer, q.CorrectKey)
}

// Grade bands. Advisory display labels only; never stored with the score.
const (
	GradeExcellent      = "excellent"
	GradeGreat          = "great"
	GradeGood           = "good"
	GradeKeepPracticing = "keep_practicing"
)

// Grade maps a headline percentage onto its display band.
func Grade(percentage float64) string {
	switch {
	case percentage >= 90:
		return GradeExcellent
	case percentage >= 75:
		return GradeGreat
	case percentage >= 60:
		return GradeGood
	default:
		return GradeKeepPracticing
	}
}

// GradeMessage returns the encouragement line shown with the band.
func GradeMessage(band string) string {
	switch band {
	case GradeExcellent:
		return "Excellent!"
	case GradeGreat:
		return "Great job!"
	case GradeGood:
		return "Good effort!"
	default:
		return "Keep practicing!"
	}
}
