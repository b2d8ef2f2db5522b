package history

import (
	"encoding/json"
	"time"

	"github.com/dotest/exam-platform/internal/docstore"
	"github.com/dotest/exam-platform/internal/question"
)

// Result is one completed attempt as persisted to the testResults
// collection: identity, tagging, the score breakdown, and a full
// question+answer snapshot so the review screen can replay it later.
type Result struct {
	ID               string              `json:"id,omitempty"`
	UserID           string              `json:"userId"`
	UserName         string              `json:"userName"`
	UserEmail        string              `json:"userEmail,omitempty"`
	Subject          string              `json:"subject"`
	TestID           string              `json:"testId"`
	ScorePercent     float64             `json:"score"`
	TotalQuestions   int                 `json:"totalQuestions"`
	CorrectAnswers   int                 `json:"correctAnswers"`
	TimeSpentMinutes int                 `json:"timeSpent"`
	RecordedAt       time.Time           `json:"timestamp"`
	Questions        []question.Question `json:"questions"`
	Answers          []string            `json:"userAnswers"`
}

func resultToDoc(r Result) map[string]interface{} {
	return map[string]interface{}{
		"userId":         r.UserID,
		"userName":       r.UserName,
		"userEmail":      r.UserEmail,
		"subject":        r.Subject,
		"testId":         r.TestID,
		"score":          r.ScorePercent,
		"totalQuestions": r.TotalQuestions,
		"correctAnswers": r.CorrectAnswers,
		"timeSpent":      r.TimeSpentMinutes,
		"timestamp":      r.RecordedAt.UTC(),
		"questions":      questionsToDoc(r.Questions),
		"userAnswers":    answersToDoc(r.Answers),
	}
}

func resultFromDoc(id string, data map[string]interface{}) Result {
	return Result{
		ID:               id,
		UserID:           docstore.AsString(data["userId"]),
		UserName:         docstore.AsString(data["userName"]),
		UserEmail:        docstore.AsString(data["userEmail"]),
		Subject:          docstore.AsString(data["subject"]),
		TestID:           docstore.AsString(data["testId"]),
		ScorePercent:     docstore.AsFloat(data["score"]),
		TotalQuestions:   docstore.AsInt(data["totalQuestions"]),
		CorrectAnswers:   docstore.AsInt(data["correctAnswers"]),
		TimeSpentMinutes: docstore.AsInt(data["timeSpent"]),
		RecordedAt:       docstore.AsTime(data["timestamp"]),
		Questions:        questionsFromDoc(data["questions"]),
		Answers:          answersFromDoc(data["userAnswers"]),
	}
}

// The snapshot round-trips through JSON so the stored shape stays the
// canonical question wire format regardless of backend decoding types.
func questionsToDoc(qs []question.Question) interface{} {
	data, err := json.Marshal(qs)
	if err != nil {
		return nil
	}
	var out []interface{}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil
	}
	return out
}

func questionsFromDoc(v interface{}) []question.Question {
	if v == nil {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	var qs []question.Question
	if err := json.Unmarshal(data, &qs); err != nil {
		return nil
	}
	return qs
}

func answersToDoc(answers []string) interface{} {
	out := make([]interface{}, len(answers))
	for i, a := range answers {
		out[i] = a
	}
	return out
}

func answersFromDoc(v interface{}) []string {
	raw := docstore.AsSlice(v)
	if raw == nil {
		return nil
	}
	answers := make([]string, len(raw))
	for i, a := range raw {
		answers[i] = docstore.AsString(a)
	}
	return answers
}
