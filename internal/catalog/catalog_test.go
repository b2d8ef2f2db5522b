package catalog

import (
	"context"
	"io"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dotest/exam-platform/internal/docstore"
)

func seedTest(t *testing.T, store *docstore.MemoryStore, subject, testID string, questions interface{}) {
	t.Helper()
	err := store.SetDocument(context.Background(), "tests", subject+"/"+testID, map[string]interface{}{
		"subject":   subject,
		"testId":    testID,
		"questions": questions,
	})
	require.NoError(t, err)
}

func rawQuestions() []interface{} {
	return []interface{}{
		map[string]interface{}{
			"id":       "q1",
			"question": "2 + 2?",
			"options":  map[string]interface{}{"A": "3", "B": "4"},
			"answer":   "b",
		},
		map[string]interface{}{
			"id":       "q2",
			"question": "3 * 3?",
			"option1":  "6", "option2": "9", "option3": "12", "option4": "15",
			"correctAnswer": "B",
		},
	}
}

func TestSubjectsDistinctSorted(t *testing.T) {
	store := docstore.NewMemoryStore()
	svc := NewService(store, zerolog.New(io.Discard), ServiceOptions{})

	seedTest(t, store, "Python", "test1", rawQuestions())
	seedTest(t, store, "Python", "test2", rawQuestions())
	seedTest(t, store, "Aptitude", "test1", rawQuestions())

	subjects, err := svc.Subjects(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Aptitude", "Python"}, subjects)
}

func TestTestsForSubject(t *testing.T) {
	store := docstore.NewMemoryStore()
	svc := NewService(store, zerolog.New(io.Discard), ServiceOptions{})

	seedTest(t, store, "Python", "test2", rawQuestions())
	seedTest(t, store, "Python", "test1", rawQuestions())
	seedTest(t, store, "Aptitude", "test1", rawQuestions())

	tests, err := svc.Tests(context.Background(), "Python")
	require.NoError(t, err)
	require.Len(t, tests, 2)
	assert.Equal(t, "test1", tests[0].TestID)
	assert.Equal(t, "test2", tests[1].TestID)
	assert.Equal(t, 2, tests[0].QuestionCount)
}

func TestQuestionsNormalized(t *testing.T) {
	store := docstore.NewMemoryStore()
	svc := NewService(store, zerolog.New(io.Discard), ServiceOptions{})

	seedTest(t, store, "Python", "test1", rawQuestions())

	questions, err := svc.Questions(context.Background(), "Python", "test1")
	require.NoError(t, err)
	require.Len(t, questions, 2)
	assert.Equal(t, "B", questions[0].CorrectKey)
	require.Len(t, questions[1].Options, 4)
	assert.Equal(t, "9", questions[1].Options[1].Text)
}

func TestQuestionsMissingTest(t *testing.T) {
	store := docstore.NewMemoryStore()
	svc := NewService(store, zerolog.New(io.Discard), ServiceOptions{})

	questions, err := svc.Questions(context.Background(), "Python", "ghost")
	require.NoError(t, err)
	assert.Nil(t, questions)
}
