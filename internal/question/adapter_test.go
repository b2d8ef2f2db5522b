package question

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeOptionsMapShape(t *testing.T) {
	q := Normalize(map[string]interface{}{
		"id":       "py-12",
		"question": "What does len() return?",
		"options": map[string]interface{}{
			"b": "The item count",
			"a": "The byte size",
			"c": "A boolean",
			"d": "Nothing",
		},
		"correctAnswer": "b",
	}, 0)

	require.Len(t, q.Options, 4)
	assert.Equal(t, "py-12", q.ID)
	assert.Equal(t, []string{"A", "B", "C", "D"}, optionKeys(q))
	assert.Equal(t, "The item count", q.Options[1].Text)
	assert.Equal(t, "B", q.CorrectKey)
	assert.Equal(t, 1, q.Marks)
	assert.Empty(t, q.Issues())
}

func TestNormalizeDiscreteOptionFields(t *testing.T) {
	q := Normalize(map[string]interface{}{
		"question":    "Pick one",
		"option1":     "first",
		"option2":     "second",
		"option3":     "third",
		"option4":     "fourth",
		"correct_ans": "c",
		"marks":       float64(2),
	}, 4)

	require.Len(t, q.Options, 4)
	assert.Equal(t, "q5", q.ID)
	assert.Equal(t, "third", q.Options[2].Text)
	assert.Equal(t, "C", q.CorrectKey)
	assert.Equal(t, 2, q.Marks)
}

func TestNormalizeMissingOptionsDegradesToPlaceholders(t *testing.T) {
	q := Normalize(map[string]interface{}{"question": "Orphan"}, 0)

	require.Len(t, q.Options, 4)
	assert.Equal(t, "Option A", q.Options[0].Text)
	assert.Equal(t, "Option D", q.Options[3].Text)
	assert.Empty(t, q.CorrectKey)
	assert.Contains(t, q.Issues()[0], "no resolvable correct answer")
}

func TestNormalizeAnswerFieldPrecedence(t *testing.T) {
	// correctAnswer outranks every other legacy field.
	q := Normalize(map[string]interface{}{
		"options":       map[string]interface{}{"a": "1", "b": "2"},
		"answer":        "b",
		"correctAnswer": "a",
	}, 0)
	assert.Equal(t, "A", q.CorrectKey)

	// A null first field falls through to the next one.
	q = Normalize(map[string]interface{}{
		"options":       map[string]interface{}{"a": "1", "b": "2"},
		"correctAnswer": nil,
		"right_answer":  "b",
	}, 0)
	assert.Equal(t, "B", q.CorrectKey)
}

func TestNormalizeNumericAnswerStringified(t *testing.T) {
	q := Normalize(map[string]interface{}{
		"options": map[string]interface{}{"1": "one", "2": "two"},
		"answer":  float64(2),
	}, 0)
	assert.Equal(t, "2", q.CorrectKey)
	assert.True(t, q.HasOption("2"))
}

func TestNormalizeAnswerOutsideOptionsIsFlaggedNotFatal(t *testing.T) {
	q := Normalize(map[string]interface{}{
		"options": map[string]interface{}{"a": "1", "b": "2"},
		"answer":  "e",
	}, 0)
	assert.Equal(t, "E", q.CorrectKey)
	require.Len(t, q.Issues(), 1)
	assert.Contains(t, q.Issues()[0], "not an option key")
}

func TestNormalizeNilInput(t *testing.T) {
	q := Normalize(nil, 2)
	assert.Equal(t, "q3", q.ID)
	require.Len(t, q.Options, 4)
}

func TestNormalizeSetArray(t *testing.T) {
	qs := NormalizeSet([]interface{}{
		map[string]interface{}{"question": "one", "answer": "a"},
		map[string]interface{}{"question": "two", "answer": "b"},
	})
	require.Len(t, qs, 2)
	assert.Equal(t, "q1", qs[0].ID)
	assert.Equal(t, "B", qs[1].CorrectKey)
}

func TestNormalizeSetKeyedMapSortsNumerically(t *testing.T) {
	qs := NormalizeSet(map[string]interface{}{
		"q10": map[string]interface{}{"question": "ten"},
		"q2":  map[string]interface{}{"question": "two"},
		"q1":  map[string]interface{}{"question": "one"},
	})
	require.Len(t, qs, 3)
	assert.Equal(t, "one", qs[0].Text)
	assert.Equal(t, "two", qs[1].Text)
	assert.Equal(t, "ten", qs[2].Text)
	assert.Equal(t, "q10", qs[2].ID)
}

func TestNormalizeSetJSONString(t *testing.T) {
	qs := NormalizeSet(`[{"question":"from json","correct":"a"}]`)
	require.Len(t, qs, 1)
	assert.Equal(t, "from json", qs[0].Text)
	assert.Equal(t, "A", qs[0].CorrectKey)
}

func TestNormalizeSetGarbage(t *testing.T) {
	assert.Empty(t, NormalizeSet("not json"))
	assert.Empty(t, NormalizeSet(42))
	assert.Empty(t, NormalizeSet(nil))
}

func optionKeys(q Question) []string {
	keys := make([]string, 0, len(q.Options))
	for _, opt := range q.Options {
		keys = append(keys, opt.Key)
	}
	return keys
}
