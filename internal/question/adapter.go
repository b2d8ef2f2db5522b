package question

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Stored tests accumulated several question shapes over time. The adapter
// folds all of them into the canonical Question without ever failing:
// malformed input degrades to a best-effort question instead.

// answerFields is the ordered list of legacy field names that may carry the
// correct answer. The first present, non-null value wins.
var answerFields = []string{
	"correctAnswer",
	"correct_ans",
	"answer",
	"correct",
	"correct_option",
	"right_answer",
}

var positionalKeys = []string{"A", "B", "C", "D"}

// Normalize converts one raw stored question into the canonical shape.
// position is the zero-based index of the question inside its test and is
// used for the fallback ID.
func Normalize(raw map[string]interface{}, position int) Question {
	q := Question{
		ID:    fmt.Sprintf("q%d", position+1),
		Marks: 1,
	}
	if raw == nil {
		q.Options = placeholderOptions()
		return q
	}

	if id := stringField(raw, "id"); id != "" {
		q.ID = id
	}
	if text := stringField(raw, "question"); text != "" {
		q.Text = text
	} else {
		q.Text = stringField(raw, "text")
	}
	q.Explanation = stringField(raw, "explanation")

	if marks, ok := intField(raw, "marks"); ok && marks > 0 {
		q.Marks = marks
	}

	q.Options = normalizeOptions(raw)

	for _, field := range answerFields {
		val, ok := raw[field]
		if !ok || val == nil {
			continue
		}
		q.CorrectKey = strings.ToUpper(stringify(val))
		break
	}

	return q
}

// NormalizeSet accepts a whole stored test body: a JSON array, a JSON string
// encoding one, or a keyed map q1..qN (sorted numerically). Unusable input
// yields an empty slice, which the session layer rejects as invalid input.
func NormalizeSet(raw interface{}) []Question {
	items := itemize(raw)
	questions := make([]Question, 0, len(items))
	for i, item := range items {
		questions = append(questions, Normalize(item, i))
	}
	return questions
}

func itemize(raw interface{}) []map[string]interface{} {
	switch v := raw.(type) {
	case nil:
		return nil
	case []map[string]interface{}:
		return v
	case []interface{}:
		items := make([]map[string]interface{}, 0, len(v))
		for _, el := range v {
			m, _ := el.(map[string]interface{})
			items = append(items, m)
		}
		return items
	case string:
		var decoded interface{}
		if err := json.Unmarshal([]byte(v), &decoded); err != nil {
			return nil
		}
		return itemize(decoded)
	case map[string]interface{}:
		return itemizeKeyed(v)
	default:
		return nil
	}
}

// itemizeKeyed sorts q1, q2, ... q10 numerically, not lexically.
func itemizeKeyed(m map[string]interface{}) []map[string]interface{} {
	keys := make([]string, 0, len(m))
	for k := range m {
		if _, ok := m[k].(map[string]interface{}); ok {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		return keyNumber(keys[i]) < keyNumber(keys[j])
	})

	items := make([]map[string]interface{}, 0, len(keys))
	for _, k := range keys {
		item := m[k].(map[string]interface{})
		if _, ok := item["id"]; !ok {
			item = withID(item, k)
		}
		items = append(items, item)
	}
	return items
}

func withID(item map[string]interface{}, id string) map[string]interface{} {
	copied := make(map[string]interface{}, len(item)+1)
	for k, v := range item {
		copied[k] = v
	}
	copied["id"] = id
	return copied
}

func keyNumber(key string) int {
	n, err := strconv.Atoi(strings.TrimPrefix(key, "q"))
	if err != nil {
		return 0
	}
	return n
}

func normalizeOptions(raw map[string]interface{}) []Option {
	if m, ok := raw["options"].(map[string]interface{}); ok && len(m) > 0 {
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		sort.Slice(keys, func(i, j int) bool {
			return strings.ToUpper(keys[i]) < strings.ToUpper(keys[j])
		})
		opts := make([]Option, 0, len(keys))
		for _, k := range keys {
			opts = append(opts, Option{
				Key:  strings.ToUpper(k),
				Text: stringify(m[k]),
			})
		}
		return opts
	}

	// Discrete option1..option4 fields map positionally onto A-D.
	discrete := make([]Option, 0, len(positionalKeys))
	for i, key := range positionalKeys {
		text := stringField(raw, fmt.Sprintf("option%d", i+1))
		if text == "" {
			break
		}
		discrete = append(discrete, Option{Key: key, Text: text})
	}
	if len(discrete) == len(positionalKeys) {
		return discrete
	}

	return placeholderOptions()
}

// placeholderOptions is the degraded-mode default for questions that carry
// no option data at all.
func placeholderOptions() []Option {
	opts := make([]Option, 0, len(positionalKeys))
	for _, key := range positionalKeys {
		opts = append(opts, Option{Key: key, Text: "Option " + key})
	}
	return opts
}

func stringField(raw map[string]interface{}, field string) string {
	val, ok := raw[field]
	if !ok || val == nil {
		return ""
	}
	return stringify(val)
}

func intField(raw map[string]interface{}, field string) (int, bool) {
	switch v := raw[field].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	case string:
		n, err := strconv.Atoi(v)
		return n, err == nil
	default:
		return 0, false
	}
}

func stringify(val interface{}) string {
	switch v := val.(type) {
	case string:
		return v
	case float64:
		if v == float64(int64(v)) {
			return strconv.FormatInt(int64(v), 10)
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}
