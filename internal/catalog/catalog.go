package catalog

import (
	"context"
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"github.com/dotest/exam-platform/internal/docstore"
	"github.com/dotest/exam-platform/internal/question"
)

const defaultCollection = "tests"

// TestInfo describes one selectable test within a subject.
type TestInfo struct {
	Subject       string `json:"subject"`
	TestID        string `json:"testId"`
	QuestionCount int    `json:"questionCount"`
}

// ServiceOptions configures the catalog service.
type ServiceOptions struct {
	Collection string
}

// Service lists subjects and tests and loads a test's question set
// through the normalization adapter, so callers only ever see the
// canonical question shape.
type Service struct {
	store      docstore.Store
	logger     zerolog.Logger
	collection string
}

// NewService constructs a catalog service instance.
func NewService(store docstore.Store, logger zerolog.Logger, opts ServiceOptions) *Service {
	collection := opts.Collection
	if collection == "" {
		collection = defaultCollection
	}
	return &Service{
		store:      store,
		logger:     logger.With().Str("component", "catalog").Logger(),
		collection: collection,
	}
}

// Subjects returns the distinct subject names, sorted.
func (s *Service) Subjects(ctx context.Context) ([]string, error) {
	docs, err := s.store.GetCollection(ctx, s.collection)
	if err != nil {
		return nil, fmt.Errorf("list subjects: %w", err)
	}

	seen := make(map[string]bool)
	for _, doc := range docs {
		if subject := docstore.AsString(doc.Data["subject"]); subject != "" {
			seen[subject] = true
		}
	}

	subjects := make([]string, 0, len(seen))
	for subject := range seen {
		subjects = append(subjects, subject)
	}
	sort.Strings(subjects)
	return subjects, nil
}

// Tests returns the tests available for one subject, sorted by id.
func (s *Service) Tests(ctx context.Context, subject string) ([]TestInfo, error) {
	docs, err := s.store.Query(ctx, s.collection,
		[]docstore.Filter{{Field: "subject", Op: docstore.OpEqual, Value: subject}}, nil, 0)
	if err != nil {
		return nil, fmt.Errorf("list tests: %w", err)
	}

	tests := make([]TestInfo, 0, len(docs))
	for _, doc := range docs {
		tests = append(tests, TestInfo{
			Subject:       subject,
			TestID:        docstore.AsString(doc.Data["testId"]),
			QuestionCount: len(question.NormalizeSet(doc.Data["questions"])),
		})
	}
	sort.Slice(tests, func(i, j int) bool { return tests[i].TestID < tests[j].TestID })
	return tests, nil
}

// Questions loads one test's question set in normalized form. A missing
// test returns nil without error; questions with data-quality issues
// are logged and kept.
func (s *Service) Questions(ctx context.Context, subject, testID string) ([]question.Question, error) {
	data, err := s.store.GetDocument(ctx, s.collection, testKey(subject, testID))
	if err != nil {
		return nil, fmt.Errorf("load test %s/%s: %w", subject, testID, err)
	}
	if data == nil {
		return nil, nil
	}

	questions := question.NormalizeSet(data["questions"])
	for _, q := range questions {
		for _, issue := range q.Issues() {
			s.logger.Warn().
				Str("subject", subject).
				Str("test_id", testID).
				Str("question_id", q.ID).
				Str("issue", issue).
				Msg("question data quality")
		}
	}
	return questions, nil
}

func testKey(subject, testID string) string {
	return subject + "/" + testID
}
