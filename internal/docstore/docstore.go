package docstore

import (
	"context"
	"errors"
)

// ErrUnavailable wraps backend connectivity failures so callers can treat
// them uniformly as non-fatal.
var ErrUnavailable = errors.New("document store unavailable")

// Document is one stored record plus its identifier.
type Document struct {
	ID   string
	Data map[string]interface{}
}

// Filter ops.
const (
	OpEqual          = "=="
	OpGreaterOrEqual = ">="
	OpLessOrEqual    = "<="
)

// Filter constrains a query to documents whose field matches Value under Op.
type Filter struct {
	Field string
	Op    string
	Value interface{}
}

// Order sorts query results by one field.
type Order struct {
	Field string
	Desc  bool
}

// Store is the key-value-with-query view of the persistence backend. No
// transactions are assumed; read-then-write callers are best-effort.
type Store interface {
	// GetCollection returns every document in the collection.
	GetCollection(ctx context.Context, collection string) ([]Document, error)
	// GetDocument returns a document's data, or nil when it does not exist.
	GetDocument(ctx context.Context, collection, id string) (map[string]interface{}, error)
	// SetDocument creates or fully replaces the document at id.
	SetDocument(ctx context.Context, collection, id string, data map[string]interface{}) error
	// AddDocument inserts a document under a generated id and returns it.
	AddDocument(ctx context.Context, collection string, data map[string]interface{}) (string, error)
	// DeleteDocument removes a document; deleting a missing one is not an error.
	DeleteDocument(ctx context.Context, collection, id string) error
	// Query returns documents matching every filter, ordered and limited.
	// A nil order leaves the backend order; limit <= 0 means no limit.
	Query(ctx context.Context, collection string, filters []Filter, order *Order, limit int) ([]Document, error)
}
