package docstore

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoStore implements Store on a MongoDB database. Document ids live in
// the _id field; the rest of the record round-trips as a plain map.
type MongoStore struct {
	db *mongo.Database
}

var _ Store = (*MongoStore)(nil)

// NewMongoStore wraps an already-connected database handle.
func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{db: db}
}

// Connect dials MongoDB and verifies the connection with a ping.
func Connect(ctx context.Context, uri, database string) (*MongoStore, *mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, nil, fmt.Errorf("ping mongo: %w", err)
	}
	return NewMongoStore(client.Database(database)), client, nil
}

func (s *MongoStore) GetCollection(ctx context.Context, collection string) ([]Document, error) {
	cur, err := s.db.Collection(collection).Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("%w: find %s: %v", ErrUnavailable, collection, err)
	}
	return decodeAll(ctx, cur)
}

func (s *MongoStore) GetDocument(ctx context.Context, collection, id string) (map[string]interface{}, error) {
	var raw bson.M
	err := s.db.Collection(collection).FindOne(ctx, bson.M{"_id": id}).Decode(&raw)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get %s/%s: %v", ErrUnavailable, collection, id, err)
	}
	return stripID(raw), nil
}

func (s *MongoStore) SetDocument(ctx context.Context, collection, id string, data map[string]interface{}) error {
	doc := bson.M{}
	for k, v := range data {
		doc[k] = v
	}
	doc["_id"] = id

	opts := options.Replace().SetUpsert(true)
	if _, err := s.db.Collection(collection).ReplaceOne(ctx, bson.M{"_id": id}, doc, opts); err != nil {
		return fmt.Errorf("%w: set %s/%s: %v", ErrUnavailable, collection, id, err)
	}
	return nil
}

func (s *MongoStore) AddDocument(ctx context.Context, collection string, data map[string]interface{}) (string, error) {
	id := uuid.NewString()
	if err := s.SetDocument(ctx, collection, id, data); err != nil {
		return "", err
	}
	return id, nil
}

func (s *MongoStore) DeleteDocument(ctx context.Context, collection, id string) error {
	if _, err := s.db.Collection(collection).DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return fmt.Errorf("%w: delete %s/%s: %v", ErrUnavailable, collection, id, err)
	}
	return nil
}

func (s *MongoStore) Query(ctx context.Context, collection string, filters []Filter, order *Order, limit int) ([]Document, error) {
	query := bson.M{}
	for _, f := range filters {
		switch f.Op {
		case OpEqual, "":
			query[f.Field] = f.Value
		case OpGreaterOrEqual:
			query[f.Field] = bson.M{"$gte": f.Value}
		case OpLessOrEqual:
			query[f.Field] = bson.M{"$lte": f.Value}
		default:
			return nil, fmt.Errorf("unsupported filter op %q", f.Op)
		}
	}

	opts := options.Find()
	if order != nil {
		dir := 1
		if order.Desc {
			dir = -1
		}
		opts.SetSort(bson.D{{Key: order.Field, Value: dir}})
	}
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cur, err := s.db.Collection(collection).Find(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: query %s: %v", ErrUnavailable, collection, err)
	}
	return decodeAll(ctx, cur)
}

func decodeAll(ctx context.Context, cur *mongo.Cursor) ([]Document, error) {
	defer cur.Close(ctx)

	var docs []Document
	for cur.Next(ctx) {
		var raw bson.M
		if err := cur.Decode(&raw); err != nil {
			return nil, fmt.Errorf("decode document: %w", err)
		}
		id, _ := raw["_id"].(string)
		docs = append(docs, Document{ID: id, Data: stripID(raw)})
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("%w: cursor: %v", ErrUnavailable, err)
	}
	return docs, nil
}

func stripID(raw bson.M) map[string]interface{} {
	data := make(map[string]interface{}, len(raw))
	for k, v := range raw {
		if k == "_id" {
			continue
		}
		data[k] = plainValue(v)
	}
	return data
}

// plainValue rewrites BSON container types into plain maps and slices so
// services can type-switch on document fields without importing bson.
func plainValue(v interface{}) interface{} {
	switch t := v.(type) {
	case primitive.M:
		m := make(map[string]interface{}, len(t))
		for k, el := range t {
			m[k] = plainValue(el)
		}
		return m
	case map[string]interface{}:
		m := make(map[string]interface{}, len(t))
		for k, el := range t {
			m[k] = plainValue(el)
		}
		return m
	case primitive.A:
		s := make([]interface{}, len(t))
		for i, el := range t {
			s[i] = plainValue(el)
		}
		return s
	case []interface{}:
		s := make([]interface{}, len(t))
		for i, el := range t {
			s[i] = plainValue(el)
		}
		return s
	case primitive.DateTime:
		return t.Time().UTC()
	default:
		return v
	}
}
