package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	// Timeout connection attempts after N seconds
	connectTimeout           = 5
	connectionStringTemplate = "mongodb://%s:%s@%s"
)

// todoDocument is the persisted shape of a ToDo.
type todoDocument struct {
	ID           string `bson:"_id"`
	PartitionKey string `bson:"partitionKey"`
	Title        string `bson:"title"`
	IsComplete   bool   `bson:"isComplete"`
}

func toDocument(t ToDo) todoDocument {
	return todoDocument{ID: t.ID, PartitionKey: partitionKey, Title: t.Title, IsComplete: t.IsComplete}
}

func (d todoDocument) toModel() ToDo {
	return ToDo{ID: d.ID, Title: d.Title, IsComplete: d.IsComplete}
}

// MongoStore keeps todos in a single MongoDB collection.
type MongoStore struct {
	client     *mongo.Client
	collection *mongo.Collection
}

var _ Store = (*MongoStore)(nil)

// mongoURI builds the connection string, preferring an explicit URI.
func mongoURI(cfg MongoConfig) string {
	if cfg.URI != "" {
		return cfg.URI
	}
	return fmt.Sprintf(connectionStringTemplate, cfg.Username, cfg.Password, cfg.Endpoint)
}

// NewMongoStore connects to the cluster and verifies the connection with a ping.
// The returned store holds one client for the life of the process.
func NewMongoStore(ctx context.Context, cfg MongoConfig) (*MongoStore, error) {
	ctx, cancel := context.WithTimeout(ctx, connectTimeout*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(mongoURI(cfg)))
	if err != nil {
		return nil, fmt.Errorf("connecting to cluster: %w", err)
	}

	// Force a connection to verify our connection string
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("pinging cluster: %w", err)
	}

	log.WithField("database", cfg.Database).Info("Connected to MongoDB!")
	return &MongoStore{
		client:     client,
		collection: client.Database(cfg.Database).Collection(cfg.Collection),
	}, nil
}

// Get retrieves a todo by its id from the db
func (s *MongoStore) Get(ctx context.Context, id string) (*ToDo, error) {
	var doc todoDocument
	err := s.collection.FindOne(ctx, bson.M{"_id": id, "partitionKey": partitionKey}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		log.WithError(err).WithField("todo-id", id).Error("Failed loading todo")
		return nil, fmt.Errorf("%w: loading todo %s: %v", ErrPersistence, id, err)
	}
	t := doc.toModel()
	return &t, nil
}

// mongoFilter translates f into a query document. Callers handle f.Empty().
func mongoFilter(f Filter) bson.M {
	q := bson.M{"partitionKey": partitionKey}
	switch {
	case f.IncludeCompleted && !f.IncludeActive:
		q["isComplete"] = true
	case f.IncludeActive && !f.IncludeCompleted:
		q["isComplete"] = false
	}
	return q
}

// List retrieves all todos passing f
func (s *MongoStore) List(ctx context.Context, f Filter) ([]ToDo, error) {
	todos := []ToDo{}
	if f.Empty() {
		return todos, nil
	}

	cursor, err := s.collection.Find(ctx, mongoFilter(f))
	if err != nil {
		return nil, fmt.Errorf("%w: listing todos: %v", ErrPersistence, err)
	}
	defer cursor.Close(ctx)

	var docs []todoDocument
	if err := cursor.All(ctx, &docs); err != nil {
		log.WithError(err).Error("Failed decoding todos")
		return nil, fmt.Errorf("%w: decoding todos: %v", ErrPersistence, err)
	}
	for _, d := range docs {
		todos = append(todos, d.toModel())
	}
	return todos, nil
}

// Upsert replaces the whole document stored under t.ID, creating it if needed
func (s *MongoStore) Upsert(ctx context.Context, t ToDo) error {
	opts := options.Replace().SetUpsert(true)
	_, err := s.collection.ReplaceOne(ctx, bson.M{"_id": t.ID, "partitionKey": partitionKey}, toDocument(t), opts)
	if err != nil {
		log.WithError(err).WithField("todo-id", t.ID).Error("Could not save todo")
		return fmt.Errorf("%w: saving todo %s: %v", ErrPersistence, t.ID, err)
	}
	return nil
}

// Delete removes the document; deleting a missing id is a no-op
func (s *MongoStore) Delete(ctx context.Context, id string) error {
	if _, err := s.collection.DeleteOne(ctx, bson.M{"_id": id, "partitionKey": partitionKey}); err != nil {
		return fmt.Errorf("%w: deleting todo %s: %v", ErrPersistence, id, err)
	}
	return nil
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
