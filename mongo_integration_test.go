//go:build integration

package main

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// These tests run against a live MongoDB.
// Set MONGODB_TEST_URI (e.g. mongodb://localhost:27017).
//
// Run: go test -tags integration -run Mongo .

func TestMongoStore(t *testing.T) {
	uri := os.Getenv("MONGODB_TEST_URI")
	if uri == "" {
		t.Skip("MONGODB_TEST_URI not set, skipping integration tests")
	}

	storeContract(t, func(t *testing.T) Store {
		ctx := context.Background()
		s, err := NewMongoStore(ctx, MongoConfig{
			URI:        uri,
			Database:   "todo_test",
			Collection: fmt.Sprintf("todos_%d", time.Now().UnixNano()),
		})
		require.NoError(t, err)
		t.Cleanup(func() {
			_ = s.collection.Drop(ctx)
			_ = s.Close(ctx)
		})
		return s
	})
}
