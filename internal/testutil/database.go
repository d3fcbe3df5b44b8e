// Package testutil provides testing utilities for store integration tests.
//
// Database Setup:
//
//	db := testutil.SetupMongoDB(t)
//	defer testutil.TeardownDB(t, db)
package testutil

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// MongoTestURI is the default connection string for the test MongoDB
// instance, overridable via the TEST_MONGO_URI environment variable.
const MongoTestURI = "mongodb://localhost:27017"

// MongoTestDatabase is the name of the throwaway database store tests run
// against.
const MongoTestDatabase = "flexauth_test"

// collectionNames lists every collection CleanupMongoDB resets between
// tests (spec.md §3's entities).
var collectionNames = []string{
	"users",
	"deks",
	"sessions",
	"forget_password_requests",
	"email_verification_requests",
}

// SetupMongoDB opens a connection to the test MongoDB instance and clears
// all FlexAuth collections so the test starts from a clean slate.
func SetupMongoDB(t *testing.T) *mongo.Database {
	t.Helper()

	uri := getMongoTestURI()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	require.NoError(t, err, "failed to connect to mongo")

	require.NoError(t, client.Ping(ctx, nil), "failed to ping mongo")

	db := client.Database(MongoTestDatabase)
	CleanupMongoDB(t, db)

	return db
}

// TeardownDB disconnects the underlying mongo client.
func TeardownDB(t *testing.T, db *mongo.Database) {
	t.Helper()
	if db == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, db.Client().Disconnect(ctx), "failed to disconnect mongo client")
}

// CleanupMongoDB drops every FlexAuth collection in db, leaving indexes and
// data wiped for the next test.
func CleanupMongoDB(t *testing.T, db *mongo.Database) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for _, name := range collectionNames {
		err := db.Collection(name).Drop(ctx)
		require.NoError(t, err, "failed to drop collection "+name)
	}
}

func getMongoTestURI() string {
	if uri := os.Getenv("TEST_MONGO_URI"); uri != "" {
		return uri
	}
	return MongoTestURI
}
