package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	cryptoDomain "github.com/allisson/flexauth/internal/crypto/domain"
	"github.com/allisson/flexauth/internal/crypto/service"
)

const deksCollection = "deks"

// rewrappedFields are the DEK record fields encrypted under the server KEK
// (SPEC_FULL.md §4.1: the rotate-kek command walks these as a generic bson.M
// rather than a typed struct, since it only handles a fixed, known set of
// string fields).
var rewrappedFields = []string{"uid", "email", "dek"}

// RunRotateKek re-encrypts every DEK record from oldKEK to newKEK, logging
// progress every batchSize documents (SPEC_FULL.md §4.1/CLI `rotate-kek`).
// Re-running a completed rotation with the same (oldKEK, newKEK) pair stops
// with a decryption error at the first record already under newKEK, before
// that record is written.
func RunRotateKek(
	ctx context.Context,
	db *mongo.Database,
	crypto service.CryptoService,
	oldKEK cryptoDomain.KEK,
	newKEK cryptoDomain.KEK,
	batchSize int,
	logger *slog.Logger,
	writer io.Writer,
) error {
	if batchSize <= 0 {
		return fmt.Errorf("batch-size must be greater than 0")
	}

	logger.Info("starting KEK rotation")

	collection := db.Collection(deksCollection)

	cursor, err := collection.Find(ctx, bson.D{})
	if err != nil {
		return fmt.Errorf("failed to query dek records: %w", err)
	}
	defer cursor.Close(ctx)

	total := 0
	inBatch := 0
	for cursor.Next(ctx) {
		var doc bson.M
		if err := cursor.Decode(&doc); err != nil {
			return fmt.Errorf("failed to decode dek record: %w", err)
		}

		update := bson.D{{Key: "updated_at", Value: time.Now().UTC()}}
		for _, field := range rewrappedFields {
			ciphertext, ok := doc[field].(string)
			if !ok {
				return fmt.Errorf("dek record %v missing field %q", doc["_id"], field)
			}
			plaintext, err := crypto.Decrypt(ciphertext, string(oldKEK))
			if err != nil {
				return fmt.Errorf("failed to decrypt field %q of record %v under old kek: %w", field, doc["_id"], err)
			}
			rewrapped, err := crypto.Encrypt(plaintext, string(newKEK))
			if err != nil {
				return fmt.Errorf("failed to encrypt field %q of record %v under new kek: %w", field, doc["_id"], err)
			}
			update = append(update, bson.E{Key: field, Value: rewrapped})
		}

		if _, err := collection.UpdateOne(ctx,
			bson.D{{Key: "_id", Value: doc["_id"]}},
			bson.D{{Key: "$set", Value: update}},
		); err != nil {
			return fmt.Errorf("failed to update rewrapped record %v: %w", doc["_id"], err)
		}

		total++
		inBatch++
		if inBatch >= batchSize {
			logger.Info("rewrapped batch of dek records", slog.Int("total_rewrapped", total))
			inBatch = 0
		}
	}
	if err := cursor.Err(); err != nil {
		return fmt.Errorf("cursor error while rewrapping dek records: %w", err)
	}

	logger.Info("KEK rotation completed", slog.Int("total_rewrapped", total))
	_, _ = fmt.Fprintf(writer, "Rewrapped %d DEK record(s) under the new KEK\n", total)
	return nil
}
