package database

import (
	"errors"

	"go.mongodb.org/mongo-driver/v2/mongo"
)

// IsNotFound reports whether err is Mongo's "no matching document" sentinel,
// returned by FindOne/FindOneAndUpdate/FindOneAndDelete when the filter
// matches nothing. Stores translate this into the appropriate domain
// NotFound error kind rather than leaking the driver error.
func IsNotFound(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}
