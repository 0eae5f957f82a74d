package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ParseID parses a hex identifier from a path or body.
func ParseID(hex string) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(hex)
	if err != nil {
		return primitive.NilObjectID, false
	}
	return id, true
}

// ContainsID reports whether ids holds id.
func ContainsID(ids []primitive.ObjectID, id primitive.ObjectID) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

// Clock returns the current time. Services take one so tests can pin "now".
type Clock func() time.Time
