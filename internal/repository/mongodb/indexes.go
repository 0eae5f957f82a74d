package mongodb

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// EnsureIndexes creates the indexes the queries rely on. It is idempotent.
func (d *DB) EnsureIndexes(ctx context.Context) error {
	specs := map[string][]mongo.IndexModel{
		collDoctors: {
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "organization", Value: 1}}},
			{Keys: bson.D{{Key: "patients", Value: 1}}},
		},
		collOrganizations: {
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		collPatients: {
			{Keys: bson.D{{Key: "fullName", Value: 1}}},
			{Keys: bson.D{{Key: "doctors", Value: 1}}},
		},
		collMedicalImages: {
			{Keys: bson.D{{Key: "doctor", Value: 1}, {Key: "uploadedAt", Value: -1}}},
			{Keys: bson.D{{Key: "patient", Value: 1}}},
		},
		collAuditLogs: {
			{Keys: bson.D{{Key: "createdAt", Value: 1}}},
		},
	}

	for coll, models := range specs {
		if _, err := d.db.Collection(coll).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("failed to create %s indexes: %w", coll, err)
		}
	}
	return nil
}
