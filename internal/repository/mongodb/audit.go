package mongodb

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/livsafe/livsafe-api/internal/model"
)

type auditRepository struct {
	db   *DB
	coll *mongo.Collection
}

func (r *auditRepository) Create(ctx context.Context, log *model.AuditLog) (err error) {
	defer r.db.observe(collAuditLogs, "insert", time.Now(), &err)

	if _, err = r.coll.InsertOne(ctx, log); err != nil {
		return fmt.Errorf("failed to insert audit log: %w", err)
	}
	return nil
}

func (r *auditRepository) Cleanup(ctx context.Context, before time.Time) (n int64, err error) {
	defer r.db.observe(collAuditLogs, "delete_many", time.Now(), &err)

	res, err := r.coll.DeleteMany(ctx, bson.M{"createdAt": bson.M{"$lt": before}})
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup audit logs: %w", err)
	}
	return res.DeletedCount, nil
}
