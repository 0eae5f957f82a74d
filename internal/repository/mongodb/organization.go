package mongodb

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/livsafe/livsafe-api/internal/model"
	"github.com/livsafe/livsafe-api/internal/repository"
)

type organizationRepository struct {
	db   *DB
	coll *mongo.Collection
}

func (r *organizationRepository) Create(ctx context.Context, org *model.Organization) (err error) {
	defer r.db.observe(collOrganizations, "insert", time.Now(), &err)

	if org.ID.IsZero() {
		org.ID = primitive.NewObjectID()
	}
	_, err = r.coll.InsertOne(ctx, org)
	return translate(err)
}

func (r *organizationRepository) findOne(ctx context.Context, filter bson.M) (*model.Organization, error) {
	var o model.Organization
	if err := r.coll.FindOne(ctx, filter).Decode(&o); err != nil {
		return nil, translate(err)
	}
	return &o, nil
}

func (r *organizationRepository) GetByID(ctx context.Context, id primitive.ObjectID) (o *model.Organization, err error) {
	defer r.db.observe(collOrganizations, "find_one", time.Now(), &err)
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *organizationRepository) GetByEmail(ctx context.Context, email string) (o *model.Organization, err error) {
	defer r.db.observe(collOrganizations, "find_one", time.Now(), &err)
	return r.findOne(ctx, bson.M{"email": email})
}

func (r *organizationRepository) List(ctx context.Context) (out []*model.Organization, err error) {
	defer r.db.observe(collOrganizations, "find", time.Now(), &err)

	sort := bson.D{{Key: "name", Value: 1}, {Key: "_id", Value: 1}}
	cur, err := r.coll.Find(ctx, bson.M{}, options.Find().SetSort(sort))
	if err != nil {
		return nil, fmt.Errorf("failed to list organizations: %w", err)
	}
	out = []*model.Organization{}
	if err = cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("failed to decode organizations: %w", err)
	}
	return out, nil
}

func (r *organizationRepository) Update(ctx context.Context, org *model.Organization) (err error) {
	defer r.db.observe(collOrganizations, "update", time.Now(), &err)

	return requireMatch(r.coll.UpdateByID(ctx, org.ID, bson.M{"$set": bson.M{
		"name":  org.Name,
		"email": org.Email,
		"type":  org.Type,
	}}))
}

func (r *organizationRepository) UpdatePassword(ctx context.Context, id primitive.ObjectID, hash string) (err error) {
	defer r.db.observe(collOrganizations, "update", time.Now(), &err)
	return requireMatch(r.coll.UpdateByID(ctx, id, bson.M{"$set": bson.M{"password": hash}}))
}

func (r *organizationRepository) Delete(ctx context.Context, id primitive.ObjectID) (err error) {
	defer r.db.observe(collOrganizations, "delete", time.Now(), &err)

	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete organization: %w", err)
	}
	if res.DeletedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}
