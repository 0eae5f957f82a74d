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

type doctorRepository struct {
	db   *DB
	coll *mongo.Collection
}

func (r *doctorRepository) Create(ctx context.Context, doctor *model.Doctor) (err error) {
	defer r.db.observe(collDoctors, "insert", time.Now(), &err)

	if doctor.ID.IsZero() {
		doctor.ID = primitive.NewObjectID()
	}
	if doctor.Patients == nil {
		doctor.Patients = []primitive.ObjectID{}
	}
	_, err = r.coll.InsertOne(ctx, doctor)
	return translate(err)
}

func (r *doctorRepository) findOne(ctx context.Context, filter bson.M) (*model.Doctor, error) {
	var d model.Doctor
	if err := r.coll.FindOne(ctx, filter).Decode(&d); err != nil {
		return nil, translate(err)
	}
	return &d, nil
}

func (r *doctorRepository) GetByID(ctx context.Context, id primitive.ObjectID) (d *model.Doctor, err error) {
	defer r.db.observe(collDoctors, "find_one", time.Now(), &err)
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *doctorRepository) GetByEmail(ctx context.Context, email string) (d *model.Doctor, err error) {
	defer r.db.observe(collDoctors, "find_one", time.Now(), &err)
	return r.findOne(ctx, bson.M{"email": email})
}

func (r *doctorRepository) List(ctx context.Context, filter repository.DoctorFilter) (out []*model.Doctor, err error) {
	defer r.db.observe(collDoctors, "find", time.Now(), &err)

	cur, err := r.coll.Find(ctx, doctorQuery(filter), options.Find().SetSort(newestFirst))
	if err != nil {
		return nil, fmt.Errorf("failed to list doctors: %w", err)
	}
	out = []*model.Doctor{}
	if err = cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("failed to decode doctors: %w", err)
	}
	return out, nil
}

func (r *doctorRepository) Count(ctx context.Context, filter repository.DoctorFilter) (n int64, err error) {
	defer r.db.observe(collDoctors, "count", time.Now(), &err)
	return r.coll.CountDocuments(ctx, doctorQuery(filter))
}

func (r *doctorRepository) update(ctx context.Context, id primitive.ObjectID, update bson.M) (err error) {
	defer r.db.observe(collDoctors, "update", time.Now(), &err)
	return requireMatch(r.coll.UpdateByID(ctx, id, update))
}

func (r *doctorRepository) UpdateProfile(ctx context.Context, id primitive.ObjectID, fullName, specialty string) error {
	return r.update(ctx, id, bson.M{"$set": bson.M{"fullName": fullName, "specialty": specialty}})
}

func (r *doctorRepository) UpdatePassword(ctx context.Context, id primitive.ObjectID, hash string) error {
	return r.update(ctx, id, bson.M{"$set": bson.M{"password": hash}})
}

func (r *doctorRepository) SetOrganization(ctx context.Context, id primitive.ObjectID, orgID *primitive.ObjectID) error {
	var value interface{}
	if orgID != nil {
		value = *orgID
	}
	return r.update(ctx, id, bson.M{"$set": bson.M{"organization": value}})
}

func (r *doctorRepository) DetachOrganization(ctx context.Context, orgID primitive.ObjectID) (n int64, err error) {
	defer r.db.observe(collDoctors, "update_many", time.Now(), &err)

	res, err := r.coll.UpdateMany(ctx,
		bson.M{"organization": orgID},
		bson.M{"$set": bson.M{"organization": nil}},
	)
	if err != nil {
		return 0, fmt.Errorf("failed to detach organization: %w", err)
	}
	return res.ModifiedCount, nil
}

func (r *doctorRepository) AddPatient(ctx context.Context, doctorID, patientID primitive.ObjectID) error {
	return r.update(ctx, doctorID, bson.M{"$addToSet": bson.M{"patients": patientID}})
}

func (r *doctorRepository) RemovePatient(ctx context.Context, doctorID, patientID primitive.ObjectID) error {
	return r.update(ctx, doctorID, bson.M{"$pull": bson.M{"patients": patientID}})
}

func (r *doctorRepository) RemovePatientEverywhere(ctx context.Context, patientID primitive.ObjectID) (n int64, err error) {
	defer r.db.observe(collDoctors, "update_many", time.Now(), &err)

	res, err := r.coll.UpdateMany(ctx,
		bson.M{"patients": patientID},
		bson.M{"$pull": bson.M{"patients": patientID}},
	)
	if err != nil {
		return 0, fmt.Errorf("failed to unlink patient: %w", err)
	}
	return res.ModifiedCount, nil
}

func (r *doctorRepository) SpecialtyCounts(ctx context.Context, orgID primitive.ObjectID, limit int) (out []model.SpecialtyCount, err error) {
	defer r.db.observe(collDoctors, "aggregate", time.Now(), &err)

	specialty := bson.M{"$cond": bson.A{
		bson.M{"$eq": bson.A{bson.M{"$ifNull": bson.A{"$specialty", ""}}, ""}},
		model.DefaultSpecialty,
		"$specialty",
	}}
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"organization": orgID}}},
		{{Key: "$group", Value: bson.M{"_id": specialty, "count": bson.M{"$sum": 1}}}},
		{{Key: "$sort", Value: bson.D{{Key: "count", Value: -1}, {Key: "_id", Value: 1}}}},
	}
	if limit > 0 {
		pipeline = append(pipeline, bson.D{{Key: "$limit", Value: limit}})
	}

	cur, err := r.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate specialties: %w", err)
	}
	out = []model.SpecialtyCount{}
	if err = cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("failed to decode specialties: %w", err)
	}
	return out, nil
}
