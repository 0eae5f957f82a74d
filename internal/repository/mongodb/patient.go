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

type patientRepository struct {
	db   *DB
	coll *mongo.Collection
}

func (r *patientRepository) Create(ctx context.Context, patient *model.Patient) (err error) {
	defer r.db.observe(collPatients, "insert", time.Now(), &err)

	if patient.ID.IsZero() {
		patient.ID = primitive.NewObjectID()
	}
	if patient.Doctors == nil {
		patient.Doctors = []primitive.ObjectID{}
	}
	_, err = r.coll.InsertOne(ctx, patient)
	return translate(err)
}

func (r *patientRepository) GetByID(ctx context.Context, id primitive.ObjectID) (p *model.Patient, err error) {
	defer r.db.observe(collPatients, "find_one", time.Now(), &err)

	var out model.Patient
	if err = r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&out); err != nil {
		return nil, translate(err)
	}
	return &out, nil
}

func (r *patientRepository) FindByFullName(ctx context.Context, fullName string) (p *model.Patient, err error) {
	defer r.db.observe(collPatients, "find_one", time.Now(), &err)

	opts := options.FindOne().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}})
	var out model.Patient
	if err = r.coll.FindOne(ctx, bson.M{"fullName": fullName}, opts).Decode(&out); err != nil {
		return nil, translate(err)
	}
	return &out, nil
}

func (r *patientRepository) List(ctx context.Context, filter repository.PatientFilter, page repository.Page, order repository.PatientSort) (out []*model.Patient, total int64, err error) {
	defer r.db.observe(collPatients, "find", time.Now(), &err)

	query := patientQuery(filter)
	total, err = r.coll.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count patients: %w", err)
	}

	sort := newestFirst
	if order == repository.SortByName {
		sort = byFullName
	}
	cur, err := r.coll.Find(ctx, query, findOptions(page, sort))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list patients: %w", err)
	}
	out = []*model.Patient{}
	if err = cur.All(ctx, &out); err != nil {
		return nil, 0, fmt.Errorf("failed to decode patients: %w", err)
	}
	return out, total, nil
}

func (r *patientRepository) Update(ctx context.Context, patient *model.Patient) (err error) {
	defer r.db.observe(collPatients, "update", time.Now(), &err)

	set := bson.M{"fullName": patient.FullName}
	unset := bson.M{}
	if patient.Gender != "" {
		set["gender"] = patient.Gender
	} else {
		unset["gender"] = ""
	}
	if patient.Age != nil {
		set["age"] = *patient.Age
	} else {
		unset["age"] = ""
	}

	update := bson.M{"$set": set}
	if len(unset) > 0 {
		update["$unset"] = unset
	}
	return requireMatch(r.coll.UpdateByID(ctx, patient.ID, update))
}

func (r *patientRepository) Delete(ctx context.Context, id primitive.ObjectID) (err error) {
	defer r.db.observe(collPatients, "delete", time.Now(), &err)

	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete patient: %w", err)
	}
	if res.DeletedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *patientRepository) AddDoctor(ctx context.Context, patientID, doctorID primitive.ObjectID) (err error) {
	defer r.db.observe(collPatients, "update", time.Now(), &err)
	return requireMatch(r.coll.UpdateByID(ctx, patientID, bson.M{"$addToSet": bson.M{"doctors": doctorID}}))
}

func (r *patientRepository) RemoveDoctor(ctx context.Context, patientID, doctorID primitive.ObjectID) (err error) {
	defer r.db.observe(collPatients, "update", time.Now(), &err)
	return requireMatch(r.coll.UpdateByID(ctx, patientID, bson.M{"$pull": bson.M{"doctors": doctorID}}))
}
