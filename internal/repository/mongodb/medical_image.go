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

type medicalImageRepository struct {
	db   *DB
	coll *mongo.Collection
}

func (r *medicalImageRepository) Create(ctx context.Context, image *model.MedicalImage) (err error) {
	defer r.db.observe(collMedicalImages, "insert", time.Now(), &err)

	if image.ID.IsZero() {
		image.ID = primitive.NewObjectID()
	}
	_, err = r.coll.InsertOne(ctx, image)
	return translate(err)
}

func (r *medicalImageRepository) GetByID(ctx context.Context, id primitive.ObjectID) (m *model.MedicalImage, err error) {
	defer r.db.observe(collMedicalImages, "find_one", time.Now(), &err)

	var out model.MedicalImage
	if err = r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&out); err != nil {
		return nil, translate(err)
	}
	return &out, nil
}

func (r *medicalImageRepository) Update(ctx context.Context, image *model.MedicalImage) (err error) {
	defer r.db.observe(collMedicalImages, "update", time.Now(), &err)

	set := bson.M{"updatedAt": image.UpdatedAt}
	unset := bson.M{}
	if image.Description != "" {
		set["description"] = image.Description
	} else {
		unset["description"] = ""
	}
	if image.Grade != "" {
		set["grade"] = image.Grade
	} else {
		unset["grade"] = ""
	}
	if image.Confidence != nil {
		set["confidence"] = *image.Confidence
	} else {
		unset["confidence"] = ""
	}

	update := bson.M{"$set": set}
	if len(unset) > 0 {
		update["$unset"] = unset
	}
	return requireMatch(r.coll.UpdateByID(ctx, image.ID, update))
}

func (r *medicalImageRepository) Delete(ctx context.Context, id primitive.ObjectID) (err error) {
	defer r.db.observe(collMedicalImages, "delete", time.Now(), &err)

	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete medical image: %w", err)
	}
	if res.DeletedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *medicalImageRepository) DeleteByPatient(ctx context.Context, patientID primitive.ObjectID) (urls []string, err error) {
	defer r.db.observe(collMedicalImages, "delete_many", time.Now(), &err)

	filter := bson.M{"patient": patientID}
	cur, err := r.coll.Find(ctx, filter, options.Find().SetProjection(bson.M{"imageUrl": 1}))
	if err != nil {
		return nil, fmt.Errorf("failed to find patient images: %w", err)
	}
	var rows []struct {
		ImageURL string `bson:"imageUrl"`
	}
	if err = cur.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("failed to decode patient images: %w", err)
	}

	if _, err = r.coll.DeleteMany(ctx, filter); err != nil {
		return nil, fmt.Errorf("failed to delete patient images: %w", err)
	}

	urls = make([]string, 0, len(rows))
	for _, row := range rows {
		urls = append(urls, row.ImageURL)
	}
	return urls, nil
}

func (r *medicalImageRepository) List(ctx context.Context, filter repository.RecordFilter, page repository.Page) (out []*model.MedicalImage, total int64, err error) {
	defer r.db.observe(collMedicalImages, "find", time.Now(), &err)

	query := recordQuery(filter)
	total, err = r.coll.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count medical images: %w", err)
	}

	cur, err := r.coll.Find(ctx, query, findOptions(page, newestRecordsFirst))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list medical images: %w", err)
	}
	out = []*model.MedicalImage{}
	if err = cur.All(ctx, &out); err != nil {
		return nil, 0, fmt.Errorf("failed to decode medical images: %w", err)
	}
	return out, total, nil
}

type detailedRow struct {
	model.MedicalImage `bson:",inline"`
	PatientInfo        *model.Patient `bson:"patientInfo,omitempty"`
}

func (r *medicalImageRepository) ListDetailed(ctx context.Context, filter repository.RecordFilter, page repository.Page) (out []model.RecordDetail, total int64, err error) {
	defer r.db.observe(collMedicalImages, "aggregate", time.Now(), &err)

	query := recordQuery(filter)
	total, err = r.coll.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count medical images: %w", err)
	}

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: query}},
		{{Key: "$sort", Value: newestRecordsFirst}},
	}
	pipeline = pageStages(pipeline, page)
	pipeline = append(pipeline,
		bson.D{{Key: "$lookup", Value: bson.M{
			"from":         collPatients,
			"localField":   "patient",
			"foreignField": "_id",
			"as":           "patientInfo",
		}}},
		bson.D{{Key: "$unwind", Value: bson.M{"path": "$patientInfo", "preserveNullAndEmptyArrays": true}}},
	)

	cur, err := r.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to aggregate medical images: %w", err)
	}
	var rows []detailedRow
	if err = cur.All(ctx, &rows); err != nil {
		return nil, 0, fmt.Errorf("failed to decode medical images: %w", err)
	}

	out = make([]model.RecordDetail, 0, len(rows))
	for i := range rows {
		var summary *model.PatientSummary
		if rows[i].PatientInfo != nil {
			summary = rows[i].PatientInfo.Summary()
		}
		out = append(out, model.NewRecordDetail(&rows[i].MedicalImage, summary))
	}
	return out, total, nil
}

func (r *medicalImageRepository) Count(ctx context.Context, filter repository.RecordFilter) (n int64, err error) {
	defer r.db.observe(collMedicalImages, "count", time.Now(), &err)
	return r.coll.CountDocuments(ctx, recordQuery(filter))
}

func (r *medicalImageRepository) GradeDistribution(ctx context.Context, filter repository.RecordFilter) (out map[model.Grade]int64, err error) {
	defer r.db.observe(collMedicalImages, "aggregate", time.Now(), &err)

	filter.GradedOnly = true
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: recordQuery(filter)}},
		{{Key: "$group", Value: bson.M{"_id": "$grade", "count": bson.M{"$sum": 1}}}},
	}
	cur, err := r.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate grades: %w", err)
	}
	var rows []struct {
		Grade model.Grade `bson:"_id"`
		Count int64       `bson:"count"`
	}
	if err = cur.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("failed to decode grades: %w", err)
	}

	out = make(map[model.Grade]int64, len(rows))
	for _, row := range rows {
		out[row.Grade] = row.Count
	}
	return out, nil
}

func (r *medicalImageRepository) ActivityByDoctor(ctx context.Context, filter repository.RecordFilter) ([]model.RecordActivity, error) {
	return r.activity(ctx, filter, "$doctor")
}

func (r *medicalImageRepository) ActivityByPatient(ctx context.Context, filter repository.RecordFilter) ([]model.RecordActivity, error) {
	return r.activity(ctx, filter, "$patient")
}

func (r *medicalImageRepository) activity(ctx context.Context, filter repository.RecordFilter, key string) (out []model.RecordActivity, err error) {
	defer r.db.observe(collMedicalImages, "aggregate", time.Now(), &err)

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: recordQuery(filter)}},
		{{Key: "$group", Value: bson.M{
			"_id":        key,
			"records":    bson.M{"$sum": 1},
			"patientSet": bson.M{"$addToSet": "$patient"},
			"lastUpload": bson.M{"$max": "$uploadedAt"},
		}}},
		{{Key: "$project", Value: bson.M{
			"records":    1,
			"lastUpload": 1,
			"patients":   bson.M{"$size": "$patientSet"},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "_id", Value: 1}}}},
	}
	cur, err := r.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate activity: %w", err)
	}
	out = []model.RecordActivity{}
	if err = cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("failed to decode activity: %w", err)
	}
	return out, nil
}
