package mongodb

import (
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/livsafe/livsafe-api/internal/model"
	"github.com/livsafe/livsafe-api/internal/repository"
)

// translate maps driver errors onto repository sentinels.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return repository.ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return fmt.Errorf("%w: %v", repository.ErrDuplicate, err)
	}
	return err
}

func requireMatch(res *mongo.UpdateResult, err error) error {
	if err != nil {
		return translate(err)
	}
	if res.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// timeRange is a half-open [from, to) condition. Zero bounds are dropped.
func timeRange(from, to time.Time) bson.M {
	r := bson.M{}
	if !from.IsZero() {
		r["$gte"] = from
	}
	if !to.IsZero() {
		r["$lt"] = to
	}
	return r
}

func doctorQuery(f repository.DoctorFilter) bson.M {
	q := bson.M{}
	if f.OrganizationID != nil {
		q["organization"] = *f.OrganizationID
	}
	if f.IDs != nil {
		q["_id"] = bson.M{"$in": f.IDs}
	}
	if r := timeRange(f.CreatedFrom, f.CreatedTo); len(r) > 0 {
		q["createdAt"] = r
	}
	return q
}

func patientQuery(f repository.PatientFilter) bson.M {
	q := bson.M{}
	if f.Search != "" {
		q["fullName"] = primitive.Regex{Pattern: regexp.QuoteMeta(f.Search), Options: "i"}
	}
	if f.Gender != "" {
		q["gender"] = f.Gender
	}
	if f.Age != nil {
		q["age"] = *f.Age
	}
	if f.IDs != nil {
		q["_id"] = bson.M{"$in": f.IDs}
	}
	if f.DoctorIDs != nil {
		q["doctors"] = bson.M{"$in": f.DoctorIDs}
	}
	return q
}

func recordQuery(f repository.RecordFilter) bson.M {
	q := bson.M{}
	if f.DoctorIDs != nil {
		q["doctor"] = bson.M{"$in": f.DoctorIDs}
	}
	if f.PatientIDs != nil {
		q["patient"] = bson.M{"$in": f.PatientIDs}
	}
	if r := timeRange(f.From, f.To); len(r) > 0 {
		q["uploadedAt"] = r
	}
	if f.GradedOnly {
		q["grade"] = bson.M{"$in": model.Grades}
	}
	return q
}

func findOptions(page repository.Page, sort bson.D) *options.FindOptions {
	opts := options.Find().SetSort(sort)
	if page.Skip > 0 {
		opts.SetSkip(page.Skip)
	}
	if page.Limit > 0 {
		opts.SetLimit(page.Limit)
	}
	return opts
}

// pageStages appends skip/limit stages to an aggregation pipeline.
func pageStages(p mongo.Pipeline, page repository.Page) mongo.Pipeline {
	if page.Skip > 0 {
		p = append(p, bson.D{{Key: "$skip", Value: page.Skip}})
	}
	if page.Limit > 0 {
		p = append(p, bson.D{{Key: "$limit", Value: page.Limit}})
	}
	return p
}

var (
	newestRecordsFirst = bson.D{{Key: "uploadedAt", Value: -1}, {Key: "_id", Value: -1}}
	newestFirst        = bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}
	byFullName         = bson.D{{Key: "fullName", Value: 1}, {Key: "_id", Value: 1}}
)
