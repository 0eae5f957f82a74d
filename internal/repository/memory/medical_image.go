package memory

import (
	"context"
	"sort"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/livsafe/livsafe-api/internal/model"
	"github.com/livsafe/livsafe-api/internal/repository"
)

type medicalImageRepository struct {
	s *Store
}

func (r *medicalImageRepository) Create(ctx context.Context, image *model.MedicalImage) error {
	defer r.s.lockWrite(ctx)()

	if image.ID.IsZero() {
		image.ID = primitive.NewObjectID()
	}
	r.s.images[image.ID] = cloneImage(image)
	return nil
}

func (r *medicalImageRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*model.MedicalImage, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	m, ok := r.s.images[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneImage(m), nil
}

func (r *medicalImageRepository) Update(ctx context.Context, image *model.MedicalImage) error {
	defer r.s.lockWrite(ctx)()

	existing, ok := r.s.images[image.ID]
	if !ok {
		return repository.ErrNotFound
	}
	existing.Description = image.Description
	existing.Grade = image.Grade
	existing.Confidence = cloneImage(image).Confidence
	existing.UpdatedAt = image.UpdatedAt
	return nil
}

func (r *medicalImageRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	defer r.s.lockWrite(ctx)()

	if _, ok := r.s.images[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.s.images, id)
	return nil
}

func (r *medicalImageRepository) DeleteByPatient(ctx context.Context, patientID primitive.ObjectID) ([]string, error) {
	defer r.s.lockWrite(ctx)()

	urls := []string{}
	for id, m := range r.s.images {
		if m.Patient == patientID {
			urls = append(urls, m.ImageURL)
			delete(r.s.images, id)
		}
	}
	return urls, nil
}

func matchImage(m *model.MedicalImage, f repository.RecordFilter) bool {
	if f.DoctorIDs != nil && !model.ContainsID(f.DoctorIDs, m.Doctor) {
		return false
	}
	if f.PatientIDs != nil && !model.ContainsID(f.PatientIDs, m.Patient) {
		return false
	}
	if !f.From.IsZero() && m.UploadedAt.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && !m.UploadedAt.Before(f.To) {
		return false
	}
	if f.GradedOnly && !m.Grade.Valid() {
		return false
	}
	return true
}

// filtered returns matching records newest first. Callers hold the read lock.
func (r *medicalImageRepository) filtered(f repository.RecordFilter) []*model.MedicalImage {
	out := []*model.MedicalImage{}
	for _, m := range r.s.images {
		if matchImage(m, f) {
			out = append(out, cloneImage(m))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UploadedAt.Equal(out[j].UploadedAt) {
			return out[i].UploadedAt.After(out[j].UploadedAt)
		}
		return idLess(out[j].ID, out[i].ID)
	})
	return out
}

func (r *medicalImageRepository) List(ctx context.Context, filter repository.RecordFilter, page repository.Page) ([]*model.MedicalImage, int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	all := r.filtered(filter)
	return paginate(all, page), int64(len(all)), nil
}

func (r *medicalImageRepository) ListDetailed(ctx context.Context, filter repository.RecordFilter, page repository.Page) ([]model.RecordDetail, int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	all := r.filtered(filter)
	items := paginate(all, page)
	out := make([]model.RecordDetail, 0, len(items))
	for _, m := range items {
		var summary *model.PatientSummary
		if p, ok := r.s.patients[m.Patient]; ok {
			summary = clonePatient(p).Summary()
		}
		out = append(out, model.NewRecordDetail(m, summary))
	}
	return out, int64(len(all)), nil
}

func (r *medicalImageRepository) Count(ctx context.Context, filter repository.RecordFilter) (int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var n int64
	for _, m := range r.s.images {
		if matchImage(m, filter) {
			n++
		}
	}
	return n, nil
}

func (r *medicalImageRepository) GradeDistribution(ctx context.Context, filter repository.RecordFilter) (map[model.Grade]int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := make(map[model.Grade]int64)
	for _, m := range r.s.images {
		if matchImage(m, filter) && m.Grade.Valid() {
			out[m.Grade]++
		}
	}
	return out, nil
}

func (r *medicalImageRepository) ActivityByDoctor(ctx context.Context, filter repository.RecordFilter) ([]model.RecordActivity, error) {
	return r.group(filter, func(m *model.MedicalImage) (primitive.ObjectID, primitive.ObjectID) {
		return m.Doctor, m.Patient
	})
}

func (r *medicalImageRepository) ActivityByPatient(ctx context.Context, filter repository.RecordFilter) ([]model.RecordActivity, error) {
	return r.group(filter, func(m *model.MedicalImage) (primitive.ObjectID, primitive.ObjectID) {
		return m.Patient, m.Patient
	})
}

// group aggregates matching records by key, counting distinct values of the
// second returned id as Patients.
func (r *medicalImageRepository) group(filter repository.RecordFilter, keys func(*model.MedicalImage) (primitive.ObjectID, primitive.ObjectID)) ([]model.RecordActivity, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	acc := make(map[primitive.ObjectID]*model.RecordActivity)
	seen := make(map[primitive.ObjectID]map[primitive.ObjectID]struct{})
	for _, m := range r.s.images {
		if !matchImage(m, filter) {
			continue
		}
		key, distinct := keys(m)
		a, ok := acc[key]
		if !ok {
			a = &model.RecordActivity{Key: key}
			acc[key] = a
			seen[key] = make(map[primitive.ObjectID]struct{})
		}
		a.Records++
		if m.UploadedAt.After(a.LastUpload) {
			a.LastUpload = m.UploadedAt
		}
		seen[key][distinct] = struct{}{}
	}

	out := make([]model.RecordActivity, 0, len(acc))
	for key, a := range acc {
		a.Patients = int64(len(seen[key]))
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool { return idLess(out[i].Key, out[j].Key) })
	return out, nil
}
