package memory

import (
	"context"
	"sort"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/livsafe/livsafe-api/internal/model"
	"github.com/livsafe/livsafe-api/internal/repository"
)

type doctorRepository struct {
	s *Store
}

func (r *doctorRepository) Create(ctx context.Context, doctor *model.Doctor) error {
	defer r.s.lockWrite(ctx)()

	for _, d := range r.s.doctors {
		if d.Email == doctor.Email {
			return repository.ErrDuplicate
		}
	}
	if doctor.ID.IsZero() {
		doctor.ID = primitive.NewObjectID()
	}
	if doctor.Patients == nil {
		doctor.Patients = []primitive.ObjectID{}
	}
	r.s.doctors[doctor.ID] = cloneDoctor(doctor)
	return nil
}

func (r *doctorRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*model.Doctor, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	d, ok := r.s.doctors[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneDoctor(d), nil
}

func (r *doctorRepository) GetByEmail(ctx context.Context, email string) (*model.Doctor, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, d := range r.s.doctors {
		if d.Email == email {
			return cloneDoctor(d), nil
		}
	}
	return nil, repository.ErrNotFound
}

func matchDoctor(d *model.Doctor, f repository.DoctorFilter) bool {
	if f.OrganizationID != nil && !d.BelongsTo(*f.OrganizationID) {
		return false
	}
	if f.IDs != nil && !model.ContainsID(f.IDs, d.ID) {
		return false
	}
	if !f.CreatedFrom.IsZero() && d.CreatedAt.Before(f.CreatedFrom) {
		return false
	}
	if !f.CreatedTo.IsZero() && !d.CreatedAt.Before(f.CreatedTo) {
		return false
	}
	return true
}

func (r *doctorRepository) List(ctx context.Context, filter repository.DoctorFilter) ([]*model.Doctor, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := []*model.Doctor{}
	for _, d := range r.s.doctors {
		if matchDoctor(d, filter) {
			out = append(out, cloneDoctor(d))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return idLess(out[j].ID, out[i].ID)
	})
	return out, nil
}

func (r *doctorRepository) Count(ctx context.Context, filter repository.DoctorFilter) (int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var n int64
	for _, d := range r.s.doctors {
		if matchDoctor(d, filter) {
			n++
		}
	}
	return n, nil
}

func (r *doctorRepository) mutate(ctx context.Context, id primitive.ObjectID, fn func(d *model.Doctor)) error {
	defer r.s.lockWrite(ctx)()

	d, ok := r.s.doctors[id]
	if !ok {
		return repository.ErrNotFound
	}
	fn(d)
	return nil
}

func (r *doctorRepository) UpdateProfile(ctx context.Context, id primitive.ObjectID, fullName, specialty string) error {
	return r.mutate(ctx, id, func(d *model.Doctor) {
		d.FullName = fullName
		d.Specialty = specialty
	})
}

func (r *doctorRepository) UpdatePassword(ctx context.Context, id primitive.ObjectID, hash string) error {
	return r.mutate(ctx, id, func(d *model.Doctor) { d.PasswordHash = hash })
}

func (r *doctorRepository) SetOrganization(ctx context.Context, id primitive.ObjectID, orgID *primitive.ObjectID) error {
	return r.mutate(ctx, id, func(d *model.Doctor) {
		if orgID == nil {
			d.Organization = nil
			return
		}
		org := *orgID
		d.Organization = &org
	})
}

func (r *doctorRepository) DetachOrganization(ctx context.Context, orgID primitive.ObjectID) (int64, error) {
	defer r.s.lockWrite(ctx)()

	var n int64
	for _, d := range r.s.doctors {
		if d.BelongsTo(orgID) {
			d.Organization = nil
			n++
		}
	}
	return n, nil
}

func (r *doctorRepository) AddPatient(ctx context.Context, doctorID, patientID primitive.ObjectID) error {
	return r.mutate(ctx, doctorID, func(d *model.Doctor) {
		if !d.HasPatient(patientID) {
			d.Patients = append(d.Patients, patientID)
		}
	})
}

func (r *doctorRepository) RemovePatient(ctx context.Context, doctorID, patientID primitive.ObjectID) error {
	return r.mutate(ctx, doctorID, func(d *model.Doctor) {
		d.Patients = removeID(d.Patients, patientID)
	})
}

func (r *doctorRepository) RemovePatientEverywhere(ctx context.Context, patientID primitive.ObjectID) (int64, error) {
	defer r.s.lockWrite(ctx)()

	var n int64
	for _, d := range r.s.doctors {
		if d.HasPatient(patientID) {
			d.Patients = removeID(d.Patients, patientID)
			n++
		}
	}
	return n, nil
}

func (r *doctorRepository) SpecialtyCounts(ctx context.Context, orgID primitive.ObjectID, limit int) ([]model.SpecialtyCount, error) {
	r.s.mu.RLock()
	counts := make(map[string]int64)
	for _, d := range r.s.doctors {
		if d.BelongsTo(orgID) {
			counts[d.SpecialtyOrDefault()]++
		}
	}
	r.s.mu.RUnlock()

	out := make([]model.SpecialtyCount, 0, len(counts))
	for specialty, count := range counts {
		out = append(out, model.SpecialtyCount{Specialty: specialty, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Specialty < out[j].Specialty
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
