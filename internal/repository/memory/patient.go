package memory

import (
	"context"
	"sort"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/livsafe/livsafe-api/internal/model"
	"github.com/livsafe/livsafe-api/internal/repository"
)

type patientRepository struct {
	s *Store
}

func (r *patientRepository) Create(ctx context.Context, patient *model.Patient) error {
	defer r.s.lockWrite(ctx)()

	if patient.ID.IsZero() {
		patient.ID = primitive.NewObjectID()
	}
	if patient.Doctors == nil {
		patient.Doctors = []primitive.ObjectID{}
	}
	r.s.patients[patient.ID] = clonePatient(patient)
	return nil
}

func (r *patientRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*model.Patient, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	p, ok := r.s.patients[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return clonePatient(p), nil
}

func (r *patientRepository) FindByFullName(ctx context.Context, fullName string) (*model.Patient, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var found *model.Patient
	for _, p := range r.s.patients {
		if p.FullName != fullName {
			continue
		}
		if found == nil || p.CreatedAt.Before(found.CreatedAt) ||
			(p.CreatedAt.Equal(found.CreatedAt) && idLess(p.ID, found.ID)) {
			found = p
		}
	}
	if found == nil {
		return nil, repository.ErrNotFound
	}
	return clonePatient(found), nil
}

func matchPatient(p *model.Patient, f repository.PatientFilter) bool {
	if f.Search != "" && !strings.Contains(strings.ToLower(p.FullName), strings.ToLower(f.Search)) {
		return false
	}
	if f.Gender != "" && p.Gender != f.Gender {
		return false
	}
	if f.Age != nil && (p.Age == nil || *p.Age != *f.Age) {
		return false
	}
	if f.IDs != nil && !model.ContainsID(f.IDs, p.ID) {
		return false
	}
	if f.DoctorIDs != nil {
		linked := false
		for _, d := range p.Doctors {
			if model.ContainsID(f.DoctorIDs, d) {
				linked = true
				break
			}
		}
		if !linked {
			return false
		}
	}
	return true
}

func (r *patientRepository) List(ctx context.Context, filter repository.PatientFilter, page repository.Page, order repository.PatientSort) ([]*model.Patient, int64, error) {
	r.s.mu.RLock()
	out := []*model.Patient{}
	for _, p := range r.s.patients {
		if matchPatient(p, filter) {
			out = append(out, clonePatient(p))
		}
	}
	r.s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if order == repository.SortByName {
			if a.FullName != b.FullName {
				return a.FullName < b.FullName
			}
			return idLess(a.ID, b.ID)
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return idLess(b.ID, a.ID)
	})
	return paginate(out, page), int64(len(out)), nil
}

func (r *patientRepository) Update(ctx context.Context, patient *model.Patient) error {
	defer r.s.lockWrite(ctx)()

	existing, ok := r.s.patients[patient.ID]
	if !ok {
		return repository.ErrNotFound
	}
	updated := clonePatient(patient)
	updated.Doctors = existing.Doctors
	updated.CreatedAt = existing.CreatedAt
	r.s.patients[patient.ID] = updated
	return nil
}

func (r *patientRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	defer r.s.lockWrite(ctx)()

	if _, ok := r.s.patients[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.s.patients, id)
	return nil
}

func (r *patientRepository) AddDoctor(ctx context.Context, patientID, doctorID primitive.ObjectID) error {
	defer r.s.lockWrite(ctx)()

	p, ok := r.s.patients[patientID]
	if !ok {
		return repository.ErrNotFound
	}
	if !p.HasDoctor(doctorID) {
		p.Doctors = append(p.Doctors, doctorID)
	}
	return nil
}

func (r *patientRepository) RemoveDoctor(ctx context.Context, patientID, doctorID primitive.ObjectID) error {
	defer r.s.lockWrite(ctx)()

	p, ok := r.s.patients[patientID]
	if !ok {
		return repository.ErrNotFound
	}
	p.Doctors = removeID(p.Doctors, doctorID)
	return nil
}
