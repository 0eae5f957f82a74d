// Package memory is an in-process implementation of the repositories,
// used by tests and by the "memory" storage driver for local development.
package memory

import (
	"bytes"
	"context"
	"sync"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/livsafe/livsafe-api/internal/model"
	"github.com/livsafe/livsafe-api/internal/repository"
)

type txKey struct{}

// Store holds every collection behind one lock. Transactions are serialized
// and roll back to a snapshot when fn fails. Writes outside a transaction
// wait for the open one to finish so a rollback never discards them; a
// transaction must pass its ctx to every call it makes.
type Store struct {
	mu       sync.RWMutex
	txMu     sync.Mutex
	doctors  map[primitive.ObjectID]*model.Doctor
	orgs     map[primitive.ObjectID]*model.Organization
	patients map[primitive.ObjectID]*model.Patient
	images   map[primitive.ObjectID]*model.MedicalImage
	audit    []*model.AuditLog
}

func New() *Store {
	return &Store{
		doctors:  make(map[primitive.ObjectID]*model.Doctor),
		orgs:     make(map[primitive.ObjectID]*model.Organization),
		patients: make(map[primitive.ObjectID]*model.Patient),
		images:   make(map[primitive.ObjectID]*model.MedicalImage),
	}
}

// Repositories exposes the store through the repository interfaces.
func (s *Store) Repositories() repository.Store {
	return repository.Store{
		Doctors:       &doctorRepository{s},
		Organizations: &organizationRepository{s},
		Patients:      &patientRepository{s},
		MedicalImages: &medicalImageRepository{s},
		AuditLogs:     &auditRepository{s},
		Tx:            s,
		Pinger:        s,
	}
}

func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (s *Store) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.inTx(ctx) {
		return fn(ctx)
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	snap := s.snapshot()
	if err := fn(context.WithValue(ctx, txKey{}, s)); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

func (s *Store) inTx(ctx context.Context) bool {
	owner, _ := ctx.Value(txKey{}).(*Store)
	return owner == s
}

// lockWrite takes the write lock and returns its release.
func (s *Store) lockWrite(ctx context.Context) func() {
	outside := !s.inTx(ctx)
	if outside {
		s.txMu.Lock()
	}
	s.mu.Lock()
	return func() {
		s.mu.Unlock()
		if outside {
			s.txMu.Unlock()
		}
	}
}

type snapshot struct {
	doctors  map[primitive.ObjectID]*model.Doctor
	orgs     map[primitive.ObjectID]*model.Organization
	patients map[primitive.ObjectID]*model.Patient
	images   map[primitive.ObjectID]*model.MedicalImage
	audit    int
}

func (s *Store) snapshot() snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := snapshot{
		doctors:  make(map[primitive.ObjectID]*model.Doctor, len(s.doctors)),
		orgs:     make(map[primitive.ObjectID]*model.Organization, len(s.orgs)),
		patients: make(map[primitive.ObjectID]*model.Patient, len(s.patients)),
		images:   make(map[primitive.ObjectID]*model.MedicalImage, len(s.images)),
		audit:    len(s.audit),
	}
	for k, v := range s.doctors {
		snap.doctors[k] = cloneDoctor(v)
	}
	for k, v := range s.orgs {
		snap.orgs[k] = cloneOrganization(v)
	}
	for k, v := range s.patients {
		snap.patients[k] = clonePatient(v)
	}
	for k, v := range s.images {
		snap.images[k] = cloneImage(v)
	}
	return snap
}

func (s *Store) restore(snap snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.doctors = snap.doctors
	s.orgs = snap.orgs
	s.patients = snap.patients
	s.images = snap.images
	if snap.audit < len(s.audit) {
		s.audit = s.audit[:snap.audit]
	}
}

func cloneIDs(ids []primitive.ObjectID) []primitive.ObjectID {
	out := make([]primitive.ObjectID, len(ids))
	copy(out, ids)
	return out
}

func cloneDoctor(d *model.Doctor) *model.Doctor {
	c := *d
	c.Patients = cloneIDs(d.Patients)
	if d.Organization != nil {
		org := *d.Organization
		c.Organization = &org
	}
	return &c
}

func cloneOrganization(o *model.Organization) *model.Organization {
	c := *o
	return &c
}

func clonePatient(p *model.Patient) *model.Patient {
	c := *p
	c.Doctors = cloneIDs(p.Doctors)
	if p.Age != nil {
		age := *p.Age
		c.Age = &age
	}
	return &c
}

func cloneImage(m *model.MedicalImage) *model.MedicalImage {
	c := *m
	if m.Confidence != nil {
		conf := *m.Confidence
		c.Confidence = &conf
	}
	return &c
}

func idLess(a, b primitive.ObjectID) bool {
	return bytes.Compare(a[:], b[:]) < 0
}

func removeID(ids []primitive.ObjectID, id primitive.ObjectID) []primitive.ObjectID {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

func paginate[T any](items []T, page repository.Page) []T {
	if page.Skip < 0 || page.Skip >= int64(len(items)) {
		return []T{}
	}
	items = items[page.Skip:]
	if page.Limit > 0 && page.Limit < int64(len(items)) {
		items = items[:page.Limit]
	}
	return items
}
