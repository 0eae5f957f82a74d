// Package relation keeps Doctor.patients and Patient.doctors symmetric and
// owns every write that touches both sides of a reference.
package relation

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/livsafe/livsafe-api/internal/model"
	"github.com/livsafe/livsafe-api/internal/repository"
	apperrors "github.com/livsafe/livsafe-api/pkg/errors"
)

var ErrAlreadyLinked = apperrors.Conflict("patient is already assigned to this doctor", nil)

type Service struct {
	store repository.Store
}

func NewService(store repository.Store) *Service {
	return &Service{store: store}
}

func (s *Service) load(ctx context.Context, doctorID, patientID primitive.ObjectID) (*model.Doctor, *model.Patient, error) {
	doctor, err := s.store.Doctors.GetByID(ctx, doctorID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, apperrors.NotFound("doctor", err)
		}
		return nil, nil, fmt.Errorf("failed to load doctor: %w", err)
	}
	patient, err := s.store.Patients.GetByID(ctx, patientID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, apperrors.NotFound("patient", err)
		}
		return nil, nil, fmt.Errorf("failed to load patient: %w", err)
	}
	return doctor, patient, nil
}

// Link adds each side to the other. It returns ErrAlreadyLinked only when both
// sides already reference each other; a half link is completed.
func (s *Service) Link(ctx context.Context, doctorID, patientID primitive.ObjectID) error {
	return s.store.Tx.WithTransaction(ctx, func(ctx context.Context) error {
		doctor, patient, err := s.load(ctx, doctorID, patientID)
		if err != nil {
			return err
		}
		if doctor.HasPatient(patientID) && patient.HasDoctor(doctorID) {
			return ErrAlreadyLinked
		}
		return s.link(ctx, doctorID, patientID)
	})
}

// EnsureLinked is Link without the conflict.
func (s *Service) EnsureLinked(ctx context.Context, doctorID, patientID primitive.ObjectID) error {
	err := s.Link(ctx, doctorID, patientID)
	if errors.Is(err, ErrAlreadyLinked) {
		return nil
	}
	return err
}

func (s *Service) link(ctx context.Context, doctorID, patientID primitive.ObjectID) error {
	if err := s.store.Doctors.AddPatient(ctx, doctorID, patientID); err != nil {
		return fmt.Errorf("failed to add patient to doctor: %w", err)
	}
	if err := s.store.Patients.AddDoctor(ctx, patientID, doctorID); err != nil {
		return fmt.Errorf("failed to add doctor to patient: %w", err)
	}
	return nil
}

func (s *Service) Unlink(ctx context.Context, doctorID, patientID primitive.ObjectID) error {
	return s.store.Tx.WithTransaction(ctx, func(ctx context.Context) error {
		if _, _, err := s.load(ctx, doctorID, patientID); err != nil {
			return err
		}
		if err := s.store.Doctors.RemovePatient(ctx, doctorID, patientID); err != nil {
			return fmt.Errorf("failed to remove patient from doctor: %w", err)
		}
		if err := s.store.Patients.RemoveDoctor(ctx, patientID, doctorID); err != nil {
			return fmt.Errorf("failed to remove doctor from patient: %w", err)
		}
		return nil
	})
}

// DeletePatient pulls the patient from every doctor, deletes its records and
// then the patient. It returns the image URLs of the deleted records so the
// caller can remove the files once the transaction has committed.
func (s *Service) DeletePatient(ctx context.Context, patientID primitive.ObjectID) ([]string, error) {
	var urls []string
	err := s.store.Tx.WithTransaction(ctx, func(ctx context.Context) error {
		if _, err := s.store.Patients.GetByID(ctx, patientID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return apperrors.NotFound("patient", err)
			}
			return fmt.Errorf("failed to load patient: %w", err)
		}
		if _, err := s.store.Doctors.RemovePatientEverywhere(ctx, patientID); err != nil {
			return fmt.Errorf("failed to detach patient from doctors: %w", err)
		}
		removed, err := s.store.MedicalImages.DeleteByPatient(ctx, patientID)
		if err != nil {
			return fmt.Errorf("failed to delete patient records: %w", err)
		}
		if err := s.store.Patients.Delete(ctx, patientID); err != nil {
			return fmt.Errorf("failed to delete patient: %w", err)
		}
		urls = removed
		return nil
	})
	if err != nil {
		return nil, err
	}
	return urls, nil
}

// DeleteOrganization detaches every roster doctor and deletes the organization.
// Doctors and their records are kept.
func (s *Service) DeleteOrganization(ctx context.Context, orgID primitive.ObjectID) (int64, error) {
	var detached int64
	err := s.store.Tx.WithTransaction(ctx, func(ctx context.Context) error {
		n, err := s.store.Doctors.DetachOrganization(ctx, orgID)
		if err != nil {
			return fmt.Errorf("failed to detach doctors: %w", err)
		}
		if err := s.store.Organizations.Delete(ctx, orgID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return apperrors.NotFound("organization", err)
			}
			return fmt.Errorf("failed to delete organization: %w", err)
		}
		detached = n
		return nil
	})
	return detached, err
}

// Report summarizes a Reconcile pass.
type Report struct {
	LinksRepaired       int      `json:"linksRepaired"`
	DanglingRemoved     int      `json:"danglingRemoved"`
	OrphanImagesRemoved int      `json:"orphanImagesRemoved"`
	RemovedImageURLs    []string `json:"removedImageUrls,omitempty"`
}

// Reconcile completes one-sided links, drops references to documents that no
// longer exist and deletes records whose doctor or patient is gone.
func (s *Service) Reconcile(ctx context.Context) (Report, error) {
	var report Report
	err := s.store.Tx.WithTransaction(ctx, func(ctx context.Context) error {
		report = Report{}

		doctors, err := s.store.Doctors.List(ctx, repository.DoctorFilter{})
		if err != nil {
			return fmt.Errorf("failed to list doctors: %w", err)
		}
		patients, _, err := s.store.Patients.List(ctx, repository.PatientFilter{}, repository.Page{}, repository.SortNewest)
		if err != nil {
			return fmt.Errorf("failed to list patients: %w", err)
		}
		orgs, err := s.store.Organizations.List(ctx)
		if err != nil {
			return fmt.Errorf("failed to list organizations: %w", err)
		}

		doctorByID := make(map[primitive.ObjectID]*model.Doctor, len(doctors))
		for _, d := range doctors {
			doctorByID[d.ID] = d
		}
		patientByID := make(map[primitive.ObjectID]*model.Patient, len(patients))
		for _, p := range patients {
			patientByID[p.ID] = p
		}
		orgExists := make(map[primitive.ObjectID]bool, len(orgs))
		for _, o := range orgs {
			orgExists[o.ID] = true
		}

		for _, d := range doctors {
			if d.Organization != nil && !orgExists[*d.Organization] {
				if err := s.store.Doctors.SetOrganization(ctx, d.ID, nil); err != nil {
					return err
				}
				report.DanglingRemoved++
			}
			for _, pid := range d.Patients {
				p, ok := patientByID[pid]
				switch {
				case !ok:
					if err := s.store.Doctors.RemovePatient(ctx, d.ID, pid); err != nil {
						return err
					}
					report.DanglingRemoved++
				case !p.HasDoctor(d.ID):
					if err := s.store.Patients.AddDoctor(ctx, pid, d.ID); err != nil {
						return err
					}
					p.Doctors = append(p.Doctors, d.ID)
					report.LinksRepaired++
				}
			}
		}

		for _, p := range patients {
			for _, did := range p.Doctors {
				d, ok := doctorByID[did]
				switch {
				case !ok:
					if err := s.store.Patients.RemoveDoctor(ctx, p.ID, did); err != nil {
						return err
					}
					report.DanglingRemoved++
				case !d.HasPatient(p.ID):
					if err := s.store.Doctors.AddPatient(ctx, did, p.ID); err != nil {
						return err
					}
					d.Patients = append(d.Patients, p.ID)
					report.LinksRepaired++
				}
			}
		}

		images, _, err := s.store.MedicalImages.List(ctx, repository.RecordFilter{}, repository.Page{})
		if err != nil {
			return fmt.Errorf("failed to list records: %w", err)
		}
		for _, m := range images {
			_, doctorOK := doctorByID[m.Doctor]
			_, patientOK := patientByID[m.Patient]
			if doctorOK && patientOK {
				continue
			}
			if err := s.store.MedicalImages.Delete(ctx, m.ID); err != nil {
				return fmt.Errorf("failed to delete orphan record: %w", err)
			}
			report.OrphanImagesRemoved++
			report.RemovedImageURLs = append(report.RemovedImageURLs, m.ImageURL)
		}
		return nil
	})
	if err != nil {
		return Report{}, err
	}

	log.Info().
		Int("links_repaired", report.LinksRepaired).
		Int("dangling_removed", report.DanglingRemoved).
		Int("orphan_images_removed", report.OrphanImagesRemoved).
		Msg("Reconcile completed")
	return report, nil
}
