package organization

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/livsafe/livsafe-api/internal/model"
	"github.com/livsafe/livsafe-api/internal/repository"
	"github.com/livsafe/livsafe-api/pkg/pagination"
)

// ActiveWindowDays is how recent a record must be for a patient to count as active.
const ActiveWindowDays = 90

// Patients lists patients linked to any roster doctor, newest first, with
// per-patient record activity of the roster.
func (s *Service) Patients(ctx context.Context, org *model.Organization, search string, p pagination.Params) ([]model.OrganizationPatient, int64, error) {
	doctors, err := s.roster(ctx, org.ID)
	if err != nil {
		return nil, 0, err
	}
	ids := rosterIDs(doctors)
	names := make(map[primitive.ObjectID]string, len(doctors))
	for _, d := range doctors {
		names[d.ID] = d.FullName
	}

	patients, total, err := s.store.Patients.List(ctx,
		repository.PatientFilter{Search: search, DoctorIDs: ids},
		repository.Page{Skip: p.Skip(), Limit: int64(p.Limit)},
		repository.SortNewest)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list patients: %w", err)
	}

	patientIDs := make([]primitive.ObjectID, 0, len(patients))
	for _, pt := range patients {
		patientIDs = append(patientIDs, pt.ID)
	}
	activity := map[primitive.ObjectID]model.RecordActivity{}
	if len(patientIDs) > 0 {
		rows, err := s.store.MedicalImages.ActivityByPatient(ctx, repository.RecordFilter{DoctorIDs: ids, PatientIDs: patientIDs})
		if err != nil {
			return nil, 0, fmt.Errorf("failed to aggregate patient activity: %w", err)
		}
		for _, r := range rows {
			activity[r.Key] = r
		}
	}

	activeSince := s.calendar.Now().AddDate(0, 0, -ActiveWindowDays)
	out := make([]model.OrganizationPatient, 0, len(patients))
	for _, pt := range patients {
		row := model.OrganizationPatient{
			ID:        pt.ID,
			FullName:  pt.FullName,
			Age:       pt.Age,
			Gender:    pt.Gender,
			Status:    model.PatientInactive,
			CreatedAt: pt.CreatedAt,
		}
		for _, did := range pt.Doctors {
			name, ok := names[did]
			if !ok {
				continue
			}
			if row.AssignedDoctor == "" {
				row.AssignedDoctor = name
			}
			row.Doctors++
		}
		if a, ok := activity[pt.ID]; ok {
			last := a.LastUpload
			row.RecordCount = a.Records
			row.LastVisit = &last
			if !last.Before(activeSince) {
				row.Status = model.PatientActive
			}
		}
		out = append(out, row)
	}
	return out, total, nil
}
