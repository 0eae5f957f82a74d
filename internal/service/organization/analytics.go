package organization

import (
	"context"
	"fmt"
	"math"
	"sort"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/livsafe/livsafe-api/internal/model"
	"github.com/livsafe/livsafe-api/internal/repository"
	apperrors "github.com/livsafe/livsafe-api/pkg/errors"
)

const (
	DefaultWindowDays = 30
	MaxWindowDays     = 365

	topSpecialties   = 5
	topDoctors       = 10
	trendMonths      = 6
	trendMonthLayout = "Jan 2006"
)

// GrowthRate is the month-over-month change in percent, rounded to one
// decimal. It is 0 when last month had no records.
func GrowthRate(this, last int64) float64 {
	if last == 0 {
		return 0
	}
	return math.Round(float64(this-last)/float64(last)*1000) / 10
}

// Analytics aggregates the roster's activity. days is the trailing window of
// the doctor ranking and must be within 1..365.
func (s *Service) Analytics(ctx context.Context, org *model.Organization, days int) (*model.Analytics, error) {
	if days < 1 || days > MaxWindowDays {
		return nil, apperrors.Validation(fmt.Sprintf("days must be between 1 and %d", MaxWindowDays), nil)
	}

	doctors, err := s.roster(ctx, org.ID)
	if err != nil {
		return nil, err
	}
	ids := rosterIDs(doctors)

	patients := make(map[primitive.ObjectID]struct{})
	for _, d := range doctors {
		for _, p := range d.Patients {
			patients[p] = struct{}{}
		}
	}

	total, err := s.store.MedicalImages.Count(ctx, repository.RecordFilter{DoctorIDs: ids})
	if err != nil {
		return nil, fmt.Errorf("failed to count records: %w", err)
	}

	trends := make([]model.MonthlyTrend, 0, trendMonths)
	for offset := -(trendMonths - 1); offset <= 0; offset++ {
		start, end := s.calendar.Month(offset)
		n, err := s.countRecords(ctx, ids, start, end)
		if err != nil {
			return nil, err
		}
		trends = append(trends, model.MonthlyTrend{Month: start.Format(trendMonthLayout), Records: n})
	}
	thisMonth := trends[len(trends)-1].Records
	lastMonth := trends[len(trends)-2].Records

	specialties, err := s.store.Doctors.SpecialtyCounts(ctx, org.ID, topSpecialties)
	if err != nil {
		return nil, fmt.Errorf("failed to group specialties: %w", err)
	}

	activity, err := s.doctorActivity(ctx, doctors, days)
	if err != nil {
		return nil, err
	}

	return &model.Analytics{
		WindowDays:       days,
		TotalDoctors:     int64(len(doctors)),
		TotalPatients:    int64(len(patients)),
		TotalRecords:     total,
		RecordsThisMonth: thisMonth,
		RecordsLastMonth: lastMonth,
		GrowthRate:       GrowthRate(thisMonth, lastMonth),
		TopSpecialties:   specialties,
		MonthlyTrends:    trends,
		DoctorActivity:   activity,
	}, nil
}

// doctorActivity ranks every roster doctor, idle ones included, by records
// uploaded in the trailing window.
func (s *Service) doctorActivity(ctx context.Context, doctors []*model.Doctor, days int) ([]model.DoctorActivity, error) {
	now := s.calendar.Now()
	rows, err := s.store.MedicalImages.ActivityByDoctor(ctx, repository.RecordFilter{
		DoctorIDs: rosterIDs(doctors),
		From:      now.AddDate(0, 0, -days),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate doctor activity: %w", err)
	}
	byDoctor := make(map[primitive.ObjectID]model.RecordActivity, len(rows))
	for _, r := range rows {
		byDoctor[r.Key] = r
	}

	out := make([]model.DoctorActivity, 0, len(doctors))
	for _, d := range doctors {
		r := byDoctor[d.ID]
		out = append(out, model.DoctorActivity{
			DoctorID:   d.ID,
			DoctorName: d.FullName,
			Records:    r.Records,
			Patients:   r.Patients,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Records != out[j].Records {
			return out[i].Records > out[j].Records
		}
		if out[i].DoctorName != out[j].DoctorName {
			return out[i].DoctorName < out[j].DoctorName
		}
		return out[i].DoctorID.Hex() < out[j].DoctorID.Hex()
	})
	if len(out) > topDoctors {
		out = out[:topDoctors]
	}
	return out, nil
}
