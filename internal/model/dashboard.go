package model

import (
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Delta compares a period's count with the period before it.
type Delta struct {
	Current     int64  `json:"current"`
	Previous    int64  `json:"previous"`
	Change      int64  `json:"change"`
	FirstPeriod bool   `json:"firstPeriod"`
	Label       string `json:"label"`
}

// NewDelta builds a Delta for a period named unit ("month", "day").
// A previous count of zero with activity now is reported as the first
// period with activity, never as a ratio or a plain difference.
func NewDelta(current, previous int64, unit string) Delta {
	d := Delta{Current: current, Previous: previous, Change: current - previous}
	switch {
	case previous == 0 && current > 0:
		d.FirstPeriod = true
		d.Label = fmt.Sprintf("first %s with activity", unit)
	case previous == 0 && current == 0:
		d.Label = "no activity"
	case d.Change >= 0:
		d.Label = fmt.Sprintf("+%d from last %s", d.Change, unit)
	default:
		d.Label = fmt.Sprintf("%d from last %s", d.Change, unit)
	}
	return d
}

type GradeCount struct {
	Grade Grade `json:"grade"`
	Count int64 `json:"count"`
}

type DoctorStats struct {
	TotalRecords   int64   `json:"totalRecords"`
	MonthlyRecords int64   `json:"monthlyRecords"`
	MonthlyChange  Delta   `json:"monthlyChange"`
	GradedRecords  int64   `json:"gradedRecords"`
	CompletionRate float64 `json:"completionRate"`
}

type DoctorDashboard struct {
	Stats             DoctorStats    `json:"stats"`
	RecentRecords     []RecordDetail `json:"recentRecords"`
	GradeDistribution []GradeCount   `json:"gradeDistribution"`
}

type RosterDoctor struct {
	ID           primitive.ObjectID `json:"id"`
	FullName     string             `json:"fullName"`
	Email        string             `json:"email"`
	Specialty    string             `json:"specialty"`
	PatientCount int                `json:"patientCount"`
	JoinedDate   string             `json:"joinedDate"`
}

type OrganizationDashboard struct {
	TotalDoctors      int64          `json:"totalDoctors"`
	DoctorsChange     Delta          `json:"doctorsChange"`
	TotalRecordsToday int64          `json:"totalRecordsToday"`
	TodayChange       Delta          `json:"todayChange"`
	TotalRecordsMonth int64          `json:"totalRecordsMonth"`
	MonthChange       Delta          `json:"monthChange"`
	Doctors           []RosterDoctor `json:"doctors"`
}

type SpecialtyCount struct {
	Specialty string `json:"specialty" bson:"_id"`
	Count     int64  `json:"count" bson:"count"`
}

type MonthlyTrend struct {
	Month   string `json:"month"`
	Records int64  `json:"records"`
}

type DoctorActivity struct {
	DoctorID   primitive.ObjectID `json:"doctorId"`
	DoctorName string             `json:"doctorName"`
	Records    int64              `json:"records"`
	Patients   int64              `json:"patients"`
}

type Analytics struct {
	WindowDays       int              `json:"windowDays"`
	TotalDoctors     int64            `json:"totalDoctors"`
	TotalPatients    int64            `json:"totalPatients"`
	TotalRecords     int64            `json:"totalRecords"`
	RecordsThisMonth int64            `json:"recordsThisMonth"`
	RecordsLastMonth int64            `json:"recordsLastMonth"`
	GrowthRate       float64          `json:"growthRate"`
	TopSpecialties   []SpecialtyCount `json:"topSpecialties"`
	MonthlyTrends    []MonthlyTrend   `json:"monthlyTrends"`
	DoctorActivity   []DoctorActivity `json:"doctorActivity"`
}

// RecordActivity is a per-key record count produced by store aggregations.
// Key is the doctor or patient the records were grouped by.
type RecordActivity struct {
	Key        primitive.ObjectID `bson:"_id"`
	Records    int64              `bson:"records"`
	Patients   int64              `bson:"patients"`
	LastUpload time.Time          `bson:"lastUpload"`
}
