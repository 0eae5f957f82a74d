package model

// Grade is the ordinal fibrosis stage of a record.
type Grade string

const (
	GradeF0 Grade = "F0" // no fibrosis
	GradeF1 Grade = "F1"
	GradeF2 Grade = "F2"
	GradeF3 Grade = "F3"
	GradeF4 Grade = "F4" // cirrhosis
)

// Grades lists every grade in ordinal order.
var Grades = []Grade{GradeF0, GradeF1, GradeF2, GradeF3, GradeF4}

func (g Grade) Valid() bool {
	for _, v := range Grades {
		if g == v {
			return true
		}
	}
	return false
}

// Gender is stored lower-cased.
type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
	GenderOther  Gender = "other"
)

func (g Gender) Valid() bool {
	switch g {
	case GenderMale, GenderFemale, GenderOther:
		return true
	}
	return false
}

// OrganizationType tags what kind of institution an organization is.
type OrganizationType string

const (
	OrganizationHospital OrganizationType = "hospital"
	OrganizationClinic   OrganizationType = "clinic"
	OrganizationResearch OrganizationType = "research"
	OrganizationOther    OrganizationType = "other"
)

func (t OrganizationType) Valid() bool {
	switch t {
	case OrganizationHospital, OrganizationClinic, OrganizationResearch, OrganizationOther:
		return true
	}
	return false
}
