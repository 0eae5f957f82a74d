package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestRecordID(t *testing.T) {
	id, err := primitive.ObjectIDFromHex("65f1c0ffee0000000000abcd")
	require.NoError(t, err)

	m := &MedicalImage{ID: id, UploadedAt: time.Date(2024, 3, 9, 10, 0, 0, 0, time.UTC)}
	assert.Equal(t, "LIV-202403BCD", m.RecordID())
}

func TestMedicalImageJSONCarriesRecordID(t *testing.T) {
	conf := 91.0
	m := MedicalImage{
		ID:         primitive.NewObjectID(),
		Grade:      GradeF2,
		Confidence: &conf,
		UploadedAt: time.Now(),
	}

	raw, err := json.Marshal(m)
	require.NoError(t, err)

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.Equal(t, m.RecordID(), out["recordId"])
	assert.Equal(t, "F2", out["grade"])
	assert.Equal(t, 91.0, out["confidence"])
}

func TestGradeLabel(t *testing.T) {
	assert.Equal(t, "Pending", (&MedicalImage{}).GradeLabel())
	assert.Equal(t, "F4", (&MedicalImage{Grade: GradeF4}).GradeLabel())
}
