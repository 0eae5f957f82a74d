package assistant

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/livsafe/livsafe-api/internal/model"
	"github.com/livsafe/livsafe-api/internal/testutil"
	apperrors "github.com/livsafe/livsafe-api/pkg/errors"
	"github.com/livsafe/livsafe-api/pkg/metrics"
)

type fakeCompleter struct {
	prompt string
	reply  string
	err    error
}

func (f *fakeCompleter) Complete(_ context.Context, prompt string) (string, error) {
	f.prompt = prompt
	return f.reply, f.err
}

func TestBuildPrompt(t *testing.T) {
	history := []model.ChatMessage{
		{Role: model.ChatRoleUser, Content: "What does F2 mean?"},
		{Role: model.ChatRoleAssistant, Content: "Moderate fibrosis."},
	}
	prompt := BuildPrompt("Should we repeat the scan?", history, &PatientContext{
		Name: "Jane Doe", RecordID: "LIV-202406ABC", Grade: "F2", Confidence: 91, Date: "6/15/2024",
	})

	assert.True(t, strings.HasPrefix(prompt, Persona))
	assert.Contains(t, prompt, "Current patient context: Jane Doe (ID: LIV-202406ABC), Grade: F2, Confidence: 91%, Date: 6/15/2024")
	assert.Contains(t, prompt, "Previous conversation:\nUser: What does F2 mean?\n\nLivSafe LLM: Moderate fibrosis.")
	assert.True(t, strings.HasSuffix(prompt, "Current question: Should we repeat the scan?\n\nPlease respond as LivSafe LLM with helpful information:"))

	bare := BuildPrompt("Hi", nil, nil)
	assert.NotContains(t, bare, "Current patient context")
}

func TestChatUsesOwnRecordOnly(t *testing.T) {
	f := testutil.New(t)
	a := f.Doctor("Dr. A", "", nil, testutil.Now)
	b := f.Doctor("Dr. B", "", nil, testutil.Now)
	rec := f.Record(a, f.Patient("Jane Doe", a), testutil.Now, model.GradeF3)

	reg := prometheus.NewRegistry()
	m := metrics.New(reg, "livsafe")
	llm := &fakeCompleter{reply: "Consider elastography."}
	svc := NewService(f.Store, llm, m)
	ctx := context.Background()

	resp, err := svc.Chat(ctx, a, model.ChatRequest{Message: "Next steps?", RecordID: rec.ID.Hex()})
	require.NoError(t, err)
	assert.Equal(t, "Consider elastography.", resp.Reply)
	assert.Contains(t, llm.prompt, "Current patient context: Jane Doe (ID: "+rec.RecordID()+"), Grade: F3, Confidence: 90%")
	assert.Equal(t, 1.0, promtest.ToFloat64(m.AssistantCalls.WithLabelValues("ok")))

	_, err = svc.Chat(ctx, b, model.ChatRequest{Message: "Next steps?", RecordID: rec.ID.Hex()})
	assert.True(t, apperrors.IsKind(err, apperrors.KindForbidden))

	_, err = svc.Chat(ctx, a, model.ChatRequest{Message: "Next steps?", RecordID: "nope"})
	assert.True(t, apperrors.IsKind(err, apperrors.KindValidation))
}

func TestChatUnavailable(t *testing.T) {
	f := testutil.New(t)
	d := f.Doctor("Dr. A", "", nil, testutil.Now)

	_, err := NewService(f.Store, nil, nil).Chat(context.Background(), d, model.ChatRequest{Message: "Hi"})
	assert.True(t, apperrors.IsKind(err, apperrors.KindUnavailable))

	failing := &fakeCompleter{err: errors.New("upstream 500")}
	_, err = NewService(f.Store, failing, nil).Chat(context.Background(), d, model.ChatRequest{Message: "Hi"})
	assert.True(t, apperrors.IsKind(err, apperrors.KindUnavailable))
}
