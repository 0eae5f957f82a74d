// Package assistant answers clinical questions through a generative model,
// optionally grounded on one of the asking doctor's records.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/livsafe/livsafe-api/internal/model"
	"github.com/livsafe/livsafe-api/internal/repository"
	apperrors "github.com/livsafe/livsafe-api/pkg/errors"
	"github.com/livsafe/livsafe-api/pkg/llm"
	"github.com/livsafe/livsafe-api/pkg/metrics"
)

const Persona = `You are LivSafe LLM, an advanced AI assistant specializing in liver health and fibrosis assessment. You have:

- Comprehensive knowledge of liver diseases and fibrosis staging
- Access to the latest medical research and clinical guidelines
- Expertise in interpreting liver imaging and diagnostic results
- Understanding of treatment protocols and follow-up recommendations

Your communication style is:
- Professional and informative
- Evidence-based with clear explanations
- Accessible to users while maintaining medical accuracy
- Focused on providing helpful clinical insights
- Always emphasizing the importance of consulting healthcare professionals

When discussing liver fibrosis stages:
- F0: No fibrosis
- F1: Mild fibrosis (portal fibrosis without septa)
- F2: Moderate fibrosis (portal fibrosis with few septa)
- F3: Severe fibrosis (numerous septa without cirrhosis)
- F4: Cirrhosis (advanced fibrosis with regenerative nodules)

Always provide practical recommendations and remind users that imaging findings should be correlated with clinical history, physical examination, and laboratory results for comprehensive patient care.

Respond as LivSafe LLM, providing helpful information while encouraging users to consult with their healthcare providers for medical decisions.`

const contextDateLayout = "1/2/2006"

// PatientContext is the record summary woven into the prompt.
type PatientContext struct {
	Name       string
	RecordID   string
	Grade      string
	Confidence float64
	Date       string
}

// BuildPrompt lays out persona, patient context, history and question.
func BuildPrompt(question string, history []model.ChatMessage, pc *PatientContext) string {
	var b strings.Builder
	b.WriteString(Persona)
	b.WriteString("\n\n")

	if pc != nil {
		fmt.Fprintf(&b, "Current patient context: %s (ID: %s), Grade: %s, Confidence: %g%%, Date: %s\n\n",
			pc.Name, pc.RecordID, pc.Grade, pc.Confidence, pc.Date)
	}

	b.WriteString("Previous conversation:\n")
	turns := make([]string, 0, len(history))
	for _, m := range history {
		speaker := "User"
		if m.Role == model.ChatRoleAssistant {
			speaker = "LivSafe LLM"
		}
		turns = append(turns, speaker+": "+m.Content)
	}
	b.WriteString(strings.Join(turns, "\n\n"))

	b.WriteString("\n\nCurrent question: ")
	b.WriteString(question)
	b.WriteString("\n\nPlease respond as LivSafe LLM with helpful information:")
	return b.String()
}

type Service struct {
	store     repository.Store
	completer llm.Completer
	metrics   *metrics.Metrics
}

// NewService accepts a nil completer; Chat then reports the assistant as unavailable.
func NewService(store repository.Store, completer llm.Completer, m *metrics.Metrics) *Service {
	return &Service{store: store, completer: completer, metrics: m}
}

func (s *Service) Enabled() bool {
	return s.completer != nil
}

func (s *Service) Chat(ctx context.Context, doctor *model.Doctor, req model.ChatRequest) (*model.ChatResponse, error) {
	if s.completer == nil {
		return nil, apperrors.Unavailable("assistant is not configured", llm.ErrNotConfigured)
	}
	question := strings.TrimSpace(req.Message)
	if question == "" {
		return nil, apperrors.Validation("message is required", nil)
	}

	var pc *PatientContext
	if req.RecordID != "" {
		var err error
		pc, err = s.patientContext(ctx, doctor, req.RecordID)
		if err != nil {
			return nil, err
		}
	}

	reply, err := s.completer.Complete(ctx, BuildPrompt(question, req.History, pc))
	s.observe(err)
	if err != nil {
		log.Error().Err(err).Str("doctor_id", doctor.ID.Hex()).Msg("Assistant completion failed")
		return nil, apperrors.Unavailable("assistant is temporarily unavailable", err)
	}
	return &model.ChatResponse{Reply: reply}, nil
}

func (s *Service) observe(err error) {
	if s.metrics == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	s.metrics.AssistantCalls.WithLabelValues(status).Inc()
}

// patientContext only reveals records uploaded by the asking doctor.
func (s *Service) patientContext(ctx context.Context, doctor *model.Doctor, recordID string) (*PatientContext, error) {
	id, ok := model.ParseID(recordID)
	if !ok {
		return nil, apperrors.Validation("invalid record id", nil)
	}
	record, err := s.store.MedicalImages.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound("medical image", err)
		}
		return nil, fmt.Errorf("failed to load record: %w", err)
	}
	if record.Doctor != doctor.ID {
		return nil, apperrors.Forbidden("not allowed to access this record")
	}

	pc := &PatientContext{
		Name:     "Unknown patient",
		RecordID: record.RecordID(),
		Grade:    record.GradeLabel(),
		Date:     record.UploadedAt.Format(contextDateLayout),
	}
	if record.Confidence != nil {
		pc.Confidence = *record.Confidence
	}
	patient, err := s.store.Patients.GetByID(ctx, record.Patient)
	switch {
	case err == nil:
		pc.Name = patient.FullName
	case !errors.Is(err, repository.ErrNotFound):
		return nil, fmt.Errorf("failed to load patient: %w", err)
	}
	return pc, nil
}
