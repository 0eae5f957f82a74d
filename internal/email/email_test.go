package email

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewWithoutHostIsNoop(t *testing.T) {
	s := New(Config{})
	assert.IsType(t, Noop{}, s)
	assert.NoError(t, s.SendWelcome(context.Background(), "a@example.com", "Dr. A", "City Hospital"))
}

func TestNewWithHostUsesSMTP(t *testing.T) {
	s := New(Config{Host: "smtp.example.com", Port: 587, From: "noreply@example.com"})
	assert.IsType(t, &smtpSender{}, s)
}

func TestWelcomeBodyNamesBoth(t *testing.T) {
	body := welcomeBody("Dr. A", "City Hospital")
	assert.Contains(t, body, "Dr. A")
	assert.Contains(t, body, "City Hospital")
}
