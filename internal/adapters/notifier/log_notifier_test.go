package notifier

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/paysentry/fraud-engine/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMaskCode(t *testing.T) {
	assert.Equal(t, "****56", MaskCode("123456"))
	assert.Equal(t, "**", MaskCode("12"))
	assert.Equal(t, "", MaskCode(""))
}

func TestLogNotifier_NeverLogsTheCode(t *testing.T) {
	var buf bytes.Buffer
	n := NewLogNotifier(slog.New(slog.NewTextHandler(&buf, nil)))

	err := n.SendOTP(context.Background(), &domain.OtpChallenge{
		TransactionID: uuid.New(),
		UserID:        "alice",
		Code:          "987654",
		ExpiresAt:     time.Now().Add(domain.DefaultOTPTTL),
	})

	require.NoError(t, err)
	assert.Contains(t, buf.String(), "****54")
	assert.NotContains(t, buf.String(), "987654")
}
