package cmd

import (
	"encoding/json"
	"io"
	"testing"
	"time"

	standardwebhooks "github.com/standard-webhooks/standard-webhooks/libraries/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTestWebhookUnsigned(t *testing.T) {
	req, err := newTestWebhook("http://localhost:5000/webhook/intasend", webhookPayload{
		Challenge: "c",
		InvoiceID: "INV-1",
		State:     "COMPLETE",
		UserID:    "user-1",
	}, "", time.Now())
	require.NoError(t, err)

	assert.Empty(t, req.Header.Get("webhook-signature"))

	var body map[string]any
	require.NoError(t, json.NewDecoder(req.Body).Decode(&body))
	assert.Equal(t, "c", body["challenge"])
	data := body["data"].(map[string]any)
	assert.Equal(t, "INV-1", data["id"])
	assert.Equal(t, "user-1", data["metadata"].(map[string]any)["user_id"])
}

func TestNewTestWebhookSigned(t *testing.T) {
	secret := "test-webhook-secret"
	req, err := newTestWebhook("http://localhost:5000/webhook/intasend", webhookPayload{
		InvoiceID: "INV-1",
		State:     "COMPLETE",
		UserID:    "user-1",
	}, secret, time.Now())
	require.NoError(t, err)

	body, err := io.ReadAll(req.Body)
	require.NoError(t, err)

	wh, err := standardwebhooks.NewWebhookRaw([]byte(secret))
	require.NoError(t, err)
	assert.NoError(t, wh.Verify(body, req.Header))
}
