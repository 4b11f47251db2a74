package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	standardwebhooks "github.com/standard-webhooks/standard-webhooks/libraries/go"
)

func WebhookCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "webhook",
		Short: "Send test payment notifications to a running server",
	}
	cmd.AddCommand(webhookSendCmd())
	return cmd
}

func webhookSendCmd() *cobra.Command {
	var (
		target    string
		userID    string
		invoiceID string
		state     string
	)

	cmd := &cobra.Command{
		Use:   "send",
		Short: "POST an IntaSend-style notification, signed when INTASEND_WEBHOOK_SECRET is set",
		RunE: func(cmd *cobra.Command, args []string) error {
			_ = godotenv.Load()
			if invoiceID == "" {
				invoiceID = "TEST-" + uuid.NewString()[:8]
			}

			req, err := newTestWebhook(target, webhookPayload{
				Challenge: os.Getenv("INTASEND_WEBHOOK_CHALLENGE"),
				InvoiceID: invoiceID,
				State:     state,
				UserID:    userID,
			}, os.Getenv("INTASEND_WEBHOOK_SECRET"), time.Now())
			if err != nil {
				return err
			}

			client := &http.Client{Timeout: 10 * time.Second}
			resp, err := client.Do(req)
			if err != nil {
				return fmt.Errorf("failed to deliver webhook: %w", err)
			}
			defer func() { _ = resp.Body.Close() }()

			body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			fmt.Printf("%s %s\ninvoice: %s\n%s\n", resp.Status, target, invoiceID, bytes.TrimSpace(body))
			return nil
		},
	}

	cmd.Flags().StringVar(&target, "url", "http://localhost:5000/webhook/intasend", "webhook endpoint")
	cmd.Flags().StringVar(&userID, "user-id", "", "user to grant premium to")
	cmd.Flags().StringVar(&invoiceID, "invoice", "", "invoice id, random when empty")
	cmd.Flags().StringVar(&state, "state", "COMPLETE", "collection state to report")
	_ = cmd.MarkFlagRequired("user-id")

	return cmd
}

type webhookPayload struct {
	Challenge string
	InvoiceID string
	State     string
	UserID    string
}

func newTestWebhook(target string, p webhookPayload, secret string, now time.Time) (*http.Request, error) {
	body, err := json.Marshal(map[string]any{
		"challenge":  p.Challenge,
		"invoice_id": p.InvoiceID,
		"state":      p.State,
		"data": map[string]any{
			"id":       p.InvoiceID,
			"state":    p.State,
			"metadata": map[string]string{"user_id": p.UserID},
		},
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequest(http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	if secret != "" {
		wh, err := standardwebhooks.NewWebhookRaw([]byte(secret))
		if err != nil {
			return nil, fmt.Errorf("invalid webhook secret: %w", err)
		}
		msgID := "msg_" + uuid.NewString()
		sig, err := wh.Sign(msgID, now, body)
		if err != nil {
			return nil, fmt.Errorf("failed to sign webhook: %w", err)
		}
		req.Header.Set("webhook-id", msgID)
		req.Header.Set("webhook-timestamp", fmt.Sprintf("%d", now.Unix()))
		req.Header.Set("webhook-signature", sig)
	}

	return req, nil
}
