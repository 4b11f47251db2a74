package storage

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/flipwise/flipwise/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebhookKey(t *testing.T) {
	at := time.Date(2026, time.March, 7, 23, 30, 0, 0, time.FixedZone("EAT", 3*60*60))
	assert.Equal(t, "webhooks/intasend/2026/03/07/INV1.json", WebhookKey("intasend", "INV1", at))
}

func TestNewDisabledReturnsNop(t *testing.T) {
	archive, err := New(&config.Config{})
	require.NoError(t, err)
	assert.IsType(t, NopArchive{}, archive)
	assert.NoError(t, archive.Put(context.Background(), "k", []byte("{}")))
}

func TestS3ArchivePut(t *testing.T) {
	var mu sync.Mutex
	var puts []string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		if r.Method == http.MethodPut {
			puts = append(puts, r.URL.Path)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	archive, err := NewS3Archive(S3Config{
		Region:    "us-east-1",
		Bucket:    "archive",
		AccessKey: "test",
		SecretKey: "test",
		Endpoint:  srv.URL,
	})
	require.NoError(t, err)

	err = archive.Put(context.Background(), "webhooks/intasend/2026/03/07/INV1.json", []byte(`{"ok":true}`))
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"/archive/webhooks/intasend/2026/03/07/INV1.json"}, puts)
}
