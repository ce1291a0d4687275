package engine

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ocrlab/ocreval/internal/resilience"
)

func writeTestImage(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scan.png")
	require.NoError(t, os.WriteFile(path, []byte("fake png bytes"), 0o644))
	return path
}

func fastRetry() resilience.RetryConfig {
	return resilience.RetryConfig{
		MaxAttempts:    2,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		Multiplier:     2.0,
	}
}

func TestMistral_Defaults(t *testing.T) {
	m := NewMistral("key", "")
	assert.Equal(t, defaultMistralModel, m.model)
	assert.Equal(t, mistralOCREndpoint, m.endpoint)
	assert.Equal(t, "mistral", m.Name())

	m = NewMistral("key", "custom")
	assert.Equal(t, "custom", m.model)
}

func TestMistral_Recognize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req mistralOCRRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-model", req.Model)
		assert.Equal(t, "image_url", req.Document.Type)
		assert.True(t, strings.HasPrefix(req.Document.ImageURL, "data:image/png;base64,"))

		resp := mistralOCRResponse{
			Pages: []mistralOCRPage{
				{Index: 0, Markdown: "First page"},
				{Index: 1, Markdown: "Second page"},
			},
		}
		json.NewEncoder(w).Encode(resp) //nolint:errcheck
	}))
	defer srv.Close()

	m := NewMistral("test-key", "test-model")
	m.endpoint = srv.URL

	text, err := m.Recognize(context.Background(), writeTestImage(t))
	require.NoError(t, err)
	assert.Equal(t, "First page\nSecond page", text)
}

func TestMistral_RetriesOn503(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			http.Error(w, "overloaded", http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(mistralOCRResponse{ //nolint:errcheck
			Pages: []mistralOCRPage{{Markdown: "recovered"}},
		})
	}))
	defer srv.Close()

	m := NewMistral("k", "mdl")
	m.endpoint = srv.URL
	m.retry = fastRetry()

	text, err := m.Recognize(context.Background(), writeTestImage(t))
	require.NoError(t, err)
	assert.Equal(t, "recovered", text)
	assert.Equal(t, 2, calls)
}

func TestMistral_NoRetryOn400(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, "bad image", http.StatusBadRequest)
	}))
	defer srv.Close()

	m := NewMistral("k", "mdl")
	m.endpoint = srv.URL
	m.retry = fastRetry()

	_, err := m.Recognize(context.Background(), writeTestImage(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API returned 400")
	assert.Equal(t, 1, calls)
}

func TestMistral_MissingImage(t *testing.T) {
	m := NewMistral("k", "mdl")
	_, err := m.Recognize(context.Background(), "/nonexistent/scan.png")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read image")
}
