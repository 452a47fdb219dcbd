package core

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sohaibansari420/careease-backened/internal/store"
)

var testTime = time.Date(2025, 6, 15, 9, 0, 0, 0, time.UTC)

func TestGroqResponderComplete(t *testing.T) {
	var got groqRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"Stay hydrated."}}]}`))
	}))
	defer srv.Close()

	r := NewGroqResponder(srv.URL, "test-key", "", zap.NewNop())
	text, err := r.Complete(context.Background(), []Turn{
		{Role: store.MessageUser, Content: "Any tips?"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Stay hydrated.", text)

	assert.Equal(t, DefaultGroqModel, got.Model)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, "user", got.Messages[1].Role)
	assert.Equal(t, "Any tips?", got.Messages[1].Content)
}

func TestGroqResponderErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"rate limited","type":"requests"}}`))
	}))
	defer srv.Close()

	r := NewGroqResponder(srv.URL, "test-key", "", zap.NewNop())
	_, err := r.Complete(context.Background(), []Turn{{Role: store.MessageUser, Content: "hi"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limited")
}

func TestResponderMissingKey(t *testing.T) {
	_, err := NewGroqResponder("", "", "", zap.NewNop()).Complete(context.Background(), nil)
	assert.ErrorIs(t, err, ErrMissingCredential)

	gemini, err := NewGeminiResponder(context.Background(), "", "", zap.NewNop())
	require.NoError(t, err)
	_, err = gemini.Complete(context.Background(), []Turn{{Role: store.MessageUser, Content: "hi"}})
	assert.ErrorIs(t, err, ErrMissingCredential)
}

func TestFallbackPool(t *testing.T) {
	pool := DefaultFallbackPool()
	for i := 0; i < 20; i++ {
		assert.True(t, pool.Contains(pool.Pick()))
	}
	assert.False(t, pool.Contains("something else"))

	custom := NewFallbackPool([]string{"only"})
	assert.Equal(t, "only", custom.Pick())
}

func TestAssistantStatsSnapshot(t *testing.T) {
	var stats AssistantStats
	snap := stats.Snapshot()
	assert.Zero(t, snap.Completions)
	assert.Nil(t, snap.LastFailureAt)

	stats.recordCompletion()
	stats.recordFallback(fixedClock(testTime).now(), "timeout")
	snap = stats.Snapshot()
	assert.Equal(t, int64(1), snap.Completions)
	assert.Equal(t, int64(1), snap.Fallbacks)
	assert.Equal(t, "timeout", snap.LastReason)
	require.NotNil(t, snap.LastFailureAt)
	assert.Equal(t, testTime, *snap.LastFailureAt)
}
