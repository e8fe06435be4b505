package oauth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carlossalguero/socialauth/services/shared/circuitbreaker"
	apperrors "github.com/carlossalguero/socialauth/services/shared/errors"
)

func TestGraphClient_Get(t *testing.T) {
	var gotPath, gotFields string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotFields = r.URL.Query().Get("fields")
		jsonHandler(t, "FBT", map[string]string{"name": "Bob", "email": "b@example.com"})(w, r)
	}))
	defer srv.Close()

	c := NewGraphClient(GraphConfig{BaseURL: srv.URL}, srv.Client())

	body, err := c.Get(context.Background(), "me", []string{"email", "name"}, "FBT")
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"Bob","email":"b@example.com"}`, string(body))
	assert.Equal(t, "/"+defaultGraphVersion+"/me", gotPath)
	assert.Equal(t, "email,name", gotFields)
}

func TestGraphClient_Errors(t *testing.T) {
	srv := httptest.NewServer(jsonHandler(t, "FBT", map[string]string{}))
	defer srv.Close()

	c := NewGraphClient(GraphConfig{BaseURL: srv.URL, Version: "v18.0"}, nil)

	t.Run("missing token", func(t *testing.T) {
		_, err := c.Get(context.Background(), "me", nil, "")
		assert.True(t, apperrors.IsCode(err, apperrors.CodeInvalidInput))
	})

	t.Run("rejected token", func(t *testing.T) {
		_, err := c.Get(context.Background(), "me", nil, "wrong")
		assert.True(t, apperrors.IsCode(err, apperrors.CodeSDKError))
	})
}

func TestGraphClient_Breaker(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.Header.Get("Authorization") == "Bearer expired" {
			http.Error(w, `{"error":"expired"}`, http.StatusUnauthorized)
			return
		}
		http.Error(w, "unavailable", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewGraphClient(GraphConfig{
		BaseURL: srv.URL,
		Breaker: circuitbreaker.Config{FailureThreshold: 2, OpenTimeout: time.Hour},
	}, nil)

	t.Run("client errors do not trip", func(t *testing.T) {
		for i := 0; i < 3; i++ {
			_, err := c.Get(context.Background(), "me", nil, "expired")
			assert.True(t, apperrors.IsCode(err, apperrors.CodeSDKError))
		}
		assert.Equal(t, circuitbreaker.StateClosed, c.BreakerState())
	})

	t.Run("server errors trip", func(t *testing.T) {
		for i := 0; i < 2; i++ {
			_, err := c.Get(context.Background(), "me", nil, "FBT")
			assert.Error(t, err)
		}
		assert.Equal(t, circuitbreaker.StateOpen, c.BreakerState())

		before := calls.Load()
		_, err := c.Get(context.Background(), "me", nil, "FBT")
		assert.True(t, apperrors.IsCode(err, apperrors.CodeSDKError))
		assert.ErrorIs(t, err, circuitbreaker.ErrOpen)
		assert.Equal(t, before, calls.Load())
	})
}
