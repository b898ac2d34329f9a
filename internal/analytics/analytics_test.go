// Tabrise Marketplace API - Catalog Resolution and Discovery Service
// Copyright 2026 Tabrise Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tabrise/marketplace-api

package analytics

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/tabrise/marketplace-api/internal/config"
	"github.com/tabrise/marketplace-api/internal/models"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return New(config.AnalyticsConfig{
		Enabled: true,
		URL:     server.URL,
		Key:     "test-key",
		Schema:  "public",
		Table:   "marketplace_analytics",
	})
}

func TestIncrementView_Success(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("Expected POST, got %s", r.Method)
		}
		w.WriteHeader(http.StatusNoContent)
	})

	if err := client.IncrementView(context.Background(), models.CategoryPhotoPacks, "forests"); err != nil {
		t.Errorf("Expected nil error, got %v", err)
	}
}

func TestIncrement_ErrorPayloadIsReported(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"code":"57014","message":"canceling statement"}`))
	})

	err := client.IncrementView(context.Background(), models.CategoryPhotoPacks, "forests")
	if err == nil {
		t.Fatal("Expected error for PostgREST error payload")
	}
}

func TestIncrement_FailureDoesNotPoisonLaterCalls(t *testing.T) {
	// First call fails, every later call succeeds. A stale error from the
	// failed call must not leak into the successful ones.
	var calls atomic.Int64
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"code":"503","message":"upstream unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	if err := client.IncrementView(context.Background(), models.CategoryPhotoPacks, "forests"); err == nil {
		t.Fatal("Expected the first call to fail")
	}

	if err := client.IncrementView(context.Background(), models.CategoryPhotoPacks, "forests"); err != nil {
		t.Errorf("Second call against a healthy server failed: %v", err)
	}
	if err := client.IncrementDownload(context.Background(), models.CategoryQuotePacks, "stoic"); err != nil {
		t.Errorf("Download increment after recovery failed: %v", err)
	}
}

func TestIncrement_Disabled(t *testing.T) {
	client := New(config.AnalyticsConfig{Enabled: false})

	err := client.IncrementView(context.Background(), models.CategoryPhotoPacks, "forests")
	if !errors.Is(err, ErrDisabled) {
		t.Errorf("Expected ErrDisabled, got %v", err)
	}
}

func TestRPCErrorMessage(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"empty body", "", ""},
		{"scalar result", "42", ""},
		{"error payload", `{"code":"42883","message":"function does not exist"}`, "function does not exist"},
		{"object without code", `{"message":"just data"}`, ""},
		{"malformed json", `{"code":`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := rpcErrorMessage(tt.body); got != tt.want {
				t.Errorf("rpcErrorMessage(%q) = %q, want %q", tt.body, got, tt.want)
			}
		})
	}
}
