package verify

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestVerifySuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		if got := r.PostForm.Get("secret"); got != "test-secret" {
			t.Errorf("secret = %q, want %q", got, "test-secret")
		}
		if got := r.PostForm.Get("response"); got != "good-token" {
			t.Errorf("response = %q, want %q", got, "good-token")
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"success":true,"challenge_ts":"2026-08-30T12:00:00Z"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "test-secret", time.Second)
	result, err := c.Verify(context.Background(), "good-token")
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if !result.Success {
		t.Error("Verify() success = false, want true")
	}
	if result.ChallengeTS == "" {
		t.Error("Verify() missing challenge timestamp")
	}
}

func TestVerifyRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"success":false,"error-codes":["invalid-input-response"]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "test-secret", time.Second)
	result, err := c.Verify(context.Background(), "bad-token")
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if result.Success {
		t.Error("Verify() success = true, want false")
	}
	if len(result.ErrorCodes) != 1 || result.ErrorCodes[0] != "invalid-input-response" {
		t.Errorf("ErrorCodes = %v, want [invalid-input-response]", result.ErrorCodes)
	}
}

func TestVerifyTimeoutIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "test-secret", 20*time.Millisecond)
	_, err := c.Verify(context.Background(), "slow-token")
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("Verify() error = %v, want ErrUnavailable", err)
	}
}

func TestVerifyServerErrorIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "oops", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "test-secret", time.Second)
	_, err := c.Verify(context.Background(), "any-token")
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("Verify() error = %v, want ErrUnavailable", err)
	}
}
