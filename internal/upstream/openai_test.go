package upstream

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newEnhancerServer(t *testing.T, handler http.HandlerFunc) *Enhancer {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewEnhancer("test-key").WithBaseURL(server.URL)
}

func TestEnhanceReturnsCompletion(t *testing.T) {
	enhancer := newEnhancerServer(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("got auth header %q", got)
		}
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if len(req.Messages) != 2 || req.Messages[0].Role != "system" {
			t.Errorf("unexpected messages: %+v", req.Messages)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"content": "  a richer prompt  "}},
			},
		})
	})

	enhanced, err := enhancer.Enhance(context.Background(), "a plain prompt")
	if err != nil {
		t.Fatalf("enhance: %v", err)
	}
	if enhanced != "a richer prompt" {
		t.Fatalf("got %q", enhanced)
	}
}

func TestEnhanceEmptyCompletionFallsBack(t *testing.T) {
	enhancer := newEnhancerServer(t, func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"choices": []map[string]any{
			{"message": map[string]string{"content": ""}},
		}})
	})

	enhanced, err := enhancer.Enhance(context.Background(), "a plain prompt")
	if err != nil {
		t.Fatalf("enhance: %v", err)
	}
	if enhanced != "a plain prompt" {
		t.Fatalf("got %q, want original prompt", enhanced)
	}
}

func TestEnhanceClassifiesFailures(t *testing.T) {
	cases := []struct {
		name   string
		status int
		want   Kind
	}{
		{"unauthorized", http.StatusUnauthorized, KindBadAuth},
		{"rate limited", http.StatusTooManyRequests, KindRateLimited},
		{"server error", http.StatusInternalServerError, KindTransient},
		{"bad request", http.StatusBadRequest, KindUnknown},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			enhancer := newEnhancerServer(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tc.status)
				_ = json.NewEncoder(w).Encode(map[string]any{
					"error": map[string]string{"message": "nope"},
				})
			})

			_, err := enhancer.Enhance(context.Background(), "prompt")
			upstreamErr, ok := AsError(err)
			if !ok {
				t.Fatalf("got %v, want upstream error", err)
			}
			if upstreamErr.Kind != tc.want {
				t.Fatalf("got kind %s, want %s", upstreamErr.Kind, tc.want)
			}
			if upstreamErr.Message != "nope" {
				t.Fatalf("got message %q", upstreamErr.Message)
			}
		})
	}
}

func TestEnhanceWithoutKey(t *testing.T) {
	enhancer := NewEnhancer("")
	_, err := enhancer.Enhance(context.Background(), "prompt")
	upstreamErr, ok := AsError(err)
	if !ok || upstreamErr.Kind != KindBadAuth {
		t.Fatalf("got %v, want bad auth", err)
	}
}
