package httpclient

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name     string
		options  []Option
		validate func(t *testing.T, client *Client)
	}{
		{
			name:    "default_configuration",
			options: []Option{},
			validate: func(t *testing.T, client *Client) {
				if client.maxRetries != 3 {
					t.Errorf("Expected maxRetries=3, got %d", client.maxRetries)
				}
				if client.baseDelay != time.Second {
					t.Errorf("Expected baseDelay=1s, got %v", client.baseDelay)
				}
				if client.client.Timeout != 60*time.Second {
					t.Errorf("Expected timeout=60s, got %v", client.client.Timeout)
				}
				if client.strategyFunc == nil {
					t.Error("Expected strategyFunc to be set")
				}
			},
		},
		{
			name:    "custom_timeout",
			options: []Option{WithTimeout(5 * time.Second)},
			validate: func(t *testing.T, client *Client) {
				if client.client.Timeout != 5*time.Second {
					t.Errorf("Expected timeout=5s, got %v", client.client.Timeout)
				}
			},
		},
		{
			name:    "bearer_token",
			options: []Option{WithBearerToken("secret")},
			validate: func(t *testing.T, client *Client) {
				if got := client.headers["Authorization"]; got != "Bearer secret" {
					t.Errorf("Expected bearer header, got %q", got)
				}
			},
		},
		{
			name:    "empty_bearer_token_ignored",
			options: []Option{WithBearerToken("")},
			validate: func(t *testing.T, client *Client) {
				if _, ok := client.headers["Authorization"]; ok {
					t.Error("Expected no Authorization header")
				}
			},
		},
		{
			name: "multiple_options",
			options: []Option{
				WithMaxRetries(2),
				WithBaseDelay(1 * time.Millisecond),
				WithHTTPClient(&http.Client{Timeout: 10 * time.Second}),
			},
			validate: func(t *testing.T, client *Client) {
				if client.maxRetries != 2 {
					t.Errorf("Expected maxRetries=2, got %d", client.maxRetries)
				}
				if client.baseDelay != time.Millisecond {
					t.Errorf("Expected baseDelay=1ms, got %v", client.baseDelay)
				}
				if client.client.Timeout != 10*time.Second {
					t.Errorf("Expected timeout=10s, got %v", client.client.Timeout)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := New(tt.options...)
			tt.validate(t, client)
		})
	}
}

func TestDefaultRetryStrategy(t *testing.T) {
	tests := []struct {
		statusCode int
		expected   RetryStrategy
	}{
		{http.StatusTooManyRequests, SmartRetry},
		{http.StatusServiceUnavailable, SmartRetry},
		{http.StatusRequestTimeout, ConservativeRetry},
		{http.StatusInternalServerError, ConservativeRetry},
		{http.StatusBadGateway, ConservativeRetry},
		{http.StatusGatewayTimeout, ConservativeRetry},
		{http.StatusOK, NoRetry},
		{http.StatusNotFound, NoRetry},
		{http.StatusUnauthorized, NoRetry},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.statusCode), func(t *testing.T) {
			if got := DefaultRetryStrategy(tt.statusCode); got != tt.expected {
				t.Errorf("DefaultRetryStrategy(%d) = %v, want %v", tt.statusCode, got, tt.expected)
			}
		})
	}
}

func TestClient_Do_InjectsHeaders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer token" {
			t.Errorf("Authorization = %q, want Bearer token", got)
		}
		if got := r.Header.Get("X-Tenant"); got != "override" {
			t.Errorf("X-Tenant = %q, want request value to win", got)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := New(
		WithBearerToken("token"),
		WithHeaders(map[string]string{"X-Tenant": "default"}),
	)
	req, _ := http.NewRequest(http.MethodGet, server.URL, nil)
	req.Header.Set("X-Tenant", "override")

	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	resp.Body.Close()
}

func TestClient_Do_NetworkError(t *testing.T) {
	client := New(WithHTTPClient(&http.Client{Timeout: 50 * time.Millisecond}))
	req, _ := http.NewRequest(http.MethodGet, "http://127.0.0.1:1", nil)

	resp, err := client.Do(req)
	if err == nil {
		t.Error("Do() error = nil, want network error")
	}
	if resp != nil {
		t.Error("Do() response should be nil for network errors")
	}
}

func TestClient_Do_RetryableError(t *testing.T) {
	attemptCount := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attemptCount++
		if attemptCount <= 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := New(WithMaxRetries(3), WithBaseDelay(5*time.Millisecond))
	req, _ := http.NewRequest(http.MethodGet, server.URL, nil)

	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("Do() error = %v, want nil", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Do() status code = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	if attemptCount != 3 {
		t.Errorf("Expected 3 attempts, got %d", attemptCount)
	}
}

func TestClient_Do_MaxRetriesExceeded(t *testing.T) {
	attemptCount := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attemptCount++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := New(WithMaxRetries(2), WithBaseDelay(5*time.Millisecond))
	req, _ := http.NewRequest(http.MethodGet, server.URL, nil)

	resp, err := client.Do(req)
	if resp == nil {
		t.Fatal("Do() response = nil, want non-nil")
	}
	resp.Body.Close()

	var retryErr *RetryableError
	if !errors.As(err, &retryErr) {
		t.Fatalf("Do() error type = %T, want *RetryableError", err)
	}
	if retryErr.StatusCode != http.StatusInternalServerError {
		t.Errorf("RetryableError.StatusCode = %d, want 500", retryErr.StatusCode)
	}
	if attemptCount != 3 {
		t.Errorf("Expected 3 attempts, got %d", attemptCount)
	}
}

func TestClient_Do_NoRetryReturnsStatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := New()
	req, _ := http.NewRequest(http.MethodGet, server.URL, nil)

	resp, err := client.Do(req)
	if resp == nil {
		t.Fatal("Do() response = nil, want 404 response")
	}
	resp.Body.Close()

	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusNotFound {
		t.Errorf("Do() error = %v, want StatusError 404", err)
	}
}

func TestClient_Do_ContextCancelledDuringBackoff(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "30")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	client := New(WithMaxRetries(3))
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, server.URL, nil)

	start := time.Now()
	_, err := client.Do(req)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Do() error = %v, want context.DeadlineExceeded", err)
	}
	if time.Since(start) > 5*time.Second {
		t.Error("Do() ignored context cancellation during backoff")
	}
}

func TestClient_calculateDelay(t *testing.T) {
	client := New(WithBaseDelay(1 * time.Second))

	tests := []struct {
		name      string
		strategy  RetryStrategy
		attempt   int
		retryInfo RateLimitInfo
		expected  time.Duration
	}{
		{name: "no_retry", strategy: NoRetry, expected: 0},
		{name: "smart_retry_attempt_0", strategy: SmartRetry, expected: 1*time.Second + 100*time.Millisecond},
		{name: "smart_retry_attempt_1", strategy: SmartRetry, attempt: 1, expected: 2*time.Second + 200*time.Millisecond},
		{name: "smart_retry_with_retry_after", strategy: SmartRetry, retryInfo: RateLimitInfo{RetryAfter: 5 * time.Second}, expected: 5 * time.Second},
		{name: "conservative_retry_attempt_0", strategy: ConservativeRetry, expected: 1 * time.Second},
		{name: "conservative_retry_attempt_1", strategy: ConservativeRetry, attempt: 1, expected: 2 * time.Second},
		{name: "conservative_retry_attempt_2", strategy: ConservativeRetry, attempt: 2, expected: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := client.calculateDelay(tt.strategy, tt.attempt, tt.retryInfo); got != tt.expected {
				t.Errorf("calculateDelay() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestClient_StandardClient(t *testing.T) {
	var hits int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		if got := r.Header.Get("Authorization"); got != "Bearer abc" {
			t.Errorf("Authorization = %q, want Bearer abc", got)
		}
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	std := New(WithBearerToken("abc"), WithMaxRetries(3)).StandardClient(2 * time.Second)
	if std.Timeout != 2*time.Second {
		t.Errorf("Timeout = %v, want 2s", std.Timeout)
	}

	resp, err := std.Get(server.URL)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	resp.Body.Close()
	if hits != 1 {
		t.Errorf("StandardClient retried: %d hits", hits)
	}
}

func TestClient_StreamingClient(t *testing.T) {
	t.Run("slow_body_is_not_cut_off", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.(http.Flusher).Flush()
			for _, chunk := range []string{"a", "b", "c"} {
				time.Sleep(60 * time.Millisecond)
				_, _ = w.Write([]byte(chunk))
				w.(http.Flusher).Flush()
			}
		}))
		defer server.Close()

		std := New(WithBearerToken("abc")).StreamingClient(100 * time.Millisecond)
		if std.Timeout != 0 {
			t.Errorf("Timeout = %v, want no overall deadline", std.Timeout)
		}

		resp, err := std.Get(server.URL)
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			t.Fatalf("ReadAll() error = %v", err)
		}
		if string(body) != "abc" {
			t.Errorf("body = %q, want abc", body)
		}
	})

	t.Run("slow_headers_time_out", func(t *testing.T) {
		release := make(chan struct{})
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-release:
			case <-r.Context().Done():
			}
		}))
		defer server.Close()
		defer close(release)

		std := New().StreamingClient(50 * time.Millisecond)
		resp, err := std.Get(server.URL)
		if err == nil {
			resp.Body.Close()
			t.Fatal("Get() error = nil, want response header timeout")
		}
	})
}
