package http

import (
	"context"
	"io"
	"log/slog"
	nethttp "net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlattenToFormData(t *testing.T) {
	tests := []struct {
		name     string
		input    map[string]any
		expected map[string]string
	}{
		{
			name: "simple values",
			input: map[string]any{
				"amount":   1099,
				"currency": "usd",
			},
			expected: map[string]string{
				"amount":   "1099",
				"currency": "usd",
			},
		},
		{
			name: "nested map",
			input: map[string]any{
				"amount": 1099,
				"metadata": map[string]any{
					"order_id": "12345",
					"user":     "john",
				},
			},
			expected: map[string]string{
				"amount":             "1099",
				"metadata[order_id]": "12345",
				"metadata[user]":     "john",
			},
		},
		{
			name: "deeply nested",
			input: map[string]any{
				"shipping": map[string]any{
					"address": map[string]any{
						"city":    "NYC",
						"country": "US",
					},
				},
			},
			expected: map[string]string{
				"shipping[address][city]":    "NYC",
				"shipping[address][country]": "US",
			},
		},
		{
			name: "array values",
			input: map[string]any{
				"items": []any{"item1", "item2"},
			},
			expected: map[string]string{
				"items[0]": "item1",
				"items[1]": "item2",
			},
		},
		{
			name: "array of objects",
			input: map[string]any{
				"line_items": []any{
					map[string]any{"price": "price_123", "quantity": 2},
					map[string]any{"price": "price_456", "quantity": 1},
				},
			},
			expected: map[string]string{
				"line_items[0][price]":    "price_123",
				"line_items[0][quantity]": "2",
				"line_items[1][price]":    "price_456",
				"line_items[1][quantity]": "1",
			},
		},
		{
			name: "checkout order example",
			input: map[string]any{
				"amount":               1099,
				"currency":             "usd",
				"payment_method_types": []any{"card"},
				"metadata": map[string]any{
					"order_id": "order_123",
				},
			},
			expected: map[string]string{
				"amount":                  "1099",
				"currency":                "usd",
				"payment_method_types[0]": "card",
				"metadata[order_id]":      "order_123",
			},
		},
		{
			name:     "empty map",
			input:    map[string]any{},
			expected: map[string]string{},
		},
		{
			name: "boolean and float",
			input: map[string]any{
				"enabled": true,
				"rate":    0.15,
			},
			expected: map[string]string{
				"enabled": "true",
				"rate":    "0.15",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, flattenToFormData(tt.input, ""))
		})
	}
}

func testExecutor(retries int) *Executor {
	return NewExecutor(slog.New(slog.NewTextHandler(io.Discard, nil)), Config{
		Timeout:     2 * time.Second,
		MaxRetries:  retries,
		RetryWaitMS: 1,
	})
}

func TestExecute_JSONRoundTrip(t *testing.T) {
	srv := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		assert.Equal(t, nethttp.MethodPost, r.Method)
		assert.Equal(t, "Bearer abc", r.Header.Get("Authorization"))
		assert.Equal(t, "2", r.URL.Query().Get("page"))

		body, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		assert.JSONEq(t, `{"name":"widget","qty":2}`, string(body))

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-Request-Id", "req-1")
		w.WriteHeader(nethttp.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"o-1","items":[{"sku":"A"}]}`))
	}))
	defer srv.Close()

	resp, err := testExecutor(0).Execute(context.Background(), Request{
		Method:      "post",
		URL:         srv.URL + "/orders",
		Headers:     map[string]string{"Authorization": "Bearer abc"},
		QueryParams: map[string]string{"page": "2"},
		Body:        map[string]any{"name": "widget", "qty": 2},
		Retries:     -1,
	})
	require.NoError(t, err)

	assert.Equal(t, 201, resp.StatusCode)
	assert.False(t, resp.IsError)
	assert.Equal(t, "req-1", resp.Headers["X-Request-Id"])
	assert.Equal(t, map[string]any{"id": "o-1", "items": []any{map[string]any{"sku": "A"}}}, resp.Body)
	assert.Equal(t, 1, resp.Attempts)
}

func TestExecute_NonJSONAndEmptyBodies(t *testing.T) {
	srv := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		switch r.URL.Path {
		case "/text":
			_, _ = w.Write([]byte("pong"))
		default:
			w.WriteHeader(nethttp.StatusNoContent)
		}
	}))
	defer srv.Close()

	e := testExecutor(0)

	resp, err := e.Execute(context.Background(), Request{URL: srv.URL + "/text"})
	require.NoError(t, err)
	assert.Equal(t, "pong", resp.Body)

	resp, err = e.Execute(context.Background(), Request{Method: "DELETE", URL: srv.URL + "/empty"})
	require.NoError(t, err)
	assert.Equal(t, 204, resp.StatusCode)
	assert.Nil(t, resp.Body)
}

func TestExecute_ErrorStatusIsNotAnError(t *testing.T) {
	srv := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		w.WriteHeader(nethttp.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"missing"}`))
	}))
	defer srv.Close()

	resp, err := testExecutor(3).Execute(context.Background(), Request{URL: srv.URL, Retries: -1})
	require.NoError(t, err)
	assert.Equal(t, 404, resp.StatusCode)
	assert.True(t, resp.IsError)
	assert.Equal(t, map[string]any{"error": "missing"}, resp.Body)
	assert.Equal(t, 1, resp.Attempts, "404 is not retried")
}

func TestExecute_RetriesUnavailable(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(nethttp.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	resp, err := testExecutor(0).Execute(context.Background(), Request{URL: srv.URL, Retries: 5})
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, 3, resp.Attempts)
	assert.Equal(t, int32(3), calls.Load())
}

func TestExecute_RetryBudgetExhausted(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		calls.Add(1)
		w.WriteHeader(nethttp.StatusBadGateway)
	}))
	defer srv.Close()

	resp, err := testExecutor(1).Execute(context.Background(), Request{URL: srv.URL, Retries: -1})
	require.NoError(t, err)
	assert.Equal(t, 502, resp.StatusCode)
	assert.Equal(t, int32(2), calls.Load())
}

func TestExecute_Timeout(t *testing.T) {
	srv := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer srv.Close()

	_, err := testExecutor(0).Execute(context.Background(), Request{URL: srv.URL, Timeout: 20 * time.Millisecond})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestExecute_FormEncodedBody(t *testing.T) {
	srv := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "1099", r.PostForm.Get("amount"))
		assert.Equal(t, "o-1", r.PostForm.Get("metadata[order_id]"))
		w.WriteHeader(nethttp.StatusOK)
	}))
	defer srv.Close()

	resp, err := testExecutor(0).Execute(context.Background(), Request{
		Method:  "POST",
		URL:     srv.URL,
		Headers: map[string]string{"Content-Type": "application/x-www-form-urlencoded"},
		Body:    map[string]any{"amount": 1099, "metadata": map[string]any{"order_id": "o-1"}},
	})
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
}
