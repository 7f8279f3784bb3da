package helpers

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "sjsage522/pricetracker/pkg/errors"
)

func TestFetchPage(t *testing.T) {
	// Create a test server
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Check that headers are set
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		assert.NotEmpty(t, r.Header.Get("Accept"))
		assert.Equal(t, "en-US,en;q=0.9", r.Header.Get("Accept-Language"))

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("<html><body>Hello, World!</body></html>"))
	}))
	defer server.Close()

	reader, err := FetchPage(context.Background(), server.URL, FetchOptions{})
	require.NoError(t, err)

	body, err := io.ReadAll(reader)
	require.NoError(t, err)
	assert.Contains(t, string(body), "Hello, World!")
}

func TestFetchPageCustomUserAgent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "price-tracker-test", r.Header.Get("User-Agent"))
		w.Write([]byte("<html></html>"))
	}))
	defer server.Close()

	_, err := FetchPage(context.Background(), server.URL, FetchOptions{UserAgent: "price-tracker-test"})
	assert.NoError(t, err)
}

func TestFetchPageNonUTF8(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=iso-8859-1")
		w.WriteHeader(http.StatusOK)
		// "Café" with é encoded as 0xE9 in ISO-8859-1
		w.Write([]byte("<html><body>Caf\xe9</body></html>"))
	}))
	defer server.Close()

	reader, err := FetchPage(context.Background(), server.URL, FetchOptions{})
	require.NoError(t, err)

	body, err := io.ReadAll(reader)
	require.NoError(t, err)
	assert.Contains(t, string(body), "Café")
}

func TestFetchPageErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	_, err := FetchPage(context.Background(), server.URL, FetchOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status code: 500")
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeNetwork))

	serverRateLimited := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "60")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer serverRateLimited.Close()

	_, err = FetchPage(context.Background(), serverRateLimited.URL, FetchOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "retry after 60")
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeRateLimit))
}

func TestFetchPageHonoursContextDeadline(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := FetchPage(ctx, server.URL, FetchOptions{})
	assert.Error(t, err)
	assert.Less(t, time.Since(start), time.Second)
}

func TestFetchPageInvalidURL(t *testing.T) {
	_, err := FetchPage(context.Background(), "http://invalid.url.that.does.not.exist", FetchOptions{})
	assert.Error(t, err)
}
