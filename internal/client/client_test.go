package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(endpoint string, retries int) *NeighborClient {
	return NewNeighborClient(Options{
		Endpoint:       endpoint,
		UserAgent:      "graph-crawler-test",
		RequestTimeout: 2 * time.Second,
		RetryAttempts:  retries,
		RetryDelay:     time.Millisecond,
	})
}

func TestFetchEncodesLabel(t *testing.T) {
	var gotPath, gotAgent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		gotAgent = r.UserAgent()
		fmt.Fprint(w, `{"neighbors": ["Rita Wilson", "Forrest Gump"]}`)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL+"/neighbors/", 0)
	neighbors, err := c.Fetch(context.Background(), "Tom Hanks")
	require.NoError(t, err)

	assert.Equal(t, []string{"Rita Wilson", "Forrest Gump"}, neighbors)
	assert.Equal(t, "/neighbors/Tom%20Hanks", gotPath)
	assert.Equal(t, "graph-crawler-test", gotAgent)
}

func TestFetchErrorKinds(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		kind    Kind
		wantErr error
	}{
		{name: "error field", status: http.StatusOK, body: `{"error": "unknown node"}`, kind: KindService, wantErr: ErrServiceReported},
		{name: "error field with status", status: http.StatusNotFound, body: `{"error": "unknown node"}`, kind: KindService, wantErr: ErrServiceReported},
		{name: "malformed body", status: http.StatusOK, body: `{"neighbors": [`, kind: KindDecode},
		{name: "wrong element type", status: http.StatusOK, body: `{"neighbors": [1, 2]}`, kind: KindDecode},
		{name: "html error page", status: http.StatusBadGateway, body: `<html>bad gateway</html>`, kind: KindTransport},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			}))
			defer srv.Close()

			neighbors, err := newTestClient(srv.URL, 0).Fetch(context.Background(), "X")
			require.Error(t, err)
			assert.Nil(t, neighbors)

			var fe *FetchError
			require.True(t, errors.As(err, &fe))
			assert.Equal(t, tt.kind, fe.Kind)
			assert.Equal(t, "X", fe.Label)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestFetchTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	endpoint := srv.URL
	srv.Close()

	_, err := newTestClient(endpoint, 0).Fetch(context.Background(), "X")
	require.Error(t, err)
	assert.Equal(t, KindTransport, KindOf(err))
}

func TestFetchRetriesTransportFailures(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			fmt.Fprint(w, "busy")
			return
		}
		fmt.Fprint(w, `{"neighbors": ["B"]}`)
	}))
	defer srv.Close()

	neighbors, err := newTestClient(srv.URL, 3).Fetch(context.Background(), "A")
	require.NoError(t, err)
	assert.Equal(t, []string{"B"}, neighbors)
	assert.Equal(t, int32(3), calls.Load())
}

func TestFetchDoesNotRetryDecodeFailures(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		fmt.Fprint(w, "not json")
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL, 3).Fetch(context.Background(), "A")
	require.Error(t, err)
	assert.Equal(t, KindDecode, KindOf(err))
	assert.Equal(t, int32(1), calls.Load())
}

func TestFetchWithoutRetriesStopsAtFirstFailure(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL, 0).Fetch(context.Background(), "A")
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestFetchStopsWhenContextDone(t *testing.T) {
	for _, retries := range []int{0, 3} {
		t.Run(fmt.Sprintf("retries=%d", retries), func(t *testing.T) {
			var calls atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				fmt.Fprint(w, `{"neighbors": ["B"]}`)
			}))
			defer srv.Close()

			ctx, cancel := context.WithCancel(context.Background())
			cancel()

			neighbors, err := newTestClient(srv.URL, retries).Fetch(ctx, "A")
			require.Error(t, err)
			assert.Nil(t, neighbors)
			assert.ErrorIs(t, err, context.Canceled)
			assert.Equal(t, KindTransport, KindOf(err))
			assert.Equal(t, int32(0), calls.Load())
		})
	}
}

func TestFetchZeroRetryDelay(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewNeighborClient(Options{
		Endpoint:       srv.URL,
		RequestTimeout: 2 * time.Second,
		RetryAttempts:  2,
		RetryDelay:     0,
	})

	started := time.Now()
	_, err := c.Fetch(context.Background(), "A")
	require.Error(t, err)
	assert.Equal(t, int32(3), calls.Load())
	assert.Less(t, time.Since(started), 400*time.Millisecond)
}

func TestURL(t *testing.T) {
	c := newTestClient("http://example.org/neighbors/", 0)
	assert.Equal(t, "http://example.org/neighbors/Tom%20Hanks", c.URL("Tom Hanks"))
	assert.True(t, strings.HasSuffix(c.URL("a/b"), "/a%2Fb"))

	// dot-only labels are passed through as dot segments
	assert.Equal(t, "http://example.org/neighbors/.", c.URL("."))
	assert.Equal(t, "http://example.org/neighbors/..", c.URL(".."))
}

func TestParseNeighbors(t *testing.T) {
	neighbors, err := ParseNeighbors([]byte(`{"neighbors": ["B", "C"]}`))
	require.NoError(t, err)
	assert.Equal(t, []string{"B", "C"}, neighbors)

	neighbors, err = ParseNeighbors([]byte(`{}`))
	require.NoError(t, err)
	assert.Empty(t, neighbors)

	neighbors, err = ParseNeighbors([]byte(`{"neighbors": [], "error": null}`))
	require.NoError(t, err)
	assert.Empty(t, neighbors)

	_, err = ParseNeighbors([]byte(`{"error": {"code": 7}}`))
	assert.ErrorIs(t, err, ErrServiceReported)

	_, err = ParseNeighbors([]byte(`{"neighbors": "B"}`))
	var pe *ParseError
	require.True(t, errors.As(err, &pe))

	_, err = ParseNeighbors([]byte(`garbage`))
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, int64(1), pe.Offset)
}
