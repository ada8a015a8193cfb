package board

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/threadgoon/threadgoon/failure"
)

const catalogJSON = `[
	{"page": 1, "threads": [
		{"no": 100, "semantic_url": "rules-sticky", "images": 0, "sticky": 1},
		{"no": 101, "semantic_url": "cat-loops", "images": 42, "replies": 80},
		{"no": 102, "semantic_url": "", "sub": "Untitled fun", "images": 3}
	]},
	{"page": 2, "threads": [
		{"no": 103, "images": 7}
	]}
]`

func newTestClient(t *testing.T, serverURL string, mutate ...func(*Options)) *Client {
	t.Helper()

	opts := Options{
		Board:          "gif",
		APIURL:         serverURL,
		MediaURL:       serverURL + "/media",
		ConnectTimeout: time.Second,
		ReadTimeout:    200 * time.Millisecond,
		SkipSticky:     true,
	}
	for _, m := range mutate {
		m(&opts)
	}

	client, err := NewClient(opts, zerolog.Nop())
	require.NoError(t, err)
	return client
}

func TestNewClient(t *testing.T) {
	tests := []struct {
		name    string
		opts    Options
		wantErr bool
	}{
		{
			name: "valid options",
			opts: Options{Board: "gif", APIURL: "https://a.4cdn.org/", MediaURL: "https://i.4cdn.org"},
		},
		{
			name:    "missing board",
			opts:    Options{APIURL: "https://a.4cdn.org", MediaURL: "https://i.4cdn.org"},
			wantErr: true,
		},
		{
			name:    "missing media URL",
			opts:    Options{Board: "gif", APIURL: "https://a.4cdn.org"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := NewClient(tt.opts, zerolog.Nop())
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidConfig)
				return
			}

			require.NoError(t, err)
			opts := client.opts
			assert.Equal(t, "https://a.4cdn.org", opts.APIURL)
			assert.Equal(t, DefaultConnectTimeout, opts.ConnectTimeout)
			assert.Equal(t, DefaultReadTimeout, opts.ReadTimeout)
			assert.Equal(t, DefaultUserAgent, opts.UserAgent)
		})
	}
}

func TestClientURLs(t *testing.T) {
	client := newTestClient(t, "https://a.4cdn.org", func(o *Options) {
		o.MediaURL = "https://i.4cdn.org/"
	})

	assert.Equal(t, "https://a.4cdn.org/gif/catalog.json", client.CatalogURL())
	assert.Equal(t, "https://a.4cdn.org/gif/thread/123.json", client.ListingURL(123))
	assert.Equal(t, "https://i.4cdn.org/gif/1700000000123.webm",
		client.AttachmentURL(AttachmentTask{RemoteID: 1700000000123, Extension: ".webm"}))
}

func TestFetchCatalog(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/gif/catalog.json", r.URL.Path)
		assert.Equal(t, "test-agent", r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, catalogJSON)
	}))
	defer server.Close()

	t.Run("skips sticky threads", func(t *testing.T) {
		client := newTestClient(t, server.URL, func(o *Options) { o.UserAgent = "test-agent" })

		listings, err := client.FetchCatalog(context.Background())
		require.NoError(t, err)
		require.Len(t, listings, 3)

		assert.Equal(t, ListingSummary{Title: "cat-loops", ID: 101, AttachmentCountHint: 42, Replies: 80}, listings[0])
		assert.Equal(t, "Untitled fun", listings[1].Title)
		assert.Equal(t, "103", listings[2].Title)
	})

	t.Run("keeps sticky threads when disabled", func(t *testing.T) {
		client := newTestClient(t, server.URL, func(o *Options) {
			o.UserAgent = "test-agent"
			o.SkipSticky = false
		})

		listings, err := client.FetchCatalog(context.Background())
		require.NoError(t, err)
		require.Len(t, listings, 4)
		assert.True(t, listings[0].Sticky)
	})
}

func TestFetchListing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/gif/thread/101.json":
			io.WriteString(w, `{"posts": [
				{"no": 101, "ext": ".webm", "tim": 1001, "filename": "first", "fsize": 2048},
				{"no": 102},
				{"no": 103, "ext": ".jpg", "tim": 1003, "filename": "pic"}
			]}`)
		case "/gif/thread/404.json":
			http.NotFound(w, r)
		case "/gif/thread/500.json":
			io.WriteString(w, "<html>not json</html>")
		case "/gif/thread/501.json":
			io.WriteString(w, `{"posts": "nope"}`)
		case "/gif/thread/502.json":
			io.WriteString(w, `{"threads": []}`)
		case "/gif/thread/503.json":
			io.WriteString(w, `{"posts": [{"no": 1,`)
		case "/gif/thread/504.json":
			// empty body
		}
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	ctx := context.Background()

	payload, err := client.FetchListing(ctx, 101)
	require.NoError(t, err)
	require.Len(t, payload.Posts, 3)
	require.NotNil(t, payload.Posts[0].Tim)
	assert.Equal(t, int64(1001), *payload.Posts[0].Tim)
	assert.Nil(t, payload.Posts[1].Ext)
	assert.Equal(t, int64(2048), payload.Posts[0].FileSize)

	tests := []struct {
		id     int64
		kind   failure.Kind
		status int
	}{
		{404, failure.KindHTTPStatus, http.StatusNotFound},
		{500, failure.KindMalformedJSON, 0},
		{501, failure.KindSchemaMismatch, 0},
		{502, failure.KindSchemaMismatch, 0},
		{503, failure.KindMalformedJSON, 0},
		{504, failure.KindMalformedJSON, 0},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("thread %d", tt.id), func(t *testing.T) {
			_, err := client.FetchListing(ctx, tt.id)
			require.Error(t, err)

			var fe *failure.Error
			require.True(t, errors.As(err, &fe))
			assert.Equal(t, tt.kind, fe.Kind)
			assert.Equal(t, tt.status, fe.StatusCode)
			assert.Equal(t, "fetch listing", fe.Op)
			assert.Contains(t, fe.URL, fmt.Sprintf("/thread/%d.json", tt.id))
		})
	}
}

func TestFetchTimeouts(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/gif/thread/1.json":
			// never send headers
			select {
			case <-r.Context().Done():
			case <-release:
			}
		case "/gif/thread/2.json":
			// send headers and part of the body, then stall
			io.WriteString(w, `{"posts": [`)
			w.(http.Flusher).Flush()
			select {
			case <-r.Context().Done():
			case <-release:
			}
		}
	}))
	defer server.Close()
	defer close(release)

	client := newTestClient(t, server.URL, func(o *Options) { o.ReadTimeout = 50 * time.Millisecond })

	for _, id := range []int64{1, 2} {
		t.Run(fmt.Sprintf("thread %d", id), func(t *testing.T) {
			_, err := client.FetchListing(context.Background(), id)
			require.Error(t, err)
			assert.Equal(t, failure.KindTimeout, failure.KindOf(err))
		})
	}
}

func TestFetchCancelled(t *testing.T) {
	started := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(started)
		<-r.Context().Done()
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, func(o *Options) { o.ReadTimeout = 5 * time.Second })

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()

	_, err := client.FetchCatalog(ctx)
	require.Error(t, err)
	assert.Equal(t, failure.KindCancelled, failure.KindOf(err))
}

func TestFetchTransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	client := newTestClient(t, url)
	_, err := client.FetchCatalog(context.Background())
	require.Error(t, err)
	assert.Equal(t, failure.KindTransport, failure.KindOf(err))
}

func TestStream(t *testing.T) {
	payload := strings.Repeat("x", 1000)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "1000")
		io.WriteString(w, payload)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	stream, err := client.Stream(context.Background(), server.URL+"/gif/1.webm")
	require.NoError(t, err)
	defer stream.Body.Close()

	assert.Equal(t, int64(1000), stream.ContentLength)
	body, err := io.ReadAll(stream.Body)
	require.NoError(t, err)
	assert.Equal(t, payload, string(body))
}

func TestCustomHTTPClient(t *testing.T) {
	custom := &http.Client{Timeout: 10 * time.Second}
	client, err := NewClient(Options{Board: "gif", APIURL: "http://x", MediaURL: "http://y"}, zerolog.Nop(), withHTTPClient(custom))
	require.NoError(t, err)
	assert.Same(t, custom, client.httpClient)
}
