package relay

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/EcommerceGo/pkg/httpclient"
)

// ---------------------------------------------------------------------------
// helpers
// ---------------------------------------------------------------------------

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestHandler(t *testing.T, hosts ...string) *Handler {
	t.Helper()
	client := httpclient.New(httpclient.Config{
		Timeout:          5 * time.Second,
		MaxRetries:       0,
		MaxConnsPerHost:  10,
		DisableRedirects: true,
	})
	return New(Config{
		AllowedHosts: hosts,
		MaxRedirects: 2,
		MaxBodyBytes: 1024,
		Timeout:      5 * time.Second,
		UserAgent:    "Test-Relay/1.0",
	}, client, testLogger())
}

func relayPath(target string) string {
	return RoutePrefix + url.PathEscape(target)
}

func serve(h *Handler, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

// ---------------------------------------------------------------------------
// validation
// ---------------------------------------------------------------------------

func TestRelay_HostNotAllowed_Returns400(t *testing.T) {
	var hits int32
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	}))
	defer upstream.Close()

	h := newTestHandler(t, "cdn.example.com")

	for _, target := range []string{
		upstream.URL + "/a.jpg",
		"https://evil.example.org/a.jpg",
		"https://evil.example.org/%%%",
	} {
		rec := serve(h, relayPath(target))
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
		assert.Equal(t, "Invalid image URL", rec.Body.String())
	}
	assert.Zero(t, atomic.LoadInt32(&hits))
}

func TestRelay_NotAURL_Returns400(t *testing.T) {
	h := newTestHandler(t, "cdn.example.com")

	for _, path := range []string{
		"/images/not%20a%20url",
		"/images/ftp%3A%2F%2Fcdn.example.com%2Fa.jpg",
		"/images/%2Fa.jpg",
		"/images/",
	} {
		rec := serve(h, path)
		assert.Equal(t, http.StatusBadRequest, rec.Code, path)
		assert.Equal(t, "Invalid image URL", rec.Body.String())
	}
}

func TestValidate(t *testing.T) {
	h := newTestHandler(t, "CDN.Example.com")

	tests := []struct {
		name    string
		raw     string
		wantErr error
	}{
		{name: "allowed host", raw: url.PathEscape("https://cdn.example.com/a.jpg")},
		{name: "host match is case-insensitive", raw: url.PathEscape("https://CDN.EXAMPLE.COM/a.jpg")},
		{name: "port is ignored", raw: url.PathEscape("http://cdn.example.com:8080/a.jpg")},
		{name: "unencoded input", raw: "https://cdn.example.com/a.jpg"},
		{name: "bad escape", raw: "%ZZ", wantErr: ErrInvalidURL},
		{name: "relative", raw: "a.jpg", wantErr: ErrInvalidURL},
		{name: "javascript scheme", raw: url.PathEscape("javascript:alert(1)"), wantErr: ErrInvalidURL},
		{name: "subdomain not allowed", raw: url.PathEscape("https://x.cdn.example.com/a.jpg"), wantErr: ErrHostNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, err := h.Validate(tt.raw)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, u)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "cdn.example.com", strings.ToLower(u.Hostname()))
		})
	}
}

// ---------------------------------------------------------------------------
// upstream responses
// ---------------------------------------------------------------------------

func TestRelay_Success(t *testing.T) {
	var gotUA string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.UserAgent()
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte("\x89PNG-bytes"))
	}))
	defer upstream.Close()

	h := newTestHandler(t, "127.0.0.1")
	rec := serve(h, relayPath(upstream.URL+"/img/a.png"))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "\x89PNG-bytes", rec.Body.String())
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, "public, max-age=31536000, immutable", rec.Header().Get("Cache-Control"))
	assert.Equal(t, "Test-Relay/1.0", gotUA)
}

func TestRelay_DefaultsContentType(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header()["Content-Type"] = nil
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte{0xff, 0xd8})
	}))
	defer upstream.Close()

	rec := serve(newTestHandler(t, "127.0.0.1"), relayPath(upstream.URL+"/a"))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/jpeg", rec.Header().Get("Content-Type"))
}

func TestRelay_UpstreamNon200(t *testing.T) {
	for _, status := range []int{http.StatusNotFound, http.StatusForbidden, http.StatusServiceUnavailable} {
		upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
			_, _ = w.Write([]byte("upstream body"))
		}))

		rec := serve(newTestHandler(t, "127.0.0.1"), relayPath(upstream.URL+"/a.jpg"))

		assert.Equal(t, status, rec.Code)
		assert.Equal(t, "Image not found", rec.Body.String())
		assert.Empty(t, rec.Header().Get("Cache-Control"))
		upstream.Close()
	}
}

func TestRelay_FollowsRedirectToAllowedHost(t *testing.T) {
	final := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/webp")
		_, _ = w.Write([]byte("final-image"))
	}))
	defer final.Close()

	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, final.URL+"/moved.webp", http.StatusFound)
	}))
	defer origin.Close()

	rec := serve(newTestHandler(t, "127.0.0.1"), relayPath(origin.URL+"/a.webp"))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "final-image", rec.Body.String())
	assert.Equal(t, "image/webp", rec.Header().Get("Content-Type"))
}

func TestRelay_RedirectTargetStatusIsReflected(t *testing.T) {
	final := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusGone)
	}))
	defer final.Close()

	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, final.URL+"/gone.jpg", http.StatusPermanentRedirect)
	}))
	defer origin.Close()

	rec := serve(newTestHandler(t, "127.0.0.1"), relayPath(origin.URL+"/a.jpg"))

	assert.Equal(t, http.StatusGone, rec.Code)
	assert.Equal(t, "Image not found", rec.Body.String())
}

func TestRelay_RelativeRedirect(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/old.jpg" {
			w.Header().Set("Location", "/new.jpg")
			w.WriteHeader(http.StatusMovedPermanently)
			return
		}
		_, _ = w.Write([]byte("new"))
	}))
	defer upstream.Close()

	rec := serve(newTestHandler(t, "127.0.0.1"), relayPath(upstream.URL+"/old.jpg"))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "new", rec.Body.String())
}

func TestRelay_RedirectToDisallowedHost_Returns500(t *testing.T) {
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "http://internal.invalid/secret", http.StatusTemporaryRedirect)
	}))
	defer origin.Close()

	rec := serve(newTestHandler(t, "127.0.0.1"), relayPath(origin.URL+"/a.jpg"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Error fetching image", rec.Body.String())
}

func TestRelay_RedirectLoop_Returns500(t *testing.T) {
	var hits int32
	var upstream *httptest.Server
	upstream = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		http.Redirect(w, r, upstream.URL+r.URL.Path, http.StatusFound)
	}))
	defer upstream.Close()

	rec := serve(newTestHandler(t, "127.0.0.1"), relayPath(upstream.URL+"/loop.jpg"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Error fetching image", rec.Body.String())
	// initial request plus MaxRedirects hops
	assert.Equal(t, int32(3), atomic.LoadInt32(&hits))
}

func TestRelay_BodyTooLarge_Returns500(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("x", 2048)))
	}))
	defer upstream.Close()

	rec := serve(newTestHandler(t, "127.0.0.1"), relayPath(upstream.URL+"/huge.jpg"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Error fetching image", rec.Body.String())
}

func TestRelay_ConnectionFailure_Returns500(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	target := upstream.URL + "/a.jpg"
	upstream.Close()

	rec := serve(newTestHandler(t, "127.0.0.1"), relayPath(target))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Error fetching image", rec.Body.String())
}

func TestRelay_UpstreamTimeout_Returns500(t *testing.T) {
	release := make(chan struct{})
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer upstream.Close()
	defer close(release)

	h := newTestHandler(t, "127.0.0.1")
	h.timeout = 50 * time.Millisecond

	rec := serve(h, relayPath(upstream.URL+"/slow.jpg"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

// ---------------------------------------------------------------------------
// fetch errors
// ---------------------------------------------------------------------------

type stubDoer struct {
	resp *http.Response
	err  error
}

func (s stubDoer) Do(_ context.Context, _ *http.Request) (*http.Response, error) {
	return s.resp, s.err
}

func TestFetch_RedirectWithoutLocation(t *testing.T) {
	h := New(Config{AllowedHosts: []string{"cdn.example.com"}}, stubDoer{resp: &http.Response{
		StatusCode: http.StatusFound,
		Header:     http.Header{},
		Body:       io.NopCloser(strings.NewReader("")),
	}}, testLogger())

	target, err := h.Validate(url.PathEscape("https://cdn.example.com/a.jpg"))
	require.NoError(t, err)

	_, err = h.fetch(context.Background(), target)

	assert.ErrorIs(t, err, ErrRedirectNotAllowed)
}

func TestFetch_TransportError(t *testing.T) {
	h := New(Config{AllowedHosts: []string{"cdn.example.com"}}, stubDoer{err: errors.New("dial tcp: refused")}, testLogger())

	target, err := h.Validate(url.PathEscape("https://cdn.example.com/a.jpg"))
	require.NoError(t, err)

	_, err = h.fetch(context.Background(), target)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "refused")
}

func TestNew_Defaults(t *testing.T) {
	h := New(Config{}, stubDoer{}, nil)

	assert.Equal(t, 5, h.maxRedirects)
	assert.Equal(t, int64(15<<20), h.maxBodyBytes)
	assert.Equal(t, 10*time.Second, h.timeout)
	assert.NotNil(t, h.logger)
}

// ---------------------------------------------------------------------------
// RewriteURL / AllowList
// ---------------------------------------------------------------------------

func TestRewriteURL(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{name: "empty", raw: "", want: ""},
		{name: "absolute", raw: "https://cdn.example.com/a b.jpg", want: "/images/https:%2F%2Fcdn.example.com%2Fa%20b.jpg"},
		{name: "relative", raw: "/static/logo.png", want: "/static/logo.png"},
		{name: "already relayed", raw: "/images/https:%2F%2Fcdn.example.com%2Fa.jpg", want: "/images/https:%2F%2Fcdn.example.com%2Fa.jpg"},
		{name: "data uri", raw: "data:image/png;base64,AAAA", want: "data:image/png;base64,AAAA"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RewriteURL(RoutePrefix, tt.raw))
		})
	}
}

func TestRewriteURL_RoundTripsThroughValidate(t *testing.T) {
	h := newTestHandler(t, "cdn.example.com")
	original := "https://cdn.example.com/p/1/a%20b.jpg?w=200&h=100"

	rewritten := RewriteURL(RoutePrefix, original)
	u, err := h.Validate(strings.TrimPrefix(rewritten, RoutePrefix))

	require.NoError(t, err)
	assert.Equal(t, original, u.String())
}

func TestAllowList(t *testing.T) {
	a := NewAllowList([]string{" CDN.example.com ", "", "images.example.org"})

	assert.True(t, a.Allows("cdn.example.com"))
	assert.True(t, a.Allows("Images.Example.org"))
	assert.False(t, a.Allows("example.com"))
	assert.False(t, a.Allows(""))
	assert.Equal(t, []string{"cdn.example.com", "images.example.org"}, a.Hosts())
}
