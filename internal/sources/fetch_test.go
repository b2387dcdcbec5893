// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sources

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/paper-fetch/internal/acquire"
)

func TestClassifyResponse(t *testing.T) {
	tests := []struct {
		code        int
		body        string
		wantStatus  acquire.Status
		wantBlocked bool
	}{
		{http.StatusNotFound, "", acquire.StatusNotFound, false},
		{http.StatusGone, "", acquire.StatusNotFound, false},
		{http.StatusRequestTimeout, "", acquire.StatusTransient, false},
		{http.StatusTooEarly, "", acquire.StatusTransient, false},
		{http.StatusTooManyRequests, "", acquire.StatusTransient, false},
		{http.StatusInternalServerError, "", acquire.StatusTransient, false},
		{http.StatusBadGateway, "", acquire.StatusTransient, false},
		{http.StatusServiceUnavailable, challengeHTML, acquire.StatusPermanent, true},
		{http.StatusUnauthorized, "", acquire.StatusPermanent, true},
		{http.StatusForbidden, "", acquire.StatusPermanent, true},
		{http.StatusBadRequest, "", acquire.StatusPermanent, false},
		{http.StatusNoContent, "", acquire.StatusPermanent, false},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.code), func(t *testing.T) {
			resp := &response{URL: "https://x.example/", StatusCode: tt.code, Body: []byte(tt.body)}
			if tt.body != "" {
				resp.ContentType = "text/html"
			}
			out := classifyResponse(resp)
			assert.Equal(t, tt.wantStatus, out.Status)
			assert.Equal(t, tt.wantBlocked, out.Blocked)
			assert.Equal(t, "https://x.example/", out.URL)
		})
	}
}

func TestClassifyError(t *testing.T) {
	wrap := func(err error) error {
		return &url.Error{Op: "Get", URL: "https://x.example/", Err: err}
	}
	tests := []struct {
		name string
		err  error
		want acquire.Status
	}{
		{"deadline", wrap(context.DeadlineExceeded), acquire.StatusTransient},
		{"rate limit wait", fmt.Errorf("%w: would exceed deadline", errRateLimited), acquire.StatusTransient},
		{"dns not found", wrap(&net.OpError{Op: "dial", Err: &net.DNSError{Err: "no such host", Name: "x.example", IsNotFound: true}}), acquire.StatusPermanent},
		{"dns timeout", wrap(&net.DNSError{Err: "timeout", Name: "x.example", IsTimeout: true}), acquire.StatusTransient},
		{"connection reset", wrap(&net.OpError{Op: "read", Err: syscall.ECONNRESET}), acquire.StatusTransient},
		{"connection refused", wrap(&net.OpError{Op: "dial", Err: syscall.ECONNREFUSED}), acquire.StatusTransient},
		{"body too large", errBodyTooLarge, acquire.StatusPermanent},
		{"bad scheme", wrap(errors.New(`unsupported protocol scheme "ftp"`)), acquire.StatusPermanent},
		{"redirect loop", wrap(errors.New("stopped after 10 redirects")), acquire.StatusPermanent},
		{"other url error", wrap(errors.New("server closed idle connection")), acquire.StatusTransient},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classifyError(tt.err).Status)
		})
	}
}

func TestFetcherDownload(t *testing.T) {
	ts := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/paper.pdf":
			assert.Contains(t, r.Header.Get("Accept"), "application/pdf")
			assert.NotEmpty(t, r.Header.Get("User-Agent"))
			servePDF(w)
		case "/moved":
			http.Redirect(w, r, "/paper.pdf", http.StatusFound)
		case "/landing":
			serveHTML(w, "<html><body>Buy this article</body></html>")
		case "/challenge":
			serveHTML(w, challengeHTML)
		case "/loop":
			http.Redirect(w, r, "/loop", http.StatusFound)
		default:
			http.NotFound(w, r)
		}
	})
	f := testFetcher(t, "test")
	ctx := context.Background()

	out := f.download(ctx, ts.URL+"/moved")
	require.True(t, out.OK(), out.Reason)
	assert.Equal(t, ts.URL+"/paper.pdf", out.URL, "final URL after redirects")
	assert.Equal(t, fakePDFContent, string(out.Content))

	out = f.download(ctx, ts.URL+"/landing")
	assert.Equal(t, acquire.StatusPermanent, out.Status)
	assert.False(t, out.Blocked)

	out = f.download(ctx, ts.URL+"/challenge")
	assert.Equal(t, acquire.StatusPermanent, out.Status)
	assert.True(t, out.Blocked)

	out = f.download(ctx, ts.URL+"/missing")
	assert.Equal(t, acquire.StatusNotFound, out.Status)

	out = f.download(ctx, ts.URL+"/loop")
	assert.Equal(t, acquire.StatusPermanent, out.Status)
	assert.Contains(t, out.Reason, "redirects")

	out = f.download(ctx, "ftp://x.example/paper.pdf")
	assert.Equal(t, acquire.StatusPermanent, out.Status)
}

func TestFetcherGetJSON(t *testing.T) {
	ts := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok":
			serveJSON(w, `{"value": 42}`)
		case "/broken":
			serveJSON(w, `{"value": `)
		case "/blocked":
			serveHTML(w, challengeHTML)
		case "/busy":
			w.WriteHeader(http.StatusTooManyRequests)
		}
	})
	f := testFetcher(t, "test")
	ctx := context.Background()

	var v struct{ Value int }
	_, ok := f.getJSON(ctx, ts.URL+"/ok", nil, &v)
	require.True(t, ok)
	assert.Equal(t, 42, v.Value)

	out, ok := f.getJSON(ctx, ts.URL+"/broken", nil, &v)
	assert.False(t, ok)
	assert.Equal(t, acquire.StatusPermanent, out.Status)
	assert.False(t, out.Blocked)

	out, ok = f.getJSON(ctx, ts.URL+"/blocked", nil, &v)
	assert.False(t, ok)
	assert.True(t, out.Blocked)

	out, ok = f.getJSON(ctx, ts.URL+"/busy", nil, &v)
	assert.False(t, ok)
	assert.Equal(t, acquire.StatusTransient, out.Status)
}

func TestFetcherAttemptDeadline(t *testing.T) {
	release := make(chan struct{})
	ts := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	out := testFetcher(t, "test").download(ctx, ts.URL+"/slow")
	assert.Equal(t, acquire.StatusTransient, out.Status)
}

func TestResolveRef(t *testing.T) {
	tests := []struct {
		base, ref string
		want      string
		wantOK    bool
	}{
		{"https://pub.example/article/1", "/pdf/1.pdf", "https://pub.example/pdf/1.pdf", true},
		{"https://pub.example/article/1", "1.pdf", "https://pub.example/article/1.pdf", true},
		{"https://mirror.example/x", "//cdn.example/f.pdf", "https://cdn.example/f.pdf", true},
		{"https://pub.example/", "https://other.example/a.pdf", "https://other.example/a.pdf", true},
		{"https://pub.example/", "#top", "", false},
		{"https://pub.example/", "javascript:void(0)", "", false},
		{"https://pub.example/", "mailto:a@b.example", "", false},
		{"https://pub.example/", "  ", "", false},
	}
	for _, tt := range tests {
		got, ok := resolveRef(tt.base, tt.ref)
		assert.Equal(t, tt.wantOK, ok, tt.ref)
		assert.Equal(t, tt.want, got, tt.ref)
	}
}

func TestDOIPath(t *testing.T) {
	assert.Equal(t, "10.1000/abc", doiPath("10.1000/abc"))
	assert.Equal(t, "10.1002/%28SICI%291097-4571%3C3::AID%3E", doiPath("10.1002/(SICI)1097-4571<3::AID>"))
	assert.Equal(t, "10.1000/a%20b", doiPath("10.1000/a b"))
}

func TestHasChallenge(t *testing.T) {
	assert.True(t, hasChallenge([]byte(challengeHTML)))
	assert.True(t, hasChallenge([]byte("<html>protected by DDoS-Guard</html>")))
	assert.True(t, hasChallenge([]byte("<html>Please solve the CAPTCHA</html>")))
	assert.False(t, hasChallenge([]byte("<html>An ordinary article page</html>")))
}
