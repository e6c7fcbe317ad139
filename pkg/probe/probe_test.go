package probe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCandidateURLs(t *testing.T) {
	tests := []struct {
		name   string
		url    string
		debian bool
		want   []string
	}{
		{
			name: "rpm repository",
			url:  "https://updates.example.com/repo/pool",
			want: []string{"https://updates.example.com/repo/pool/repodata/repomd.xml"},
		},
		{
			name:   "debian repository",
			url:    "https://updates.example.com/repo/deb",
			debian: true,
			want: []string{
				"https://updates.example.com/repo/deb/Packages.xz",
				"https://updates.example.com/repo/deb/Release",
				"https://updates.example.com/repo/deb/Packages.gz",
				"https://updates.example.com/repo/deb/Packages",
				"https://updates.example.com/repo/deb/InRelease",
			},
		},
		{
			name: "mirror list probed as-is first",
			url:  "https://updates.example.com/mirror.list",
			want: []string{
				"https://updates.example.com/mirror.list",
				"https://updates.example.com/mirror.list/repodata/repomd.xml",
			},
		},
		{
			name: "key value query probed as-is first",
			url:  "https://updates.example.com/repo/pool?credentials=x",
			want: []string{
				"https://updates.example.com/repo/pool?credentials=x",
				"https://updates.example.com/repo/pool/repodata/repomd.xml?credentials=x",
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CandidateURLs(tt.url, tt.debian))
		})
	}
}

func TestHTTPProberFileURL(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "repodata"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "repodata", "repomd.xml"), []byte("<repomd/>"), 0o644))

	p := NewHTTPProber()
	assert.True(t, p.Available(context.Background(), Request{URL: "file://" + dir}))
	assert.False(t, p.Available(context.Background(), Request{URL: "file://" + filepath.Join(dir, "missing")}))
}

func TestHTTPProberOnlyStatusOKCounts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok/repodata/repomd.xml":
			w.WriteHeader(http.StatusOK)
		case "/redirect/repodata/repomd.xml":
			http.Redirect(w, r, "/ok/repodata/repomd.xml", http.StatusFound)
		case "/auth/repodata/repomd.xml":
			if _, _, ok := r.BasicAuth(); ok {
				w.WriteHeader(http.StatusOK)
				return
			}
			w.WriteHeader(http.StatusUnauthorized)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	p := NewHTTPProber()
	ctx := context.Background()

	assert.True(t, p.Available(ctx, Request{URL: srv.URL + "/ok"}))
	assert.False(t, p.Available(ctx, Request{URL: srv.URL + "/missing"}))
	assert.False(t, p.Available(ctx, Request{URL: srv.URL + "/redirect"}),
		"redirects do not count as reachable")
	assert.False(t, p.Available(ctx, Request{URL: srv.URL + "/auth"}))
	assert.True(t, p.Available(ctx, Request{URL: srv.URL + "/auth", Username: "u", Password: "p"}))
}
