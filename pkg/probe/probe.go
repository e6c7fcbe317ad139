// Package probe answers one question: is repository content reachable
// at a URL, with a given set of credentials? The sync engine uses it to
// decide which authentication method each repository accepts.
package probe

import (
	"context"
	"net/http"
	"net/url"
	"os"
	"path"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/agentstation/contentsync/pkg/logging"
)

// DefaultTimeout is the per-probe request timeout. Probes are HEAD
// requests against small metadata files, anything slower than this is
// as good as unreachable.
const DefaultTimeout = 20 * time.Second

// defaultRate bounds probe requests per second. The catalog serves
// thousands of repositories and the remote end throttles aggressive
// clients.
const defaultRate = 10

// defaultConcurrency bounds in-flight probes.
const defaultConcurrency = 8

// Request describes one reachability check.
type Request struct {
	// URL of the repository, possibly already carrying an access token
	// in its query.
	URL string

	// Debian selects the flat Debian metadata layout instead of the RPM
	// repodata layout.
	Debian bool

	// Username and Password are sent as basic auth when set.
	Username string
	Password string
}

// Prober checks whether repository content is reachable.
type Prober interface {
	// Available reports whether any metadata index of the repository is
	// reachable.
	Available(ctx context.Context, req Request) bool
}

// HTTPProber probes with HEAD requests, rate limited across all
// goroutines sharing it. It also understands file URLs so offline
// mirrors probe as local stat calls.
type HTTPProber struct {
	client  *http.Client
	limiter *rate.Limiter
	sem     chan struct{}
}

// Option configures an HTTPProber.
type Option func(*HTTPProber)

// WithClient replaces the underlying HTTP client.
func WithClient(c *http.Client) Option {
	return func(p *HTTPProber) { p.client = c }
}

// WithRateLimit sets the probes-per-second ceiling.
func WithRateLimit(perSecond float64) Option {
	return func(p *HTTPProber) { p.limiter = rate.NewLimiter(rate.Limit(perSecond), 1) }
}

// WithConcurrency sets the number of in-flight probes.
func WithConcurrency(n int) Option {
	return func(p *HTTPProber) { p.sem = make(chan struct{}, n) }
}

// NewHTTPProber creates a prober with default limits.
func NewHTTPProber(opts ...Option) *HTTPProber {
	p := &HTTPProber{
		client: &http.Client{
			Timeout: DefaultTimeout,
			// probe the URL we were given, not wherever it redirects
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		limiter: rate.NewLimiter(rate.Limit(defaultRate), 1),
		sem:     make(chan struct{}, defaultConcurrency),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Available implements Prober. It tries each candidate metadata file of
// the repository and reports true on the first one that answers.
func (p *HTTPProber) Available(ctx context.Context, req Request) bool {
	for _, candidate := range CandidateURLs(req.URL, req.Debian) {
		if p.head(ctx, candidate, req.Username, req.Password) {
			return true
		}
	}
	return false
}

func (p *HTTPProber) head(ctx context.Context, rawURL, username, password string) bool {
	log := logging.FromContext(ctx)

	if strings.HasPrefix(rawURL, "file://") {
		return fileExists(strings.TrimPrefix(rawURL, "file://"))
	}

	select {
	case p.sem <- struct{}{}:
		defer func() { <-p.sem }()
	case <-ctx.Done():
		return false
	}
	if err := p.limiter.Wait(ctx); err != nil {
		return false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		return false
	}
	if username != "" {
		req.SetBasicAuth(username, password)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		log.Debug().Err(err).Str("url", rawURL).Msg("Probe failed")
		return false
	}
	resp.Body.Close()

	// only a clean 200 proves the content is really there; redirects
	// often land on login pages that answer 200 for everything
	return resp.StatusCode == http.StatusOK
}

func fileExists(p string) bool {
	info, err := os.Stat(p)
	return err == nil && !info.IsDir()
}

// debianIndexFiles are the metadata files probed on flat Debian style
// repositories, in the order tried.
var debianIndexFiles = []string{"Packages.xz", "Release", "Packages.gz", "Packages", "InRelease"}

// CandidateURLs returns the URLs probed for one repository URL. RPM
// repositories have a single well-known index; Debian style
// repositories carry one of several. Mirror list URLs are additionally
// probed as-is since the list itself proves reachability.
func CandidateURLs(rawURL string, debian bool) []string {
	var out []string

	u, err := url.Parse(rawURL)
	if err != nil {
		return []string{rawURL}
	}

	if strings.Contains(u.RawQuery, "=") || strings.Contains(u.Path, "mirror.list") {
		out = append(out, rawURL)
	}

	if debian {
		for _, f := range debianIndexFiles {
			out = append(out, appendPath(u, f))
		}
	} else {
		out = append(out, appendPath(u, "repodata/repomd.xml"))
	}
	return out
}

func appendPath(u *url.URL, file string) string {
	c := *u
	c.Path = path.Join(c.Path, file)
	return c.String()
}
