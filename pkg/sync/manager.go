// Package sync implements the catalog reconciliation engine. It merges
// products, repositories, subscriptions and the static product tree
// fetched from the catalog service into the local store, infers
// repository authentication by probing, derives channels from the
// merged tree and keeps everything consistent across repeated runs.
package sync

import (
	"context"
	"time"

	"github.com/agentstation/contentsync/pkg/catalog"
	"github.com/agentstation/contentsync/pkg/probe"
	"github.com/agentstation/contentsync/pkg/scc"
)

// SourceFactory creates a catalog source for one credential. The
// offline variant ignores the credential and reads the mirror
// directory; cred is nil in offline mode.
type SourceFactory func(cred *catalog.Credential) (scc.Source, error)

// ConfigRegenerator is notified about channels whose content changed so
// downstream consumers can refresh derived configuration. Calls are
// fire-and-forget: the sync pass never waits on or fails with them.
type ConfigRegenerator interface {
	ChannelsChanged(ctx context.Context, labels []string)
}

type noopRegenerator struct{}

func (noopRegenerator) ChannelsChanged(context.Context, []string) {}

// Manager is the reconciliation engine. Create one with NewManager and
// run its operations in any order; each is idempotent.
type Manager struct {
	store   catalog.Store
	sources SourceFactory
	prober  probe.Prober
	regen   ConfigRegenerator

	fromDir  string // offline mirror directory, empty for online mode
	mirror   string // optional mirror URL overriding content locations
	treeTag  string // product tree edge filter
	identity string // process-scoped system identity

	upgradePaths []scc.UpgradePathRecord

	// additionalProducts and additionalRepos are static records merged
	// into every pass on top of what the catalog service serves.
	additionalProducts []scc.ProductRecord
	additionalRepos    []scc.RepositoryRecord

	now func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithProber replaces the URL prober.
func WithProber(p probe.Prober) Option {
	return func(m *Manager) { m.prober = p }
}

// WithRegenerator sets the downstream config regeneration collaborator.
func WithRegenerator(r ConfigRegenerator) Option {
	return func(m *Manager) { m.regen = r }
}

// WithFromDir switches the engine to offline mode reading the given
// mirror directory.
func WithFromDir(dir string) Option {
	return func(m *Manager) { m.fromDir = dir }
}

// WithMirror sets a mirror URL that overrides content locations when
// the mirror actually serves the content.
func WithMirror(url string) Option {
	return func(m *Manager) { m.mirror = url }
}

// WithTreeTag filters product tree edges to the given tag.
func WithTreeTag(tag string) Option {
	return func(m *Manager) { m.treeTag = tag }
}

// WithIdentity sets the system identity resolved at startup.
func WithIdentity(id string) Option {
	return func(m *Manager) { m.identity = id }
}

// WithUpgradePaths supplies the static upgrade path list merged into
// the successor computation.
func WithUpgradePaths(paths []scc.UpgradePathRecord) Option {
	return func(m *Manager) { m.upgradePaths = paths }
}

// WithAdditionalProducts supplies products not served by the catalog
// service, merged into every product reconciliation.
func WithAdditionalProducts(products []scc.ProductRecord) Option {
	return func(m *Manager) { m.additionalProducts = products }
}

// WithAdditionalRepositories supplies repositories not served by the
// catalog service, merged into every repository refresh.
func WithAdditionalRepositories(repos []scc.RepositoryRecord) Option {
	return func(m *Manager) { m.additionalRepos = repos }
}

// WithClock replaces the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// NewManager creates a reconciliation engine over the given store and
// source factory.
func NewManager(store catalog.Store, sources SourceFactory, opts ...Option) *Manager {
	m := &Manager{
		store:   store,
		sources: sources,
		prober:  probe.NewHTTPProber(),
		regen:   noopRegenerator{},
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Identity returns the system identity the engine was created with.
func (m *Manager) Identity() string {
	return m.identity
}

// offline reports whether the engine reads an offline mirror directory.
func (m *Manager) offline() bool {
	return m.fromDir != ""
}
