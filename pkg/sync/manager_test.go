package sync

import (
	"context"
	"testing"

	"github.com/agentstation/contentsync/pkg/catalog"
	"github.com/agentstation/contentsync/pkg/catalog/memory"
	"github.com/agentstation/contentsync/pkg/probe"
	"github.com/agentstation/contentsync/pkg/scc"
)

// fakeSource serves canned catalog data.
type fakeSource struct {
	products      []scc.ProductRecord
	repositories  []scc.RepositoryRecord
	subscriptions []scc.SubscriptionRecord
	orders        []scc.OrderRecord
	tree          []scc.TreeEdgeRecord
	err           error
}

func (f *fakeSource) ListProducts(context.Context) ([]scc.ProductRecord, error) {
	return f.products, f.err
}

func (f *fakeSource) ListRepositories(context.Context) ([]scc.RepositoryRecord, error) {
	return f.repositories, f.err
}

func (f *fakeSource) ListSubscriptions(context.Context) ([]scc.SubscriptionRecord, error) {
	return f.subscriptions, f.err
}

func (f *fakeSource) ListOrders(context.Context) ([]scc.OrderRecord, error) {
	return f.orders, f.err
}

func (f *fakeSource) ProductTree(context.Context) ([]scc.TreeEdgeRecord, error) {
	return f.tree, f.err
}

// fakeProber answers from lookup tables keyed by URL, or URL|username
// for authenticated probes.
type fakeProber struct {
	anon map[string]bool
	auth map[string]bool
}

func newFakeProber() *fakeProber {
	return &fakeProber{anon: make(map[string]bool), auth: make(map[string]bool)}
}

func (f *fakeProber) Available(_ context.Context, req probe.Request) bool {
	if req.Username != "" {
		return f.auth[req.URL+"|"+req.Username]
	}
	return f.anon[req.URL]
}

func newTestManager(t *testing.T, src *fakeSource, p probe.Prober, opts ...Option) (*Manager, *memory.Store) {
	t.Helper()
	st := memory.New()
	st.SaveCredential(&catalog.Credential{ID: 1, Username: "org1", Password: "secret"})
	factory := func(*catalog.Credential) (scc.Source, error) { return src, nil }
	opts = append([]Option{WithProber(p)}, opts...)
	return NewManager(st, factory, opts...), st
}

func baseProduct(id int64, name, version string, stage catalog.ReleaseStage, class string) scc.ProductRecord {
	return scc.ProductRecord{
		ID:           id,
		Identifier:   name,
		Version:      version,
		ReleaseStage: string(stage),
		Arch:         "x86_64",
		FriendlyName: name + " " + version,
		ProductClass: class,
		ProductType:  "base",
	}
}

func treeEdge(rootID, productID, repoID int64, label string) scc.TreeEdgeRecord {
	return scc.TreeEdgeRecord{
		ChannelLabel:  label,
		ChannelName:   label,
		ProductID:     productID,
		RepositoryID:  repoID,
		RootProductID: rootID,
		Mandatory:     true,
	}
}

func testCtx() context.Context {
	return context.Background()
}
