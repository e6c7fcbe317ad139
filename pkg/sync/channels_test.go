package sync

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/contentsync/pkg/catalog"
	"github.com/agentstation/contentsync/pkg/catalog/memory"
	"github.com/agentstation/contentsync/pkg/errors"
)

func seedChannel(st *memory.Store) {
	st.SaveFamily(&catalog.ChannelFamily{Label: "SLES", Name: "SLES", Public: true})
	st.SaveProduct(&catalog.Product{
		ID: 100, Name: "sles", Version: "15.4", Arch: "x86_64", Base: true,
		FamilyLabel: "SLES", ReleaseStage: catalog.ReleaseStageReleased,
		FriendlyName: "SUSE Linux Enterprise Server 15 SP4",
	})
	st.SaveRepository(&catalog.Repository{
		ID: 1, URL: "https://updates.example.com/repo/pool/", Signed: true,
	})
	st.SaveLink(&catalog.ProductRepositoryLink{
		RootProductID: 100, ProductID: 100, RepositoryID: 1,
		ChannelLabel: "sles-pool", ChannelName: "SLES15-SP4-Pool", Mandatory: true,
	})
}

func TestAddChannel(t *testing.T) {
	m, st := newTestManager(t, &fakeSource{}, newFakeProber())
	seedChannel(st)
	authRepo(st, 1)

	require.NoError(t, m.AddChannel(testCtx(), "sles-pool"))

	ch, ok := st.Channel("sles-pool")
	require.True(t, ok)
	assert.Equal(t, "SLES15-SP4-Pool", ch.Name)
	assert.Equal(t, "SLES", ch.FamilyLabel)
	assert.Equal(t, "x86_64", ch.Arch)

	pcs := st.ProductChannels("sles-pool")
	require.Len(t, pcs, 1)
	assert.True(t, pcs[0].Mandatory)

	cs, ok := st.ContentSource("sles-pool")
	require.True(t, ok)
	assert.Equal(t, "https://updates.example.com/repo/pool/", cs.URL)
	assert.True(t, cs.MetadataSigned)

	best, ok := st.BestAuth(1)
	require.True(t, ok)
	assert.Equal(t, "sles-pool", best.ContentSourceLabel)

	// adding again is a no-op
	require.NoError(t, m.AddChannel(testCtx(), "sles-pool"))
}

func TestAddChannelNotAvailable(t *testing.T) {
	m, st := newTestManager(t, &fakeSource{}, newFakeProber())
	seedChannel(st)
	// no auth on the mandatory repository

	err := m.AddChannel(testCtx(), "sles-pool")
	require.Error(t, err)
	assert.True(t, errors.IsChannelNotAvailable(err))
	_, ok := st.Channel("sles-pool")
	assert.False(t, ok)
}

func TestAddChannelUnknownLabel(t *testing.T) {
	m, _ := newTestManager(t, &fakeSource{}, newFakeProber())
	err := m.AddChannel(testCtx(), "no-such-channel")
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}

func TestAddChannelRequiresParent(t *testing.T) {
	m, st := newTestManager(t, &fakeSource{}, newFakeProber())
	seedChannel(st)
	authRepo(st, 1)
	st.SaveRepository(&catalog.Repository{ID: 2, URL: "https://updates.example.com/repo/updates/"})
	st.SaveLink(&catalog.ProductRepositoryLink{
		RootProductID: 100, ProductID: 100, RepositoryID: 2,
		ChannelLabel: "sles-updates", ParentChannelLabel: "sles-pool", Mandatory: false,
	})
	authRepo(st, 2)

	err := m.AddChannel(testCtx(), "sles-updates")
	require.Error(t, err)
	assert.True(t, errors.IsChannelNotAvailable(err))

	require.NoError(t, m.AddChannel(testCtx(), "sles-pool"))
	require.NoError(t, m.AddChannel(testCtx(), "sles-updates"))
}

func TestUpdateChannelsRefreshesFields(t *testing.T) {
	m, st := newTestManager(t, &fakeSource{}, newFakeProber())
	seedChannel(st)
	authRepo(st, 1)
	require.NoError(t, m.AddChannel(testCtx(), "sles-pool"))

	link, _ := st.Link(catalog.LinkKey{RootProductID: 100, ProductID: 100, RepositoryID: 1})
	link.ChannelName = "SLES15-SP4-Pool renamed"
	link.Mandatory = false
	st.SaveLink(link)

	m.updateChannels(testCtx(), st)

	ch, ok := st.Channel("sles-pool")
	require.True(t, ok)
	assert.Equal(t, "SLES15-SP4-Pool renamed", ch.Name)

	pcs := st.ProductChannels("sles-pool")
	require.Len(t, pcs, 1)
	assert.False(t, pcs[0].Mandatory, "mandatory flag changes propagate to the join rows")
}

func TestContentSourceURLOverwrite(t *testing.T) {
	p := newFakeProber()
	p.anon["https://mirror.example.com/updates/repo/pool"] = true
	m, _ := newTestManager(t, &fakeSource{}, p, WithMirror("https://mirror.example.com/updates"))

	repo := &catalog.Repository{ID: 1}
	got := m.contentSourceURLOverwrite(testCtx(), repo, "https://updates.example.com/repo/pool/")
	assert.Equal(t, "https://mirror.example.com/updates/repo/pool", got)

	// unreachable mirror falls back to the default URL
	m2, _ := newTestManager(t, &fakeSource{}, newFakeProber(), WithMirror("https://mirror.example.com/updates"))
	got = m2.contentSourceURLOverwrite(testCtx(), repo, "https://updates.example.com/repo/pool/")
	assert.Equal(t, "https://updates.example.com/repo/pool/", got)
}

func TestListChannels(t *testing.T) {
	m, st := newTestManager(t, &fakeSource{}, newFakeProber())
	seedChannel(st)
	authRepo(st, 1)

	st.SaveRepository(&catalog.Repository{ID: 3, URL: "https://updates.example.com/repo/locked/"})
	st.SaveProduct(&catalog.Product{
		ID: 102, Name: "ha", FamilyLabel: "SLES", ReleaseStage: catalog.ReleaseStageReleased,
	})
	st.SaveLink(&catalog.ProductRepositoryLink{
		RootProductID: 102, ProductID: 102, RepositoryID: 3,
		ChannelLabel: "ha-pool", Mandatory: true,
	})

	require.NoError(t, m.AddChannel(testCtx(), "sles-pool"))

	channels, err := m.ListChannels(testCtx())
	require.NoError(t, err)
	require.Len(t, channels, 2)

	byLabel := make(map[string]ChannelInfo)
	for _, ch := range channels {
		byLabel[ch.Label] = ch
	}
	assert.Equal(t, ChannelSynced, byLabel["sles-pool"].Status)
	assert.Equal(t, ChannelUnavailable, byLabel["ha-pool"].Status)
}

func TestListChannelsExtensionGatedOnRoot(t *testing.T) {
	m, st := newTestManager(t, &fakeSource{}, newFakeProber())
	seedAvailability(st)
	// only the extension repository is accessible, the root's mandatory
	// pool is not
	authRepo(st, 2)

	channels, err := m.ListChannels(testCtx())
	require.NoError(t, err)

	byLabel := make(map[string]ChannelInfo)
	for _, ch := range channels {
		byLabel[ch.Label] = ch
	}
	assert.Equal(t, ChannelUnavailable, byLabel["sles-pool"].Status)
	assert.Equal(t, ChannelUnavailable, byLabel["basesystem-pool"].Status,
		"an extension channel is only reachable through its root")

	authRepo(st, 1)
	channels, err = m.ListChannels(testCtx())
	require.NoError(t, err)
	for _, ch := range channels {
		byLabel[ch.Label] = ch
	}
	assert.Equal(t, ChannelAvailable, byLabel["sles-pool"].Status)
	assert.Equal(t, ChannelAvailable, byLabel["basesystem-pool"].Status)
}

func TestRefreshContentSourceAdoptsRetiredLabel(t *testing.T) {
	m, st := newTestManager(t, &fakeSource{}, newFakeProber())
	seedChannel(st)
	authRepo(st, 1)
	// a source left behind under a label whose channel is gone
	st.SaveContentSource(&catalog.ContentSource{
		Label: "sles-pool-old", URL: "https://updates.example.com/repo/pool/",
	})

	require.NoError(t, m.AddChannel(testCtx(), "sles-pool"))

	_, ok := st.ContentSource("sles-pool-old")
	assert.False(t, ok, "the retired source is adopted, not duplicated")
	cs, ok := st.ContentSource("sles-pool")
	require.True(t, ok)
	assert.Equal(t, "https://updates.example.com/repo/pool/", cs.URL)
	assert.True(t, cs.MetadataSigned)
}

func TestRemoveChannel(t *testing.T) {
	m, st := newTestManager(t, &fakeSource{}, newFakeProber())
	seedChannel(st)
	authRepo(st, 1)
	require.NoError(t, m.AddChannel(testCtx(), "sles-pool"))

	require.NoError(t, m.RemoveChannel(testCtx(), "sles-pool"))

	_, ok := st.Channel("sles-pool")
	assert.False(t, ok)
	_, ok = st.ContentSource("sles-pool")
	assert.False(t, ok)
	assert.Empty(t, st.ProductChannels("sles-pool"))
	best, ok := st.BestAuth(1)
	require.True(t, ok)
	assert.Empty(t, best.ContentSourceLabel, "the auth survives unlinked")

	// the tree link stays, so the channel can come back
	require.NoError(t, m.AddChannel(testCtx(), "sles-pool"))
}

func TestRemoveChannelUnknown(t *testing.T) {
	m, _ := newTestManager(t, &fakeSource{}, newFakeProber())
	err := m.RemoveChannel(testCtx(), "no-such-channel")
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}

func TestRemoveChannelWithChildRefused(t *testing.T) {
	m, st := newTestManager(t, &fakeSource{}, newFakeProber())
	seedChannel(st)
	authRepo(st, 1)
	st.SaveRepository(&catalog.Repository{ID: 2, URL: "https://updates.example.com/repo/updates/"})
	st.SaveLink(&catalog.ProductRepositoryLink{
		RootProductID: 100, ProductID: 100, RepositoryID: 2,
		ChannelLabel: "sles-updates", ParentChannelLabel: "sles-pool", Mandatory: false,
	})
	authRepo(st, 2)
	require.NoError(t, m.AddChannel(testCtx(), "sles-pool"))
	require.NoError(t, m.AddChannel(testCtx(), "sles-updates"))

	err := m.RemoveChannel(testCtx(), "sles-pool")
	require.Error(t, err, "a parent with synced children must be refused")
	_, ok := st.Channel("sles-pool")
	assert.True(t, ok)

	require.NoError(t, m.RemoveChannel(testCtx(), "sles-updates"))
	require.NoError(t, m.RemoveChannel(testCtx(), "sles-pool"))
}

func TestListProducts(t *testing.T) {
	m, st := newTestManager(t, &fakeSource{}, newFakeProber())
	seedChannel(st)
	authRepo(st, 1)

	products, err := m.ListProducts(testCtx())
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.True(t, products[0].Available)
	assert.Equal(t, []string{"sles-pool"}, products[0].Channels)
}
