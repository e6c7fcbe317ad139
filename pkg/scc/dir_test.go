package scc

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/contentsync/pkg/errors"
)

func writeMirrorFile(t *testing.T, dir, name, content string) {
	t.Helper()
	full := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
}

func TestNewDirSource(t *testing.T) {
	t.Run("missing directory", func(t *testing.T) {
		_, err := NewDirSource(filepath.Join(t.TempDir(), "nope"))
		require.Error(t, err)
		assert.True(t, errors.IsConfig(err))
	})

	t.Run("file instead of directory", func(t *testing.T) {
		dir := t.TempDir()
		file := filepath.Join(dir, "plain")
		require.NoError(t, os.WriteFile(file, nil, 0o644))
		_, err := NewDirSource(file)
		require.Error(t, err)
		assert.True(t, errors.IsConfig(err))
	})
}

func TestDirSourceReadsMirrorFiles(t *testing.T) {
	dir := t.TempDir()
	writeMirrorFile(t, dir, "organizations_products_unscoped.json",
		`[{"id": 100, "identifier": "sles", "version": "15.4", "arch": "x86_64", "product_type": "base"}]`)
	writeMirrorFile(t, dir, "organizations_repositories.json",
		`[{"id": 1, "name": "SLES15-SP4-Pool", "url": "https://updates.example.com/repo/pool/"}]`)
	writeMirrorFile(t, dir, "organizations_subscriptions.json",
		`[{"id": 500, "name": "SLES", "type": "full", "system_limit": 5}]`)
	writeMirrorFile(t, dir, "organizations_orders.json",
		`[{"id": 1, "order_items": [{"id": 7, "sku": "874-001", "quantity": 3}]}]`)
	writeMirrorFile(t, dir, "suma/product_tree.json",
		`[{"channel_label": "sles-pool", "product_id": 100, "repository_id": 1, "root_product_id": 100}]`)

	src, err := NewDirSource(dir)
	require.NoError(t, err)
	ctx := context.Background()

	products, err := src.ListProducts(ctx)
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "sles", products[0].Identifier)

	repos, err := src.ListRepositories(ctx)
	require.NoError(t, err)
	require.Len(t, repos, 1)
	assert.Equal(t, int64(1), repos[0].ID)

	subs, err := src.ListSubscriptions(ctx)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, int64(5), subs[0].SystemLimit)

	orders, err := src.ListOrders(ctx)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	require.Len(t, orders[0].OrderItems, 1)

	tree, err := src.ProductTree(ctx)
	require.NoError(t, err)
	require.Len(t, tree, 1)
	assert.Equal(t, "sles-pool", tree[0].ChannelLabel)
}

func TestDirSourceMissingFileIsConfigError(t *testing.T) {
	src, err := NewDirSource(t.TempDir())
	require.NoError(t, err)

	_, err = src.ListProducts(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsConfig(err))
}

func TestDirSourceMalformedFileIsConfigError(t *testing.T) {
	dir := t.TempDir()
	writeMirrorFile(t, dir, "organizations_products_unscoped.json", "{not json")

	src, err := NewDirSource(dir)
	require.NoError(t, err)

	_, err = src.ListProducts(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsConfig(err))
}

func TestURLToFSPath(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		repoName string
		want     string
	}{
		{
			name: "host and path mirrored",
			url:  "https://updates.example.com/repo/pool/?token",
			want: "file:///srv/mirror/updates.example.com/repo/pool",
		},
		{
			name:     "legacy rce path keeps repository name",
			url:      "https://nu.novell.com/repo/$RCE/SLES11-Pool/sle-11-x86_64/",
			repoName: "SLES11-Pool",
			want:     "file:///srv/mirror/nu.novell.com/repo/RCE/SLES11-Pool",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, URLToFSPath(tt.url, tt.repoName, "/srv/mirror"))
		})
	}
}

func TestLoadStaticData(t *testing.T) {
	dir := t.TempDir()

	families := filepath.Join(dir, "channel_families.json")
	require.NoError(t, os.WriteFile(families,
		[]byte(`[{"label": "SLES", "name": "SUSE Linux Enterprise Server"}]`), 0o644))
	got, err := LoadChannelFamilies(families)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "SLES", got[0].Label)

	paths := filepath.Join(dir, "upgrade_paths.json")
	require.NoError(t, os.WriteFile(paths,
		[]byte(`[{"from_product_id": 99, "to_product_id": 100}]`), 0o644))
	ups, err := LoadUpgradePaths(paths)
	require.NoError(t, err)
	require.Len(t, ups, 1)
	assert.Equal(t, int64(100), ups[0].ToProductID)

	_, err = LoadChannelFamilies(filepath.Join(dir, "missing.json"))
	require.Error(t, err)
	assert.True(t, errors.IsConfig(err))
}
