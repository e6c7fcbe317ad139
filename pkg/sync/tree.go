package sync

import (
	"context"
	"strings"

	"github.com/agentstation/contentsync/pkg/catalog"
	"github.com/agentstation/contentsync/pkg/logging"
	"github.com/agentstation/contentsync/pkg/scc"
)

// mergeTree walks the static product tree and reconciles the product
// repository links and extension edges, then prunes everything the tree
// no longer names. Synthesized PTF links are not tree-owned and survive
// the pruning.
func (m *Manager) mergeTree(ctx context.Context, st catalog.Store, edges []scc.TreeEdgeRecord) {
	log := logging.FromContext(ctx)

	edges = fixTreeEdges(ctx, st, edges)

	seenLinks := make(map[catalog.LinkKey]bool)
	seenExts := make(map[catalog.ExtensionKey]bool)

	for _, e := range edges {
		if !e.Tagged(m.treeTag) {
			continue
		}
		if e.ChannelLabel == "" {
			log.Warn().Int64("product", e.ProductID).Int64("repository", e.RepositoryID).
				Msg("Dropping tree edge with blank channel label")
			continue
		}

		product, ok := st.Product(e.ProductID)
		if !ok {
			log.Warn().Int64("product", e.ProductID).Str("channel", e.ChannelLabel).
				Msg("Tree edge references unknown product")
			continue
		}
		if _, ok := st.Product(e.RootProductID); !ok {
			log.Warn().Int64("root", e.RootProductID).Str("channel", e.ChannelLabel).
				Msg("Tree edge references unknown root product")
			continue
		}
		repo, ok := st.Repository(e.RepositoryID)
		if !ok {
			log.Warn().Int64("repository", e.RepositoryID).Str("channel", e.ChannelLabel).
				Msg("Tree edge references unknown repository")
			continue
		}
		if e.ParentProductID != nil {
			if _, ok := st.Product(*e.ParentProductID); !ok {
				log.Warn().Int64("parent", *e.ParentProductID).Str("channel", e.ChannelLabel).
					Msg("Tree edge references unknown parent product")
				continue
			}
		}

		if repo.Signed != e.Signed {
			repo.Signed = e.Signed
			st.SaveRepository(repo)
		}
		if e.ProductType != "" {
			base := e.ProductType == "base"
			if product.Base != base {
				product.Base = base
				st.SaveProduct(product)
			}
		}

		m.mergeLink(ctx, st, product, e)
		seenLinks[catalog.LinkKey{
			RootProductID: e.RootProductID,
			ProductID:     e.ProductID,
			RepositoryID:  e.RepositoryID,
		}] = true

		if e.ParentProductID != nil {
			ext := &catalog.ProductExtension{
				BaseProductID:      *e.ParentProductID,
				ExtensionProductID: e.ProductID,
				RootProductID:      e.RootProductID,
				Recommended:        e.Recommended,
			}
			st.SaveExtension(ext)
			seenExts[ext.Key()] = true
		}
	}

	m.pruneTree(ctx, st, seenLinks, seenExts)
}

// mergeLink upserts one product repository link. For released products
// the channel label, parent channel label and update tag are immutable
// after creation; mismatches surface upstream data bugs and are logged
// without correction so live channel identity never churns.
func (m *Manager) mergeLink(ctx context.Context, st catalog.Store, product *catalog.Product, e scc.TreeEdgeRecord) {
	log := logging.FromContext(ctx)

	key := catalog.LinkKey{
		RootProductID: e.RootProductID,
		ProductID:     e.ProductID,
		RepositoryID:  e.RepositoryID,
	}
	link, exists := st.Link(key)
	if !exists {
		link = &catalog.ProductRepositoryLink{
			RootProductID:      e.RootProductID,
			ProductID:          e.ProductID,
			RepositoryID:       e.RepositoryID,
			ChannelLabel:       e.ChannelLabel,
			ParentChannelLabel: e.ParentChannelLabel,
			UpdateTag:          e.UpdateTag,
		}
	} else if product.ReleaseStage == catalog.ReleaseStageReleased {
		if link.ChannelLabel != e.ChannelLabel {
			log.Error().Str("channel", link.ChannelLabel).Str("incoming", e.ChannelLabel).
				Msg("Channel label changed for released product, keeping stored value")
		}
		if link.ParentChannelLabel != e.ParentChannelLabel {
			log.Error().Str("channel", link.ChannelLabel).
				Str("parent", link.ParentChannelLabel).Str("incoming", e.ParentChannelLabel).
				Msg("Parent channel changed for released product, keeping stored value")
		}
		if link.UpdateTag != e.UpdateTag {
			log.Error().Str("channel", link.ChannelLabel).
				Str("update_tag", link.UpdateTag).Str("incoming", e.UpdateTag).
				Msg("Update tag changed for released product, keeping stored value")
		}
	} else {
		link.ChannelLabel = e.ChannelLabel
		link.ParentChannelLabel = e.ParentChannelLabel
		link.UpdateTag = e.UpdateTag
	}

	link.ChannelName = e.ChannelName
	link.Mandatory = e.Mandatory
	if len(e.GPGInfo) > 0 {
		link.GPGKeyURL = e.GPGInfo[0].URL
		link.GPGKeyID = e.GPGInfo[0].KeyID
		link.GPGKeyFingerprint = e.GPGInfo[0].Fingerprint
	}
	st.SaveLink(link)
}

// pruneTree deletes links and extension edges absent from the current
// tree, then repositories left without any link together with their
// auth records.
func (m *Manager) pruneTree(ctx context.Context, st catalog.Store, seenLinks map[catalog.LinkKey]bool, seenExts map[catalog.ExtensionKey]bool) {
	log := logging.FromContext(ctx)

	for _, l := range st.Links() {
		if seenLinks[l.Key()] || isPTFLink(st, l) {
			continue
		}
		log.Debug().Str("channel", l.ChannelLabel).Int64("product", l.ProductID).
			Msg("Pruning stale product repository link")
		st.DeleteLink(l.Key())
	}
	for _, ext := range st.Extensions() {
		if seenExts[ext.Key()] {
			continue
		}
		st.DeleteExtension(ext.Key())
	}

	referenced := repoTreeMembership(st)
	for _, repo := range st.Repositories() {
		if referenced[repo.ID] || strings.Contains(repo.URL, "/PTF/Release/") {
			continue
		}
		log.Debug().Int64("repository", repo.ID).Msg("Pruning unreferenced repository")
		for _, a := range st.AuthsForRepository(repo.ID) {
			st.DeleteAuth(a.ID)
		}
		st.DeleteRepository(repo.ID)
	}
}

// isPTFLink reports whether a link was synthesized from a PTF
// repository URL rather than read from the tree.
func isPTFLink(st catalog.Store, l *catalog.ProductRepositoryLink) bool {
	repo, ok := st.Repository(l.RepositoryID)
	return ok && strings.Contains(repo.URL, "/PTF/Release/")
}
