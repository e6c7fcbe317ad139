package sync

import (
	"context"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/agentstation/contentsync/pkg/catalog"
	"github.com/agentstation/contentsync/pkg/errors"
	"github.com/agentstation/contentsync/pkg/logging"
	"github.com/agentstation/contentsync/pkg/scc"
)

// UpdateProducts runs the full product reconciliation: product upsert,
// tree merge, extension edges, orphan pruning, upgrade path recompute
// and channel refresh. Credentials are tried in order until one returns
// product data.
func (m *Manager) UpdateProducts(ctx context.Context) error {
	log := logging.FromContext(ctx)

	creds, err := m.filterCredentials()
	if err != nil {
		return err
	}

	var (
		records []scc.ProductRecord
		edges   []scc.TreeEdgeRecord
	)
	var lastErr error
	for _, cred := range creds {
		source, err := m.sources(cred)
		if err != nil {
			return err
		}
		records, err = source.ListProducts(ctx)
		if err != nil {
			if errors.IsConfig(err) {
				return err
			}
			log.Error().Err(err).Str("credential", credentialName(cred)).
				Msg("Product listing failed for credential")
			lastErr = err
			continue
		}
		if len(records) == 0 {
			continue
		}
		edges, err = source.ProductTree(ctx)
		if err != nil {
			if errors.IsConfig(err) {
				return err
			}
			log.Error().Err(err).Str("credential", credentialName(cred)).
				Msg("Product tree fetch failed for credential")
			lastErr = err
			continue
		}
		lastErr = nil
		break
	}
	if lastErr != nil {
		return lastErr
	}
	if len(records) == 0 {
		return errors.NewConfigError("products", "no credential returned product data", nil)
	}
	records = append(records, m.additionalProducts...)

	return m.store.Transaction(func(st catalog.Store) error {
		flat := scc.FlattenProducts(records)
		m.overrideProductAttributes(flat, edges)

		promoted := reconcileProducts(ctx, st, flat)
		upsertRepositories(st, scc.CollectRepositories(flat))
		upsertExtensionRepositories(st, records)

		m.mergeTree(ctx, st, edges)
		updateUpgradePaths(st, flat, m.upgradePaths)

		if len(promoted) > 0 {
			m.queuePromotionCleanup(ctx, st, promoted)
		}

		m.updateChannels(ctx, st)
		log.Info().Int("products", len(flat)).Int("tree_edges", len(edges)).
			Msg("Product reconciliation complete")
		return nil
	})
}

// overrideProductAttributes lets the curated product tree override the
// release stage and product type of fetched products before they are
// reconciled, so the stable-id versus fuzzy matching and the promotion
// detection see the stage the tree declares.
func (m *Manager) overrideProductAttributes(records []scc.ProductRecord, edges []scc.TreeEdgeRecord) {
	type override struct {
		stage       string
		productType string
	}
	byProduct := make(map[int64]override)
	for _, e := range edges {
		if !e.Tagged(m.treeTag) {
			continue
		}
		o := byProduct[e.ProductID]
		if e.ReleaseStage != "" {
			o.stage = e.ReleaseStage
		}
		if e.ProductType != "" {
			o.productType = e.ProductType
		}
		byProduct[e.ProductID] = o
	}

	for i := range records {
		o, ok := byProduct[records[i].ID]
		if !ok {
			continue
		}
		if o.stage != "" {
			records[i].ReleaseStage = o.stage
		}
		if o.productType != "" {
			records[i].ProductType = o.productType
		}
	}
}

// reconcileProducts upserts the fetched products and returns the IDs of
// products promoted to the released stage in this pass.
func reconcileProducts(ctx context.Context, st catalog.Store, records []scc.ProductRecord) map[int64]bool {
	log := logging.FromContext(ctx)
	promoted := make(map[int64]bool)

	for _, rec := range records {
		if missing := rec.Missing(); len(missing) > 0 {
			log.Warn().Int64("product", rec.ID).Strs("missing", missing).
				Msg("Skipping product with incomplete record")
			continue
		}

		stage := catalog.ReleaseStage(rec.ReleaseStage)
		key := catalog.ProductKey{
			Name:    strings.ToLower(rec.Identifier),
			Version: strings.ToLower(rec.Version),
			Release: strings.ToLower(rec.ReleaseType),
			Arch:    rec.Arch,
		}

		product, found := st.Product(rec.ID)
		if !found && stage != catalog.ReleaseStageReleased {
			// pre-release ids are not stable, fall back to the identity
			// tuple and move the row to the new id
			if p, ok := st.ProductByKey(key); ok {
				st.DeleteProduct(p.ID)
				p.ID = rec.ID
				product, found = p, true
			}
		}
		if !found {
			product = &catalog.Product{ID: rec.ID}
		}

		if found && product.ReleaseStage != catalog.ReleaseStageReleased &&
			stage == catalog.ReleaseStageReleased {
			promoted[rec.ID] = true
		}

		product.Name = key.Name
		product.Version = key.Version
		product.Release = key.Release
		product.Arch = rec.Arch
		product.FriendlyName = rec.FriendlyName
		product.Description = rec.Description
		product.Base = rec.Base()
		product.Free = rec.Free || freeFamily(rec.ProductClass)
		product.ReleaseStage = stage
		product.FamilyLabel = rec.ProductClass
		ensureFamily(st, rec.ProductClass)
		st.SaveProduct(product)
	}
	return promoted
}

// upsertExtensionRepositories walks the nested extension lists, whose
// repositories are not part of the flat listing for some credentials.
func upsertExtensionRepositories(st catalog.Store, records []scc.ProductRecord) {
	for _, rec := range records {
		upsertRepositories(st, rec.Repositories)
		upsertExtensionRepositories(st, rec.Extensions)
	}
}

var familyCaser = cases.Title(language.English)

// ensureFamily creates the channel family of a product class on first
// use. Families delivered by the static data keep their curated names.
func ensureFamily(st catalog.Store, label string) {
	if label == "" {
		return
	}
	if _, ok := st.Family(label); ok {
		return
	}
	st.SaveFamily(&catalog.ChannelFamily{
		Label:  label,
		Name:   familyDisplayName(label),
		Public: true,
	})
}

func familyDisplayName(label string) string {
	return familyCaser.String(strings.ToLower(strings.ReplaceAll(label, "-", " ")))
}

// channelFamilySuffixes are the stage variants of every channel family.
var channelFamilySuffixes = []string{"", "-ALPHA", "-BETA"}

// UpdateChannelFamilies merges the static channel family list into the
// store, creating the base row and its stage-suffixed variants.
func (m *Manager) UpdateChannelFamilies(ctx context.Context, families []scc.ChannelFamilyRecord) error {
	log := logging.FromContext(ctx)
	return m.store.Transaction(func(st catalog.Store) error {
		for _, rec := range families {
			for _, suffix := range channelFamilySuffixes {
				label := rec.Label + suffix
				name := rec.Name
				if suffix != "" {
					name = rec.Name + " (" + strings.TrimPrefix(suffix, "-") + ")"
				}
				f, ok := st.Family(label)
				if !ok {
					f = &catalog.ChannelFamily{Label: label, Public: true}
				}
				f.Name = name
				st.SaveFamily(f)
			}
		}
		log.Debug().Int("families", len(families)).Msg("Channel families updated")
		return nil
	})
}

// updateUpgradePaths recomputes the successor sets of every product
// from the online predecessor lists and the static upgrade paths.
func updateUpgradePaths(st catalog.Store, records []scc.ProductRecord, static []scc.UpgradePathRecord) {
	successors := make(map[int64]map[int64]bool)
	add := func(from, to int64) {
		if _, ok := st.Product(from); !ok {
			return
		}
		if _, ok := st.Product(to); !ok {
			return
		}
		if successors[from] == nil {
			successors[from] = make(map[int64]bool)
		}
		successors[from][to] = true
	}

	for _, rec := range records {
		for _, pred := range rec.OnlinePredecessorIDs {
			add(pred, rec.ID)
		}
	}
	for _, path := range static {
		add(path.FromProductID, path.ToProductID)
	}

	for _, p := range st.Products() {
		set := successors[p.ID]
		next := make([]int64, 0, len(set))
		for id := range set {
			next = append(next, id)
		}
		sort.Slice(next, func(i, j int) bool { return next[i] < next[j] })
		if len(next) == 0 {
			next = nil
		}
		if !equalIDs(p.Successors, next) {
			p.Successors = next
			st.SaveProduct(p)
		}
	}
}

func equalIDs(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// queuePromotionCleanup flags the channels of promoted products for
// downstream disassociation. Channel removal stays an explicit external
// action; this only notifies and logs.
func (m *Manager) queuePromotionCleanup(ctx context.Context, st catalog.Store, promoted map[int64]bool) {
	log := logging.FromContext(ctx)

	var labels []string
	seen := make(map[string]bool)
	for _, l := range st.Links() {
		if !promoted[l.ProductID] || seen[l.ChannelLabel] {
			continue
		}
		if _, ok := st.Channel(l.ChannelLabel); !ok {
			continue
		}
		seen[l.ChannelLabel] = true
		labels = append(labels, l.ChannelLabel)
	}
	if len(labels) == 0 {
		return
	}
	sort.Strings(labels)
	log.Warn().Strs("channels", labels).
		Msg("Products promoted to released stage, flagged channels need cleanup")
	m.regen.ChannelsChanged(ctx, labels)
}
