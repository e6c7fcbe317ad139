package sync

import (
	"context"
	"sort"

	"github.com/agentstation/contentsync/pkg/catalog"
)

// availabilityResolver answers "is this product's content obtainable"
// for (root, product) pairs. Results are memoized for the lifetime of
// one resolver because product families nest deeply and the same pair
// is asked about through many extension paths.
type availabilityResolver struct {
	st       catalog.Store
	memo     map[availKey]bool
	treeMemo map[int64]map[int64]bool
}

type availKey struct {
	root    int64
	product int64
}

func newAvailabilityResolver(st catalog.Store) *availabilityResolver {
	return &availabilityResolver{
		st:       st,
		memo:     make(map[availKey]bool),
		treeMemo: make(map[int64]map[int64]bool),
	}
}

// available reports whether every mandatory link of the pair passes its
// gate: the owning channel family is public, and the repository either
// has a usable auth or the channel is already present locally.
func (r *availabilityResolver) available(rootID, productID int64) bool {
	key := availKey{root: rootID, product: productID}
	if v, ok := r.memo[key]; ok {
		return v
	}

	result := true
	any := false
	for _, l := range r.st.Links() {
		if l.RootProductID != rootID || l.ProductID != productID {
			continue
		}
		any = true
		if !l.Mandatory {
			continue
		}
		if !r.gate(l) {
			result = false
			break
		}
	}
	if !any {
		result = false
	}

	r.memo[key] = result
	return result
}

func (r *availabilityResolver) gate(l *catalog.ProductRepositoryLink) bool {
	if p, ok := r.st.Product(l.ProductID); ok {
		if f, ok := r.st.Family(familyLabelFor(p)); ok && !f.Public {
			return false
		}
	}
	if _, ok := r.st.Channel(l.ChannelLabel); ok {
		return true
	}
	_, ok := r.st.BestAuth(l.RepositoryID)
	return ok
}

// availableExtensions walks the extension edges under one root and
// returns the extension products whose own mandatory gates pass,
// depth-first. Unavailable products propagate no content: their
// subtrees are not entered.
func (r *availabilityResolver) availableExtensions(rootID, baseID int64) []int64 {
	var out []int64
	for _, extID := range r.st.ExtensionProductIDs(baseID, rootID) {
		if !r.available(rootID, extID) {
			continue
		}
		out = append(out, extID)
		out = append(out, r.availableExtensions(rootID, extID)...)
	}
	return out
}

// availableInTree reports whether the product's content is actually
// obtainable under the root: besides its own gates, every ancestor on
// the extension chain down from the root must be available, because an
// unavailable product propagates no content.
func (r *availabilityResolver) availableInTree(rootID, productID int64) bool {
	set, ok := r.treeMemo[rootID]
	if !ok {
		set = make(map[int64]bool)
		if r.available(rootID, rootID) {
			set[rootID] = true
			for _, id := range r.availableExtensions(rootID, rootID) {
				set[id] = true
			}
		}
		r.treeMemo[rootID] = set
	}
	return set[productID]
}

// ProductInfo is one row of the product listing read model.
type ProductInfo struct {
	Product    catalog.Product
	Available  bool
	Channels   []string // channel labels of the product under itself as root
	Extensions []int64  // available extension product IDs, depth-first
}

// ListProducts returns the base products with their availability and
// the extensions currently obtainable under them.
func (m *Manager) ListProducts(_ context.Context) ([]ProductInfo, error) {
	var out []ProductInfo
	err := m.store.Transaction(func(st catalog.Store) error {
		resolver := newAvailabilityResolver(st)
		for _, p := range st.Products() {
			if !p.Base {
				continue
			}
			info := ProductInfo{
				Product:   *p,
				Available: resolver.available(p.ID, p.ID),
			}
			if info.Available {
				info.Extensions = resolver.availableExtensions(p.ID, p.ID)
			}
			for _, l := range st.Links() {
				if l.RootProductID == p.ID && l.ProductID == p.ID {
					info.Channels = append(info.Channels, l.ChannelLabel)
				}
			}
			sort.Strings(info.Channels)
			out = append(out, info)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Product.ID < out[j].Product.ID })
	return out, nil
}
