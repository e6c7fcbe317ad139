package scc

import "context"

// Source retrieves raw catalog data. The HTTP client and the offline
// directory variant both implement it; the sync engine does not care
// which one it talks to.
type Source interface {
	// ListProducts returns all products visible to the credential.
	ListProducts(ctx context.Context) ([]ProductRecord, error)

	// ListRepositories returns all repositories visible to the credential.
	ListRepositories(ctx context.Context) ([]RepositoryRecord, error)

	// ListSubscriptions returns all subscriptions of the credential.
	ListSubscriptions(ctx context.Context) ([]SubscriptionRecord, error)

	// ListOrders returns all orders of the credential.
	ListOrders(ctx context.Context) ([]OrderRecord, error)

	// ProductTree returns the static product tree.
	ProductTree(ctx context.Context) ([]TreeEdgeRecord, error)
}

// FlattenProducts returns the product list with all nested extensions
// inlined, deduplicated by id, preserving first-seen order.
func FlattenProducts(products []ProductRecord) []ProductRecord {
	seen := make(map[int64]bool)
	var out []ProductRecord
	var walk func(ps []ProductRecord)
	walk = func(ps []ProductRecord) {
		for _, p := range ps {
			if !seen[p.ID] {
				seen[p.ID] = true
				out = append(out, p)
			}
			walk(p.Extensions)
		}
	}
	walk(products)
	return out
}

// CollectRepositories returns all repositories inlined in the product
// list.
func CollectRepositories(products []ProductRecord) []RepositoryRecord {
	var out []RepositoryRecord
	for _, p := range products {
		out = append(out, p.Repositories...)
	}
	return out
}
