package sync

import (
	"context"
	"time"

	"github.com/agentstation/contentsync/pkg/catalog"
	"github.com/agentstation/contentsync/pkg/errors"
	"github.com/agentstation/contentsync/pkg/logging"
	"github.com/agentstation/contentsync/pkg/scc"
)

// oemSubscriptionType marks subscriptions without per-system order
// tracking; their order items are synthesized.
const oemSubscriptionType = "oem"

// SyncSubscriptions merges subscription and order data for every
// credential. Each credential is an independent unit of work; a fetch
// failure skips only that credential's contribution.
func (m *Manager) SyncSubscriptions(ctx context.Context) error {
	creds, err := m.filterCredentials()
	if err != nil {
		return err
	}

	for _, cred := range creds {
		clog := logging.WithCredential(ctx, credentialName(cred))
		log := logging.FromContext(clog)

		source, err := m.sources(cred)
		if err != nil {
			return err
		}
		subs, err := source.ListSubscriptions(clog)
		if err != nil {
			if errors.IsConfig(err) {
				return err
			}
			log.Error().Err(err).Msg("Subscription listing failed for credential")
			continue
		}
		orders, err := source.ListOrders(clog)
		if err != nil {
			if errors.IsConfig(err) {
				return err
			}
			log.Error().Err(err).Msg("Order listing failed for credential")
			continue
		}

		if err := m.store.Transaction(func(st catalog.Store) error {
			syncCredentialSubscriptions(clog, st, cred, subs)
			syncCredentialOrders(clog, st, cred, orders)
			synthesizeOEMOrderItems(clog, st, cred, subs, m.now())
			return nil
		}); err != nil {
			return err
		}
	}
	return nil
}

func syncCredentialSubscriptions(ctx context.Context, st catalog.Store, cred *catalog.Credential, records []scc.SubscriptionRecord) {
	log := logging.FromContext(ctx)

	seen := make(map[int64]bool, len(records))
	for _, rec := range records {
		seen[rec.ID] = true
		sub, ok := st.Subscription(rec.ID)
		if !ok {
			sub = &catalog.Subscription{ID: rec.ID}
		}
		sub.Name = rec.Name
		sub.Type = rec.Type
		sub.Status = rec.Status
		sub.StartsAt = rec.StartsAt
		sub.ExpiresAt = rec.ExpiresAt
		sub.SystemLimit = rec.SystemLimit
		sub.SKUs = rec.SKUs
		sub.ProductIDs = rec.ProductIDs
		sub.CredentialID = catalog.CredentialID(cred)
		st.SaveSubscription(sub)
	}

	for _, sub := range st.Subscriptions() {
		if !catalog.SameCredential(sub.CredentialID, cred) || seen[sub.ID] {
			continue
		}
		log.Debug().Int64("subscription", sub.ID).Msg("Deleting stale subscription")
		st.DeleteSubscription(sub.ID)
	}
}

func syncCredentialOrders(ctx context.Context, st catalog.Store, cred *catalog.Credential, orders []scc.OrderRecord) {
	log := logging.FromContext(ctx)

	seen := make(map[int64]bool)
	for _, order := range orders {
		for _, rec := range order.OrderItems {
			seen[rec.ID] = true
			item, ok := st.OrderItem(rec.ID)
			if !ok {
				item = &catalog.OrderItem{ID: rec.ID}
			}
			item.SKU = rec.SKU
			item.Quantity = rec.Quantity
			item.StartDate = rec.StartDate
			item.EndDate = rec.EndDate
			item.SubscriptionID = rec.SubscriptionID
			item.CredentialID = catalog.CredentialID(cred)
			st.SaveOrderItem(item)
		}
	}

	for _, item := range st.OrderItemsForCredential(catalog.CredentialID(cred)) {
		if item.Synthetic() || seen[item.ID] {
			continue
		}
		log.Debug().Int64("order_item", item.ID).Msg("Deleting stale order item")
		st.DeleteOrderItem(item.ID)
	}
}

// synthesizeOEMOrderItems generates one order item per active
// single-SKU OEM subscription, keyed by the negated subscription id so
// synthetic keys never collide with real order item ids. Synthetic
// items whose subscription vanished or stopped qualifying are pruned.
func synthesizeOEMOrderItems(ctx context.Context, st catalog.Store, cred *catalog.Credential, records []scc.SubscriptionRecord, now time.Time) {
	log := logging.FromContext(ctx)

	wanted := make(map[int64]bool)
	for _, rec := range records {
		if rec.Type != oemSubscriptionType {
			continue
		}
		sub := catalog.Subscription{Status: rec.Status, StartsAt: rec.StartsAt, ExpiresAt: rec.ExpiresAt}
		if !sub.Active(now) {
			log.Debug().Int64("subscription", rec.ID).
				Msg("OEM subscription is not active, no order item synthesized")
			continue
		}
		if len(rec.SKUs) != 1 {
			log.Warn().Int64("subscription", rec.ID).Int("skus", len(rec.SKUs)).
				Msg("OEM subscription without a single SKU, no order item synthesized")
			continue
		}

		id := -rec.ID
		wanted[id] = true
		item, ok := st.OrderItem(id)
		if !ok {
			item = &catalog.OrderItem{ID: id}
		}
		item.SKU = rec.SKUs[0]
		item.Quantity = rec.SystemLimit
		item.StartDate = rec.StartsAt
		item.EndDate = rec.ExpiresAt
		item.SubscriptionID = rec.ID
		item.CredentialID = catalog.CredentialID(cred)
		st.SaveOrderItem(item)
	}

	for _, item := range st.OrderItemsForCredential(catalog.CredentialID(cred)) {
		if !item.Synthetic() || wanted[item.ID] {
			continue
		}
		log.Debug().Int64("order_item", item.ID).Msg("Deleting stale synthetic order item")
		st.DeleteOrderItem(item.ID)
	}
}
