package catalog

import "time"

// Subscription is a cached subscription row, keyed by external id and
// owned by the credential that fetched it.
type Subscription struct {
	ID           int64
	Name         string
	Type         string // "oem" subscriptions get synthetic order items
	Status       string
	StartsAt     *time.Time
	ExpiresAt    *time.Time
	SystemLimit  int64
	SKUs         []string
	ProductIDs   []int64
	CredentialID *int64
}

// Active reports whether the subscription is currently valid.
func (s *Subscription) Active(now time.Time) bool {
	if s.Status != "ACTIVE" {
		return false
	}
	if s.ExpiresAt != nil && !s.ExpiresAt.After(now) {
		return false
	}
	if s.StartsAt != nil && !s.StartsAt.Before(now) {
		return false
	}
	return true
}

// OrderItem is a cached order item row. Negative IDs are synthetic
// order items generated for OEM subscriptions, using the negated
// subscription id so they never collide with real order item ids.
type OrderItem struct {
	ID             int64
	SKU            string
	Quantity       int64
	StartDate      *time.Time
	EndDate        *time.Time
	SubscriptionID int64
	CredentialID   *int64
}

// Synthetic reports whether the order item was generated for an OEM
// subscription rather than fetched from the catalog service.
func (o *OrderItem) Synthetic() bool {
	return o.ID < 0
}
