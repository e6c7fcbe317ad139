// Package scc implements the catalog source: typed wire records, the
// HTTP client fetching them from the remote catalog service and the
// offline variant reading the same shapes from a mirror directory.
package scc

import (
	"strings"
	"time"
)

// ProductRecord is a product as served by the catalog service.
// Extensions nest recursively and repositories are inlined.
type ProductRecord struct {
	ID           int64    `json:"id"`
	Identifier   string   `json:"identifier"`
	Version      string   `json:"version"`
	ReleaseType  string   `json:"release_type"`
	ReleaseStage string   `json:"release_stage"`
	Arch         string   `json:"arch"`
	FriendlyName string   `json:"friendly_name"`
	Description  string   `json:"description"`
	ProductClass string   `json:"product_class"`
	ProductType  string   `json:"product_type"` // "base" or "extension"
	Free         bool     `json:"free"`
	Extensions   []ProductRecord    `json:"extensions"`
	Repositories []RepositoryRecord `json:"repositories"`

	// OnlinePredecessorIDs lists products this one upgrades from.
	OnlinePredecessorIDs []int64 `json:"online_predecessor_ids"`
}

// Base reports whether the record describes a base product.
func (p *ProductRecord) Base() bool {
	return p.ProductType == "base"
}

// Missing returns the names of attributes required by the local schema
// that the record does not carry.
func (p *ProductRecord) Missing() []string {
	var missing []string
	if p.ProductClass == "" {
		missing = append(missing, "product class")
	}
	if p.Identifier == "" {
		missing = append(missing, "identifier")
	}
	if p.Version == "" {
		missing = append(missing, "version")
	}
	return missing
}

// RepositoryRecord is a repository as served by the catalog service.
type RepositoryRecord struct {
	ID               int64  `json:"id"`
	Name             string `json:"name"`
	Description      string `json:"description"`
	URL              string `json:"url"`
	DistroTarget     string `json:"distro_target"`
	InstallerUpdates bool   `json:"installer_updates"`
}

// PTF reports whether the repository serves patch-test-fix content,
// recognized by its fixed URL path prefix.
func (r *RepositoryRecord) PTF() bool {
	return strings.Contains(r.URL, "/PTF/Release/")
}

// GPGInfo describes one signing key of a tree edge.
type GPGInfo struct {
	URL         string `json:"url"`
	KeyID       string `json:"key_id"`
	Fingerprint string `json:"fingerprint"`
}

// TreeEdgeRecord is one edge of the static product tree: it names a
// product, the root product it appears under, an optional parent
// product and the repository whose content feeds the channel.
type TreeEdgeRecord struct {
	ChannelLabel       string    `json:"channel_label"`
	ParentChannelLabel string    `json:"parent_channel_label"`
	ChannelName        string    `json:"channel_name"`
	ProductID          int64     `json:"product_id"`
	RepositoryID       int64     `json:"repository_id"`
	ParentProductID    *int64    `json:"parent_product_id"`
	RootProductID      int64     `json:"root_product_id"`
	UpdateTag          string    `json:"update_tag"`
	Signed             bool      `json:"signed"`
	Mandatory          bool      `json:"mandatory"`
	Recommended        bool      `json:"recommended"`
	URL                string    `json:"url"`
	ReleaseStage       string    `json:"release_stage"`
	ProductType        string    `json:"product_type"`
	Tags               []string  `json:"tags"`
	GPGInfo            []GPGInfo `json:"gpg_info"`
}

// Tagged reports whether the edge applies for the configured tree tag.
// Untagged edges apply everywhere.
func (e *TreeEdgeRecord) Tagged(tag string) bool {
	if len(e.Tags) == 0 {
		return true
	}
	for _, t := range e.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// SubscriptionRecord is a subscription as served by the catalog service.
type SubscriptionRecord struct {
	ID          int64      `json:"id"`
	Name        string     `json:"name"`
	Type        string     `json:"type"`
	Status      string     `json:"status"`
	StartsAt    *time.Time `json:"starts_at"`
	ExpiresAt   *time.Time `json:"expires_at"`
	SystemLimit int64      `json:"system_limit"`
	SKUs        []string   `json:"skus"`
	ProductIDs  []int64    `json:"product_ids"`
}

// OrderRecord is an order with its items.
type OrderRecord struct {
	ID         int64             `json:"id"`
	OrderItems []OrderItemRecord `json:"order_items"`
}

// OrderItemRecord is one line of an order.
type OrderItemRecord struct {
	ID             int64      `json:"id"`
	SKU            string     `json:"sku"`
	Quantity       int64      `json:"quantity"`
	StartDate      *time.Time `json:"start_date"`
	EndDate        *time.Time `json:"end_date"`
	SubscriptionID int64      `json:"subscription_id"`
}

// ChannelFamilyRecord is a channel family from the static data files.
type ChannelFamilyRecord struct {
	Label string `json:"label"`
	Name  string `json:"name"`
}

// UpgradePathRecord is a static upgrade path between two products.
type UpgradePathRecord struct {
	FromProductID int64 `json:"from_product_id"`
	ToProductID   int64 `json:"to_product_id"`
}
