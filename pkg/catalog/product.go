// Package catalog defines the persistent entity model of the content
// synchronization system and the Store interface used to persist it.
// The sync engine consumes external catalog records, merges them into
// these entities and keeps the store consistent across repeated runs.
package catalog

// ReleaseStage describes the lifecycle stage of a product.
type ReleaseStage string

// Release stages as reported by the catalog service.
const (
	ReleaseStageAlpha    ReleaseStage = "alpha"
	ReleaseStageBeta     ReleaseStage = "beta"
	ReleaseStageReleased ReleaseStage = "released"
)

// Product is a locally cached product. The external ID is only
// guaranteed to be stable once the product reached the released stage;
// alpha and beta products are additionally matched by the
// (name, version, release, arch) tuple.
type Product struct {
	ID           int64
	Name         string // lower-cased identifier
	Version      string // lower-cased, may be empty
	Release      string // lower-cased release type, may be empty
	FriendlyName string
	Description  string
	Base         bool
	Free         bool
	ReleaseStage ReleaseStage
	Arch         string
	FamilyLabel  string // channel family reference, may be empty

	// Successors holds the product IDs this product can be upgraded to.
	Successors []int64
}

// Key returns the fuzzy identity tuple used for pre-release matching.
func (p *Product) Key() ProductKey {
	return ProductKey{Name: p.Name, Version: p.Version, Release: p.Release, Arch: p.Arch}
}

// ProductKey is the fuzzy identity of a product: pre-release external
// ids are not stable, so alpha and beta products fall back to this
// tuple for matching.
type ProductKey struct {
	Name    string
	Version string
	Release string
	Arch    string
}

// ProductExtension is an add-on relationship between a base product and
// an extension product, scoped to a root product. The same extension
// may be recommended under one root and not another.
type ProductExtension struct {
	BaseProductID      int64
	ExtensionProductID int64
	RootProductID      int64
	Recommended        bool
}

// Key returns the identity of the extension edge.
func (e *ProductExtension) Key() ExtensionKey {
	return ExtensionKey{
		BaseProductID:      e.BaseProductID,
		ExtensionProductID: e.ExtensionProductID,
		RootProductID:      e.RootProductID,
	}
}

// ExtensionKey identifies a ProductExtension.
type ExtensionKey struct {
	BaseProductID      int64
	ExtensionProductID int64
	RootProductID      int64
}
