package catalog

// ProductRepositoryLink is an edge of the merged product tree: it ties
// a product and a repository together under a root product and names
// the channel materialized from it. For released products the channel
// label, parent channel label and update tag are immutable after
// creation.
type ProductRepositoryLink struct {
	RootProductID int64
	ProductID     int64
	RepositoryID  int64

	ChannelLabel       string // mandatory, unique per channel
	ParentChannelLabel string // empty at root
	ChannelName        string
	Mandatory          bool
	UpdateTag          string

	GPGKeyURL         string
	GPGKeyID          string
	GPGKeyFingerprint string
}

// Key returns the identity of the link.
func (l *ProductRepositoryLink) Key() LinkKey {
	return LinkKey{
		RootProductID: l.RootProductID,
		ProductID:     l.ProductID,
		RepositoryID:  l.RepositoryID,
	}
}

// Root reports whether the link belongs to the root product itself.
func (l *ProductRepositoryLink) Root() bool {
	return l.RootProductID == l.ProductID
}

// LinkKey identifies a ProductRepositoryLink.
type LinkKey struct {
	RootProductID int64
	ProductID     int64
	RepositoryID  int64
}

// Channel is the locally materialized content feed derived from a
// product repository link. The label never changes after creation; all
// other descriptive fields are refreshed from the current best link on
// every sync.
type Channel struct {
	Label              string
	Name               string
	Summary            string
	Description        string
	ParentChannelLabel string
	FamilyLabel        string
	Arch               string
	UpdateTag          string
	InstallerUpdates   bool

	GPGKeyURL         string
	GPGKeyID          string
	GPGKeyFingerprint string
}

// ProductChannel joins a product to a channel with the per-product
// mandatory flag.
type ProductChannel struct {
	ProductID    int64
	ChannelLabel string
	Mandatory    bool
}

// ContentSource is the content download location assembled for a
// channel. It is linked from at most one repository auth record.
type ContentSource struct {
	Label          string
	URL            string
	MetadataSigned bool
}

// ChannelFamily groups channels by product class. The base label and
// its "-ALPHA"/"-BETA" suffixed variants are independent rows.
type ChannelFamily struct {
	Label  string
	Name   string
	Public bool
}
