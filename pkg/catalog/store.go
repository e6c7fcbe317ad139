package catalog

// Store is the persistent catalog the sync engine reconciles into.
// Implementations must be safe for concurrent use. All methods operate
// on copies: mutating a returned entity has no effect until it is saved
// back.
type Store interface {
	ProductStore
	RepositoryStore
	LinkStore
	ChannelStore
	SubscriptionStore
	CredentialStore

	// Transaction runs fn as one unit of work. When fn returns an
	// error, mutations made inside fn are rolled back so a failed pass
	// leaves the store in its pre-pass state.
	Transaction(fn func(Store) error) error
}

// ProductStore persists products and extension edges.
type ProductStore interface {
	Product(id int64) (*Product, bool)
	// ProductByKey performs the fuzzy lookup used for pre-release
	// products.
	ProductByKey(key ProductKey) (*Product, bool)
	Products() []*Product
	SaveProduct(p *Product)
	DeleteProduct(id int64)

	Extension(key ExtensionKey) (*ProductExtension, bool)
	Extensions() []*ProductExtension
	SaveExtension(e *ProductExtension)
	DeleteExtension(key ExtensionKey)
	// ExtensionProductIDs lists the extension products of a base
	// product under the given root.
	ExtensionProductIDs(baseProductID, rootProductID int64) []int64
}

// RepositoryStore persists repositories and their auth records.
type RepositoryStore interface {
	Repository(id int64) (*Repository, bool)
	Repositories() []*Repository
	SaveRepository(r *Repository)
	DeleteRepository(id int64)

	Auth(id int64) (*RepositoryAuth, bool)
	Auths() []*RepositoryAuth
	AuthsForRepository(repositoryID int64) []*RepositoryAuth
	// SaveAuth persists the record, assigning an ID when it has none.
	SaveAuth(a *RepositoryAuth) int64
	DeleteAuth(id int64)
	// BestAuth returns the highest-precedence auth record of a
	// repository, if any. Ties break on the lowest auth ID.
	BestAuth(repositoryID int64) (*RepositoryAuth, bool)
}

// LinkStore persists product repository links.
type LinkStore interface {
	Link(key LinkKey) (*ProductRepositoryLink, bool)
	Links() []*ProductRepositoryLink
	// LinksForChannel returns all links carrying the channel label in a
	// deterministic order: update tag, then repository id, ascending.
	LinksForChannel(label string) []*ProductRepositoryLink
	SaveLink(l *ProductRepositoryLink)
	DeleteLink(key LinkKey)
}

// ChannelStore persists channels, product channel joins, content
// sources and channel families.
type ChannelStore interface {
	Channel(label string) (*Channel, bool)
	Channels() []*Channel
	SaveChannel(c *Channel)
	DeleteChannel(label string)

	ProductChannels(label string) []*ProductChannel
	SaveProductChannel(pc *ProductChannel)
	DeleteProductChannels(label string)

	ContentSource(label string) (*ContentSource, bool)
	ContentSourceByURL(url string) (*ContentSource, bool)
	ContentSources() []*ContentSource
	SaveContentSource(cs *ContentSource)
	DeleteContentSource(label string)

	Family(label string) (*ChannelFamily, bool)
	Families() []*ChannelFamily
	SaveFamily(f *ChannelFamily)
}

// SubscriptionStore persists subscriptions and order items.
type SubscriptionStore interface {
	Subscription(id int64) (*Subscription, bool)
	Subscriptions() []*Subscription
	SaveSubscription(s *Subscription)
	DeleteSubscription(id int64)

	OrderItem(id int64) (*OrderItem, bool)
	OrderItems() []*OrderItem
	OrderItemsForCredential(credentialID *int64) []*OrderItem
	SaveOrderItem(o *OrderItem)
	DeleteOrderItem(id int64)
}

// CredentialStore lists the stored organization credentials.
type CredentialStore interface {
	Credentials() []*Credential
	SaveCredential(c *Credential)
}
