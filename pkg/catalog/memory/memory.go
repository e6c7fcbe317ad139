// Package memory provides an in-memory implementation of the catalog
// Store. It is the default store for tests and offline tooling: all
// entities live in maps guarded by a read-write mutex, and transactions
// roll back by restoring a snapshot of the tables.
package memory

import (
	"sort"
	"sync"

	"github.com/agentstation/contentsync/pkg/catalog"
)

// Store is an in-memory catalog store. The zero value is not usable,
// use New.
type Store struct {
	mu sync.RWMutex
	// txMu serializes transactions so snapshots observe a quiet state.
	txMu sync.Mutex
	t    tables
}

type pcKey struct {
	productID int64
	label     string
}

type tables struct {
	products        map[int64]catalog.Product
	extensions      map[catalog.ExtensionKey]catalog.ProductExtension
	repositories    map[int64]catalog.Repository
	auths           map[int64]catalog.RepositoryAuth
	nextAuthID      int64
	links           map[catalog.LinkKey]catalog.ProductRepositoryLink
	channels        map[string]catalog.Channel
	productChannels map[pcKey]catalog.ProductChannel
	contentSources  map[string]catalog.ContentSource
	families        map[string]catalog.ChannelFamily
	subscriptions   map[int64]catalog.Subscription
	orderItems      map[int64]catalog.OrderItem
	credentials     map[int64]catalog.Credential
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{t: newTables()}
}

func newTables() tables {
	return tables{
		products:        make(map[int64]catalog.Product),
		extensions:      make(map[catalog.ExtensionKey]catalog.ProductExtension),
		repositories:    make(map[int64]catalog.Repository),
		auths:           make(map[int64]catalog.RepositoryAuth),
		nextAuthID:      1,
		links:           make(map[catalog.LinkKey]catalog.ProductRepositoryLink),
		channels:        make(map[string]catalog.Channel),
		productChannels: make(map[pcKey]catalog.ProductChannel),
		contentSources:  make(map[string]catalog.ContentSource),
		families:        make(map[string]catalog.ChannelFamily),
		subscriptions:   make(map[int64]catalog.Subscription),
		orderItems:      make(map[int64]catalog.OrderItem),
		credentials:     make(map[int64]catalog.Credential),
	}
}

// Transaction runs fn as one unit of work. On error the tables are
// restored from a snapshot taken before fn ran, leaving the store in
// its pre-pass state.
func (s *Store) Transaction(fn func(catalog.Store) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	snapshot := s.t.clone()
	s.mu.Unlock()

	if err := fn(s); err != nil {
		s.mu.Lock()
		s.t = snapshot
		s.mu.Unlock()
		return err
	}
	return nil
}

func (t tables) clone() tables {
	c := newTables()
	c.nextAuthID = t.nextAuthID
	for k, v := range t.products {
		c.products[k] = cloneProduct(v)
	}
	for k, v := range t.extensions {
		c.extensions[k] = v
	}
	for k, v := range t.repositories {
		c.repositories[k] = v
	}
	for k, v := range t.auths {
		c.auths[k] = cloneAuth(v)
	}
	for k, v := range t.links {
		c.links[k] = v
	}
	for k, v := range t.channels {
		c.channels[k] = v
	}
	for k, v := range t.productChannels {
		c.productChannels[k] = v
	}
	for k, v := range t.contentSources {
		c.contentSources[k] = v
	}
	for k, v := range t.families {
		c.families[k] = v
	}
	for k, v := range t.subscriptions {
		c.subscriptions[k] = cloneSubscription(v)
	}
	for k, v := range t.orderItems {
		c.orderItems[k] = cloneOrderItem(v)
	}
	for k, v := range t.credentials {
		c.credentials[k] = v
	}
	return c
}

func cloneProduct(p catalog.Product) catalog.Product {
	p.Successors = append([]int64(nil), p.Successors...)
	return p
}

func cloneAuth(a catalog.RepositoryAuth) catalog.RepositoryAuth {
	if a.CredentialID != nil {
		id := *a.CredentialID
		a.CredentialID = &id
	}
	return a
}

func cloneSubscription(s catalog.Subscription) catalog.Subscription {
	s.SKUs = append([]string(nil), s.SKUs...)
	s.ProductIDs = append([]int64(nil), s.ProductIDs...)
	if s.StartsAt != nil {
		t := *s.StartsAt
		s.StartsAt = &t
	}
	if s.ExpiresAt != nil {
		t := *s.ExpiresAt
		s.ExpiresAt = &t
	}
	if s.CredentialID != nil {
		id := *s.CredentialID
		s.CredentialID = &id
	}
	return s
}

func cloneOrderItem(o catalog.OrderItem) catalog.OrderItem {
	if o.StartDate != nil {
		t := *o.StartDate
		o.StartDate = &t
	}
	if o.EndDate != nil {
		t := *o.EndDate
		o.EndDate = &t
	}
	if o.CredentialID != nil {
		id := *o.CredentialID
		o.CredentialID = &id
	}
	return o
}

// Product returns a product by external id.
func (s *Store) Product(id int64) (*catalog.Product, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.t.products[id]
	if !ok {
		return nil, false
	}
	p = cloneProduct(p)
	return &p, true
}

// ProductByKey performs the fuzzy product lookup.
func (s *Store) ProductByKey(key catalog.ProductKey) (*catalog.Product, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.t.products {
		if p.Key() == key {
			p = cloneProduct(p)
			return &p, true
		}
	}
	return nil, false
}

// Products lists all products ordered by id.
func (s *Store) Products() []*catalog.Product {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*catalog.Product, 0, len(s.t.products))
	for _, p := range s.t.products {
		p := cloneProduct(p)
		out = append(out, &p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// SaveProduct stores a copy of the product.
func (s *Store) SaveProduct(p *catalog.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.t.products[p.ID] = cloneProduct(*p)
}

// DeleteProduct removes a product row.
func (s *Store) DeleteProduct(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.t.products, id)
}

// Extension returns an extension edge by key.
func (s *Store) Extension(key catalog.ExtensionKey) (*catalog.ProductExtension, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.t.extensions[key]
	if !ok {
		return nil, false
	}
	return &e, true
}

// Extensions lists all extension edges.
func (s *Store) Extensions() []*catalog.ProductExtension {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*catalog.ProductExtension, 0, len(s.t.extensions))
	for _, e := range s.t.extensions {
		e := e
		out = append(out, &e)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.RootProductID != b.RootProductID {
			return a.RootProductID < b.RootProductID
		}
		if a.BaseProductID != b.BaseProductID {
			return a.BaseProductID < b.BaseProductID
		}
		return a.ExtensionProductID < b.ExtensionProductID
	})
	return out
}

// SaveExtension stores a copy of the extension edge.
func (s *Store) SaveExtension(e *catalog.ProductExtension) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.t.extensions[e.Key()] = *e
}

// DeleteExtension removes an extension edge.
func (s *Store) DeleteExtension(key catalog.ExtensionKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.t.extensions, key)
}

// ExtensionProductIDs lists extension products of a base product under
// the given root, ordered by product id.
func (s *Store) ExtensionProductIDs(baseProductID, rootProductID int64) []int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []int64
	for key := range s.t.extensions {
		if key.BaseProductID == baseProductID && key.RootProductID == rootProductID {
			out = append(out, key.ExtensionProductID)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Repository returns a repository by external id.
func (s *Store) Repository(id int64) (*catalog.Repository, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.t.repositories[id]
	if !ok {
		return nil, false
	}
	return &r, true
}

// Repositories lists all repositories ordered by id.
func (s *Store) Repositories() []*catalog.Repository {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*catalog.Repository, 0, len(s.t.repositories))
	for _, r := range s.t.repositories {
		r := r
		out = append(out, &r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// SaveRepository stores a copy of the repository.
func (s *Store) SaveRepository(r *catalog.Repository) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.t.repositories[r.ID] = *r
}

// DeleteRepository removes a repository row.
func (s *Store) DeleteRepository(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.t.repositories, id)
}

// Auth returns an auth record by id.
func (s *Store) Auth(id int64) (*catalog.RepositoryAuth, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.t.auths[id]
	if !ok {
		return nil, false
	}
	a = cloneAuth(a)
	return &a, true
}

// Auths lists all auth records ordered by id.
func (s *Store) Auths() []*catalog.RepositoryAuth {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*catalog.RepositoryAuth, 0, len(s.t.auths))
	for _, a := range s.t.auths {
		a := cloneAuth(a)
		out = append(out, &a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// AuthsForRepository lists the auth records of one repository.
func (s *Store) AuthsForRepository(repositoryID int64) []*catalog.RepositoryAuth {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*catalog.RepositoryAuth
	for _, a := range s.t.auths {
		if a.RepositoryID == repositoryID {
			a := cloneAuth(a)
			out = append(out, &a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// SaveAuth stores a copy of the auth record, assigning an id when it
// has none.
func (s *Store) SaveAuth(a *catalog.RepositoryAuth) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.ID == 0 {
		a.ID = s.t.nextAuthID
		s.t.nextAuthID++
	}
	s.t.auths[a.ID] = cloneAuth(*a)
	return a.ID
}

// DeleteAuth removes an auth record.
func (s *Store) DeleteAuth(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.t.auths, id)
}

// BestAuth returns the highest-precedence auth record of a repository.
// Ties break on the lowest auth id.
func (s *Store) BestAuth(repositoryID int64) (*catalog.RepositoryAuth, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var best *catalog.RepositoryAuth
	for _, a := range s.t.auths {
		if a.RepositoryID != repositoryID {
			continue
		}
		a := cloneAuth(a)
		if best == nil ||
			a.Method.Rank() > best.Method.Rank() ||
			(a.Method.Rank() == best.Method.Rank() && a.ID < best.ID) {
			best = &a
		}
	}
	return best, best != nil
}

// Link returns a product repository link by key.
func (s *Store) Link(key catalog.LinkKey) (*catalog.ProductRepositoryLink, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.t.links[key]
	if !ok {
		return nil, false
	}
	return &l, true
}

// Links lists all product repository links.
func (s *Store) Links() []*catalog.ProductRepositoryLink {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*catalog.ProductRepositoryLink, 0, len(s.t.links))
	for _, l := range s.t.links {
		l := l
		out = append(out, &l)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.RootProductID != b.RootProductID {
			return a.RootProductID < b.RootProductID
		}
		if a.ProductID != b.ProductID {
			return a.ProductID < b.ProductID
		}
		return a.RepositoryID < b.RepositoryID
	})
	return out
}

// LinksForChannel lists links carrying the channel label, ordered by
// update tag then repository id so duplicate-key upstream data resolves
// deterministically.
func (s *Store) LinksForChannel(label string) []*catalog.ProductRepositoryLink {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*catalog.ProductRepositoryLink
	for _, l := range s.t.links {
		if l.ChannelLabel == label {
			l := l
			out = append(out, &l)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.UpdateTag != b.UpdateTag {
			return a.UpdateTag < b.UpdateTag
		}
		return a.RepositoryID < b.RepositoryID
	})
	return out
}

// SaveLink stores a copy of the link.
func (s *Store) SaveLink(l *catalog.ProductRepositoryLink) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.t.links[l.Key()] = *l
}

// DeleteLink removes a link.
func (s *Store) DeleteLink(key catalog.LinkKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.t.links, key)
}

// Channel returns a channel by label.
func (s *Store) Channel(label string) (*catalog.Channel, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.t.channels[label]
	if !ok {
		return nil, false
	}
	return &c, true
}

// Channels lists all channels ordered by label.
func (s *Store) Channels() []*catalog.Channel {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*catalog.Channel, 0, len(s.t.channels))
	for _, c := range s.t.channels {
		c := c
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Label < out[j].Label })
	return out
}

// SaveChannel stores a copy of the channel.
func (s *Store) SaveChannel(c *catalog.Channel) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.t.channels[c.Label] = *c
}

// DeleteChannel removes a channel row.
func (s *Store) DeleteChannel(label string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.t.channels, label)
}

// ProductChannels lists the product channel joins of one channel.
func (s *Store) ProductChannels(label string) []*catalog.ProductChannel {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*catalog.ProductChannel
	for key, pc := range s.t.productChannels {
		if key.label == label {
			pc := pc
			out = append(out, &pc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out
}

// SaveProductChannel stores a copy of the join row.
func (s *Store) SaveProductChannel(pc *catalog.ProductChannel) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.t.productChannels[pcKey{pc.ProductID, pc.ChannelLabel}] = *pc
}

// DeleteProductChannels removes all join rows of one channel.
func (s *Store) DeleteProductChannels(label string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key := range s.t.productChannels {
		if key.label == label {
			delete(s.t.productChannels, key)
		}
	}
}

// ContentSource returns a content source by label.
func (s *Store) ContentSource(label string) (*catalog.ContentSource, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cs, ok := s.t.contentSources[label]
	if !ok {
		return nil, false
	}
	return &cs, true
}

// ContentSourceByURL returns a content source by source URL.
func (s *Store) ContentSourceByURL(url string) (*catalog.ContentSource, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, cs := range s.t.contentSources {
		if cs.URL == url {
			cs := cs
			return &cs, true
		}
	}
	return nil, false
}

// ContentSources lists all content sources ordered by label.
func (s *Store) ContentSources() []*catalog.ContentSource {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*catalog.ContentSource, 0, len(s.t.contentSources))
	for _, cs := range s.t.contentSources {
		cs := cs
		out = append(out, &cs)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Label < out[j].Label })
	return out
}

// SaveContentSource stores a copy of the content source.
func (s *Store) SaveContentSource(cs *catalog.ContentSource) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.t.contentSources[cs.Label] = *cs
}

// DeleteContentSource removes a content source.
func (s *Store) DeleteContentSource(label string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.t.contentSources, label)
}

// Family returns a channel family by label.
func (s *Store) Family(label string) (*catalog.ChannelFamily, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.t.families[label]
	if !ok {
		return nil, false
	}
	return &f, true
}

// Families lists all channel families ordered by label.
func (s *Store) Families() []*catalog.ChannelFamily {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*catalog.ChannelFamily, 0, len(s.t.families))
	for _, f := range s.t.families {
		f := f
		out = append(out, &f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Label < out[j].Label })
	return out
}

// SaveFamily stores a copy of the channel family.
func (s *Store) SaveFamily(f *catalog.ChannelFamily) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.t.families[f.Label] = *f
}

// Subscription returns a subscription by external id.
func (s *Store) Subscription(id int64) (*catalog.Subscription, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sub, ok := s.t.subscriptions[id]
	if !ok {
		return nil, false
	}
	sub = cloneSubscription(sub)
	return &sub, true
}

// Subscriptions lists all subscriptions ordered by id.
func (s *Store) Subscriptions() []*catalog.Subscription {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*catalog.Subscription, 0, len(s.t.subscriptions))
	for _, sub := range s.t.subscriptions {
		sub := cloneSubscription(sub)
		out = append(out, &sub)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// SaveSubscription stores a copy of the subscription.
func (s *Store) SaveSubscription(sub *catalog.Subscription) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.t.subscriptions[sub.ID] = cloneSubscription(*sub)
}

// DeleteSubscription removes a subscription row.
func (s *Store) DeleteSubscription(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.t.subscriptions, id)
}

// OrderItem returns an order item by external id.
func (s *Store) OrderItem(id int64) (*catalog.OrderItem, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.t.orderItems[id]
	if !ok {
		return nil, false
	}
	o = cloneOrderItem(o)
	return &o, true
}

// OrderItems lists all order items ordered by id.
func (s *Store) OrderItems() []*catalog.OrderItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*catalog.OrderItem, 0, len(s.t.orderItems))
	for _, o := range s.t.orderItems {
		o := cloneOrderItem(o)
		out = append(out, &o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// OrderItemsForCredential lists order items owned by the credential
// (nil matches the offline sentinel).
func (s *Store) OrderItemsForCredential(credentialID *int64) []*catalog.OrderItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*catalog.OrderItem
	for _, o := range s.t.orderItems {
		if sameID(o.CredentialID, credentialID) {
			o := cloneOrderItem(o)
			out = append(out, &o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// SaveOrderItem stores a copy of the order item.
func (s *Store) SaveOrderItem(o *catalog.OrderItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.t.orderItems[o.ID] = cloneOrderItem(*o)
}

// DeleteOrderItem removes an order item row.
func (s *Store) DeleteOrderItem(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.t.orderItems, id)
}

// Credentials lists all stored credentials ordered by id.
func (s *Store) Credentials() []*catalog.Credential {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*catalog.Credential, 0, len(s.t.credentials))
	for _, c := range s.t.credentials {
		c := c
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// SaveCredential stores a copy of the credential.
func (s *Store) SaveCredential(c *catalog.Credential) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.t.credentials[c.ID] = *c
}

func sameID(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
