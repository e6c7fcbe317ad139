package sync

import (
	"context"
	"net/url"
	"path"
	"sort"

	"github.com/agentstation/contentsync/pkg/catalog"
	"github.com/agentstation/contentsync/pkg/errors"
	"github.com/agentstation/contentsync/pkg/logging"
	"github.com/agentstation/contentsync/pkg/probe"
)

// familyLabelFor returns the channel family label of a product,
// suffixed by release stage so pre-release channels group separately.
func familyLabelFor(p *catalog.Product) string {
	if p.FamilyLabel == "" {
		return ""
	}
	switch p.ReleaseStage {
	case catalog.ReleaseStageAlpha:
		return p.FamilyLabel + "-ALPHA"
	case catalog.ReleaseStageBeta:
		return p.FamilyLabel + "-BETA"
	default:
		return p.FamilyLabel
	}
}

// updateChannels refreshes every local channel from its current best
// link. Channels without any link are expired and only warned about;
// removal is an explicit external action.
func (m *Manager) updateChannels(ctx context.Context, st catalog.Store) {
	log := logging.FromContext(ctx)

	for _, ch := range st.Channels() {
		links := st.LinksForChannel(ch.Label)
		if len(links) == 0 {
			log.Warn().Str("channel", ch.Label).
				Msg("Channel has no link in the product tree, it is expired and should be removed")
			continue
		}

		link := links[0]
		product, ok := st.Product(link.ProductID)
		if !ok {
			continue
		}
		applyLink(ch, link, product)
		st.SaveChannel(ch)

		// propagate per-product mandatory flags
		current := make(map[int64]*catalog.ProductChannel)
		for _, pc := range st.ProductChannels(ch.Label) {
			current[pc.ProductID] = pc
		}
		for _, l := range links {
			pc, ok := current[l.ProductID]
			if !ok {
				pc = &catalog.ProductChannel{ProductID: l.ProductID, ChannelLabel: ch.Label}
			}
			pc.Mandatory = l.Mandatory
			st.SaveProductChannel(pc)
		}
	}
}

// applyLink copies the mutable channel fields from a link. The label is
// never touched.
func applyLink(ch *catalog.Channel, link *catalog.ProductRepositoryLink, product *catalog.Product) {
	ch.Name = link.ChannelName
	ch.Summary = product.FriendlyName
	ch.Description = product.Description
	ch.ParentChannelLabel = link.ParentChannelLabel
	ch.FamilyLabel = familyLabelFor(product)
	ch.Arch = product.Arch
	ch.UpdateTag = link.UpdateTag
	ch.GPGKeyURL = link.GPGKeyURL
	ch.GPGKeyID = link.GPGKeyID
	ch.GPGKeyFingerprint = link.GPGKeyFingerprint
}

// linkContentSources repairs the content source side of every channel:
// sources whose auth vanished are deleted, channels without a source
// get one from the repository's best auth, and when the best auth moved
// to another credential the link moves with it.
func (m *Manager) linkContentSources(ctx context.Context, st catalog.Store) {
	log := logging.FromContext(ctx)

	linked := make(map[string]bool)
	for _, a := range st.Auths() {
		if a.ContentSourceLabel != "" {
			linked[a.ContentSourceLabel] = true
		}
	}
	for _, cs := range st.ContentSources() {
		if linked[cs.Label] {
			continue
		}
		log.Debug().Str("content_source", cs.Label).
			Msg("Deleting content source without auth")
		st.DeleteContentSource(cs.Label)
	}

	for _, ch := range st.Channels() {
		links := st.LinksForChannel(ch.Label)
		if len(links) == 0 {
			continue
		}
		repoID := links[0].RepositoryID
		best, ok := st.BestAuth(repoID)
		if !ok {
			continue
		}

		if best.ContentSourceLabel == "" {
			// clear a stale link on a lesser auth before moving it
			for _, a := range st.AuthsForRepository(repoID) {
				if a.ID != best.ID && a.ContentSourceLabel == ch.Label {
					a.ContentSourceLabel = ""
					st.SaveAuth(a)
				}
			}
			best.ContentSourceLabel = ch.Label
			st.SaveAuth(best)
		}
		m.refreshContentSource(ctx, st, ch.Label, best)
	}
}

// refreshContentSource creates or updates the content source of a
// channel from the given auth. A source left behind under a retired
// channel label but serving the same URL is adopted instead of
// duplicated.
func (m *Manager) refreshContentSource(ctx context.Context, st catalog.Store, label string, auth *catalog.RepositoryAuth) {
	repo, ok := st.Repository(auth.RepositoryID)
	if !ok {
		return
	}
	url := m.contentSourceURLOverwrite(ctx, repo, auth.URL)

	cs, ok := st.ContentSource(label)
	if !ok {
		cs = &catalog.ContentSource{Label: label}
		if prev, found := st.ContentSourceByURL(url); found {
			if _, live := st.Channel(prev.Label); !live {
				st.DeleteContentSource(prev.Label)
				cs = prev
				cs.Label = label
			}
		}
	}
	cs.URL = url
	cs.MetadataSigned = repo.Signed
	st.SaveContentSource(cs)
}

// contentSourceURLOverwrite prefers the configured mirror when it
// actually serves the repository content, falling back to the default
// URL otherwise.
func (m *Manager) contentSourceURLOverwrite(ctx context.Context, repo *catalog.Repository, defaultURL string) string {
	if m.mirror == "" {
		return defaultURL
	}
	mirror, err := url.Parse(m.mirror)
	if err != nil {
		return defaultURL
	}
	orig, err := url.Parse(defaultURL)
	if err != nil {
		return defaultURL
	}
	candidate := *mirror
	candidate.Path = path.Join(mirror.Path, orig.Path)
	candidate.RawQuery = ""

	if m.prober.Available(ctx, probe.Request{URL: candidate.String(), Debian: repo.Debian()}) {
		return candidate.String()
	}
	return defaultURL
}

// AddChannel materializes the channel with the given label from its
// product tree links. The channel must be available: its repository
// needs a usable auth and its parent channel must already exist.
func (m *Manager) AddChannel(ctx context.Context, label string) error {
	ctx = logging.WithChannel(ctx, label)
	log := logging.FromContext(ctx)

	return m.store.Transaction(func(st catalog.Store) error {
		links := st.LinksForChannel(label)
		if len(links) == 0 {
			return errors.NewNotFoundError("channel", label)
		}
		if _, ok := st.Channel(label); ok {
			log.Debug().Msg("Channel already added")
			return nil
		}

		link := links[0]
		product, ok := st.Product(link.ProductID)
		if !ok {
			return errors.NewIntegrityError("channel", label, "link references unknown product")
		}

		if !newAvailabilityResolver(st).available(link.RootProductID, link.ProductID) {
			return &errors.ChannelNotAvailableError{
				Label:  label,
				Reason: "mandatory repositories are not accessible with the stored credentials",
			}
		}
		if link.ParentChannelLabel != "" {
			if _, ok := st.Channel(link.ParentChannelLabel); !ok {
				return &errors.ChannelNotAvailableError{
					Label:  label,
					Reason: "parent channel " + link.ParentChannelLabel + " has not been added",
				}
			}
		}
		best, ok := st.BestAuth(link.RepositoryID)
		if !ok {
			return &errors.ChannelNotAvailableError{
				Label:  label,
				Reason: "no usable repository auth",
			}
		}

		ch := &catalog.Channel{Label: label}
		applyLink(ch, link, product)
		if repo, ok := st.Repository(link.RepositoryID); ok {
			ch.InstallerUpdates = repo.InstallerUpdates
		}
		ensureFamily(st, ch.FamilyLabel)
		st.SaveChannel(ch)

		for _, l := range links {
			st.SaveProductChannel(&catalog.ProductChannel{
				ProductID:    l.ProductID,
				ChannelLabel: label,
				Mandatory:    l.Mandatory,
			})
		}

		best.ContentSourceLabel = label
		st.SaveAuth(best)
		m.refreshContentSource(ctx, st, label, best)

		log.Info().Msg("Channel added")
		m.regen.ChannelsChanged(ctx, []string{label})
		return nil
	})
}

// RemoveChannel deletes a locally added channel together with its
// product joins and content source. The product tree links stay, so the
// channel can be added again later. Channels with synced children must
// keep their place in the hierarchy and are refused.
func (m *Manager) RemoveChannel(ctx context.Context, label string) error {
	ctx = logging.WithChannel(ctx, label)
	log := logging.FromContext(ctx)

	return m.store.Transaction(func(st catalog.Store) error {
		if _, ok := st.Channel(label); !ok {
			return errors.NewNotFoundError("channel", label)
		}
		for _, ch := range st.Channels() {
			if ch.ParentChannelLabel == label {
				return &errors.ValidationError{
					Field:   "label",
					Value:   label,
					Message: "channel " + ch.Label + " depends on it, remove children first",
				}
			}
		}

		for _, a := range st.Auths() {
			if a.ContentSourceLabel == label {
				a.ContentSourceLabel = ""
				st.SaveAuth(a)
			}
		}
		st.DeleteContentSource(label)
		st.DeleteProductChannels(label)
		st.DeleteChannel(label)

		log.Info().Msg("Channel removed")
		m.regen.ChannelsChanged(ctx, []string{label})
		return nil
	})
}

// ChannelStatus describes one channel of the read model.
type ChannelStatus string

// Channel states reported by ListChannels.
const (
	ChannelSynced      ChannelStatus = "synced"
	ChannelAvailable   ChannelStatus = "available"
	ChannelUnavailable ChannelStatus = "unavailable"
)

// ChannelInfo is one row of the channel listing.
type ChannelInfo struct {
	Label       string
	Name        string
	ParentLabel string
	Status      ChannelStatus
}

// ListChannels returns every channel known to the product tree with its
// local state.
func (m *Manager) ListChannels(_ context.Context) ([]ChannelInfo, error) {
	var out []ChannelInfo
	err := m.store.Transaction(func(st catalog.Store) error {
		resolver := newAvailabilityResolver(st)
		seen := make(map[string]bool)
		for _, l := range st.Links() {
			if seen[l.ChannelLabel] {
				continue
			}
			seen[l.ChannelLabel] = true

			info := ChannelInfo{
				Label:       l.ChannelLabel,
				Name:        l.ChannelName,
				ParentLabel: l.ParentChannelLabel,
				Status:      ChannelUnavailable,
			}
			if _, ok := st.Channel(l.ChannelLabel); ok {
				info.Status = ChannelSynced
			} else if resolver.availableInTree(l.RootProductID, l.ProductID) {
				info.Status = ChannelAvailable
			}
			out = append(out, info)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Label < out[j].Label })
	return out, nil
}
