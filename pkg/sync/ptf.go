package sync

import (
	"context"
	"strings"

	"github.com/agentstation/contentsync/pkg/catalog"
	"github.com/agentstation/contentsync/pkg/logging"
	"github.com/agentstation/contentsync/pkg/scc"
)

// ptfGPGKeyURL is the signing key shipped with every installation; PTF
// content is always signed with it.
const ptfGPGKeyURL = "file:///usr/lib/rpm/gnupg/keys/suse_ptf_key.asc"

// ptfInfo is one parsed PTF repository URL.
type ptfInfo struct {
	account string
	product string
	version string
	arch    string
	test    bool
}

// parsePTFURL parses the fixed PTF path grammar
// /PTF/Release/<account>/<product>/<version>/<arch>/<ptf|test>.
// Debian repositories encode the architecture as "amd64"; products use
// "amd64-deb" for the same thing.
func parsePTFURL(rawURL string) (ptfInfo, bool) {
	idx := strings.Index(rawURL, "/PTF/Release/")
	if idx < 0 {
		return ptfInfo{}, false
	}
	rest := strings.Trim(rawURL[idx+len("/PTF/Release/"):], "/")
	parts := strings.Split(rest, "/")
	if len(parts) != 5 {
		return ptfInfo{}, false
	}

	info := ptfInfo{
		account: parts[0],
		product: strings.ToLower(parts[1]),
		version: strings.ToLower(parts[2]),
		arch:    parts[3],
	}
	switch parts[4] {
	case "ptf":
	case "test":
		info.test = true
	default:
		return ptfInfo{}, false
	}
	if info.arch == "amd64" {
		info.arch = "amd64-deb"
	}
	return info, true
}

// channelSuffix returns the channel name suffix of the PTF type.
func (i ptfInfo) channelSuffix() string {
	if i.test {
		return "TEST"
	}
	return "PTFs"
}

// generatePTFLinks synthesizes product repository links for PTF
// repositories. PTF content is produced continuously and never appears
// in the curated product tree, so its channels are derived from the URL
// grammar instead.
func (m *Manager) generatePTFLinks(ctx context.Context, st catalog.Store, records []scc.RepositoryRecord) error {
	log := logging.FromContext(ctx)

	for _, rec := range records {
		if !rec.PTF() {
			continue
		}
		info, ok := parsePTFURL(rec.URL)
		if !ok {
			log.Warn().Str("url", rec.URL).Msg("Unparseable PTF repository URL")
			continue
		}

		product, ok := findProductByDescriptor(st, info.product, info.version, info.arch)
		if !ok {
			log.Debug().Str("product", info.product).Str("version", info.version).
				Str("arch", info.arch).Msg("No product for PTF repository")
			continue
		}

		if _, ok := st.Repository(rec.ID); !ok {
			st.SaveRepository(&catalog.Repository{
				ID:           rec.ID,
				Name:         rec.Name,
				Description:  rec.Description,
				URL:          rec.URL,
				DistroTarget: rec.DistroTarget,
				Signed:       true,
			})
		}

		for _, rootID := range rootsOfProduct(st, product.ID) {
			parentLabel, ok := rootChannelLabel(st, rootID)
			if !ok {
				continue
			}
			key := catalog.LinkKey{
				RootProductID: rootID,
				ProductID:     product.ID,
				RepositoryID:  rec.ID,
			}
			if _, exists := st.Link(key); exists {
				continue
			}

			name := strings.Join([]string{
				info.account, product.Name, product.Version, info.channelSuffix(), info.arch,
			}, " ")
			st.SaveLink(&catalog.ProductRepositoryLink{
				RootProductID:      rootID,
				ProductID:          product.ID,
				RepositoryID:       rec.ID,
				ChannelLabel:       slugify(name),
				ParentChannelLabel: parentLabel,
				ChannelName:        name,
				Mandatory:          false,
				GPGKeyURL:          ptfGPGKeyURL,
			})
			log.Debug().Str("channel", slugify(name)).Msg("Synthesized PTF channel link")
		}
	}
	return nil
}

// slugify turns a channel name into its label.
func slugify(name string) string {
	return strings.ReplaceAll(strings.ToLower(name), " ", "-")
}

// findProductByDescriptor matches a product by name, version and arch,
// ignoring the release type which PTF URLs do not carry.
func findProductByDescriptor(st catalog.Store, name, version, arch string) (*catalog.Product, bool) {
	for _, p := range st.Products() {
		if p.Name == name && p.Version == version && p.Arch == arch {
			return p, true
		}
	}
	return nil, false
}

// rootsOfProduct lists the root products a product appears under.
func rootsOfProduct(st catalog.Store, productID int64) []int64 {
	seen := make(map[int64]bool)
	var out []int64
	for _, l := range st.Links() {
		if l.ProductID != productID || seen[l.RootProductID] {
			continue
		}
		seen[l.RootProductID] = true
		out = append(out, l.RootProductID)
	}
	return out
}

// rootChannelLabel returns the base channel label of a root product.
func rootChannelLabel(st catalog.Store, rootID int64) (string, bool) {
	for _, l := range st.Links() {
		if l.RootProductID == rootID && l.ProductID == rootID && l.ParentChannelLabel == "" {
			return l.ChannelLabel, true
		}
	}
	return "", false
}
