package scc

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/agentstation/contentsync/pkg/errors"
)

// File names of the offline mirror layout. They match what the mirror
// tooling writes next to the repository content.
const (
	productsFile      = "organizations_products_unscoped.json"
	repositoriesFile  = "organizations_repositories.json"
	subscriptionsFile = "organizations_subscriptions.json"
	ordersFile        = "organizations_orders.json"
	productTreeFile   = "suma/product_tree.json"
)

// DirSource reads catalog data from an offline mirror directory. Fetch
// failures are configuration errors, not retryable transport errors:
// an unreadable mirror means the installation is set up wrong.
type DirSource struct {
	dir string
}

// NewDirSource creates a source reading from the given mirror
// directory. The directory must exist and be readable.
func NewDirSource(dir string) (*DirSource, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, errors.NewConfigError("mirror", fmt.Sprintf("unable to access resource at %q", dir), err)
	}
	if !info.IsDir() {
		return nil, errors.NewConfigError("mirror", fmt.Sprintf("path %q must be a directory", dir), nil)
	}
	return &DirSource{dir: dir}, nil
}

// ListProducts implements Source.
func (d *DirSource) ListProducts(_ context.Context) ([]ProductRecord, error) {
	var out []ProductRecord
	if err := d.readList(productsFile, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListRepositories implements Source.
func (d *DirSource) ListRepositories(_ context.Context) ([]RepositoryRecord, error) {
	var out []RepositoryRecord
	if err := d.readList(repositoriesFile, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListSubscriptions implements Source.
func (d *DirSource) ListSubscriptions(_ context.Context) ([]SubscriptionRecord, error) {
	var out []SubscriptionRecord
	if err := d.readList(subscriptionsFile, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListOrders implements Source.
func (d *DirSource) ListOrders(_ context.Context) ([]OrderRecord, error) {
	var out []OrderRecord
	if err := d.readList(ordersFile, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ProductTree implements Source.
func (d *DirSource) ProductTree(_ context.Context) ([]TreeEdgeRecord, error) {
	var out []TreeEdgeRecord
	if err := d.readList(productTreeFile, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (d *DirSource) readList(name string, v any) error {
	data, err := os.ReadFile(filepath.Join(d.dir, name))
	if err != nil {
		return errors.NewConfigError("mirror", fmt.Sprintf("reading %s", name), err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return errors.NewConfigError("mirror", fmt.Sprintf("decoding %s", name), err)
	}
	return nil
}

// URLToFSPath rewrites a remote repository URL into a file URL below
// the mirror directory. The mapping is deterministic: host and path of
// the remote URL become the local directory, credentials and query
// tokens are dropped. Legacy paths served below "/repo" keep only the
// repository name so mirrors written by older tooling stay usable.
func URLToFSPath(rawURL, repoName, mirrorDir string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "file://" + filepath.Join(mirrorDir, repoName)
	}
	p := u.Path
	if idx := strings.Index(p, "/repo/"); idx >= 0 && strings.Contains(p, "$RCE") {
		p = path.Join("/repo/RCE", repoName)
	}
	return "file://" + filepath.Join(mirrorDir, u.Host, filepath.FromSlash(p))
}

// LoadChannelFamilies reads the static channel family list from a JSON
// file.
func LoadChannelFamilies(file string) ([]ChannelFamilyRecord, error) {
	var out []ChannelFamilyRecord
	if err := readJSONFile(file, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// LoadUpgradePaths reads the static upgrade path list from a JSON file.
func LoadUpgradePaths(file string) ([]UpgradePathRecord, error) {
	var out []UpgradePathRecord
	if err := readJSONFile(file, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// LoadAdditionalProducts reads extra products not served by the catalog
// service from a JSON file.
func LoadAdditionalProducts(file string) ([]ProductRecord, error) {
	var out []ProductRecord
	if err := readJSONFile(file, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// LoadAdditionalRepositories reads extra repositories not served by the
// catalog service from a JSON file.
func LoadAdditionalRepositories(file string) ([]RepositoryRecord, error) {
	var out []RepositoryRecord
	if err := readJSONFile(file, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func readJSONFile(file string, v any) error {
	data, err := os.ReadFile(file)
	if err != nil {
		return errors.NewConfigError("static data", fmt.Sprintf("reading %s", file), err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return errors.NewConfigError("static data", fmt.Sprintf("decoding %s", file), err)
	}
	return nil
}
