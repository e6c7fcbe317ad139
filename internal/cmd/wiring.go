package cmd

import (
	"github.com/agentstation/contentsync/internal/config"
	"github.com/agentstation/contentsync/pkg/catalog"
	"github.com/agentstation/contentsync/pkg/catalog/memory"
	"github.com/agentstation/contentsync/pkg/scc"
	"github.com/agentstation/contentsync/pkg/sync"
)

// newManager wires a reconciliation engine from the current
// configuration: store, source factory, identity and static data.
func newManager() (*sync.Manager, error) {
	store := memory.New()

	creds, err := config.Credentials()
	if err != nil {
		return nil, err
	}
	for i, c := range creds {
		store.SaveCredential(&catalog.Credential{
			ID:       int64(i + 1),
			Username: c.Username,
			Password: c.Password,
		})
	}

	identity := config.ResolveIdentity()

	var factory sync.SourceFactory
	fromDir := config.FromDir()
	if fromDir != "" {
		dir, err := scc.NewDirSource(fromDir)
		if err != nil {
			return nil, err
		}
		factory = func(*catalog.Credential) (scc.Source, error) { return dir, nil }
	} else {
		baseURL := config.SCCURL()
		factory = func(c *catalog.Credential) (scc.Source, error) {
			var user, pass string
			if c != nil {
				user, pass = c.Username, c.Password
			}
			return scc.NewClient(baseURL, user, pass, scc.WithIdentity(identity)), nil
		}
	}

	opts := []sync.Option{
		sync.WithFromDir(fromDir),
		sync.WithMirror(config.Mirror()),
		sync.WithTreeTag(config.ProductTreeTag()),
		sync.WithIdentity(identity),
	}
	if file := config.UpgradePathsFile(); file != "" {
		paths, err := scc.LoadUpgradePaths(file)
		if err != nil {
			return nil, err
		}
		opts = append(opts, sync.WithUpgradePaths(paths))
	}
	if file := config.AdditionalProductsFile(); file != "" {
		products, err := scc.LoadAdditionalProducts(file)
		if err != nil {
			return nil, err
		}
		opts = append(opts, sync.WithAdditionalProducts(products))
	}
	if file := config.AdditionalRepositoriesFile(); file != "" {
		repos, err := scc.LoadAdditionalRepositories(file)
		if err != nil {
			return nil, err
		}
		opts = append(opts, sync.WithAdditionalRepositories(repos))
	}

	return sync.NewManager(store, factory, opts...), nil
}
