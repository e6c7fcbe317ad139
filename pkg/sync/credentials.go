package sync

import (
	"sort"

	"github.com/agentstation/contentsync/pkg/catalog"
	"github.com/agentstation/contentsync/pkg/errors"
)

// filterCredentials returns the credentials driving a sync pass. In
// offline mode the result is a single nil credential, the sentinel
// understood everywhere downstream. Online mode requires at least one
// stored credential.
func (m *Manager) filterCredentials() ([]*catalog.Credential, error) {
	if m.offline() {
		return []*catalog.Credential{nil}, nil
	}

	creds := m.store.Credentials()
	if len(creds) == 0 {
		return nil, errors.NewConfigError("credentials",
			"no organization credentials configured and no offline mirror set",
			errors.ErrNoCredentials)
	}
	sort.Slice(creds, func(i, j int) bool { return creds[i].ID < creds[j].ID })
	return creds, nil
}
