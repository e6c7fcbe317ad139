package sync

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/agentstation/contentsync/pkg/catalog"
	"github.com/agentstation/contentsync/pkg/errors"
	"github.com/agentstation/contentsync/pkg/logging"
	"github.com/agentstation/contentsync/pkg/probe"
	"github.com/agentstation/contentsync/pkg/scc"
)

// tokenPattern matches a bare trailing query token: a query string with
// no key-value pairs, as used for token-gated repositories.
var tokenPattern = regexp.MustCompile(`/?\?([^?&=]+)$`)

// urlToken extracts the access token of a token-gated repository URL.
func urlToken(rawURL string) (string, bool) {
	matches := tokenPattern.FindStringSubmatch(rawURL)
	if matches == nil {
		return "", false
	}
	return matches[1], true
}

// freeFamilyPrefixes name the channel family label prefixes whose
// content is free for everyone holding any valid credential. Members
// are never probed.
var freeFamilyPrefixes = []string{"SLE-M-T", "OPENSUSE"}

func freeFamily(label string) bool {
	for _, p := range freeFamilyPrefixes {
		if strings.HasPrefix(label, p) {
			return true
		}
	}
	return false
}

// RefreshRepositories fetches the repository list for every credential,
// upserts repository rows and reconciles the per-credential auth
// records, then repairs content source links against the new best auth
// of every repository.
func (m *Manager) RefreshRepositories(ctx context.Context) error {
	log := logging.FromContext(ctx)

	creds, err := m.filterCredentials()
	if err != nil {
		return err
	}

	if err := m.store.Transaction(func(st catalog.Store) error {
		return deleteRevokedCredentialAuths(ctx, st, creds)
	}); err != nil {
		return err
	}

	var failed []string
	for _, cred := range creds {
		clog := logging.WithCredential(ctx, credentialName(cred))
		source, err := m.sources(cred)
		if err != nil {
			return err
		}

		records, err := source.ListRepositories(clog)
		if err != nil {
			if errors.IsConfig(err) {
				return err
			}
			// the credential may belong to the legacy vendor family
			// only, in which case the repository listing is expected to
			// fail and the family pass below covers it
			if m.probeOES(clog, cred) {
				logging.FromContext(clog).Info().
					Msg("Credential has legacy family access only, skipping repository listing")
				if terr := m.store.Transaction(func(st catalog.Store) error {
					return m.refreshOESAuth(clog, st, cred)
				}); terr != nil {
					return terr
				}
				continue
			}
			logging.FromContext(clog).Error().Err(err).
				Msg("Repository listing failed for credential")
			failed = append(failed, credentialName(cred))
			continue
		}
		records = append(records, m.additionalRepos...)

		if err := m.store.Transaction(func(st catalog.Store) error {
			upsertRepositories(st, records)
			if err := m.refreshAuths(clog, st, cred, records); err != nil {
				return err
			}
			return m.refreshOESAuth(clog, st, cred)
		}); err != nil {
			return err
		}
	}

	if len(failed) == len(creds) && len(creds) > 0 {
		return errors.WrapTransport("repository listing", strings.Join(failed, ","),
			fmt.Errorf("all credentials failed"))
	}

	return m.store.Transaction(func(st catalog.Store) error {
		if err := applyLegacyFixes(ctx, st); err != nil {
			return err
		}
		m.linkContentSources(ctx, st)
		log.Debug().Msg("Repository auth refresh complete")
		return nil
	})
}

// upsertRepositories merges fetched repository rows into the store.
// The signed flag is owned by the product tree and left untouched here.
func upsertRepositories(st catalog.Store, records []scc.RepositoryRecord) {
	for _, rec := range records {
		if rec.URL == "" {
			continue
		}
		repo, ok := st.Repository(rec.ID)
		if !ok {
			repo = &catalog.Repository{ID: rec.ID}
		}
		repo.Name = rec.Name
		repo.Description = rec.Description
		repo.URL = rec.URL
		repo.DistroTarget = rec.DistroTarget
		repo.InstallerUpdates = rec.InstallerUpdates
		st.SaveRepository(repo)
	}
}

// refreshAuths reconciles the auth records of one credential against
// the repository list it fetched.
func (m *Manager) refreshAuths(ctx context.Context, st catalog.Store, cred *catalog.Credential, records []scc.RepositoryRecord) error {
	log := logging.FromContext(ctx)

	families := repoFamilies(st)
	inTree := repoTreeMembership(st)

	if err := m.generatePTFLinks(ctx, st, records); err != nil {
		return err
	}

	seen := make(map[int64]bool, len(records))
	for _, rec := range records {
		if rec.URL == "" {
			continue
		}
		repo, ok := st.Repository(rec.ID)
		if !ok {
			continue
		}

		method, authURL, ok := m.classifyAuth(ctx, cred, repo, rec.URL, families[repo.ID], inTree[repo.ID])
		if !ok {
			deleteCredentialAuth(st, cred, repo.ID)
			continue
		}
		seen[repo.ID] = true
		m.upsertAuth(ctx, st, cred, repo.ID, method, authURL)
	}

	// revocation: auth records of this credential for repositories the
	// service no longer lists
	for _, a := range st.Auths() {
		if !catalog.SameCredential(a.CredentialID, cred) || seen[a.RepositoryID] {
			continue
		}
		if isOESRepository(st, a.RepositoryID) {
			continue
		}
		log.Debug().Int64("repository", a.RepositoryID).
			Msg("Deleting revoked repository auth")
		st.DeleteAuth(a.ID)
	}
	return nil
}

// classifyAuth infers the auth method of one (repository, credential)
// pair. The precedence order short-circuits on the first match: URL
// token, orphan skip, free family, anonymous probe, basic auth probe.
func (m *Manager) classifyAuth(ctx context.Context, cred *catalog.Credential, repo *catalog.Repository, rawURL string, familyLabels map[string]bool, inTree bool) (catalog.AuthMethod, string, bool) {
	if m.offline() {
		local := scc.URLToFSPath(rawURL, repo.Name, m.fromDir)
		if !m.prober.Available(ctx, probe.Request{URL: local, Debian: repo.Debian()}) {
			return nil, "", false
		}
		return catalog.NoAuth{}, local, true
	}

	if token, ok := urlToken(rawURL); ok {
		return catalog.TokenAuth{Token: token}, rawURL, true
	}

	if !inTree {
		// without product context there is nothing to classify against
		return nil, "", false
	}

	if cred != nil {
		for label := range familyLabels {
			if freeFamily(label) {
				return catalog.NoAuth{}, rawURL, true
			}
		}
	}

	req := probe.Request{URL: rawURL, Debian: repo.Debian()}
	if m.prober.Available(ctx, req) {
		return catalog.NoAuth{}, rawURL, true
	}
	if cred != nil {
		req.Username = cred.Username
		req.Password = cred.Password
		if m.prober.Available(ctx, req) {
			return catalog.BasicAuth{}, rawURL, true
		}
	}
	return nil, "", false
}

// upsertAuth stores the inferred auth for one (repository, credential)
// pair. A token value change updates the existing record in place and
// refreshes a linked content source; an auth class change replaces the
// record. Duplicate records per pair are repaired down to one.
func (m *Manager) upsertAuth(ctx context.Context, st catalog.Store, cred *catalog.Credential, repoID int64, method catalog.AuthMethod, authURL string) {
	log := logging.FromContext(ctx)

	var existing []*catalog.RepositoryAuth
	for _, a := range st.AuthsForRepository(repoID) {
		if catalog.SameCredential(a.CredentialID, cred) {
			existing = append(existing, a)
		}
	}
	for _, extra := range existing[min(len(existing), 1):] {
		log.Error().Int64("repository", repoID).Int64("auth", extra.ID).
			Msg("Duplicate repository auth record, deleting")
		st.DeleteAuth(extra.ID)
	}

	if len(existing) > 0 {
		a := existing[0]
		if catalog.SameMethod(a.Method, method) {
			if a.Method != method || a.URL != authURL {
				a.Method = method
				a.URL = authURL
				st.SaveAuth(a)
				if a.ContentSourceLabel != "" {
					m.refreshContentSource(ctx, st, a.ContentSourceLabel, a)
				}
			}
			return
		}
		st.DeleteAuth(a.ID)
	}

	st.SaveAuth(&catalog.RepositoryAuth{
		RepositoryID: repoID,
		CredentialID: catalog.CredentialID(cred),
		Method:       method,
		URL:          authURL,
	})
}

// deleteCredentialAuth removes the auth record of one credential on one
// repository, if present.
func deleteCredentialAuth(st catalog.Store, cred *catalog.Credential, repoID int64) {
	for _, a := range st.AuthsForRepository(repoID) {
		if catalog.SameCredential(a.CredentialID, cred) {
			st.DeleteAuth(a.ID)
		}
	}
}

// deleteRevokedCredentialAuths removes auth records owned by
// credentials that no longer exist.
func deleteRevokedCredentialAuths(ctx context.Context, st catalog.Store, creds []*catalog.Credential) error {
	log := logging.FromContext(ctx)
	known := make(map[int64]bool, len(creds))
	offline := false
	for _, c := range creds {
		if c == nil {
			offline = true
			continue
		}
		known[c.ID] = true
	}
	for _, a := range st.Auths() {
		if a.CredentialID == nil {
			if offline {
				continue
			}
		} else if known[*a.CredentialID] {
			continue
		}
		log.Debug().Int64("auth", a.ID).Int64("repository", a.RepositoryID).
			Msg("Deleting auth of removed credential")
		st.DeleteAuth(a.ID)
	}
	return nil
}

// repoFamilies maps repository ID to the channel family labels of the
// products linked to it.
func repoFamilies(st catalog.Store) map[int64]map[string]bool {
	out := make(map[int64]map[string]bool)
	for _, l := range st.Links() {
		p, ok := st.Product(l.ProductID)
		if !ok || p.FamilyLabel == "" {
			continue
		}
		if out[l.RepositoryID] == nil {
			out[l.RepositoryID] = make(map[string]bool)
		}
		out[l.RepositoryID][p.FamilyLabel] = true
	}
	return out
}

// repoTreeMembership maps repository ID to whether any tree link
// references it.
func repoTreeMembership(st catalog.Store) map[int64]bool {
	out := make(map[int64]bool)
	for _, l := range st.Links() {
		out[l.RepositoryID] = true
	}
	return out
}

func credentialName(c *catalog.Credential) string {
	if c == nil {
		return "mirror"
	}
	return c.Username
}

// The legacy vendor family bundles identical entitlement across all its
// repositories, so reachability of one representative URL stands in for
// the whole family.
const (
	oesFamilyLabel = "OES2"
	oesCheckURL    = "https://nu.novell.com/repo/$RCE/OES11-SP2-Pool/sle-11-x86_64/"
)

// probeOES reports whether the credential can reach the legacy family.
func (m *Manager) probeOES(ctx context.Context, cred *catalog.Credential) bool {
	if cred == nil {
		return false
	}
	return m.prober.Available(ctx, probe.Request{
		URL:      oesCheckURL,
		Username: cred.Username,
		Password: cred.Password,
	})
}

// refreshOESAuth applies the all-or-nothing legacy family rule: if the
// representative URL answers for the credential, every repository of
// the family gets a basic auth record; otherwise the credential's
// records on the family are removed.
func (m *Manager) refreshOESAuth(ctx context.Context, st catalog.Store, cred *catalog.Credential) error {
	if cred == nil {
		return nil
	}
	log := logging.FromContext(ctx)

	repoIDs := oesRepositoryIDs(st)
	if len(repoIDs) == 0 {
		return nil
	}

	if !m.probeOES(ctx, cred) {
		for _, id := range repoIDs {
			deleteCredentialAuth(st, cred, id)
		}
		return nil
	}

	log.Debug().Int("repositories", len(repoIDs)).
		Msg("Granting legacy family access")
	for _, id := range repoIDs {
		repo, ok := st.Repository(id)
		if !ok {
			continue
		}
		m.upsertAuth(ctx, st, cred, id, catalog.BasicAuth{}, repo.URL)
	}
	return nil
}

// oesRepositoryIDs lists the repositories linked to products of the
// legacy family.
func oesRepositoryIDs(st catalog.Store) []int64 {
	seen := make(map[int64]bool)
	var out []int64
	for _, l := range st.Links() {
		p, ok := st.Product(l.ProductID)
		if !ok || p.FamilyLabel != oesFamilyLabel || seen[l.RepositoryID] {
			continue
		}
		seen[l.RepositoryID] = true
		out = append(out, l.RepositoryID)
	}
	return out
}

func isOESRepository(st catalog.Store, repoID int64) bool {
	for _, l := range st.Links() {
		if l.RepositoryID != repoID {
			continue
		}
		if p, ok := st.Product(l.ProductID); ok && p.FamilyLabel == oesFamilyLabel {
			return true
		}
	}
	return false
}
