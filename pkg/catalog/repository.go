package catalog

// Repository is a locally cached repository row.
type Repository struct {
	ID               int64
	Name             string
	Description      string
	URL              string
	DistroTarget     string // architecture discriminator, "amd64" marks Debian style repos
	Signed           bool
	InstallerUpdates bool
}

// Debian reports whether the repository uses the Debian metadata layout.
func (r *Repository) Debian() bool {
	return r.DistroTarget == "amd64"
}

// AuthMethod is the authentication strategy of a repository for one
// credential. It is a sealed sum type: consumers switch exhaustively
// over NoAuth, BasicAuth and TokenAuth.
type AuthMethod interface {
	authMethod()
	// Rank orders methods for best-auth selection, higher wins.
	Rank() int
}

// NoAuth marks a repository reachable anonymously.
type NoAuth struct{}

// BasicAuth marks a repository reachable with the credential's
// username and password.
type BasicAuth struct{}

// TokenAuth marks a repository reachable with an opaque token carried
// in the URL query.
type TokenAuth struct {
	Token string
}

func (NoAuth) authMethod()    {}
func (BasicAuth) authMethod() {}
func (TokenAuth) authMethod() {}

// Rank implements AuthMethod.
func (NoAuth) Rank() int { return 1 }

// Rank implements AuthMethod.
func (BasicAuth) Rank() int { return 2 }

// Rank implements AuthMethod.
func (TokenAuth) Rank() int { return 3 }

// SameMethod reports whether two auth methods are of the same variant,
// ignoring token values.
func SameMethod(a, b AuthMethod) bool {
	switch a.(type) {
	case NoAuth:
		_, ok := b.(NoAuth)
		return ok
	case BasicAuth:
		_, ok := b.(BasicAuth)
		return ok
	case TokenAuth:
		_, ok := b.(TokenAuth)
		return ok
	default:
		return false
	}
}

// RepositoryAuth records how one repository is accessed with one
// credential. There is at most one auth record per
// (repository, credential) pair; CredentialID is nil in offline mode.
type RepositoryAuth struct {
	ID           int64
	RepositoryID int64
	CredentialID *int64
	Method       AuthMethod

	// URL is the effective content URL for this auth: the repository
	// URL rewritten for offline mode, or carrying the access token.
	URL string

	// ContentSourceLabel links this auth to a local content source,
	// empty when unlinked. At most one auth per repository carries the
	// link at a time.
	ContentSourceLabel string
}

// Credential is a stored organization credential. Offline-mirror mode
// is represented by a nil *Credential everywhere downstream.
type Credential struct {
	ID       int64
	Username string
	Password string
}

// CredentialID returns a pointer to the credential's ID, or nil for the
// offline sentinel.
func CredentialID(c *Credential) *int64 {
	if c == nil {
		return nil
	}
	id := c.ID
	return &id
}

// SameCredential reports whether an auth record belongs to the given
// credential (nil matches the offline sentinel).
func SameCredential(credID *int64, c *Credential) bool {
	if c == nil {
		return credID == nil
	}
	return credID != nil && *credID == c.ID
}
