package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotFoundError(t *testing.T) {
	err := NewNotFoundError("channel", "sles-pool")
	assert.Equal(t, "channel with ID sles-pool not found", err.Error())
	assert.True(t, IsNotFound(err))
	assert.True(t, IsNotFound(fmt.Errorf("adding channel: %w", err)))
	assert.False(t, IsNotFound(stderrors.New("other")))
}

func TestConfigError(t *testing.T) {
	cause := stderrors.New("permission denied")
	err := NewConfigError("mirror", "reading products file", cause)
	assert.Equal(t, "configuration error in mirror: reading products file", err.Error())
	assert.True(t, IsConfig(err))
	assert.True(t, IsConfig(fmt.Errorf("refresh: %w", err)))
	assert.ErrorIs(t, err, cause)

	bare := NewConfigError("", "no settings", nil)
	assert.Equal(t, "configuration error: no settings", bare.Error())
}

func TestNoCredentialsIsConfig(t *testing.T) {
	err := NewConfigError("credentials", "nothing configured", ErrNoCredentials)
	assert.True(t, IsConfig(err))
	assert.ErrorIs(t, err, ErrNoCredentials)
	assert.True(t, IsConfig(ErrNoCredentials))
}

func TestTransportError(t *testing.T) {
	err := NewTransportError("/connect/organizations/repositories", "org1", 401, nil)
	assert.Contains(t, err.Error(), "status 401")
	assert.True(t, IsTransport(err))
	assert.False(t, IsConfig(err))

	wrapped := fmt.Errorf("listing repositories: %w", err)
	assert.True(t, IsTransport(wrapped))

	var te *TransportError
	require.ErrorAs(t, wrapped, &te)
	assert.Equal(t, "org1", te.Credential)
}

func TestWrapTransport(t *testing.T) {
	assert.NoError(t, WrapTransport("/x", "org1", nil))

	cause := stderrors.New("connection refused")
	err := WrapTransport("/x", "org1", cause)
	assert.True(t, IsTransport(err))
	assert.ErrorIs(t, err, cause)
}

func TestIntegrityError(t *testing.T) {
	err := NewIntegrityError("tree edge", "sles-pool", "unknown product")
	assert.Equal(t, "integrity: tree edge sles-pool: unknown product", err.Error())
	assert.True(t, IsIntegrity(err))
	assert.False(t, IsTransport(err))
}

func TestChannelNotAvailableError(t *testing.T) {
	err := &ChannelNotAvailableError{Label: "sles-pool", Reason: "no authentication"}
	assert.Equal(t, "channel sles-pool is not available: no authentication", err.Error())
	assert.True(t, IsChannelNotAvailable(err))
	assert.True(t, IsChannelNotAvailable(fmt.Errorf("add: %w", err)))
}

func TestSyncError(t *testing.T) {
	cause := stderrors.New("all fetches failed")
	err := &SyncError{Operation: "repositories", Credentials: []string{"org1", "org2"}, Err: cause}
	assert.Contains(t, err.Error(), "org1, org2")
	assert.ErrorIs(t, err, cause)
}
