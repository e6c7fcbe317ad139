package scc

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/contentsync/pkg/errors"
)

func TestClientListProducts(t *testing.T) {
	var gotAuth, gotIdentity string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/connect/organizations/products/unscoped", r.URL.Path)
		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		gotAuth = user + ":" + pass
		gotIdentity = r.Header.Get("X-Correlation-Id")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"id": 100, "identifier": "sles", "version": "15.4"}]`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "org1", "secret", WithIdentity("system-1"))
	products, err := c.ListProducts(context.Background())
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "sles", products[0].Identifier)
	assert.Equal(t, "org1:secret", gotAuth)
	assert.Equal(t, "system-1", gotIdentity)
}

func TestClientNon200IsTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "org1", "wrong")
	_, err := c.ListRepositories(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsTransport(err))

	var te *errors.TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, http.StatusUnauthorized, te.StatusCode)
	assert.Equal(t, "org1", te.Credential)
}

func TestClientRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "org1", "secret")
	_, err := c.ListSubscriptions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClientDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "org1", "secret")
	_, err := c.ListOrders(context.Background())
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestClientAnonymousRequest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _, ok := r.BasicAuth()
		assert.False(t, ok, "no credentials means no auth header")
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", "")
	_, err := c.ProductTree(context.Background())
	require.NoError(t, err)
}
