package metadata

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChain struct {
	uri string
	err error
}

func (f fakeChain) TokenURI(ctx context.Context, agentID string) (string, error) {
	return f.uri, f.err
}

func TestResolveCardReturnsNilForEmptyURI(t *testing.T) {
	r := New(fakeChain{uri: ""}, "", nil)
	card, err := r.ResolveCard(t.Context(), "1")
	require.NoError(t, err)
	assert.Nil(t, card)
}

func TestResolveCardFirstGatewaySucceeds(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"name":"agent-a","description":"d"}`))
	}))
	defer server.Close()

	r := New(fakeChain{uri: "ipfs://Qm123"}, server.URL, []string{"https://unused.example"})
	card, err := r.ResolveCard(t.Context(), "1")
	require.NoError(t, err)
	require.NotNil(t, card)
	assert.Equal(t, "agent-a", card.Name)
}

func TestResolveCardFallsBackToSecondGateway(t *testing.T) {
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer bad.Close()
	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"name":"agent-b"}`))
	}))
	defer good.Close()

	r := New(fakeChain{uri: "ipfs://Qm123"}, bad.URL, []string{good.URL})
	card, err := r.ResolveCard(t.Context(), "1")
	require.NoError(t, err)
	require.NotNil(t, card)
	assert.Equal(t, "agent-b", card.Name)
}

func TestResolveCardSkipsFallbackDuplicatingPrimary(t *testing.T) {
	var primaryHits int
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		primaryHits++
		w.WriteHeader(http.StatusNotFound)
	}))
	defer bad.Close()
	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"name":"agent-c"}`))
	}))
	defer good.Close()

	// The fallback list repeats the primary (with a trailing slash); the
	// cascade must try it once, not twice, before reaching the next one.
	r := New(fakeChain{uri: "ipfs://Qm123"}, bad.URL, []string{bad.URL + "/", good.URL})
	card, err := r.ResolveCard(t.Context(), "1")
	require.NoError(t, err)
	require.NotNil(t, card)
	assert.Equal(t, "agent-c", card.Name)
	assert.Equal(t, 1, primaryHits)
}

func TestResolveCardReturnsNilWhenAllGatewaysFail(t *testing.T) {
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer bad.Close()

	r := New(fakeChain{uri: "ipfs://Qm123"}, bad.URL, []string{bad.URL})
	card, err := r.ResolveCard(t.Context(), "1")
	require.NoError(t, err)
	assert.Nil(t, card)
}

func TestResolveCardPropagatesChainError(t *testing.T) {
	r := New(fakeChain{err: assertErr("boom")}, "", nil)
	_, err := r.ResolveCard(t.Context(), "1")
	require.Error(t, err)
}

type assertErr string

func (e assertErr) Error() string { return string(e) }
