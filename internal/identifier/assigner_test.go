package identifier

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssignReusesExistingIdentifier(t *testing.T) {
	a := New("https://ark.example.edu/ark:/", "tok", "https://geo.example.edu/catalog/")

	got, err := a.Assign(context.Background(), "ignored", "47540/ws155d")
	require.NoError(t, err)
	assert.Equal(t, "47540/ws155d", got.Identifier)
	assert.Equal(t, "https://ark.example.edu/ark:/47540/ws155d", got.UUID)
	assert.Equal(t, "47540-ws155d", got.Slug)
}

func TestAssignMintsNewIdentifier(t *testing.T) {
	var posted, registered map[string]any

	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	mux.HandleFunc("POST /", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Token tok", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&posted))
		fmt.Fprintf(w, `{"results":[{"ark":"47540/ws155d","ark-detail":"%s/detail/ws155d","resolve_url":"x","metadata":{"mods":{"identifier":""}}}]}`, srv.URL)
	})
	mux.HandleFunc("PUT /detail/ws155d", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&registered))
		w.WriteHeader(http.StatusOK)
	})

	a := New(srv.URL, "tok", "https://geo.example.edu/catalog/")

	got, err := a.Assign(context.Background(), "Boulder Parcels", "")
	require.NoError(t, err)
	assert.Equal(t, "47540/ws155d", got.Identifier)
	assert.Equal(t, "47540-ws155d", got.Slug)
	assert.Equal(t, srv.URL+"/47540/ws155d", got.UUID)

	// mint request carried the record title
	titleInfo := posted["metadata"].(map[string]any)["mods"].(map[string]any)["titleInfo"].([]any)
	assert.Equal(t, "Boulder Parcels", titleInfo[0].(map[string]any)["title"])

	// registration pointed the identifier at the record's slug
	assert.Equal(t, "https://geo.example.edu/catalog/47540-ws155d", registered["resolve_url"])
	assert.NotContains(t, registered, "ark-detail")
}

func TestAssignSurfacesServiceErrors(t *testing.T) {
	t.Run("mint failure", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, `{"detail":"quota exceeded"}`, http.StatusForbidden)
		}))
		defer srv.Close()

		a := New(srv.URL, "tok", "https://geo.example.edu/catalog/")
		_, err := a.Assign(context.Background(), "t", "")
		require.ErrorIs(t, err, ErrMintingFailed)
		assert.Contains(t, err.Error(), "quota exceeded")
	})

	t.Run("registration failure", func(t *testing.T) {
		mux := http.NewServeMux()
		srv := httptest.NewServer(mux)
		defer srv.Close()

		mux.HandleFunc("POST /", func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprintf(w, `{"results":[{"ark":"47540/x","ark-detail":"%s/detail/x"}]}`, srv.URL)
		})
		mux.HandleFunc("PUT /detail/x", func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "bad registration", http.StatusBadRequest)
		})

		a := New(srv.URL, "tok", "https://geo.example.edu/catalog/")
		_, err := a.Assign(context.Background(), "t", "")
		require.ErrorIs(t, err, ErrMintingFailed)
		assert.Contains(t, err.Error(), "bad registration")
	})
}
