package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/foliofox/foliofox/pkg/catalog"
)

func TestProbeProwlarrRequiresApiKeyAndBothEndpoints(t *testing.T) {
	var gotKey string
	var hitStatus, hitIndexer bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("X-Api-Key")
		switch r.URL.Path {
		case "/api/v1/system/status":
			hitStatus = true
		case "/api/v1/indexer":
			hitIndexer = true
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	ix := catalog.Indexer{Type: catalog.IndexerProwlarr, BaseURL: server.URL, APIKey: "secret", TimeoutMS: 1000}
	_, err := Probe(context.Background(), ix, server.Client())
	require.NoError(t, err)
	require.True(t, hitStatus)
	require.True(t, hitIndexer)
	require.Equal(t, "secret", gotKey)
}

func TestProbeProwlarrFailsOn500(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	ix := catalog.Indexer{Type: catalog.IndexerProwlarr, BaseURL: server.URL, TimeoutMS: 1000}
	_, err := Probe(context.Background(), ix, server.Client())
	require.Error(t, err)
}

func TestProbeGenericAcceptsRedirectStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusFound) // 302
	}))
	defer server.Close()

	ix := catalog.Indexer{Type: catalog.IndexerGeneric, BaseURL: server.URL, TimeoutMS: 1000}
	_, err := Probe(context.Background(), ix, server.Client())
	require.NoError(t, err)
}

func TestProbeGenericRejectsOtherTwoHundreds(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated) // 201, not in {200,301,302}
	}))
	defer server.Close()

	ix := catalog.Indexer{Type: catalog.IndexerGeneric, BaseURL: server.URL, TimeoutMS: 1000}
	_, err := Probe(context.Background(), ix, server.Client())
	require.Error(t, err)
}
