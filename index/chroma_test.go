package index

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const collectionsPath = "/api/v2/tenants/default_tenant/databases/default_database/collections"

func newFakeChroma(t *testing.T) (*httptest.Server, *int32) {
	var creates int32
	mux := http.NewServeMux()

	mux.HandleFunc(collectionsPath, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&creates, 1)
		var body map[string]interface{}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, true, body["get_or_create"])
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "cid-" + body["name"].(string)})
	})

	mux.HandleFunc(collectionsPath+"/", func(w http.ResponseWriter, r *http.Request) {
		rest := strings.TrimPrefix(r.URL.Path, collectionsPath+"/")
		switch {
		case r.Method == http.MethodGet && rest == "known":
			_ = json.NewEncoder(w).Encode(map[string]string{"id": "cid-known"})
		case r.Method == http.MethodDelete && rest == "known":
			w.WriteHeader(http.StatusOK)
		case r.Method == http.MethodDelete:
			w.WriteHeader(http.StatusNotFound)
		case rest == "cid-internal/add":
			var body struct {
				IDs        []string    `json:"ids"`
				Documents  []string    `json:"documents"`
				Embeddings [][]float64 `json:"embeddings"`
			}
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, []string{"a", "b"}, body.IDs)
			assert.Len(t, body.Embeddings, 2)
			w.WriteHeader(http.StatusCreated)
		case rest == "cid-internal/query":
			_, _ = w.Write([]byte(`{
				"ids": [["a", "b"]],
				"documents": [["Art. 10 - animais permitidos", "Art. 11 - salão"]],
				"metadatas": [[{"source": "convencao.pdf"}, null]],
				"distances": [[0.12, 0.4]]
			}`))
		case rest == "cid-internal/count":
			_, _ = w.Write([]byte(`2`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &creates
}

func TestChromaCollectionLifecycle(t *testing.T) {
	srv, creates := newFakeChroma(t)
	c := NewChroma(srv.URL + "/")
	ctx := context.Background()

	id, err := c.EnsureCollection(ctx, "internal")
	require.NoError(t, err)
	assert.Equal(t, "cid-internal", id)

	_, err = c.EnsureCollection(ctx, "internal")
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(creates))

	err = c.Add(ctx, "internal",
		[]Document{{ID: "a", Content: "x"}, {ID: "b", Content: "y"}},
		[][]float64{{0.1}, {0.2}},
	)
	require.NoError(t, err)

	n, err := c.Count(ctx, "internal")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestChromaSearch(t *testing.T) {
	srv, _ := newFakeChroma(t)
	c := NewChroma(srv.URL)
	ctx := context.Background()
	_, err := c.EnsureCollection(ctx, "internal")
	require.NoError(t, err)

	docs, err := c.Search(ctx, "internal", []float64{0.1, 0.2}, 5)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "Art. 10 - animais permitidos", docs[0].Content)
	assert.Equal(t, "convencao.pdf", docs[0].Source())
	assert.Equal(t, 0.12, docs[0].Metadata["distance"])
	assert.Equal(t, "", docs[1].Source())
}

func TestChromaAddRejectsMismatchedEmbeddings(t *testing.T) {
	c := NewChroma("http://unused")
	err := c.Add(context.Background(), "internal", []Document{{ID: "a"}}, nil)
	assert.Error(t, err)
}

func TestChromaDeleteAndMissingCollections(t *testing.T) {
	srv, _ := newFakeChroma(t)
	c := NewChroma(srv.URL)

	require.NoError(t, c.DeleteCollection(context.Background(), "known"))
	require.NoError(t, c.DeleteCollection(context.Background(), "missing"))

	_, err := c.Count(context.Background(), "unknown")
	assert.ErrorIs(t, err, ErrCollectionNotFound)
}
