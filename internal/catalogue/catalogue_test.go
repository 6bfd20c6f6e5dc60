package catalogue

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLabel(t *testing.T) {
	assert.Equal(t, "SCENTED CANDLES", Label("scented_candles"))
	assert.Equal(t, "GIFTS", Label("gifts"))
}

func TestDecodeItemsNormalizes(t *testing.T) {
	items, err := DecodeItems([]byte(`[
		{"name":"A","price":12.5,"images":["/a1.jpg","/a2.jpg"],"image":"/fallback.jpg"},
		{"name":"B","price":"7","image":"/b.jpg"},
		{"name":"C","description":"no price","images":[]},
		{"name":"D","price":"on request"}
	]`))
	require.NoError(t, err)
	require.Len(t, items, 4)

	assert.Equal(t, Item{Name: "A", Image: "/a1.jpg", Price: "12.50"}, items[0])
	assert.Equal(t, Item{Name: "B", Image: "/b.jpg", Price: "7.00"}, items[1])
	assert.Equal(t, Item{Name: "C", Description: "no price"}, items[2])
	assert.Equal(t, "on request", items[3].Price)
}

func TestFSSource(t *testing.T) {
	src := FSSource{FS: fstest.MapFS{
		"index.json":   {Data: []byte(`{"candles":"/data/candles.json"}`)},
		"candles.json": {Data: []byte(`[{"name":"Lavender","price":12}]`)},
	}}
	ix, err := src.Index(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Index{"candles": "/data/candles.json"}, ix)

	items, err := CategoryItems(context.Background(), src, "candles")
	require.NoError(t, err)
	assert.Equal(t, []Item{{Name: "Lavender", Price: "12.00"}}, items)

	_, err = CategoryItems(context.Background(), src, "nope")
	assert.ErrorIs(t, err, ErrUnknownCategory)
}

func TestFSSourceRejectsEscapingPaths(t *testing.T) {
	src := FSSource{FS: fstest.MapFS{"index.json": {Data: []byte(`{}`)}}}
	_, err := src.Items(context.Background(), "/data/../../etc/passwd")
	require.Error(t, err)
}

func TestHTTPSource(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/data/index.json":
			_, _ = w.Write([]byte(`{"a":"/data/a.json","b":"/data/b.json"}`))
		case "/data/a.json":
			_, _ = w.Write([]byte(`[{"name":"Alpha","image":"/alpha.jpg"}]`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	src := HTTPSource{BaseURL: srv.URL, Client: srv.Client()}
	items, err := CategoryItems(context.Background(), src, "a")
	require.NoError(t, err)
	assert.Equal(t, []Item{{Name: "Alpha", Image: "/alpha.jpg"}}, items)

	_, err = CategoryItems(context.Background(), src, "b")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnknownCategory)
}
