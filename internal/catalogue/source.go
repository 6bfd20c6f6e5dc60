package catalogue

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"path"
	"strings"
)

const IndexFile = "index.json"

// FSSource reads the catalogue from a directory holding index.json and the
// item-list files. Index paths such as "/data/candles.json" are resolved
// against that directory.
type FSSource struct {
	FS fs.FS
}

func (s FSSource) Index(ctx context.Context) (Index, error) {
	data, err := fs.ReadFile(s.FS, IndexFile)
	if err != nil {
		return nil, fmt.Errorf("read index: %w", err)
	}
	var ix Index
	if err := json.Unmarshal(data, &ix); err != nil {
		return nil, fmt.Errorf("decode index: %w", err)
	}
	return ix, nil
}

func (s FSSource) Items(ctx context.Context, p string) ([]Item, error) {
	name := strings.TrimPrefix(path.Clean("/"+p), "/")
	name = strings.TrimPrefix(name, "data/")
	if !fs.ValidPath(name) {
		return nil, fmt.Errorf("invalid item path %q", p)
	}
	data, err := fs.ReadFile(s.FS, name)
	if err != nil {
		return nil, fmt.Errorf("read items: %w", err)
	}
	items, err := DecodeItems(data)
	if err != nil {
		return nil, fmt.Errorf("decode items %s: %w", name, err)
	}
	return items, nil
}

// HTTPSource fetches the catalogue from a static host. The index lives at
// BaseURL + IndexPath and item paths are appended to BaseURL.
type HTTPSource struct {
	BaseURL   string
	IndexPath string
	Client    *http.Client
}

func (s HTTPSource) Index(ctx context.Context) (Index, error) {
	p := s.IndexPath
	if p == "" {
		p = "/data/" + IndexFile
	}
	data, err := s.get(ctx, p)
	if err != nil {
		return nil, err
	}
	var ix Index
	if err := json.Unmarshal(data, &ix); err != nil {
		return nil, fmt.Errorf("decode index: %w", err)
	}
	return ix, nil
}

func (s HTTPSource) Items(ctx context.Context, p string) ([]Item, error) {
	data, err := s.get(ctx, p)
	if err != nil {
		return nil, err
	}
	items, err := DecodeItems(data)
	if err != nil {
		return nil, fmt.Errorf("decode items %s: %w", p, err)
	}
	return items, nil
}

func (s HTTPSource) get(ctx context.Context, p string) ([]byte, error) {
	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	url := strings.TrimRight(s.BaseURL, "/") + "/" + strings.TrimLeft(p, "/")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("GET %s: status %d", url, resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, 8<<20))
}
