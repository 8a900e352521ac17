// SPDX-License-Identifier: MPL-2.0

package updater

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/nodetool-ai/ntcomp/internal/fetch"
	"github.com/nodetool-ai/ntcomp/internal/registry"
	"github.com/nodetool-ai/ntcomp/internal/testutil"
	"github.com/nodetool-ai/ntcomp/pkg/component"
)

// served is one component published by the test registry.
type served struct {
	name      component.Name
	payload   []byte
	hash      component.Hash // Advertised hash; defaults to the payload digest
	interrupt bool           // Drop the connection mid-body
}

// newRegistryServer serves a latest-release document for items plus their
// download URLs.
func newRegistryServer(t *testing.T, items ...served) *httptest.Server {
	t.Helper()

	byName := make(map[string]served, len(items))
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	type asset struct {
		Name string `json:"name"`
		URL  string `json:"browser_download_url"`
		Size int    `json:"size"`
	}
	var assets []asset
	for _, it := range items {
		if it.hash == "" {
			it.hash = testutil.Digest(it.payload)
		}
		byName[string(it.name)] = it
		assets = append(assets, asset{
			Name: component.ArchiveName(it.name, it.hash),
			URL:  srv.URL + "/dl/" + string(it.name),
			Size: len(it.payload),
		})
	}

	mux.HandleFunc("/repos/nodetool-ai/nodetool/releases/latest", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(map[string]any{"tag_name": "v1.0.0", "assets": assets}); err != nil {
			t.Errorf("encoding release: %v", err)
		}
	})
	mux.HandleFunc("/dl/", func(w http.ResponseWriter, r *http.Request) {
		it, ok := byName[strings.TrimPrefix(r.URL.Path, "/dl/")]
		if !ok {
			http.NotFound(w, r)
			return
		}
		if it.interrupt {
			hj, _ := w.(http.Hijacker)
			conn, buf, err := hj.Hijack()
			if err != nil {
				t.Errorf("hijack: %v", err)
				return
			}
			_, _ = buf.WriteString("HTTP/1.1 200 OK\r\nContent-Length: 1000000\r\n\r\n")
			_, _ = buf.Write(it.payload[:len(it.payload)/2])
			_ = buf.Flush()
			_ = conn.Close()
			return
		}
		_, _ = w.Write(it.payload)
	})

	return srv
}

func newTestUpdater(t *testing.T, srv *httptest.Server, dir string, configure func(*Context)) *Updater {
	t.Helper()

	client := registry.NewGitHubClient("nodetool-ai", "nodetool", registry.WithBaseURL(srv.URL))
	c := Context{
		ComponentsDir: dir,
		Registry:      client,
		Fetcher:       fetch.New(client),
	}
	if configure != nil {
		configure(&c)
	}
	u, err := New(c)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return u
}

// recorder is a concurrency-safe Sink that keeps every event.
type recorder struct {
	mu       sync.Mutex
	boot     []string
	lines    []string
	progress []Progress
	finished []Summary
}

func (r *recorder) BootMessage(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.boot = append(r.boot, msg)
}

func (r *recorder) Log(line string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = append(r.lines, line)
}

func (r *recorder) Progress(p Progress) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.progress = append(r.progress, p)
}

func (r *recorder) Finished(s Summary) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finished = append(r.finished, s)
}
