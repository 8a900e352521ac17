// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/nodetool-ai/ntcomp/internal/config"
	"github.com/nodetool-ai/ntcomp/internal/testutil"
	"github.com/nodetool-ai/ntcomp/pkg/component"
	"github.com/nodetool-ai/ntcomp/pkg/types"
)

type (
	// staticConfig is a ConfigProvider returning a fixed configuration.
	staticConfig struct {
		cfg *config.Config
		err error
	}

	// published is one component served by the test registry.
	published struct {
		name    component.Name
		payload []byte
		hash    component.Hash // Advertised hash; defaults to the payload digest
	}
)

func (s staticConfig) Load(context.Context, config.LoadOptions) (*config.Config, error) {
	return s.cfg, s.err
}

// testConfig returns defaults pointed at a fresh store and at baseURL.
func testConfig(t *testing.T, baseURL string) *config.Config {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.ComponentsDir = t.TempDir()
	cfg.Registry.BaseURL = baseURL
	cfg.Registry.TokenEnv = ""
	cfg.Registry.Timeout = 10 * time.Second
	cfg.Download.Timeout = 30 * time.Second
	return cfg
}

// runCLI executes args against a fresh command tree and returns what was
// written to stdout and stderr.
func runCLI(t *testing.T, provider ConfigProvider, args ...string) (stdout, stderr string, err error) {
	t.Helper()

	var outBuf, errBuf bytes.Buffer
	app := NewApp(Dependencies{
		Config: provider,
		Stdout: &outBuf,
		Stderr: &errBuf,
		Getenv: func(string) string { return "" },
	})
	root := NewRootCommand(app)
	root.SetArgs(args)
	root.SetOut(&outBuf)
	root.SetErr(&errBuf)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	err = root.ExecuteContext(ctx)
	return outBuf.String(), errBuf.String(), err
}

func assertExitCode(t *testing.T, err error, want types.ExitCode) {
	t.Helper()

	if want == types.ExitOK {
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		return
	}
	var exitErr *ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("error = %v, want *ExitError with code %d", err, want)
	}
	if exitErr.Code != want {
		t.Fatalf("exit code = %d, want %d (err: %v)", exitErr.Code, want, exitErr.Err)
	}
}

// newRegistry serves a latest-release document listing items and their
// downloads, in the order given.
func newRegistry(t *testing.T, items ...published) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	payloads := make(map[string][]byte, len(items))
	assets := make([]map[string]any, 0, len(items))
	for _, it := range items {
		if it.hash == "" {
			it.hash = testutil.Digest(it.payload)
		}
		payloads[string(it.name)] = it.payload
		assets = append(assets, map[string]any{
			"name":                 component.ArchiveName(it.name, it.hash),
			"browser_download_url": srv.URL + "/dl/" + string(it.name),
			"size":                 len(it.payload),
		})
	}

	mux.HandleFunc("/repos/nodetool-ai/nodetool/releases/latest", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(map[string]any{"tag_name": "v0.6.3", "assets": assets}); err != nil {
			t.Errorf("encoding release: %v", err)
		}
	})
	mux.HandleFunc("/dl/", func(w http.ResponseWriter, r *http.Request) {
		body, ok := payloads[strings.TrimPrefix(r.URL.Path, "/dl/")]
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(body)
	})
	return srv
}

// newFailingRegistry answers every request with status and headers.
func newFailingRegistry(t *testing.T, status int, headers map[string]string) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		for k, v := range headers {
			w.Header().Set(k, v)
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"message":"unavailable"}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func tarball(t *testing.T, name component.Name) []byte {
	t.Helper()
	return testutil.Tar(t, map[string]string{"VERSION": string(name) + "-1"})
}
