// SPDX-License-Identifier: MPL-2.0

package component

import (
	"errors"
	"strings"
	"testing"
)

const testHash = "9f86d081884c7d659a2feaa0c55ad015a3bf4f1b2b0b822cd15d6c15b0f00a08"

func TestParseAssetName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		asset    string
		wantName Name
		wantHash Hash
		wantErr  error
	}{
		{name: "web", asset: "web_" + testHash + ".tar", wantName: Web, wantHash: testHash},
		{name: "underscore name", asset: "python_env_" + testHash + ".tar", wantName: PythonEnv, wantHash: testHash},
		{name: "uppercase hash normalized", asset: "src_" + strings.ToUpper(testHash) + ".tar", wantName: Src, wantHash: testHash},
		{name: "not a tar", asset: "checksums.txt", wantErr: ErrNotComponentAsset},
		{name: "no separator", asset: "web.tar", wantErr: ErrNotComponentAsset},
		{name: "trailing separator", asset: "web_.tar", wantErr: ErrNotComponentAsset},
		{name: "gzip is not tar", asset: "web_" + testHash + ".tar.gz", wantErr: ErrNotComponentAsset},
		{name: "unknown component", asset: "models_" + testHash + ".tar", wantErr: ErrUnknownComponent},
		{name: "short hash", asset: "web_abc.tar", wantErr: ErrInvalidHash},
		{name: "non-hex hash", asset: "web_" + strings.Repeat("z", 64) + ".tar", wantErr: ErrInvalidHash},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			name, hash, err := ParseAssetName(tt.asset, All())
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("ParseAssetName(%q) error = %v, want %v", tt.asset, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseAssetName(%q) unexpected error: %v", tt.asset, err)
			}
			if name != tt.wantName || hash != tt.wantHash {
				t.Errorf("ParseAssetName(%q) = (%q, %q), want (%q, %q)", tt.asset, name, hash, tt.wantName, tt.wantHash)
			}
		})
	}
}

func TestParseAssetName_UnknownComponentReportsName(t *testing.T) {
	t.Parallel()

	_, _, err := ParseAssetName("model_weights_"+testHash+".tar", All())
	var unknown *UnknownComponentError
	if !errors.As(err, &unknown) {
		t.Fatalf("expected *UnknownComponentError, got %v", err)
	}
	if unknown.Value != "model_weights" {
		t.Errorf("unknown name = %q, want %q", unknown.Value, "model_weights")
	}
}

func TestParseAssetName_RestrictedKnownSet(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		asset string
		known []Name
		want  string
	}{
		{
			name:  "real component not configured",
			asset: "ffmpeg_" + testHash + ".tar",
			known: []Name{Web, Src},
			want:  `component "ffmpeg" is not managed (managed: web, src)`,
		},
		{
			name:  "name outside the closed set",
			asset: "models_" + testHash + ".tar",
			known: []Name{Web, Src},
			want:  `unknown component "models" (valid: web, src)`,
		},
		{
			name:  "full set",
			asset: "models_" + testHash + ".tar",
			known: All(),
			want:  `unknown component "models" (valid: python_env, src, web, ollama, ffmpeg)`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, _, err := ParseAssetName(tt.asset, tt.known)
			if !errors.Is(err, ErrUnknownComponent) {
				t.Fatalf("expected ErrUnknownComponent, got %v", err)
			}
			if err.Error() != tt.want {
				t.Errorf("Error() = %q, want %q", err.Error(), tt.want)
			}
		})
	}
}

func TestMatchArchive(t *testing.T) {
	t.Parallel()

	name, hash, ok := MatchArchive("python_env_deadbeef.tar", All())
	if !ok || name != PythonEnv || hash != "deadbeef" {
		t.Errorf("MatchArchive = (%q, %q, %v), want (python_env, deadbeef, true)", name, hash, ok)
	}

	for _, file := range []string{"web.tmp", "web_abc.tar.tmp", "web", "other_abc.tar", "web_.tar"} {
		if _, _, ok := MatchArchive(file, All()); ok {
			t.Errorf("MatchArchive(%q) matched, want no match", file)
		}
	}
}

func TestArchiveName(t *testing.T) {
	t.Parallel()

	got := ArchiveName(Ollama, Hash(strings.ToUpper(testHash)))
	want := "ollama_" + testHash + ".tar"
	if got != want {
		t.Errorf("ArchiveName() = %q, want %q", got, want)
	}

	name, hash, err := ParseAssetName(got, All())
	if err != nil || name != Ollama || hash != testHash {
		t.Errorf("ParseAssetName(ArchiveName()) = (%q, %q, %v)", name, hash, err)
	}
}
