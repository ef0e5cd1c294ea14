package catalog

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeCatalog(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "clips.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write catalog: %v", err)
	}
	return path
}

const sampleCatalog = `
[[clips]]
key = "airhorn"
title = "Air Horn"
file = "airhorn.mp3"
tags = ["meme", "loud"]

[[clips]]
key = "tada"
url = "https://example.com/se/tada.wav"
`

func TestLoadParsesDocument(t *testing.T) {
	t.Parallel()
	path := writeCatalog(t, sampleCatalog)

	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load() = %v, want nil", err)
	}
	if got := c.Len(); got != 2 {
		t.Fatalf("Len() = %d, want 2", got)
	}

	airhorn, ok := c.Get("airhorn")
	if !ok {
		t.Fatal(`Get("airhorn") not found`)
	}
	if airhorn.Title != "Air Horn" {
		t.Errorf("title = %q, want %q", airhorn.Title, "Air Horn")
	}
	if want := filepath.Join(filepath.Dir(path), "airhorn.mp3"); airhorn.Source() != want {
		t.Errorf("Source() = %q, want file resolved to %q", airhorn.Source(), want)
	}
	if len(airhorn.Tags) != 2 {
		t.Errorf("tags = %v, want 2 entries", airhorn.Tags)
	}

	tada, ok := c.Get("tada")
	if !ok {
		t.Fatal(`Get("tada") not found`)
	}
	if tada.Title != "tada" {
		t.Errorf("title = %q, want key as fallback", tada.Title)
	}
	if tada.Source() != "https://example.com/se/tada.wav" {
		t.Errorf("Source() = %q, want the url untouched", tada.Source())
	}

	pc := tada.PlaybackClip()
	if pc.Key != "tada" || pc.URL != tada.Source() {
		t.Errorf("PlaybackClip() = %+v, want key and source carried over", pc)
	}
}

func TestLoadValidation(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		content string
		wantErr error
	}{
		{
			"missing key",
			"[[clips]]\nfile = \"a.mp3\"\n",
			ErrMissingKey,
		},
		{
			"missing source",
			"[[clips]]\nkey = \"a\"\n",
			ErrMissingSource,
		},
		{
			"both sources",
			"[[clips]]\nkey = \"a\"\nfile = \"a.mp3\"\nurl = \"http://x/a.mp3\"\n",
			ErrAmbiguousSource,
		},
		{
			"duplicate key",
			"[[clips]]\nkey = \"a\"\nfile = \"a.mp3\"\n\n[[clips]]\nkey = \"a\"\nfile = \"b.mp3\"\n",
			ErrDuplicateKey,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			path := writeCatalog(t, tt.content)
			if _, err := Load(path); !errors.Is(err, tt.wantErr) {
				t.Errorf("Load() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadRejectsBadTOML(t *testing.T) {
	t.Parallel()
	path := writeCatalog(t, "[[clips]\nkey=")
	if _, err := Load(path); err == nil {
		t.Error("Load() = nil, want parse error")
	}
}

func TestLoadDirScansAudioFiles(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	for _, name := range []string{"bruh.wav", "Airhorn.MP3", "notes.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatalf("failed to write %s: %v", name, err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "nested"), 0o755); err != nil {
		t.Fatalf("failed to make subdir: %v", err)
	}

	c, err := LoadDir(dir)
	if err != nil {
		t.Fatalf("LoadDir() = %v, want nil", err)
	}
	if got := c.Len(); got != 2 {
		t.Fatalf("Len() = %d, want 2 audio files", got)
	}

	clips := c.Clips()
	if clips[0].Key != "Airhorn" || clips[1].Key != "bruh" {
		t.Errorf("keys = [%q %q], want sorted base names", clips[0].Key, clips[1].Key)
	}
	if want := filepath.Join(dir, "bruh.wav"); clips[1].Source() != want {
		t.Errorf("Source() = %q, want %q", clips[1].Source(), want)
	}
}

func TestOpenDispatchesByType(t *testing.T) {
	t.Parallel()

	path := writeCatalog(t, sampleCatalog)
	fromFile, err := Open(path)
	if err != nil {
		t.Fatalf("Open(file) = %v, want nil", err)
	}
	if fromFile.Len() != 2 {
		t.Errorf("Open(file).Len() = %d, want 2", fromFile.Len())
	}

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.mp3"), []byte("x"), 0o644); err != nil {
		t.Fatalf("failed to write clip: %v", err)
	}
	fromDir, err := Open(dir)
	if err != nil {
		t.Fatalf("Open(dir) = %v, want nil", err)
	}
	if fromDir.Len() != 1 {
		t.Errorf("Open(dir).Len() = %d, want 1", fromDir.Len())
	}

	if _, err := Open(filepath.Join(dir, "missing.toml")); err == nil {
		t.Error("Open(missing) = nil, want error")
	}
}

func TestSearch(t *testing.T) {
	t.Parallel()
	path := writeCatalog(t, `
[[clips]]
key = "pokemon-cry"
title = "Pokémon Cry"
file = "cry.ogg"
tags = ["games"]

[[clips]]
key = "airhorn"
title = "Air Horn"
file = "airhorn.mp3"
tags = ["meme", "LOUD"]

[[clips]]
key = "tada"
file = "tada.wav"
`)
	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load() = %v, want nil", err)
	}

	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{"empty matches all", "", []string{"pokemon-cry", "airhorn", "tada"}},
		{"blank matches all", "   ", []string{"pokemon-cry", "airhorn", "tada"}},
		{"key substring", "horn", []string{"airhorn"}},
		{"title case-insensitive", "air h", []string{"airhorn"}},
		{"accents fold in titles", "pokemon", []string{"pokemon-cry"}},
		{"accented query folds too", "pokémon", []string{"pokemon-cry"}},
		{"tag match ignores case", "loud", []string{"airhorn"}},
		{"no match", "zzz", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Search(tt.query)
			if len(got) != len(tt.want) {
				t.Fatalf("Search(%q) returned %d clips, want %d", tt.query, len(got), len(tt.want))
			}
			for i, clip := range got {
				if clip.Key != tt.want[i] {
					t.Errorf("Search(%q)[%d] = %q, want %q", tt.query, i, clip.Key, tt.want[i])
				}
			}
		})
	}
}

func TestSources(t *testing.T) {
	t.Parallel()
	path := writeCatalog(t, sampleCatalog)
	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load() = %v, want nil", err)
	}

	got := c.Sources()
	if len(got) != 2 {
		t.Fatalf("Sources() returned %d entries, want 2", len(got))
	}
	if got[1] != "https://example.com/se/tada.wav" {
		t.Errorf("Sources()[1] = %q, want the url", got[1])
	}
}
