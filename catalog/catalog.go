// Package catalog manages the board's clip collection: a TOML document or a
// plain directory of audio files, searchable and hot-reloadable.
package catalog

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode"

	"github.com/BurntSushi/toml"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"clipdeck/playback"
)

// Clip is one catalog entry. Exactly one of File and URL locates its audio:
// File is resolved against the catalog directory, URL is used as-is.
type Clip struct {
	Key   string   `toml:"key"`
	Title string   `toml:"title,omitempty"`
	File  string   `toml:"file,omitempty"`
	URL   string   `toml:"url,omitempty"`
	Tags  []string `toml:"tags,omitempty"`
}

// Source returns the playable location of the clip's audio.
func (c Clip) Source() string {
	if c.URL != "" {
		return c.URL
	}
	return c.File
}

// PlaybackClip adapts the entry for the playback manager.
func (c Clip) PlaybackClip() playback.Clip {
	return playback.Clip{Key: c.Key, URL: c.Source()}
}

// matches reports whether the already-folded query hits the clip's key,
// title or tags.
func (c Clip) matches(query string) bool {
	if strings.Contains(fold(c.Key), query) || strings.Contains(fold(c.Title), query) {
		return true
	}
	for _, tag := range c.Tags {
		if strings.Contains(fold(tag), query) {
			return true
		}
	}
	return false
}

// document is the on-disk shape of a catalog file.
type document struct {
	Clips []Clip `toml:"clips"`
}

// Catalog is an ordered, searchable set of clips with unique keys.
type Catalog struct {
	clips []Clip
	byKey map[string]int
}

// Open loads a catalog from path: a TOML document, or a directory whose
// audio files become the clips.
func Open(path string) (*Catalog, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog: %w", err)
	}
	if info.IsDir() {
		return LoadDir(path)
	}
	return Load(path)
}

// Load reads a catalog document. Relative file entries are resolved against
// the document's directory.
func Load(path string) (*Catalog, error) {
	var doc document
	if _, err := toml.DecodeFile(path, &doc); err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}
	return build(filepath.Dir(path), doc.Clips)
}

// LoadDir builds a catalog from the audio files in dir, keyed and titled by
// their base names.
func LoadDir(dir string) (*Catalog, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog directory: %w", err)
	}

	var clips []Clip
	for _, entry := range entries {
		if entry.IsDir() || !IsAudioFile(entry.Name()) {
			continue
		}
		key := strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))
		clips = append(clips, Clip{Key: key, File: entry.Name()})
	}
	sort.Slice(clips, func(i, j int) bool { return clips[i].Key < clips[j].Key })
	return build(dir, clips)
}

// IsAudioFile reports whether name carries a decodable audio extension.
func IsAudioFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".mp3", ".wav", ".ogg", ".oga", ".flac":
		return true
	}
	return false
}

// build validates entries and assembles the catalog. File entries are
// resolved against dir here, so a clip's Source is playable as returned.
func build(dir string, clips []Clip) (*Catalog, error) {
	c := &Catalog{byKey: make(map[string]int, len(clips))}
	for i, clip := range clips {
		if clip.Key == "" {
			return nil, fmt.Errorf("clip %d: %w", i+1, ErrMissingKey)
		}
		if clip.File == "" && clip.URL == "" {
			return nil, fmt.Errorf("clip %q: %w", clip.Key, ErrMissingSource)
		}
		if clip.File != "" && clip.URL != "" {
			return nil, fmt.Errorf("clip %q: %w", clip.Key, ErrAmbiguousSource)
		}
		if _, exists := c.byKey[clip.Key]; exists {
			return nil, fmt.Errorf("clip %q: %w", clip.Key, ErrDuplicateKey)
		}
		if clip.Title == "" {
			clip.Title = clip.Key
		}
		if clip.File != "" && !filepath.IsAbs(clip.File) {
			clip.File = filepath.Join(dir, clip.File)
		}
		c.byKey[clip.Key] = len(c.clips)
		c.clips = append(c.clips, clip)
	}
	return c, nil
}

// Clips returns all entries in catalog order.
func (c *Catalog) Clips() []Clip {
	out := make([]Clip, len(c.clips))
	copy(out, c.clips)
	return out
}

// Get returns the clip named key.
func (c *Catalog) Get(key string) (Clip, bool) {
	i, ok := c.byKey[key]
	if !ok {
		return Clip{}, false
	}
	return c.clips[i], true
}

// Len returns the number of clips.
func (c *Catalog) Len() int {
	return len(c.clips)
}

// Sources returns the audio location of every clip, in catalog order.
func (c *Catalog) Sources() []string {
	out := make([]string, len(c.clips))
	for i, clip := range c.clips {
		out[i] = clip.Source()
	}
	return out
}

// Search returns the clips matching query over keys, titles and tags,
// compared case- and accent-insensitively. An empty query matches
// everything.
func (c *Catalog) Search(query string) []Clip {
	q := fold(strings.TrimSpace(query))
	if q == "" {
		return c.Clips()
	}
	var out []Clip
	for _, clip := range c.clips {
		if clip.matches(q) {
			out = append(out, clip)
		}
	}
	return out
}

// fold lowers the string and strips diacritics, so "Pokémon" matches
// "pokemon".
func fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	return strings.ToLower(folded)
}
