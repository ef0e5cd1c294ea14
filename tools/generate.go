// Generates a demo catalog of synthesized clips so the board can be tried
// without shipping real samples. Run from the repository root:
//
//	go run ./tools
//	clipdeck --catalog assets/clips.toml
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/BurntSushi/toml"
	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
	"github.com/gopxl/beep/v2/generators"
	"github.com/gopxl/beep/v2/wav"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"clipdeck/catalog"
)

const outDir = "assets"

const sampleRate = beep.SampleRate(44100)

type clipSpec struct {
	title  string
	tags   []string
	stream func() (beep.Streamer, error)
}

func main() {
	specs := []clipSpec{
		{"Beep", []string{"tone"}, func() (beep.Streamer, error) {
			return tone(440, 400*time.Millisecond)
		}},
		{"Boop", []string{"tone"}, func() (beep.Streamer, error) {
			return tone(220, 400*time.Millisecond)
		}},
		{"Alarm", []string{"alert", "loop"}, alarm},
		{"Major Chord", []string{"tone", "chord"}, func() (beep.Streamer, error) {
			return chord(800*time.Millisecond, 261.63, 329.63, 392.00)
		}},
		{"Low Rumble", []string{"ambient", "loop"}, func() (beep.Streamer, error) {
			return chord(2*time.Second, 55, 58)
		}},
	}

	check(os.MkdirAll(outDir, 0o755))

	clips := make([]catalog.Clip, 0, len(specs))
	for _, spec := range specs {
		key, err := slug(spec.title)
		check(err)

		stream, err := spec.stream()
		check(err)

		path := filepath.Join(outDir, key+".wav")
		check(writeWAV(path, stream))
		fmt.Printf("wrote %s\n", path)

		clips = append(clips, catalog.Clip{
			Key:   key,
			Title: spec.title,
			File:  key + ".wav",
			Tags:  spec.tags,
		})
	}

	path := filepath.Join(outDir, "clips.toml")
	check(writeCatalog(path, clips))
	fmt.Printf("wrote %s\n", path)
}

func check(err error) {
	if err != nil {
		panic(fmt.Sprintf("Error generating demo catalog: %s", err.Error()))
	}
}

func tone(freq float64, d time.Duration) (beep.Streamer, error) {
	s, err := generators.SineTone(sampleRate, freq)
	if err != nil {
		return nil, err
	}
	return beep.Take(sampleRate.N(d), s), nil
}

// chord mixes one attenuated sine per frequency so the sum stays in range.
func chord(d time.Duration, freqs ...float64) (beep.Streamer, error) {
	parts := make([]beep.Streamer, 0, len(freqs))
	for _, freq := range freqs {
		s, err := tone(freq, d)
		if err != nil {
			return nil, err
		}
		parts = append(parts, &effects.Gain{Streamer: s, Gain: -0.7})
	}
	return beep.Mix(parts...), nil
}

// alarm alternates two tones, siren style.
func alarm() (beep.Streamer, error) {
	var parts []beep.Streamer
	for i := 0; i < 3; i++ {
		hi, err := tone(880, 150*time.Millisecond)
		if err != nil {
			return nil, err
		}
		lo, err := tone(660, 150*time.Millisecond)
		if err != nil {
			return nil, err
		}
		parts = append(parts, hi, lo)
	}
	return beep.Seq(parts...), nil
}

func writeWAV(path string, s beep.Streamer) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	format := beep.Format{SampleRate: sampleRate, NumChannels: 2, Precision: 2}
	return wav.Encode(f, s, format)
}

func writeCatalog(path string, clips []catalog.Clip) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	doc := struct {
		Clips []catalog.Clip `toml:"clips"`
	}{Clips: clips}
	return toml.NewEncoder(f).Encode(doc)
}

// slug turns a clip title into a filename-safe key.
func slug(title string) (string, error) {
	// Decompose and strip diacritics first
	t := transform.Chain(
		norm.NFD,
		runes.Remove(runes.In(unicode.Mn)),
	)
	normalized, _, err := transform.String(t, title)
	if err != nil {
		return "", err
	}

	// Keep ASCII letters, digits and spaces
	filtered := strings.Map(func(r rune) rune {
		if r > 127 {
			return -1
		}
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			return r
		}
		return -1
	}, normalized)

	filtered = strings.TrimSpace(strings.ToLower(filtered))
	filtered = strings.ReplaceAll(filtered, " ", "_")

	if filtered == "" {
		return "", fmt.Errorf("clip title %q produced an empty key", title)
	}
	return filtered, nil
}
