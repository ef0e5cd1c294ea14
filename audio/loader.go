package audio

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	neturl "net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/flac"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/vorbis"
	"github.com/gopxl/beep/v2/wav"
)

// resampleQuality trades decode time for resampling fidelity; 4 is plenty
// for board clips.
const resampleQuality = 4

// Loader fetches and decodes clip audio into reusable sample buffers at the
// output rate. Decoding happens once per source; every later instance of a
// clip streams from the cached buffer, which keeps spamming cheap.
type Loader struct {
	sampleRate beep.SampleRate
	client     *http.Client

	mu    sync.RWMutex
	cache map[string]*beep.Buffer
}

// NewLoader creates a loader decoding to sr.
func NewLoader(sr beep.SampleRate) *Loader {
	return &Loader{
		sampleRate: sr,
		client:     &http.Client{Timeout: 30 * time.Second},
		cache:      make(map[string]*beep.Buffer),
	}
}

// Load returns the decoded samples for url, fetching and decoding on first
// use and serving repeats from cache. url is an http(s) URL, a file URL or a
// plain path.
func (l *Loader) Load(ctx context.Context, url string) (*beep.Buffer, error) {
	l.mu.RLock()
	buf, ok := l.cache[url]
	l.mu.RUnlock()
	if ok {
		return buf, nil
	}

	data, err := l.fetch(ctx, url)
	if err != nil {
		return nil, err
	}

	streamer, format, err := decode(url, data)
	if err != nil {
		return nil, err
	}
	defer streamer.Close()

	buf = beep.NewBuffer(beep.Format{
		SampleRate:  l.sampleRate,
		NumChannels: 2,
		Precision:   2,
	})
	if format.SampleRate == l.sampleRate {
		buf.Append(streamer)
	} else {
		buf.Append(beep.Resample(resampleQuality, format.SampleRate, l.sampleRate, streamer))
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	// A concurrent load of the same source may have won; keep the first
	// buffer so instances keep sharing one.
	if existing, ok := l.cache[url]; ok {
		return existing, nil
	}
	l.cache[url] = buf
	return buf, nil
}

// fetch reads the full clip body. Board clips are short, so buffering them
// whole keeps instances seekable and loopable.
func (l *Loader) fetch(ctx context.Context, rawURL string) ([]byte, error) {
	u, err := neturl.Parse(rawURL)
	if err == nil {
		switch u.Scheme {
		case "http", "https":
			return l.fetchHTTP(ctx, rawURL)
		case "file":
			return os.ReadFile(u.Path)
		}
	}
	return os.ReadFile(rawURL)
}

func (l *Loader) fetchHTTP(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request for %s: %w", url, err)
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch %s: %s", url, resp.Status)
	}
	return io.ReadAll(resp.Body)
}

// byteStream adapts an in-memory clip body to the decoder interfaces.
type byteStream struct {
	*bytes.Reader
}

func (byteStream) Close() error {
	return nil
}

// decode picks a decoder from the source's extension.
func decode(url string, data []byte) (beep.StreamSeekCloser, beep.Format, error) {
	r := byteStream{bytes.NewReader(data)}
	switch ext := clipExt(url); ext {
	case ".mp3":
		return mp3.Decode(r)
	case ".wav":
		return wav.Decode(r)
	case ".ogg", ".oga":
		return vorbis.Decode(r)
	case ".flac":
		return flac.Decode(r)
	default:
		return nil, beep.Format{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
}

// clipExt extracts the lowercase audio extension from a URL or path,
// ignoring any query string.
func clipExt(rawURL string) string {
	if u, err := neturl.Parse(rawURL); err == nil && u.Scheme != "" && u.Path != "" {
		return strings.ToLower(path.Ext(u.Path))
	}
	return strings.ToLower(filepath.Ext(rawURL))
}
