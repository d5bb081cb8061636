package prompt

import (
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// AudioRoute is where the catalog directory is served.
const AudioRoute = "/static/audio"

// Catalog resolves recorded clips under a local directory to public URLs.
type Catalog struct {
	dir     string
	baseURL string
}

func NewCatalog(dir, publicBaseURL string) *Catalog {
	return &Catalog{dir: dir, baseURL: strings.TrimRight(publicBaseURL, "/")}
}

func (c *Catalog) Dir() string { return c.dir }

// URL returns the public URL of a clip if the file exists.
func (c *Catalog) URL(file string) (string, bool) {
	if c == nil || c.dir == "" || file == "" {
		return "", false
	}
	if file != filepath.Base(file) {
		return "", false
	}
	st, err := os.Stat(filepath.Join(c.dir, file))
	if err != nil || st.IsDir() {
		return "", false
	}
	return c.baseURL + path.Join(AudioRoute, url.PathEscape(file)), true
}

// ClipFor returns the URL of the clip configured for a reply kind.
func (c *Catalog) ClipFor(s Script, kind string) (string, bool) {
	return c.URL(s.Audio[kind])
}
