package i18n

import (
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"net/http"
	"path"
	"strings"
)

//go:embed locales/*.json
var locales embed.FS

const DefaultLang = "en"

// Catalog holds the UI and flash strings per language.
type Catalog struct {
	translations map[string]map[string]string
}

// Load reads the embedded locale files.
func Load() (*Catalog, error) {
	return LoadFS(locales, "locales")
}

// LoadFS reads every <lang>.json under dir.
func LoadFS(fsys fs.FS, dir string) (*Catalog, error) {
	files, err := fs.Glob(fsys, path.Join(dir, "*.json"))
	if err != nil {
		return nil, err
	}
	c := &Catalog{translations: make(map[string]map[string]string)}
	for _, f := range files {
		data, err := fs.ReadFile(fsys, f)
		if err != nil {
			return nil, err
		}
		var t map[string]string
		if err := json.Unmarshal(data, &t); err != nil {
			return nil, fmt.Errorf("%s: %w", f, err)
		}
		c.translations[strings.TrimSuffix(path.Base(f), ".json")] = t
	}
	if _, ok := c.translations[DefaultLang]; !ok {
		return nil, fmt.Errorf("missing %s translations", DefaultLang)
	}
	return c, nil
}

func (c *Catalog) T(lang, key string) string {
	if t, ok := c.translations[lang]; ok {
		if val, ok := t[key]; ok {
			return val
		}
	}
	// Fallback to English
	if lang != DefaultLang {
		return c.T(DefaultLang, key)
	}
	return key
}

func (c *Catalog) DetectLanguage(r *http.Request) string {
	accept := r.Header.Get("Accept-Language")
	if accept != "" {
		// Example: fr-CH, fr;q=0.9, en;q=0.8, de;q=0.7, *;q=0.5
		parts := strings.Split(accept, ",")
		for _, part := range parts {
			lang := strings.ToLower(strings.TrimSpace(strings.Split(part, ";")[0]))
			if len(lang) >= 2 {
				lang = lang[:2] // e.g., "en-US" -> "en"
				if _, ok := c.translations[lang]; ok {
					return lang
				}
			}
		}
	}

	return DefaultLang
}
