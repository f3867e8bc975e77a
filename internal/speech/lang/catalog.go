// Package lang maps human language names and ISO codes to the NLLB codes
// the translation collaborator speaks. The builtin table can be extended
// or overridden from YAML catalog files with hot reload.
package lang

import (
	"errors"
	"sort"
	"strings"
	"sync"
)

// ErrUnknownLanguage is returned when a language name has no catalog
// entry.
var ErrUnknownLanguage = errors.New("unknown language")

// builtinCodes covers the languages the service ships support for out of
// the box, keyed by lowercase name or ISO 639-1 code.
var builtinCodes = map[string]string{
	"english":    "eng_Latn",
	"spanish":    "spa_Latn",
	"french":     "fra_Latn",
	"turkish":    "tur_Latn",
	"portuguese": "por_Latn",
	"korean":     "kor_Hang",
	"chinese":    "zho_Hans",
	"mandarin":   "zho_Hans",
	"farsi":      "pes_Arab",
	"persian":    "pes_Arab",
	"russian":    "rus_Cyrl",

	"en": "eng_Latn",
	"es": "spa_Latn",
	"fr": "fra_Latn",
	"tr": "tur_Latn",
	"pt": "por_Latn",
	"ko": "kor_Hang",
	"zh": "zho_Hans",
	"fa": "pes_Arab",
	"ru": "rus_Cyrl",
}

// Catalog resolves language names to NLLB codes. Safe for concurrent use;
// a loader may swap entries underneath readers.
type Catalog struct {
	mu    sync.RWMutex
	codes map[string]string
}

// NewCatalog creates a catalog seeded with the builtin language table.
func NewCatalog() *Catalog {
	codes := make(map[string]string, len(builtinCodes))
	for k, v := range builtinCodes {
		codes[k] = v
	}
	return &Catalog{codes: codes}
}

// Resolve returns the NLLB code for a language name or ISO code.
func (c *Catalog) Resolve(language string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	code, ok := c.codes[strings.ToLower(strings.TrimSpace(language))]
	return code, ok
}

// Has reports whether the language is known to the catalog.
func (c *Catalog) Has(language string) bool {
	_, ok := c.Resolve(language)
	return ok
}

// Names returns every known language key, sorted.
func (c *Catalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.codes))
	for name := range c.codes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Merge adds or overrides entries. Keys are lowercased.
func (c *Catalog) Merge(entries map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for name, code := range entries {
		c.codes[strings.ToLower(strings.TrimSpace(name))] = code
	}
}
