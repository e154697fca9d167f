package source

import (
	_ "embed"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultCatalog []byte

const defaultCategory = "default"

// Catalog lists where each category's prospects are found.
type Catalog struct {
	Directories       map[string][]Directory `yaml:"directories"`
	AwardQueries      map[string][]string    `yaml:"award_queries"`
	Creators          map[string][]string    `yaml:"creators"`
	CategoryKeywords  map[string][]string    `yaml:"category_keywords"`
	MarketingKeywords []string               `yaml:"marketing_keywords"`
	BusinessSignals   []string               `yaml:"business_signals"`
	AwardSkipWords    []string               `yaml:"award_skip_words"`
}

// Directory is a booking or listing site with a per-city URL template.
// Templates may use {city_slug} and {city}.
type Directory struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

// DefaultCatalog returns the built-in catalog.
func DefaultCatalog() (*Catalog, error) {
	return parseCatalog(defaultCatalog)
}

// LoadCatalog returns the built-in catalog with the file at path merged
// over it. Categories present in the file replace the built-in entries;
// non-empty keyword lists replace the built-in lists. An empty path returns
// the built-in catalog.
func LoadCatalog(path string) (*Catalog, error) {
	base, err := DefaultCatalog()
	if err != nil {
		return nil, err
	}
	if path == "" {
		return base, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "source: read catalog %s", path)
	}
	override, err := parseCatalog(data)
	if err != nil {
		return nil, eris.Wrapf(err, "source: catalog %s", path)
	}
	base.merge(override)
	return base, nil
}

func parseCatalog(data []byte) (*Catalog, error) {
	var wrapper struct {
		Catalog Catalog `yaml:"catalog"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return nil, eris.Wrap(err, "source: parse catalog")
	}
	return &wrapper.Catalog, nil
}

func (c *Catalog) merge(o *Catalog) {
	c.Directories = mergeMap(c.Directories, o.Directories)
	c.AwardQueries = mergeMap(c.AwardQueries, o.AwardQueries)
	c.Creators = mergeMap(c.Creators, o.Creators)
	c.CategoryKeywords = mergeMap(c.CategoryKeywords, o.CategoryKeywords)
	if len(o.MarketingKeywords) > 0 {
		c.MarketingKeywords = o.MarketingKeywords
	}
	if len(o.BusinessSignals) > 0 {
		c.BusinessSignals = o.BusinessSignals
	}
	if len(o.AwardSkipWords) > 0 {
		c.AwardSkipWords = o.AwardSkipWords
	}
}

func mergeMap[V any](dst, src map[string]V) map[string]V {
	if dst == nil {
		dst = make(map[string]V, len(src))
	}
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

// forCategory looks up a category case-insensitively, falling back to the
// default entry.
func forCategory[V any](m map[string]V, category string) V {
	for k, v := range m {
		if strings.EqualFold(k, category) {
			return v
		}
	}
	return m[defaultCategory]
}

// DirectoriesFor returns the directories for a category. Categories without
// directories return nil; there is no default.
func (c *Catalog) DirectoriesFor(category string) []Directory {
	for k, v := range c.Directories {
		if strings.EqualFold(k, category) {
			return v
		}
	}
	return nil
}

// AwardQueriesFor returns the award-list search queries for a category.
func (c *Catalog) AwardQueriesFor(category string) []string {
	return forCategory(c.AwardQueries, category)
}

// CreatorsFor returns the creator handles watched for a category.
func (c *Catalog) CreatorsFor(category string) []string {
	return forCategory(c.Creators, category)
}

// KeywordsFor returns bio keywords that tie an account to a category.
func (c *Catalog) KeywordsFor(category string) []string {
	return forCategory(c.CategoryKeywords, category)
}
