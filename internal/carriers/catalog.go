// Package carriers holds the carrier catalog: which carriers may be shown,
// the brand name shoppers recognise for each legal filing name, and the
// one-time application fees some carriers charge.
package carriers

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed carriers.yaml
var defaultCatalog []byte

type brandEntry struct {
	Display string   `yaml:"display"`
	Logo    string   `yaml:"logo"`
	Legal   []string `yaml:"legal"`
}

type familyEntry struct {
	Display  string   `yaml:"display"`
	Keywords []string `yaml:"keywords"`
}

type feeEntry struct {
	Display        string  `yaml:"display"`
	ApplicationFee float64 `yaml:"applicationFee"`
	Description    string  `yaml:"description"`
}

type abbreviation struct {
	Short string `yaml:"short"`
	Long  string `yaml:"long"`
}

type catalogFile struct {
	Allowed   []string      `yaml:"allowed"`
	Brands    []brandEntry  `yaml:"brands"`
	Families  []familyEntry `yaml:"families"`
	Fees      []feeEntry    `yaml:"fees"`
	Normalize struct {
		Suffixes      []string       `yaml:"suffixes"`
		Abbreviations []abbreviation `yaml:"abbreviations"`
	} `yaml:"normalize"`
}

// DisplayInfo is what the UI shows for a carrier.
type DisplayInfo struct {
	DisplayName string `json:"displayName"`
	LogoURL     string `json:"logoUrl,omitempty"`
}

// Fee is a one-time charge made by a carrier at application.
type Fee struct {
	ApplicationFee float64 `json:"applicationFee"`
	Description    string  `json:"description,omitempty"`
}

type legalMapping struct {
	legal string
	lower string
	info  DisplayInfo
}

type expansion struct {
	pattern *regexp.Regexp
	long    string
}

// Catalog is immutable after Load and safe for concurrent use.
type Catalog struct {
	allowed  []string
	exact    map[string]DisplayInfo
	ordered  []legalMapping
	families []familyEntry
	fees     map[string]Fee
	suffixes []*regexp.Regexp
	expand   []expansion
}

var whitespace = regexp.MustCompile(`\s+`)

// Load reads the catalog from path, or the built-in catalog when path is empty.
func Load(path string) (*Catalog, error) {
	raw := defaultCatalog
	if strings.TrimSpace(path) != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read carrier catalog: %w", err)
		}
		raw = data
	}
	return Parse(raw)
}

// Parse builds a catalog from YAML.
func Parse(raw []byte) (*Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse carrier catalog: %w", err)
	}
	if len(file.Allowed) == 0 {
		return nil, fmt.Errorf("carrier catalog has no allowed carriers")
	}

	c := &Catalog{
		exact: make(map[string]DisplayInfo),
		fees:  make(map[string]Fee, len(file.Fees)),
	}

	for _, name := range file.Allowed {
		if n := strings.ToLower(strings.TrimSpace(name)); n != "" {
			c.allowed = append(c.allowed, n)
		}
	}

	for _, b := range file.Brands {
		info := DisplayInfo{DisplayName: b.Display, LogoURL: b.Logo}
		for _, legal := range b.Legal {
			c.exact[legal] = info
			c.ordered = append(c.ordered, legalMapping{legal: legal, lower: strings.ToLower(legal), info: info})
		}
	}

	for _, f := range file.Families {
		family := familyEntry{Display: f.Display}
		for _, k := range f.Keywords {
			family.Keywords = append(family.Keywords, strings.ToLower(k))
		}
		c.families = append(c.families, family)
	}

	for _, f := range file.Fees {
		c.fees[f.Display] = Fee{ApplicationFee: f.ApplicationFee, Description: f.Description}
	}

	for _, s := range file.Normalize.Suffixes {
		re, err := regexp.Compile("(?i)" + s)
		if err != nil {
			return nil, fmt.Errorf("carrier catalog suffix %q: %w", s, err)
		}
		c.suffixes = append(c.suffixes, re)
	}
	for _, a := range file.Normalize.Abbreviations {
		re, err := regexp.Compile(`(?i)\b` + regexp.QuoteMeta(a.Short) + `\b`)
		if err != nil {
			return nil, fmt.Errorf("carrier catalog abbreviation %q: %w", a.Short, err)
		}
		c.expand = append(c.expand, expansion{pattern: re, long: a.Long})
	}

	return c, nil
}

// IsAllowed reports whether quotes from carrierName may be shown.
func (c *Catalog) IsAllowed(carrierName string) bool {
	name := strings.ToLower(strings.TrimSpace(carrierName))
	if name == "" {
		return false
	}
	for _, allowed := range c.allowed {
		if strings.Contains(name, allowed) || strings.Contains(allowed, name) {
			return true
		}
	}
	return false
}

// Display maps a legal carrier name to the name and logo shoppers recognise.
func (c *Catalog) Display(legalName string) DisplayInfo {
	if info, ok := c.exact[legalName]; ok {
		return info
	}

	lower := strings.ToLower(legalName)
	for _, f := range c.families {
		for _, k := range f.Keywords {
			if strings.Contains(lower, k) {
				return DisplayInfo{DisplayName: f.Display}
			}
		}
	}

	if lower != "" {
		for _, m := range c.ordered {
			if strings.Contains(lower, m.lower) || strings.Contains(m.lower, lower) {
				return m.info
			}
		}
	}

	if normalized := c.normalize(legalName); normalized != "" {
		return DisplayInfo{DisplayName: normalized}
	}
	return DisplayInfo{DisplayName: legalName}
}

// DisplayName is shorthand for Display(legalName).DisplayName.
func (c *Catalog) DisplayName(legalName string) string {
	return c.Display(legalName).DisplayName
}

// ApplicationFee returns the one-time fee charged by the carrier shown as
// displayName, if any.
func (c *Catalog) ApplicationFee(displayName string) (Fee, bool) {
	fee, ok := c.fees[displayName]
	return fee, ok
}

func (c *Catalog) normalize(name string) string {
	out := name
	for _, re := range c.suffixes {
		out = re.ReplaceAllString(out, "")
	}
	for _, e := range c.expand {
		out = e.pattern.ReplaceAllString(out, e.long)
	}
	return strings.TrimSpace(whitespace.ReplaceAllString(out, " "))
}
