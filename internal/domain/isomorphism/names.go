package isomorphism

import (
	"fmt"
	"os"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v2"
)

// Normalizer canonicalizes entity names before they are compared.
type Normalizer struct {
	aliases map[string]string
}

// NewNormalizer builds a Normalizer from a variant to canonical spelling
// table. Both sides of the table are normalized first.
func NewNormalizer(aliases map[string]string) *Normalizer {
	n := &Normalizer{aliases: make(map[string]string, len(aliases))}
	for variant, canonical := range aliases {
		v, c := fold(variant), fold(canonical)
		if v != "" && c != "" && v != c {
			n.aliases[v] = c
		}
	}
	return n
}

// Normalize strips accents, lowercases, collapses whitespace and applies
// the alias table.
func (n *Normalizer) Normalize(name string) string {
	s := fold(name)
	if c, ok := n.aliases[s]; ok {
		return c
	}
	return s
}

func fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if out, _, err := transform.String(t, s); err == nil {
		s = out
	}
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// ParseAliases decodes a YAML mapping of variant spelling to canonical
// spelling.
func ParseAliases(data []byte) (map[string]string, error) {
	out := make(map[string]string)
	if err := yaml.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("parse alias table: %w", err)
	}
	return out, nil
}

// LoadAliases reads an alias table from path.
func LoadAliases(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read alias table %s: %w", path, err)
	}
	return ParseAliases(data)
}
