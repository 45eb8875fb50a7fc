package diagnosis

import (
	"strings"
	"unicode"
)

const (
	LabelSeparator = "___"
	GenericCrop    = "Plant"
	HealthyDisease = "Healthy"
)

// DefaultCropAliases canonicalizes composite PlantVillage crop names.
var DefaultCropAliases = map[string]string{
	"Corn (Maize)":            "Maize",
	"Cherry (Including Sour)": "Cherry",
	"Pepper, Bell":            "Bell Pepper",
}

type Taxonomy struct {
	aliases map[string]string
}

func NewTaxonomy(aliases map[string]string) *Taxonomy {
	if aliases == nil {
		aliases = DefaultCropAliases
	}
	normalized := make(map[string]string, len(aliases))
	for from, to := range aliases {
		normalized[normalizeName(from)] = to
	}
	return &Taxonomy{aliases: normalized}
}

var defaultTaxonomy = NewTaxonomy(nil)

// ParseLabel splits a raw classifier label with the default alias table.
func ParseLabel(rawLabel string) (crop, disease string) {
	return defaultTaxonomy.Parse(rawLabel)
}

// Parse never fails: labels without a separator yield a best-effort pair.
func (t *Taxonomy) Parse(rawLabel string) (crop, disease string) {
	before, after, found := strings.Cut(rawLabel, LabelSeparator)
	if !found {
		if !strings.Contains(strings.ToLower(rawLabel), "healthy") {
			return GenericCrop, rawLabel
		}
		crop = normalizeName(stripFold(rawLabel, "healthy"))
		if crop == "" {
			crop = GenericCrop
		}
		return t.canonicalCrop(crop), HealthyDisease
	}

	crop = normalizeName(before)
	if crop == "" {
		crop = GenericCrop
	}
	disease = normalizeName(after)
	if disease == "" {
		disease = "Unknown"
	}
	return t.canonicalCrop(crop), disease
}

func (t *Taxonomy) canonicalCrop(crop string) string {
	if alias, ok := t.aliases[crop]; ok {
		return alias
	}
	return crop
}

// normalizeName maps underscores to spaces, collapses whitespace and title-cases
// every word: a letter after a non-letter is upper-cased, all other letters are
// lower-cased.
func normalizeName(raw string) string {
	fields := strings.Fields(strings.ReplaceAll(raw, "_", " "))
	joined := strings.Join(fields, " ")

	var b strings.Builder
	b.Grow(len(joined))
	prevLetter := false
	for _, r := range joined {
		if unicode.IsLetter(r) {
			if prevLetter {
				b.WriteRune(unicode.ToLower(r))
			} else {
				b.WriteRune(unicode.ToUpper(r))
			}
			prevLetter = true
			continue
		}
		b.WriteRune(r)
		prevLetter = false
	}
	return b.String()
}

func stripFold(s, marker string) string {
	var b strings.Builder
	for i := 0; i < len(s); {
		if i+len(marker) <= len(s) && strings.EqualFold(s[i:i+len(marker)], marker) {
			i += len(marker)
			continue
		}
		b.WriteByte(s[i])
		i++
	}
	return b.String()
}
