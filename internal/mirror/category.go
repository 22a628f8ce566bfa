package mirror

import (
	"strings"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Category is the canonical classification of a project/activity record,
// distinct from the server's free-text type label.
type Category string

const (
	CategoryCapacitaciones Category = "capacitaciones"
	CategoryEntregas       Category = "entregas"
	CategoryProyectos      Category = "proyectos"

	// CategoryNone is the sentinel "no type" value. A stored key equal to
	// it is never treated as ground truth.
	CategoryNone Category = "sin_tipo"
)

// labelSynonyms maps folded server labels to canonical categories. The
// slice is ordered longest-first so substring fallback prefers the most
// specific label ("proyecto de ayuda" before "proyecto").
var labelSynonyms = []struct {
	label    string
	category Category
}{
	{"proyecto de ayuda", CategoryProyectos},
	{"capacitaciones", CategoryCapacitaciones},
	{"capacitacion", CategoryCapacitaciones},
	{"distribucion", CategoryEntregas},
	{"formacion", CategoryCapacitaciones},
	{"proyectos", CategoryProyectos},
	{"donacion", CategoryEntregas},
	{"proyecto", CategoryProyectos},
	{"entregas", CategoryEntregas},
	{"entrega", CategoryEntregas},
	{"taller", CategoryCapacitaciones},
	{"curso", CategoryCapacitaciones},
	{"ayuda", CategoryProyectos},
}

// nameKeywords are curated per-category keyword sets used to infer a
// category from a record's display name when the type is missing entirely.
// Checked in this order; first hit wins.
var nameKeywords = []struct {
	category Category
	words    []string
}{
	{CategoryCapacitaciones, []string{"capacit", "curso", "taller", "formacion", "charla"}},
	{CategoryEntregas, []string{"entrega", "donacion", "reparto", "despensa"}},
	{CategoryProyectos, []string{"proyecto", "ayuda", "construccion"}},
}

// fold lowercases, trims, and strips diacritics, so "Capacitación" and
// "capacitacion" compare equal.
func fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(strings.TrimSpace(out))
}

// isTypeID reports whether the raw type field is a UUID foreign key rather
// than a human label.
func isTypeID(rawType string) bool {
	_, err := uuid.Parse(rawType)
	return err == nil
}

// matchLabel resolves a free-text server label to a category: exact folded
// match first, then substring as a fallback for decorated labels.
func matchLabel(rawType string) (Category, bool) {
	label := fold(rawType)
	if label == "" {
		return CategoryNone, false
	}

	for _, s := range labelSynonyms {
		if label == s.label {
			return s.category, true
		}
	}
	for _, s := range labelSynonyms {
		if strings.Contains(label, s.label) {
			return s.category, true
		}
	}
	return CategoryNone, false
}

// inferFromName keyword-matches the display name against the curated sets.
func inferFromName(nombre string) (Category, bool) {
	name := fold(nombre)
	if name == "" {
		return CategoryNone, false
	}

	for _, set := range nameKeywords {
		for _, w := range set.words {
			if strings.Contains(name, w) {
				return set.category, true
			}
		}
	}
	return CategoryNone, false
}

// ResolveCategory applies the reconciliation policy, in priority order:
//
//  1. a stored non-sentinel category key is ground truth;
//  2. a free-text type label (not a UUID) is matched against the synonym
//     table, substring fallback included;
//  3. a UUID type with no resolvable name cannot be classified; the
//     record is excluded from category queries rather than guessed;
//  4. a missing type falls back to keyword inference over the name.
//
// The boolean is false when the record cannot be classified. Best-effort
// only; upstream data quality cannot be assumed.
func ResolveCategory(categoryKey, rawType, nombre string) (Category, bool) {
	if categoryKey != "" && categoryKey != string(CategoryNone) {
		return Category(categoryKey), true
	}

	if rawType != "" {
		if isTypeID(rawType) {
			return CategoryNone, false
		}
		if cat, ok := matchLabel(rawType); ok {
			return cat, true
		}
		return CategoryNone, false
	}

	return inferFromName(nombre)
}
