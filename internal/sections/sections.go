// Package sections is the PQP section catalogue: section numbers, titles,
// sub-sections, declared display labels, configured tables, explicit
// native-column dictionaries and guess keywords.
//
// Everything here is data. Matching and resolution logic lives in the
// normalize and resolve packages.
package sections

import (
	"sort"
	"strconv"
)

// Part is one logical unit of data: a whole simple section, or one
// sub-section of a composite section.
type Part struct {
	// Key identifies the part ("2", "41", "101").
	Key string
	// Section is the parent section number (1..10).
	Section int
	// Title is the human title used for shells and as the guess title hint.
	Title string
	// Table is the configured physical table, "" when none is known.
	Table string
	// Labels are the declared display columns; "id" is always first.
	Labels []string
	// ColumnMap maps native column names to labels (exact phase).
	ColumnMap map[string]string
	// Keywords are static guess keywords matched against table names.
	Keywords []string
}

// Number is the JSON section store number of the part (its key as int).
func (p Part) Number() int {
	n, _ := strconv.Atoi(p.Key)
	return n
}

// Section is one numbered section of the form.
type Section struct {
	Number int
	Title  string
	Parts  []Part
}

// Composite reports whether the section is split into sub-sections.
func (s Section) Composite() bool { return len(s.Parts) > 1 }

// All returns the catalogue in processing order: ascending section
// number, then ascending sub-key. Callers may modify the result.
func All() []Section {
	out := catalogue()
	sort.SliceStable(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	for i := range out {
		parts := out[i].Parts
		sort.SliceStable(parts, func(a, b int) bool { return parts[a].Number() < parts[b].Number() })
	}
	return out
}

// Parts returns every part in processing order.
func Parts() []Part {
	var out []Part
	for _, s := range All() {
		out = append(out, s.Parts...)
	}
	return out
}

// LookupPart finds a part by key ("41") or store number.
func LookupPart(key string) (Part, bool) {
	for _, p := range Parts() {
		if p.Key == key {
			return p, true
		}
	}
	return Part{}, false
}

// LookupSection finds a section by number.
func LookupSection(n int) (Section, bool) {
	for _, s := range All() {
		if s.Number == n {
			return s, true
		}
	}
	return Section{}, false
}

// Title returns the default title for a section or part number.
func Title(n int) string {
	if s, ok := LookupSection(n); ok {
		return s.Title
	}
	if p, ok := LookupPart(strconv.Itoa(n)); ok {
		return p.Title
	}
	return "Section " + strconv.Itoa(n)
}

// IDSources are native columns that feed the "id" label, in priority order.
var IDSources = []string{"project_code", "projectcode", "code", "id", "row_id"}

// IgnoredColumns are identity and audit columns that never take part in
// fuzzy label matching.
var IgnoredColumns = []string{
	"id", "row_id", "heading_id", "project_code", "project_id",
	"extra", "created_at", "updated_at", "date_created", "date_modified", "last_edited_on",
}
