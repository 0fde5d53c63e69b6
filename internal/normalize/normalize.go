// Package normalize reshapes raw physical-table rows into canonical records
// keyed by a section's declared display labels.
//
// Matching runs in two phases. The exact phase copies columns named in an
// explicit native-column dictionary. The fuzzy phase runs when the exact
// phase matched fewer than half of the non-id labels (or when no dictionary
// exists) and fills the remaining labels from synonyms, then from shared
// word tokens.
//
// A canonical record always carries exactly the declared labels. Unmatched
// labels hold "".
package normalize

import (
	"sort"
	"strings"

	"github.com/Nterah/QualiPro/internal/sections"
	"github.com/Nterah/QualiPro/internal/storage"
)

// IDLabel is the reserved label that echoes the project code.
const IDLabel = "id"

// Record is a canonical record: declared label -> display string.
type Record map[string]string

// Values returns the record's values in label order.
func (r Record) Values(labels []string) []string {
	out := make([]string, len(labels))
	for i, l := range labels {
		out[i] = r[l]
	}
	return out
}

// Spec describes one section's label set and matching data.
type Spec struct {
	Labels    []string
	ColumnMap map[string]string
	Synonyms  map[string][]string
	// IDSources feed the id label, first non-empty wins.
	IDSources []string
	// Ignore lists columns that never take part in fuzzy matching.
	Ignore []string
}

// ForPart builds the Spec for a catalogue part.
func ForPart(p sections.Part) Spec {
	return Spec{
		Labels:    p.Labels,
		ColumnMap: p.ColumnMap,
		Synonyms:  sections.Synonyms,
		IDSources: sections.IDSources,
		Ignore:    sections.IgnoredColumns,
	}
}

// Normalizer applies a Spec. It is immutable and safe for concurrent use.
type Normalizer struct {
	labels   []string
	hasID    bool
	exact    []exactEntry
	synonyms map[string][]string // label -> folded candidates, label first
	idSrc    []string
	ignore   map[string]bool
}

type exactEntry struct {
	column string // lower-cased native name
	label  string
}

// New prepares a Normalizer. Dictionary entries pointing at undeclared
// labels are dropped.
func New(spec Spec) *Normalizer {
	n := &Normalizer{
		labels:   append([]string(nil), spec.Labels...),
		synonyms: make(map[string][]string, len(spec.Labels)),
		ignore:   make(map[string]bool, len(spec.Ignore)),
	}
	declared := make(map[string]bool, len(spec.Labels))
	for _, l := range spec.Labels {
		declared[l] = true
		if l == IDLabel {
			n.hasID = true
		}
	}

	natives := make([]string, 0, len(spec.ColumnMap))
	for native := range spec.ColumnMap {
		natives = append(natives, native)
	}
	sort.Strings(natives)
	for _, native := range natives {
		label := spec.ColumnMap[native]
		if !declared[label] || label == IDLabel {
			continue
		}
		n.exact = append(n.exact, exactEntry{column: strings.ToLower(native), label: label})
	}

	for _, l := range spec.Labels {
		if l == IDLabel {
			continue
		}
		cands := []string{Fold(l)}
		for _, syn := range spec.Synonyms[l] {
			if f := Fold(syn); f != "" {
				cands = append(cands, f)
			}
		}
		n.synonyms[l] = cands
	}

	for _, s := range spec.IDSources {
		n.idSrc = append(n.idSrc, strings.ToLower(s))
	}
	for _, c := range spec.Ignore {
		n.ignore[strings.ToLower(c)] = true
	}
	return n
}

// Labels returns a copy of the declared label list.
func (n *Normalizer) Labels() []string { return append([]string(nil), n.labels...) }

// Empty returns a record with every label set to "".
func (n *Normalizer) Empty() Record {
	rec := make(Record, len(n.labels))
	for _, l := range n.labels {
		rec[l] = ""
	}
	return rec
}

// Normalize maps one raw row to a canonical record. columns gives the
// encounter order used for fuzzy tie-breaks (typically the table's ordinal
// column order); raw keys missing from columns follow in sorted order.
func (n *Normalizer) Normalize(columns []string, raw storage.Row) Record {
	rec := n.Empty()
	order := orderedColumns(columns, raw)

	// lower-cased name -> actual key in raw
	byLower := make(map[string]string, len(order))
	for _, c := range order {
		lc := strings.ToLower(c)
		if _, dup := byLower[lc]; !dup {
			byLower[lc] = c
		}
	}
	consumed := make(map[string]bool, len(order))

	if n.hasID {
		for _, src := range n.idSrc {
			key, ok := byLower[src]
			if !ok {
				continue
			}
			if v := storage.NormalizeKey(raw[key]); v != "" {
				rec[IDLabel] = v
				consumed[key] = true
				break
			}
		}
	}

	matched := make(map[string]bool, len(n.labels))
	for _, e := range n.exact {
		key, ok := byLower[e.column]
		if !ok {
			continue
		}
		consumed[key] = true
		v := storage.NormalizeKey(raw[key])
		if matched[e.label] && rec[e.label] != "" {
			continue
		}
		matched[e.label] = true
		rec[e.label] = v
	}

	nonID := len(n.synonyms)
	if len(n.exact) > 0 && len(matched)*2 >= nonID {
		return rec
	}

	var free []candidate
	for _, c := range order {
		if consumed[c] || n.ignore[strings.ToLower(c)] {
			continue
		}
		free = append(free, candidate{key: c, folded: Fold(c), tokens: Tokens(c)})
	}

	for _, label := range n.labels {
		if label == IDLabel || matched[label] || len(free) == 0 {
			continue
		}
		i := n.pick(label, free)
		if i < 0 {
			continue
		}
		rec[label] = storage.NormalizeKey(raw[free[i].key])
		free = append(free[:i], free[i+1:]...)
	}
	return rec
}

// NormalizeAll normalizes every row with the same column order.
func (n *Normalizer) NormalizeAll(columns []string, rows []storage.Row) []Record {
	out := make([]Record, 0, len(rows))
	for _, r := range rows {
		out = append(out, n.Normalize(columns, r))
	}
	return out
}

type candidate struct {
	key    string
	folded string
	tokens []string
}

// pick returns the index of the best free column for label, or -1.
func (n *Normalizer) pick(label string, free []candidate) int {
	cands := n.synonyms[label]
	for _, syn := range cands {
		for i, c := range free {
			if c.folded == syn {
				return i
			}
		}
	}
	for _, syn := range cands {
		for i, c := range free {
			if contains(c.folded, syn) {
				return i
			}
		}
	}

	want := Tokens(label)
	best, bestScore := -1, 0
	for i, c := range free {
		if s := sharedTokens(want, c.tokens); s > bestScore {
			best, bestScore = i, s
		}
	}
	return best
}

func sharedTokens(a, b []string) int {
	n := 0
	for _, x := range a {
		for _, y := range b {
			if x == y {
				n++
				break
			}
		}
	}
	return n
}

func orderedColumns(columns []string, raw storage.Row) []string {
	out := make([]string, 0, len(raw))
	seen := make(map[string]bool, len(raw))
	for _, c := range columns {
		if _, ok := raw[c]; ok && !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	var rest []string
	for k := range raw {
		if !seen[k] {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	return append(out, rest...)
}
