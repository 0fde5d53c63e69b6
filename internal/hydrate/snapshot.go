package hydrate

import (
	"github.com/Nterah/QualiPro/internal/normalize"
)

// Meta describes where a snapshot's rows came from.
type Meta struct {
	Hydrated    bool   `json:"hydrated"`
	SourceTable string `json:"sourceTable"`
	RowCount    int    `json:"rowCount"`
	Guessed     bool   `json:"guessed"`
	// Source is "store", "configured", "cached", "guessed" or "none".
	Source string `json:"source"`
}

// Snapshot is the rendering unit for one part. Keys, when set, holds the
// stored merge key of each row (the id label only echoes the project code).
type Snapshot struct {
	Columns []string           `json:"columns"`
	Rows    []normalize.Record `json:"rows"`
	Keys    []string           `json:"keys,omitempty"`
	Meta    Meta               `json:"meta"`
}

// SectionView is one numbered section. Simple sections carry Snapshot;
// composite sections carry Parts keyed by sub-key, listed in PartKeys order.
type SectionView struct {
	Number    int                 `json:"number"`
	Title     string              `json:"title"`
	Snapshot  *Snapshot           `json:"snapshot,omitempty"`
	Parts     map[string]Snapshot `json:"parts,omitempty"`
	PartKeys  []string            `json:"partKeys,omitempty"`
	TotalRows int                 `json:"totalRows"`
}

// Form is every section of one project, in ascending section order.
type Form struct {
	Code     string        `json:"code"`
	Sections []SectionView `json:"sections"`
}

// Section returns the view for number n.
func (f Form) Section(n int) (SectionView, bool) {
	for _, s := range f.Sections {
		if s.Number == n {
			return s, true
		}
	}
	return SectionView{}, false
}

// Part returns the snapshot for a part key, whether the part is a simple
// section or a sub-section.
func (f Form) Part(key string) (Snapshot, bool) {
	for _, s := range f.Sections {
		if s.Snapshot != nil && len(s.PartKeys) == 1 && s.PartKeys[0] == key {
			return *s.Snapshot, true
		}
		if snap, ok := s.Parts[key]; ok {
			return snap, true
		}
	}
	return Snapshot{}, false
}

func emptySnapshot(columns []string, source string) Snapshot {
	return Snapshot{
		Columns: columns,
		Rows:    []normalize.Record{},
		Meta:    Meta{Source: source},
	}
}
