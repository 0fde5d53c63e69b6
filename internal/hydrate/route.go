package hydrate

import (
	"github.com/Nterah/QualiPro/internal/normalize"
	"github.com/Nterah/QualiPro/internal/sections"
	"github.com/Nterah/QualiPro/internal/sectionstore"
)

// routeRows splits rows stored under a composite section's own number
// across its parts. A row goes to the part sharing the most non-empty
// non-id labels with it; ties and rows matching nothing go to the earliest
// such part.
func routeRows(parts []sections.Part, rows []sectionstore.Row) map[string][]sectionstore.Row {
	out := make(map[string][]sectionstore.Row, len(parts))
	if len(parts) == 0 {
		return out
	}
	folded := make([]map[string]bool, len(parts))
	for i, p := range parts {
		folded[i] = make(map[string]bool, len(p.Labels))
		for _, l := range p.Labels {
			if l != normalize.IDLabel {
				folded[i][normalize.Fold(l)] = true
			}
		}
	}

	for _, r := range rows {
		keys := make([]string, 0, len(r))
		for k, v := range r {
			if v != "" && k != sectionstore.IDKey {
				keys = append(keys, normalize.Fold(k))
			}
		}
		best, bestScore := 0, 0
		for i := range parts {
			score := 0
			for _, k := range keys {
				if folded[i][k] {
					score++
				}
			}
			if score > bestScore {
				best, bestScore = i, score
			}
		}
		key := parts[best].Key
		out[key] = append(out[key], r)
	}
	return out
}
