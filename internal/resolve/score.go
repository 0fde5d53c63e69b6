package resolve

import (
	"sort"
	"strings"
	"unicode"

	"github.com/Nterah/QualiPro/internal/sections"
	"github.com/Nterah/QualiPro/internal/storage"
)

// minTitleWord is the shortest title word kept as a keyword.
const minTitleWord = 3

// Keywords builds the guess keyword set for a part: its static keywords,
// its key ("41"), and the lower-cased title words of at least three
// alphanumeric characters. The result is deduplicated in that order.
func Keywords(p sections.Part) []string {
	var out []string
	seen := map[string]bool{}
	add := func(k string) {
		k = strings.ToLower(strings.TrimSpace(k))
		if k == "" || seen[k] {
			return
		}
		seen[k] = true
		out = append(out, k)
	}
	for _, k := range p.Keywords {
		add(k)
	}
	add(p.Key)
	for _, w := range strings.FieldsFunc(p.Title, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		if len([]rune(w)) >= minTitleWord {
			add(w)
		}
	}
	return out
}

// Score counts the keywords that occur as substrings of the table name.
// The schema qualifier is not scored.
func Score(table storage.TableName, keywords []string) int {
	name := strings.ToLower(table.Name)
	n := 0
	for _, k := range keywords {
		if k != "" && strings.Contains(name, k) {
			n++
		}
	}
	return n
}

// Candidate is one scored guess candidate. Rows is -1 until fetched.
type Candidate struct {
	Table storage.TableName
	Score int
	Rows  int
}

// Rank orders candidates by score (desc), rows (desc), then table name.
// The order is total, so the first element is always the same for the
// same input set.
func Rank(cands []Candidate) {
	sort.SliceStable(cands, func(i, j int) bool {
		a, b := cands[i], cands[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Rows != b.Rows {
			return a.Rows > b.Rows
		}
		return strings.ToLower(a.Table.String()) < strings.ToLower(b.Table.String())
	})
}
