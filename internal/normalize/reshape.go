package normalize

import "sort"

// Reshape fits a stored row to labels. Keys are matched exactly first, then
// by folded form, so older blobs written with different spelling or casing
// still render. Missing labels become "" and unknown keys are dropped.
func Reshape(labels []string, row map[string]string) Record {
	rec := make(Record, len(labels))
	var folded map[string]string
	for _, l := range labels {
		if v, ok := row[l]; ok {
			rec[l] = v
			continue
		}
		if folded == nil {
			folded = foldKeys(row)
		}
		rec[l] = folded[Fold(l)]
	}
	return rec
}

// ReshapeAll applies Reshape to every row.
func ReshapeAll(labels []string, rows []map[string]string) []Record {
	out := make([]Record, 0, len(rows))
	for _, r := range rows {
		out = append(out, Reshape(labels, r))
	}
	return out
}

// foldKeys indexes row values by folded key; the lexically first key wins
// when two keys fold to the same form.
func foldKeys(row map[string]string) map[string]string {
	keys := make([]string, 0, len(row))
	for k := range row {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make(map[string]string, len(keys))
	for _, k := range keys {
		f := Fold(k)
		if _, ok := out[f]; !ok {
			out[f] = row[k]
		}
	}
	return out
}
