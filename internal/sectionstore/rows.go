package sectionstore

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/Nterah/QualiPro/internal/storage"
)

// IDKey is the row field used as the merge key.
const IDKey = "id"

// Row is one stored row: field name to display string.
type Row map[string]string

// ID returns the row's merge key.
func (r Row) ID() string { return r[IDKey] }

func (r Row) clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// MergeResult counts what a merge did.
type MergeResult struct {
	Created int
	Updated int
}

// MergeRows merges incoming into existing by id. A row whose non-empty id
// matches an existing row is shallow-merged into it (incoming fields win);
// any other row is appended, receiving newID() when it has no id. Neither
// input slice is modified.
func MergeRows(existing, incoming []Row, newID func() string) ([]Row, MergeResult) {
	var res MergeResult
	out := make([]Row, 0, len(existing)+len(incoming))
	index := make(map[string]int, len(existing))
	for _, r := range existing {
		c := r.clone()
		if id := c.ID(); id != "" {
			if _, dup := index[id]; !dup {
				index[id] = len(out)
			}
		}
		out = append(out, c)
	}

	for _, r := range incoming {
		if id := r.ID(); id != "" {
			if i, ok := index[id]; ok {
				for k, v := range r {
					out[i][k] = v
				}
				res.Updated++
				continue
			}
		}
		c := r.clone()
		if c.ID() == "" {
			c[IDKey] = newID()
		}
		index[c.ID()] = len(out)
		out = append(out, c)
		res.Created++
	}
	return out, res
}

// IDGen issues strictly increasing ids derived from the wall clock in
// nanoseconds. It is safe for concurrent use.
type IDGen struct {
	mu   sync.Mutex
	last int64
	now  func() time.Time
}

// NewIDGen returns a generator on time.Now.
func NewIDGen() *IDGen { return &IDGen{now: time.Now} }

// Next returns the next id.
func (g *IDGen) Next() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	now := time.Now
	if g.now != nil {
		now = g.now
	}
	n := now().UnixNano()
	if n <= g.last {
		n = g.last + 1
	}
	g.last = n
	return strconv.FormatInt(n, 10)
}

// DecodeRows parses a stored rows_json value. It accepts a JSON array of
// objects or an object wrapping one under "rows". Values are stringified;
// non-object items are skipped. Empty input and null decode to no rows.
func DecodeRows(s string) ([]Row, error) {
	s = string(bytes.TrimSpace([]byte(s)))
	if s == "" || s == "null" {
		return nil, nil
	}
	var v any
	dec := json.NewDecoder(bytes.NewReader([]byte(s)))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("sectionstore: decode rows: %w", err)
	}
	if obj, ok := v.(map[string]any); ok {
		v = obj["rows"]
	}
	items, ok := v.([]any)
	if !ok {
		if v == nil {
			return nil, nil
		}
		return nil, fmt.Errorf("sectionstore: decode rows: unexpected %T", v)
	}

	out := make([]Row, 0, len(items))
	for _, it := range items {
		obj, ok := it.(map[string]any)
		if !ok {
			continue
		}
		r := make(Row, len(obj))
		for k, val := range obj {
			r[k] = storage.NormalizeKey(val)
		}
		out = append(out, r)
	}
	return out, nil
}

// EncodeRows serializes rows as a JSON array; nil encodes as [].
func EncodeRows(rows []Row) (string, error) {
	if rows == nil {
		rows = []Row{}
	}
	b, err := json.Marshal(rows)
	if err != nil {
		return "", fmt.Errorf("sectionstore: encode rows: %w", err)
	}
	return string(b), nil
}

func decodeColumns(s string) []string {
	var cols []string
	if err := json.Unmarshal([]byte(s), &cols); err != nil {
		return nil
	}
	return cols
}

func encodeColumns(cols []string) string {
	if len(cols) == 0 {
		return ""
	}
	b, _ := json.Marshal(cols)
	return string(b)
}
