package importer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/Nterah/QualiPro/internal/sectionstore"
	"github.com/Nterah/QualiPro/internal/storage"
)

// Payload is a normalized import: rows already keyed by display label.
type Payload struct {
	Code     string    `json:"code"`
	Sections []Section `json:"sections"`
}

// Section is one section of a payload.
type Section struct {
	Index   int                `json:"index"`
	Columns []string           `json:"columns,omitempty"`
	Rows    []sectionstore.Row `json:"rows"`
}

// UnmarshalJSON accepts "code", "project_code" or "projectCode".
func (p *Payload) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("importer: payload: %w", err)
	}
	for _, k := range []string{"code", "project_code", "projectCode"} {
		if v, ok := raw[k]; ok {
			var s string
			if err := json.Unmarshal(v, &s); err != nil {
				return fmt.Errorf("importer: payload %s: %w", k, err)
			}
			p.Code = s
			break
		}
	}
	if v, ok := first(raw, "sections"); ok {
		if err := json.Unmarshal(v, &p.Sections); err != nil {
			return fmt.Errorf("importer: payload sections: %w", err)
		}
	}
	return nil
}

// UnmarshalJSON accepts index|section|number for the number (as a JSON
// number or numeric string), columns|headers for the column list and
// rows|data|items|table for the rows. Row values are stringified.
func (s *Section) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("importer: section: %w", err)
	}
	if v, ok := first(raw, "index", "section", "number"); ok {
		n, err := parseIndex(v)
		if err != nil {
			return err
		}
		s.Index = n
	}
	if v, ok := first(raw, "columns", "headers"); ok {
		if err := json.Unmarshal(v, &s.Columns); err != nil {
			return fmt.Errorf("importer: section %d columns: %w", s.Index, err)
		}
	}
	if v, ok := first(raw, "rows", "data", "items", "table"); ok {
		rows, err := parseRows(v)
		if err != nil {
			return fmt.Errorf("importer: section %d rows: %w", s.Index, err)
		}
		s.Rows = rows
	}
	return nil
}

func first(raw map[string]json.RawMessage, keys ...string) (json.RawMessage, bool) {
	for _, k := range keys {
		if v, ok := raw[k]; ok && !bytes.Equal(bytes.TrimSpace(v), []byte("null")) {
			return v, true
		}
	}
	return nil, false
}

func parseIndex(v json.RawMessage) (int, error) {
	var val any
	dec := json.NewDecoder(bytes.NewReader(v))
	dec.UseNumber()
	if err := dec.Decode(&val); err != nil {
		return 0, fmt.Errorf("importer: section index: %w", err)
	}
	var s string
	switch t := val.(type) {
	case json.Number:
		s = t.String()
	case string:
		s = strings.TrimSpace(t)
	default:
		return 0, fmt.Errorf("importer: section index: unexpected %T", val)
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("importer: section index %q: %w", s, err)
	}
	return n, nil
}

// parseRows accepts a list of objects; values of any JSON type are
// stringified the way stored rows are.
func parseRows(v json.RawMessage) ([]sectionstore.Row, error) {
	var items []map[string]any
	dec := json.NewDecoder(bytes.NewReader(v))
	dec.UseNumber()
	if err := dec.Decode(&items); err != nil {
		return nil, err
	}
	out := make([]sectionstore.Row, 0, len(items))
	for _, it := range items {
		r := make(sectionstore.Row, len(it))
		for k, val := range it {
			r[strings.TrimSpace(k)] = storage.NormalizeKey(val)
		}
		out = append(out, r)
	}
	return out, nil
}
