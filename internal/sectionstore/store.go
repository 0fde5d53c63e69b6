// Package sectionstore is the JSON section store: one record per project
// and section number holding a serialized list of flat string rows.
//
// Every write is a single read-merge-write transaction on one record
// (storage.SectionRepository.UpdateSection). Concurrent writers to the same
// record are last-write-wins per field.
package sectionstore

import (
	"context"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/Nterah/QualiPro/internal/metrics"
	"github.com/Nterah/QualiPro/internal/sections"
	"github.com/Nterah/QualiPro/internal/storage"
)

// Logger is the minimal logging interface used by the store.
// *log.Logger satisfies this interface.
type Logger interface {
	Printf(format string, v ...any)
}

// Section is a decoded section record.
type Section struct {
	Number      int
	Title       string
	Rows        []Row
	Columns     []string
	Completed   bool
	SourceTable string
	Guessed     bool
	UpdatedAt   time.Time
}

// Provenance records where hydrated rows came from.
type Provenance struct {
	SourceTable string
	Guessed     bool
}

// Store is safe for concurrent use when its repository is.
type Store struct {
	repo storage.SectionRepository
	ids  *IDGen
	logf func(format string, v ...any)
}

// New wraps repo. logger may be nil.
func New(repo storage.SectionRepository, logger Logger) *Store {
	logf := log.New(io.Discard, "", 0).Printf
	if logger != nil {
		logf = logger.Printf
	}
	return &Store{repo: repo, ids: NewIDGen(), logf: logf}
}

// NewID issues a fresh row id.
func (s *Store) NewID() string { return s.ids.Next() }

// Get returns the stored rows, or nil when the record is absent or empty.
// An undecodable blob is logged and treated as empty.
func (s *Store) Get(ctx context.Context, code string, number int) ([]Row, error) {
	sec, err := s.Load(ctx, code, number)
	if err != nil || sec == nil {
		return nil, err
	}
	return sec.Rows, nil
}

// Load returns the decoded record, or nil when absent.
func (s *Store) Load(ctx context.Context, code string, number int) (*Section, error) {
	rec, err := s.repo.GetSection(ctx, code, number)
	if err != nil {
		return nil, fmt.Errorf("sectionstore: get %s/%d: %w", code, number, err)
	}
	if rec == nil {
		return nil, nil
	}
	sec := s.decode(*rec)
	return &sec, nil
}

// List returns every stored section for code ordered by number.
func (s *Store) List(ctx context.Context, code string) ([]Section, error) {
	recs, err := s.repo.ListSections(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("sectionstore: list %s: %w", code, err)
	}
	out := make([]Section, 0, len(recs))
	for _, r := range recs {
		out = append(out, s.decode(r))
	}
	return out, nil
}

func (s *Store) decode(rec storage.SectionRecord) Section {
	rows, err := DecodeRows(rec.RowsJSON)
	if err != nil {
		s.logf("warn stage=store code=%q section=%d err=%v", rec.ProjectCode, rec.SectionNumber, err)
	}
	return Section{
		Number:      rec.SectionNumber,
		Title:       rec.Title,
		Rows:        rows,
		Columns:     decodeColumns(rec.ColumnsJSON),
		Completed:   rec.Completed,
		SourceTable: rec.SourceTable,
		Guessed:     rec.Guessed,
		UpdatedAt:   rec.LastEditedOn,
	}
}

// EnsureExists creates empty placeholder records for every shell not yet
// stored for code. It is idempotent and returns the number created.
func (s *Store) EnsureExists(ctx context.Context, code string, shells []storage.SectionShell) (int, error) {
	n, err := s.repo.InsertMissingSections(ctx, code, shells)
	if err != nil {
		return 0, fmt.Errorf("sectionstore: ensure %s: %w", code, err)
	}
	if n > 0 {
		metrics.IncCounter(metrics.StoreWritesTotal, float64(n), metrics.Labels{"op": "ensure"})
	}
	return n, nil
}

// Put replaces the stored rows. columns, when non-empty, replaces the
// stored display column list.
func (s *Store) Put(ctx context.Context, code string, number int, rows []Row, columns []string) error {
	blob, err := EncodeRows(rows)
	if err != nil {
		return err
	}
	err = s.repo.UpdateSection(ctx, code, number, func(rec *storage.SectionRecord) error {
		rec.RowsJSON = blob
		if len(columns) > 0 {
			rec.ColumnsJSON = encodeColumns(columns)
		}
		fillTitle(rec)
		return nil
	})
	if err != nil {
		return fmt.Errorf("sectionstore: put %s/%d: %w", code, number, err)
	}
	metrics.IncCounter(metrics.StoreWritesTotal, 1, metrics.Labels{"op": "put"})
	return nil
}

// Merge merges incoming rows by id into the stored list in one transaction.
func (s *Store) Merge(ctx context.Context, code string, number int, incoming []Row, columns []string) (MergeResult, error) {
	var res MergeResult
	err := s.repo.UpdateSection(ctx, code, number, func(rec *storage.SectionRecord) error {
		existing, err := DecodeRows(rec.RowsJSON)
		if err != nil {
			s.logf("warn stage=store code=%q section=%d replacing undecodable rows err=%v", code, number, err)
		}
		var merged []Row
		merged, res = MergeRows(existing, incoming, s.ids.Next)
		if res.Created == 0 && res.Updated == 0 && len(columns) == 0 {
			return storage.ErrNoChange
		}
		blob, err := EncodeRows(merged)
		if err != nil {
			return err
		}
		rec.RowsJSON = blob
		if len(columns) > 0 {
			rec.ColumnsJSON = encodeColumns(columns)
		}
		fillTitle(rec)
		return nil
	})
	if err != nil {
		return MergeResult{}, fmt.Errorf("sectionstore: merge %s/%d: %w", code, number, err)
	}
	metrics.IncCounter(metrics.StoreWritesTotal, 1, metrics.Labels{"op": "merge"})
	return res, nil
}

// SaveRow merges a single row and returns its id (synthesized when the
// row had none).
func (s *Store) SaveRow(ctx context.Context, code string, number int, row Row) (string, error) {
	r := row.clone()
	if r.ID() == "" {
		r[IDKey] = s.ids.Next()
	}
	if _, err := s.Merge(ctx, code, number, []Row{r}, nil); err != nil {
		return "", err
	}
	return r.ID(), nil
}

// PutIfEmpty stores rows only when the record holds no rows yet, checked
// inside the write transaction. It reports whether it wrote.
func (s *Store) PutIfEmpty(ctx context.Context, code string, number int, rows []Row, columns []string, prov Provenance) (bool, error) {
	if len(rows) == 0 {
		return false, nil
	}
	blob, err := EncodeRows(rows)
	if err != nil {
		return false, err
	}
	wrote := false
	err = s.repo.UpdateSection(ctx, code, number, func(rec *storage.SectionRecord) error {
		if existing, _ := DecodeRows(rec.RowsJSON); len(existing) > 0 {
			return storage.ErrNoChange
		}
		rec.RowsJSON = blob
		rec.ColumnsJSON = encodeColumns(columns)
		rec.SourceTable = prov.SourceTable
		rec.Guessed = prov.Guessed
		fillTitle(rec)
		wrote = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("sectionstore: hydrate %s/%d: %w", code, number, err)
	}
	if wrote {
		metrics.IncCounter(metrics.StoreWritesTotal, 1, metrics.Labels{"op": "hydrate"})
	}
	return wrote, nil
}

// fillTitle names records seeded by a write to an unscaffolded section.
func fillTitle(rec *storage.SectionRecord) {
	if rec.Title == "" {
		rec.Title = sections.Title(rec.SectionNumber)
	}
}

// SetCompleted flips the completed flag.
func (s *Store) SetCompleted(ctx context.Context, code string, number int, done bool) error {
	err := s.repo.UpdateSection(ctx, code, number, func(rec *storage.SectionRecord) error {
		if rec.Completed == done {
			return storage.ErrNoChange
		}
		rec.Completed = done
		return nil
	})
	if err != nil {
		return fmt.Errorf("sectionstore: complete %s/%d: %w", code, number, err)
	}
	return nil
}
