// Package importer commits normalized import payloads (from the spreadsheet
// or AI import collaborators) into the JSON section store. Payload rows are
// already keyed by display label, so they bypass table resolution and
// normalization and are merged by id.
package importer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strconv"

	"github.com/Nterah/QualiPro/internal/project"
	"github.com/Nterah/QualiPro/internal/sections"
	"github.com/Nterah/QualiPro/internal/sectionstore"
)

// ErrNoProjectCode means neither the payload nor the hint named a project.
var ErrNoProjectCode = errors.New("importer: no project code")

// Merger is the store write path (sectionstore.Store).
type Merger interface {
	Merge(ctx context.Context, code string, number int, incoming []sectionstore.Row, columns []string) (sectionstore.MergeResult, error)
}

// Logger is the minimal logging interface used by the importer.
// *log.Logger satisfies this interface.
type Logger interface {
	Printf(format string, v ...any)
}

// Issue is a non-fatal problem with one payload section.
type Issue struct {
	Section int
	Message string
}

func (i Issue) String() string { return fmt.Sprintf("section %d: %s", i.Section, i.Message) }

// SectionReport is what one section commit did.
type SectionReport struct {
	Number  int
	Created int
	Updated int
}

// Report summarizes a commit.
type Report struct {
	Code     string
	Sections []SectionReport
	Issues   []Issue
}

// Importer is safe for concurrent use when its Merger is.
type Importer struct {
	Store  Merger
	Logger Logger
}

func (im *Importer) logf(format string, v ...any) {
	if im.Logger == nil {
		log.New(io.Discard, "", 0).Printf(format, v...)
		return
	}
	im.Logger.Printf(format, v...)
}

// storable reports whether n names a stored record: a part key, or a
// composite section number whose rows are routed to its parts on read.
func storable(n int) bool {
	if _, ok := sections.LookupPart(strconv.Itoa(n)); ok {
		return true
	}
	_, ok := sections.LookupSection(n)
	return ok
}

// Commit merges every section of p. The project code is p.Code normalized,
// or the first code detected in hint (typically the source file name).
// Unknown or empty sections and per-section write failures are reported as
// issues; only a missing project code fails the call.
func (im *Importer) Commit(ctx context.Context, p Payload, hint string) (Report, error) {
	code := project.Normalize(p.Code)
	if code == "" {
		code = project.Detect(hint)
	}
	if code == "" {
		return Report{}, ErrNoProjectCode
	}

	rep := Report{Code: code}
	for _, s := range p.Sections {
		if !storable(s.Index) {
			rep.Issues = append(rep.Issues, Issue{Section: s.Index, Message: "unknown section"})
			continue
		}
		if len(s.Rows) == 0 {
			rep.Issues = append(rep.Issues, Issue{Section: s.Index, Message: "no rows"})
			continue
		}
		res, err := im.Store.Merge(ctx, code, s.Index, s.Rows, s.Columns)
		if err != nil {
			im.logf("warn stage=import code=%q section=%d err=%v", code, s.Index, err)
			rep.Issues = append(rep.Issues, Issue{Section: s.Index, Message: err.Error()})
			continue
		}
		rep.Sections = append(rep.Sections, SectionReport{Number: s.Index, Created: res.Created, Updated: res.Updated})
	}
	im.logf("info stage=import code=%q sections=%d issues=%d", code, len(rep.Sections), len(rep.Issues))
	return rep, nil
}
