/*
 * Copyright (C) 2019 Canonical Ltd
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU General Public License version 3 as
 * published by the Free Software Foundation.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License
 * along with this program.  If not, see <http://www.gnu.org/licenses/>.
 *
 */

// Package corpus loads and persists executable records -- the tuple of
// identifying fields plus raw trace text that the rest of the pipeline
// turns into a parsed, preprocessed trace.Trace -- and drives a comparison
// or a corpus-wide pass over them. The relational store and the Dockerfile
// corpus miner a production deployment would use to populate a corpus are
// out of scope; this package only knows how to read and write the records
// once they exist on disk.
package corpus

import (
	"encoding/json"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"sort"

	"github.com/google/uuid"

	"github.com/anonymouse64/tracemigrate/internal/files"
	"github.com/anonymouse64/tracemigrate/internal/straceparse"
	"github.com/anonymouse64/tracemigrate/internal/trace"
)

// Record is the on-disk shape of an executable record (§6): everything
// needed to reproduce a trace.Trace plus the raw text the parser consumes
// to build its Lines.
type Record struct {
	System              string          `json:"system"`
	Executable          string          `json:"executable"`
	Arguments           json.RawMessage `json:"arguments"`
	Collector           string          `json:"collector"`
	CollectorAssignedID string          `json:"collector_assigned_id"`
	RawTraceText        string          `json:"raw_trace_text"`
	Metadata            map[string]string `json:"metadata,omitempty"`
}

// NewCollectorAssignedID returns a fresh random ID for a Record whose
// collector has no ID of its own to propagate (e.g. a one-off host-local
// capture rather than a run tracked by an external collection system).
func NewCollectorAssignedID() string {
	return uuid.NewString()
}

// Load reads a single Record from a JSON file.
func Load(path string) (*Record, error) {
	b, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var rec Record
	if err := json.Unmarshal(b, &rec); err != nil {
		return nil, fmt.Errorf("corpus: %s: %w", path, err)
	}
	return &rec, nil
}

// Save writes rec to path as indented JSON, replacing anything already
// there: NextPath avoids handing out a colliding name, but a caller
// re-saving a record under a name it already knows about (re-running a
// capture for the same collector-assigned ID) must get a clean overwrite
// rather than Record fields from the old and new save interleaved by
// truncation semantics.
func (rec *Record) Save(path string) error {
	b, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return err
	}
	f, err := files.EnsureExistsAndOpen(path, true)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.Write(b)
	return err
}

// Trace parses RawTraceText and attaches the record's identifying fields,
// producing the trace.Trace the rest of the pipeline operates on. It does
// not run any preprocessor; callers apply preprocess.Standard themselves so
// that callers needing the raw parsed trace (e.g. to inspect TRUNCATED) can
// get it unprocessed.
func (rec *Record) Trace() (*trace.Trace, error) {
	t, err := straceparse.Parse(rec.RawTraceText)
	if err != nil {
		return nil, fmt.Errorf("corpus: parsing %s/%s: %w", rec.System, rec.Executable, err)
	}
	t.System = rec.System
	t.Executable = rec.Executable
	t.Collector = rec.Collector
	t.CollectorAssignedID = rec.CollectorAssignedID
	if len(rec.Arguments) > 0 {
		args, err := trace.ParseArguments(rec.Arguments)
		if err != nil {
			return nil, fmt.Errorf("corpus: parsing arguments for %s/%s: %w", rec.System, rec.Executable, err)
		}
		t.Arguments = args
	}
	return t, nil
}

// LoadDir reads every *.json file directly under dir as a Record, in
// filename order, so that corpus-wide operations (IDF, global-syscall
// stripping) see a deterministic corpus regardless of directory iteration
// order.
func LoadDir(dir string) ([]*Record, error) {
	entries, err := ioutil.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".json" {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	recs := make([]*Record, 0, len(names))
	for _, name := range names {
		rec, err := Load(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

// LoadTraces reads every record in dir and parses it into a trace.Trace,
// skipping (and reporting) any record whose trace text fails to parse
// rather than aborting the whole corpus load, per the ParseError handling
// policy: fatal to the trace, not to corpus loading.
func LoadTraces(dir string) ([]*trace.Trace, []error) {
	recs, err := LoadDir(dir)
	if err != nil {
		return nil, []error{err}
	}
	var traces []*trace.Trace
	var errs []error
	for _, rec := range recs {
		t, err := rec.Trace()
		if err != nil {
			errs = append(errs, err)
			continue
		}
		traces = append(traces, t)
	}
	return traces, errs
}

// NextPath returns a filename under dir for a new record of the given
// system/executable, built from system, executable and id. It does not
// look at dir, so the name is only as unique as id.
func NextPath(dir, system, executable, id string) string {
	safe := func(s string) string {
		out := make([]rune, 0, len(s))
		for _, r := range s {
			if r == os.PathSeparator || r == '/' {
				r = '_'
			}
			out = append(out, r)
		}
		return string(out)
	}
	return filepath.Join(dir, fmt.Sprintf("%s-%s-%s.json", safe(system), safe(executable), safe(id)))
}
