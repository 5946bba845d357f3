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

// Command etrace is the thin entrypoint over the trace-comparison and
// migration-search pipeline. Collecting traces (running the tracer inside a
// sandbox), persisting them to a relational store, and validating candidate
// migrations in Docker are all out of scope here and are left to whatever a
// deployment wires up via internal/collector, internal/corpus and
// internal/validate; this command only drives the pipeline over records
// already on disk.
package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"

	flags "github.com/jessevdk/go-flags"

	"github.com/anonymouse64/tracemigrate/internal/collector"
	"github.com/anonymouse64/tracemigrate/internal/corpus"
	"github.com/anonymouse64/tracemigrate/internal/equality"
	"github.com/anonymouse64/tracemigrate/internal/migrate"
	"github.com/anonymouse64/tracemigrate/internal/preprocess"
	"github.com/anonymouse64/tracemigrate/internal/scoring"
	"github.com/anonymouse64/tracemigrate/internal/trace"
	"github.com/anonymouse64/tracemigrate/internal/validate"
)

// Command is the command for the runner.
type Command struct {
	Capture cmdCapture `command:"capture" description:"Run a command under strace and save the resulting record"`
	Compare cmdCompare `command:"compare" description:"Score two executable records against each other"`
	Migrate cmdMigrate `command:"migrate" description:"Search for a parameter mapping from a source record onto a target record"`
}

var currentCmd Command
var parser = flags.NewParser(&currentCmd, flags.Default)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	if _, err := parser.Parse(); err != nil {
		os.Exit(1)
	}
}

type cmdCapture struct {
	System     string `long:"system" default:"linux" description:"Collector system tag to store on the record"`
	OutDir     string `short:"o" long:"out" required:"true" description:"Directory to write the resulting record into"`
	Positional struct {
		Executable string   `positional-arg-name:"executable" required:"true"`
		Args       []string `positional-arg-name:"args"`
	} `positional-args:"true"`
}

func (c *cmdCapture) Execute(args []string) error {
	raw, err := collector.Capture(c.Positional.Executable, c.Positional.Args...)
	if err != nil {
		return err
	}

	argv := make([]interface{}, len(c.Positional.Args))
	for i, a := range c.Positional.Args {
		argv[i] = a
	}
	argJSON, err := json.Marshal(argv)
	if err != nil {
		return err
	}

	id := corpus.NewCollectorAssignedID()
	rec := &corpus.Record{
		System:              c.System,
		Executable:          c.Positional.Executable,
		Arguments:           argJSON,
		Collector:           "strace",
		CollectorAssignedID: id,
		RawTraceText:        raw,
	}

	path := corpus.NextPath(c.OutDir, rec.System, rec.Executable, id)
	if err := rec.Save(path); err != nil {
		return err
	}
	fmt.Println(path)
	return nil
}

type cmdCompare struct {
	Method    string `short:"m" long:"method" default:"jaccard" description:"jaccard, tfidf, nic, max-cardinality or max-weight"`
	CorpusDir string `short:"c" long:"corpus" description:"Directory of executable records used for IDF/NIC and global-syscall stripping"`
	HoleFile  string `long:"holes" description:"YAML file of syscall-name to argument-index holes to punch before scoring"`
	Positional struct {
		Source string `positional-arg-name:"source" required:"true"`
		Target string `positional-arg-name:"target" required:"true"`
	} `positional-args:"true"`
}

func (c *cmdCompare) Execute(args []string) error {
	a, err := loadTrace(c.Positional.Source)
	if err != nil {
		return fmt.Errorf("loading source: %w", err)
	}
	b, err := loadTrace(c.Positional.Target)
	if err != nil {
		return fmt.Errorf("loading target: %w", err)
	}

	var holes preprocess.HoleSet
	if c.HoleFile != "" {
		holes, err = preprocess.LoadHoleSet(c.HoleFile)
		if err != nil {
			return fmt.Errorf("loading hole set: %w", err)
		}
	}

	var corpusTraces []*trace.Trace
	var globalHashes map[string]bool
	if c.CorpusDir != "" {
		var loadErrs []error
		corpusTraces, loadErrs = corpus.LoadTraces(c.CorpusDir)
		for _, e := range loadErrs {
			log.Println(e)
		}
		for _, t := range corpusTraces {
			preprocess.Standard(t, holes)
		}
		globalHashes = preprocess.ComputeGlobalSyscalls(corpusTraces, equality.CanonicalEquality)
	}

	preprocess.Standard(a, holes)
	preprocess.Standard(b, holes)

	res, err := corpus.Compare(scoring.Method(c.Method), a, b, corpusTraces, globalHashes)
	if err != nil {
		return err
	}

	fmt.Printf("score: %.4f\n", res.Score)
	if res.HasNormalized {
		fmt.Printf("normalized score: %.4f\n", res.NormalizedScore)
		for _, m := range res.Mapping {
			fmt.Printf("  %v -> %v\n", m.SourceKey, m.TargetKey)
		}
	}
	return nil
}

type cmdMigrate struct {
	SourceExecutable string `long:"source-exe" required:"true" description:"Source command to run for validation"`
	Positional struct {
		Source string `positional-arg-name:"source" required:"true"`
		Target string `positional-arg-name:"target" required:"true"`
	} `positional-args:"true"`
}

func (c *cmdMigrate) Execute(args []string) error {
	a, err := loadTrace(c.Positional.Source)
	if err != nil {
		return fmt.Errorf("loading source: %w", err)
	}
	b, err := loadTrace(c.Positional.Target)
	if err != nil {
		return fmt.Errorf("loading target: %w", err)
	}
	preprocess.Standard(a, nil)
	preprocess.Standard(b, nil)
	preprocess.PairStandard(a, b, nil)

	var sourceParams []migrate.SourceParam
	if a.Params != nil {
		for _, p := range a.Params.All() {
			sourceParams = append(sourceParams, migrate.SourceParam{Key: p.Key, Value: p.Value})
		}
	}

	v := validate.NewLocal(c.SourceExecutable)
	result, err := migrate.Refine(b.System, b.Executable, b.Arguments, sourceParams, v)
	if err != nil {
		return err
	}

	fmt.Printf("validated score: %.4f\n", result.Score)
	for target, source := range result.Mapping {
		fmt.Printf("  %s <- %s\n", target, source)
	}
	return nil
}

func loadTrace(path string) (*trace.Trace, error) {
	rec, err := corpus.Load(path)
	if err != nil {
		return nil, err
	}
	return rec.Trace()
}
