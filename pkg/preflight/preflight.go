// Package preflight runs environment checks before a batch is
// dispatched. Setup problems — an unreachable source, an unwritable
// output root, a missing converter binary — should fail the whole run
// up front, not surface as thousands of per-record errors.
package preflight

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/structbio/bcifpipe/pkg/idlist"
	"github.com/structbio/bcifpipe/pkg/layout"
	"github.com/structbio/bcifpipe/pkg/repo"
)

// Check names are stable strings used in results and logs.
const (
	CheckSourceStat  = "source.stat"
	CheckOutputWrite = "output.write"
	CheckConverter   = "converter.binary"
)

// Result is the outcome of one check.
type Result struct {
	// Check is the check name.
	Check string

	// OK reports whether the check passed.
	OK bool

	// Detail describes the failure when OK is false.
	Detail string
}

// Report collects check results.
type Report struct {
	Results []Result
}

// Failed returns the first failing result, or nil if all passed.
func (r *Report) Failed() *Result {
	for i := range r.Results {
		if !r.Results[i].OK {
			return &r.Results[i]
		}
	}
	return nil
}

// Spec describes what to check.
type Spec struct {
	// Repository is the source archive. Checked with a Stat of the
	// probe entry's source key.
	Repository repo.Repository

	// Probe is a representative entry used to derive the source key
	// for the reachability check. Zero value skips the source check.
	Probe idlist.Entry

	// Resolver derives the probe's source key.
	Resolver *layout.Resolver

	// OutputRoot is checked for writability.
	OutputRoot string

	// ConverterBin is the converter executable path or name on PATH.
	ConverterBin string
}

// Run executes the checks and returns a report plus an error when any
// check failed. All checks run even after a failure so the report is
// complete.
func Run(ctx context.Context, spec Spec) (*Report, error) {
	rep := &Report{}

	if spec.Repository != nil && spec.Probe.ID != "" && spec.Resolver != nil {
		rep.Results = append(rep.Results, checkSource(ctx, spec))
	}
	if spec.OutputRoot != "" {
		rep.Results = append(rep.Results, checkOutput(spec.OutputRoot))
	}
	if spec.ConverterBin != "" {
		rep.Results = append(rep.Results, checkConverter(spec.ConverterBin))
	}

	if f := rep.Failed(); f != nil {
		return rep, fmt.Errorf("preflight %s: %s", f.Check, f.Detail)
	}
	return rep, nil
}

// checkSource stats one representative source artifact. A vanished
// probe record is tolerated; only transport-level failures count.
func checkSource(ctx context.Context, spec Spec) Result {
	res := Result{Check: CheckSourceStat, OK: true}
	key, err := spec.Resolver.SourceKey(spec.Probe)
	if err != nil {
		return Result{Check: CheckSourceStat, Detail: err.Error()}
	}
	if _, err := spec.Repository.Stat(ctx, key); err != nil && !repo.IsNotFound(err) {
		return Result{Check: CheckSourceStat, Detail: fmt.Sprintf("stat %s: %v", key, err)}
	}
	return res
}

// checkOutput verifies the output root exists (or can be created) and
// accepts writes.
func checkOutput(root string) Result {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return Result{Check: CheckOutputWrite, Detail: err.Error()}
	}
	probe := filepath.Join(root, ".bcifpipe-preflight")
	if err := os.WriteFile(probe, []byte("ok"), 0o644); err != nil {
		return Result{Check: CheckOutputWrite, Detail: err.Error()}
	}
	_ = os.Remove(probe)
	return Result{Check: CheckOutputWrite, OK: true}
}

// checkConverter verifies the converter binary resolves to an
// executable.
func checkConverter(bin string) Result {
	if strings.ContainsRune(bin, os.PathSeparator) {
		st, err := os.Stat(bin)
		if err != nil {
			return Result{Check: CheckConverter, Detail: err.Error()}
		}
		if st.IsDir() || st.Mode().Perm()&0o111 == 0 {
			return Result{Check: CheckConverter, Detail: fmt.Sprintf("%s is not executable", bin)}
		}
		return Result{Check: CheckConverter, OK: true}
	}
	if _, err := exec.LookPath(bin); err != nil {
		return Result{Check: CheckConverter, Detail: err.Error()}
	}
	return Result{Check: CheckConverter, OK: true}
}
