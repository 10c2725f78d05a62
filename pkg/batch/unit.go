package batch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/structbio/bcifpipe/pkg/idlist"
	"github.com/structbio/bcifpipe/pkg/layout"
	"github.com/structbio/bcifpipe/pkg/output"
	"github.com/structbio/bcifpipe/pkg/repo"
)

// Failure describes one record that could not be converted.
type Failure struct {
	ID      string
	Code    string
	Message string
}

// UnitReport is the structured result of one worker unit.
type UnitReport struct {
	Shard     int
	Processed int64
	Converted int64
	Skipped   int64
	Failed    int64
	Failures  []Failure
}

// unit processes one shard of entries, strictly in list order. A
// failure on one record is recorded and the unit moves to the next;
// only context cancellation stops a unit early.
type unit struct {
	runner  *Runner
	shard   int
	scratch *scratchSpace
	logger  *zap.Logger
	report  UnitReport
}

func (u *unit) run(ctx context.Context, entries []idlist.Entry) error {
	defer func() {
		if err := u.scratch.Remove(); err != nil {
			u.logger.Warn("failed to remove scratch dir", zap.Error(err))
		}
	}()

	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		u.processOne(ctx, e)
		u.report.Processed++
		u.runner.processed.Add(1)
	}

	_ = u.runner.writer.WriteProgress(ctx, &output.ProgressRecord{
		Shard:     u.shard,
		Processed: u.report.Processed,
		Converted: u.report.Converted,
		Skipped:   u.report.Skipped,
		Failed:    u.report.Failed,
	})
	u.logger.Info("shard drained",
		zap.Int64("processed", u.report.Processed),
		zap.Int64("converted", u.report.Converted),
		zap.Int64("skipped", u.report.Skipped),
		zap.Int64("failed", u.report.Failed))
	return nil
}

func (u *unit) processOne(ctx context.Context, e idlist.Entry) {
	dest, err := u.runner.resolver.DestPath(u.runner.cfg.OutputRoot, e.ID, e.Category)
	if err != nil {
		u.fail(ctx, e, output.ErrCodeResolve, err)
		return
	}

	if !NeedsConversion(dest, e.Timestamp) {
		u.report.Skipped++
		u.runner.skipped.Add(1)
		_ = u.runner.writer.WriteSkip(ctx, &output.SkipRecord{
			ID:       e.ID,
			Category: string(e.Category),
			Dest:     dest,
			Reason:   "up_to_date",
			Shard:    u.shard,
		})
		u.logger.Debug("skip", zap.String("id", e.ID), zap.String("dest", dest))
		return
	}

	key, err := u.runner.resolver.SourceKey(e)
	if err != nil {
		u.fail(ctx, e, output.ErrCodeResolve, err)
		return
	}

	srcPath := u.scratch.Path(e.ID + layout.SourceSuffix)
	if _, err := u.runner.fetcher.Fetch(ctx, key, srcPath); err != nil {
		u.fail(ctx, e, fetchErrCode(err), err)
		return
	}

	tmpOut := u.scratch.Path(e.ID + u.runner.resolver.Options().Suffix)
	if err := u.runner.conv.Convert(ctx, srcPath, tmpOut, u.scratch.Dir()); err != nil {
		_ = os.Remove(srcPath)
		u.fail(ctx, e, output.ErrCodeConversion, err)
		return
	}
	_ = os.Remove(srcPath)

	if err := publish(tmpOut, dest); err != nil {
		u.fail(ctx, e, output.ErrCodeInternal, err)
		return
	}

	var size int64
	if st, err := os.Stat(dest); err == nil {
		size = st.Size()
	}
	u.report.Converted++
	u.runner.converted.Add(1)
	_ = u.runner.writer.WriteConvert(ctx, &output.ConvertRecord{
		ID:       e.ID,
		Category: string(e.Category),
		Dest:     dest,
		Bytes:    size,
		Shard:    u.shard,
	})
	u.logger.Debug("converted", zap.String("id", e.ID), zap.String("dest", dest))

	if err := u.scratch.Tick(); err != nil {
		u.logger.Warn("scratch clear failed", zap.Error(err))
	}
}

func (u *unit) fail(ctx context.Context, e idlist.Entry, code string, err error) {
	u.report.Failed++
	u.runner.failed.Add(1)
	u.report.Failures = append(u.report.Failures, Failure{ID: e.ID, Code: code, Message: err.Error()})
	_ = u.runner.writer.WriteError(ctx, &output.ErrorRecord{
		ID:       e.ID,
		Category: string(e.Category),
		Code:     code,
		Message:  err.Error(),
		Shard:    u.shard,
	})
	u.logger.Warn("record failed",
		zap.String("id", e.ID),
		zap.String("code", code),
		zap.Error(err))
}

// fetchErrCode maps fetch failures onto the record error taxonomy.
func fetchErrCode(err error) string {
	switch {
	case repo.IsNotFound(err):
		return output.ErrCodeNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return output.ErrCodeTimeout
	default:
		return output.ErrCodeFetch
	}
}

// publish moves a finished conversion from scratch into its
// destination. The destination only ever appears complete: the file is
// renamed into place, falling back to a copy into a same-directory
// temp file plus rename when scratch and output live on different
// filesystems.
func publish(src, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	if err := os.Rename(src, dest); err == nil {
		return nil
	}

	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open staged output: %w", err)
	}
	defer func() { _ = in.Close() }()

	tmp, err := os.CreateTemp(filepath.Dir(dest), filepath.Base(dest)+".tmp-*")
	if err != nil {
		return fmt.Errorf("stage output: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := io.Copy(tmp, in); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("stage output: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("stage output: %w", err)
	}
	if err := os.Rename(tmpName, dest); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("publish output: %w", err)
	}
	_ = os.Remove(src)
	return nil
}
