package analyzer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

type RunnerConfig struct {
	// Inputs are file globs. "**" matches any number of directories.
	Inputs []string
	// ArchiveDir receives files that were ingested or skipped as duplicates.
	// Empty leaves them in place.
	ArchiveDir string
	// ErrorDir receives files whose ingestion failed. Empty leaves them in place.
	ErrorDir string
	// SkipDuplicates skips a file when a finalized session already exists
	// with the same file name and content digest.
	SkipDuplicates bool
	// SessionName labels every session of the run. Empty derives the name
	// from each file.
	SessionName string
}

// Runner ingests every file matched by its inputs, one Session per file.
type Runner struct {
	cfg      RunnerConfig
	db       *gorm.DB
	pipeline *Pipeline
	logger   log.Logger
}

type FileOutcome string

const (
	FileIngested  FileOutcome = "ingested"
	FileDuplicate FileOutcome = "duplicate"
	FileFailed    FileOutcome = "failed"
)

type FileResult struct {
	Path    string        `json:"path"`
	Outcome FileOutcome   `json:"outcome"`
	Result  *IngestResult `json:"result,omitempty"`
	Err     error         `json:"-"`
	Error   string        `json:"error,omitempty"`
	MovedTo string        `json:"movedTo,omitempty"`
}

type RunSummary struct {
	Files     []FileResult
	Ingested  int
	Skipped   int
	Failed    int
	TotalLogs int64
	Elapsed   time.Duration
}

func NewRunner(db *gorm.DB, pipeline *Pipeline, cfg RunnerConfig, logger log.Logger) (*Runner, error) {
	if db == nil || pipeline == nil {
		return nil, errors.New("runner requires a database and a pipeline")
	}
	if len(cfg.Inputs) == 0 {
		return nil, errors.New("at least one input glob is required")
	}
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &Runner{cfg: cfg, db: db, pipeline: pipeline, logger: logger}, nil
}

// RunOnce processes every matched file. A failing file is recorded in the
// summary and does not stop the run; only glob or context errors are returned.
func (r *Runner) RunOnce(ctx context.Context) (*RunSummary, error) {
	start := time.Now()
	paths, err := r.expandGlobs(r.cfg.Inputs)
	if err != nil {
		return nil, err
	}
	level.Debug(r.logger).Log("msg", "run start", "files", len(paths), "skip_duplicates", r.cfg.SkipDuplicates)

	sum := &RunSummary{Files: make([]FileResult, 0, len(paths))}
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		fr := r.ingestFile(ctx, p)
		switch fr.Outcome {
		case FileIngested:
			sum.Ingested++
			sum.TotalLogs += fr.Result.TotalLogs
		case FileDuplicate:
			sum.Skipped++
		case FileFailed:
			sum.Failed++
		}
		sum.Files = append(sum.Files, fr)
	}
	sum.Elapsed = time.Since(start)
	level.Info(r.logger).Log("msg", "run done", "ingested", sum.Ingested, "skipped", sum.Skipped,
		"failed", sum.Failed, "total_logs", sum.TotalLogs, "elapsed", sum.Elapsed)
	return sum, nil
}

func (r *Runner) ingestFile(ctx context.Context, p string) FileResult {
	fr := FileResult{Path: p}
	logger := log.With(r.logger, "path", p)

	fail := func(err error) FileResult {
		fr.Outcome = FileFailed
		fr.Err, fr.Error = err, err.Error()
		level.Error(logger).Log("msg", "ingest failed", "err", err)
		fr.MovedTo = r.move(logger, p, r.cfg.ErrorDir)
		return fr
	}

	if r.cfg.SkipDuplicates {
		sha, err := fileDigest(p)
		if err != nil {
			return fail(err)
		}
		dup, err := r.isAlreadyIngested(ctx, filepath.Base(p), sha)
		if err != nil {
			// Left in place: the lookup failed, not the file.
			fr.Outcome = FileFailed
			fr.Err, fr.Error = err, err.Error()
			return fr
		}
		if dup {
			level.Info(logger).Log("msg", "skip already ingested file", "sha256", sha)
			fr.Outcome = FileDuplicate
			fr.MovedTo = r.move(logger, p, r.cfg.ArchiveDir)
			return fr
		}
	}

	f, err := os.Open(p)
	if err != nil {
		return fail(err)
	}
	res, err := r.pipeline.Ingest(ctx, f, filepath.Base(p), r.cfg.SessionName)
	_ = f.Close()
	if err != nil {
		return fail(err)
	}
	fr.Outcome = FileIngested
	fr.Result = res
	fr.MovedTo = r.move(logger, p, r.cfg.ArchiveDir)
	return fr
}

// move is best-effort: a file that cannot be moved stays where it is.
func (r *Runner) move(logger log.Logger, p, dir string) string {
	if strings.TrimSpace(dir) == "" {
		return ""
	}
	dst, err := MoveFileToDir(p, dir)
	if err != nil {
		level.Warn(logger).Log("msg", "move file failed", "dir", dir, "err", err)
		return ""
	}
	return dst
}

func (r *Runner) isAlreadyIngested(ctx context.Context, fileName, sha string) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&Session{}).
		Where("file_name = ? AND source_sha256 = ? AND state = ?", fileName, sha, SessionFinalized).
		Count(&n).Error
	if err != nil {
		return false, errors.Wrap(err, "look up previous sessions")
	}
	return n > 0, nil
}

func fileDigest(p string) (string, error) {
	f, err := os.Open(p)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", errors.Wrapf(err, "hash %q", p)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func (r *Runner) expandGlobs(globs []string) ([]string, error) {
	seen := make(map[string]struct{})
	var out []string
	for _, g := range globs {
		if strings.TrimSpace(g) == "" {
			continue
		}
		matches, err := globFiles(g)
		if err != nil {
			return nil, errors.Wrapf(err, "expand input %q", g)
		}
		for _, m := range matches {
			if info, err := os.Stat(m); err != nil || info.IsDir() {
				continue
			}
			if _, ok := seen[m]; ok {
				continue
			}
			seen[m] = struct{}{}
			out = append(out, m)
		}
	}
	sort.Strings(out)
	return out, nil
}
