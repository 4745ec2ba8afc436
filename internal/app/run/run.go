// Package run is the orchestrator: it walks both trees, builds the caches,
// resolves duplicates once and then relocates one file at a time.
package run

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/sagshome/ImageClean-sub000/internal/config"
	"github.com/sagshome/ImageClean-sub000/internal/convert"
	"github.com/sagshome/ImageClean-sub000/internal/domain"
	"github.com/sagshome/ImageClean-sub000/internal/folder"
	"github.com/sagshome/ImageClean-sub000/internal/infra/fsx"
	"github.com/sagshome/ImageClean-sub000/internal/infra/imgx"
	"github.com/sagshome/ImageClean-sub000/internal/manifest"
	"github.com/sagshome/ImageClean-sub000/internal/media"
	"github.com/sagshome/ImageClean-sub000/internal/registry"
	"github.com/sagshome/ImageClean-sub000/internal/relocate"
	"github.com/sagshome/ImageClean-sub000/internal/resolve"
	"github.com/sagshome/ImageClean-sub000/internal/scan"
)

// Files kept under <output>/.imageclean.
const (
	WorkDirName  = "work"
	ManifestName = "manifest.csv"
	ReportName   = "report.json"
)

// Deps are the collaborators of one run. Only Fs is required; a nil
// collaborator disables the feature it serves.
type Deps struct {
	Fs         afero.Fs
	Dates      media.DateReader
	Hasher     media.Hasher
	DateWriter relocate.DateWriter
	Codec      convert.Codec
	Tags       convert.TagCopier
	Log        *slog.Logger

	Now      func() time.Time
	NewRunID func() string
}

func (d Deps) withDefaults() Deps {
	if d.Fs == nil {
		d.Fs = afero.NewOsFs()
	}
	if d.Log == nil {
		d.Log = slog.Default()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.NewRunID == nil {
		d.NewRunID = uuid.NewString
	}
	return d
}

type runner struct {
	eff  config.EffectiveConfig
	deps Deps
	obs  Observer
	log  *slog.Logger
	fs   afero.Fs

	insp *media.Inspector
	rel  *relocate.Relocator
	conv *convert.Converter
	out  *registry.Cache

	imported []manifest.Entry
	moves    []manifest.Move // rollover renames not yet tied to an import
}

// Execute performs one run and returns its report. Without eff.Execute it
// only plans: nothing on disk is touched. Per-file failures are recorded in
// the report; only a *FatalError or a cancelled ctx is returned as an error.
func Execute(ctx context.Context, eff config.EffectiveConfig, deps Deps, obs Observer) (domain.RunReport, error) {
	deps = deps.withDefaults()
	if obs == nil {
		obs = nopObserver{}
	}
	obs.OnStart(eff)

	r := &runner{
		eff:  eff,
		deps: deps,
		obs:  obs,
		fs:   deps.Fs,
		log:  deps.Log.With("input", eff.Input, "output", eff.Output),
		insp: &media.Inspector{Fs: deps.Fs, Dates: deps.Dates, Hasher: deps.Hasher},
	}
	return r.run(ctx)
}

func (r *runner) run(ctx context.Context) (domain.RunReport, error) {
	rr := domain.RunReport{
		RunID:     r.deps.NewRunID(),
		Input:     r.eff.Input,
		Output:    r.eff.Output,
		DryRun:    !r.eff.Execute,
		StartedAt: r.deps.Now(),
		Items:     make([]domain.ItemResult, 0, 128),
	}
	finish := func() domain.RunReport {
		rr.FinishedAt = r.deps.Now()
		rr.Finalize()
		return rr
	}

	if err := r.prepare(); err != nil {
		r.log.Error("run aborted", "error", err)
		return finish(), err
	}

	started := time.Now()
	inRes, outRes, err := r.walk()
	if err != nil {
		r.log.Error("run aborted", "error", err)
		return finish(), err
	}
	r.obs.OnPhaseDone("scan", map[string]any{
		"input_files":  len(inRes.Files),
		"output_files": len(outRes.Files),
	}, time.Since(started))
	r.log.Info("scan done", "input_files", len(inRes.Files), "output_files", len(outRes.Files))

	started = time.Now()
	r.out = registry.Build(outRes.Files)
	plan := resolve.Resolve(registry.Build(inRes.Files), r.out)
	r.obs.OnPhaseDone("resolve", map[string]any{
		"import": len(plan.Import),
		"skip":   len(plan.Skip),
	}, time.Since(started))
	r.log.Info("resolve done", "import", len(plan.Import), "skip", len(plan.Skip))

	r.setup(outRes.Tree)

	started = time.Now()
	total := len(plan.Import) + len(plan.Skip)
	idx := 0
	emit := func(item domain.ItemResult) {
		rr.Items = append(rr.Items, item)
		idx++
		r.obs.OnItemDone(idx, total, item)
	}
	var cancelled error
	for _, f := range plan.Import {
		if cancelled = ctx.Err(); cancelled != nil {
			break
		}
		emit(r.importFile(f))
	}
	for _, s := range plan.Skip {
		if cancelled = ctx.Err(); cancelled != nil {
			break
		}
		emit(r.skipFile(s))
	}
	r.obs.OnPhaseDone("relocate", map[string]any{"items": idx, "total": total}, time.Since(started))

	if cancelled != nil {
		r.log.Warn("run cancelled", "done", idx, "total", total)
	} else {
		r.finishUp(rr.RunID)
	}

	rr = finish()
	if r.eff.Execute {
		if err := r.writeReport(rr); err != nil {
			r.log.Warn("write report failed", "error", err)
		}
	}
	return rr, cancelled
}

// prepare checks the fatal conditions and, when executing, recreates the
// output root.
func (r *runner) prepare() error {
	overlap := scan.Contains(r.eff.Input, r.eff.Output) || scan.Contains(r.eff.Output, r.eff.Input)
	if r.eff.Recreate && overlap {
		return &FatalError{Code: FatalRecreateOverlap, Path: r.eff.Output, Err: errors.New("input and output overlap; the input cannot be recreated as an output")}
	}
	if !r.eff.Execute {
		return nil
	}
	if r.eff.Recreate && fsx.Exists(r.fs, r.eff.Output) {
		aside := r.eff.Output + "." + r.deps.Now().Format("20060102-150405")
		if err := r.fs.Rename(r.eff.Output, aside); err != nil {
			return &FatalError{Code: FatalOutputNotWritable, Path: r.eff.Output, Err: err}
		}
		r.log.Info("output moved aside", "aside", aside)
	}
	if err := fsx.ProbeWritable(r.fs, r.eff.Output); err != nil {
		return &FatalError{Code: FatalOutputNotWritable, Path: r.eff.Output, Err: err}
	}
	return nil
}

// walk scans both trees. Whichever root is nested in the other is excluded
// from the outer walk; the duplicates area is never a source of truth.
func (r *runner) walk() (in, out *scan.Result, err error) {
	var inExcl []string
	switch {
	case r.eff.Output == r.eff.Input:
		inExcl = append(inExcl,
			filepath.Join(r.eff.Output, relocate.DuplicatesDir),
			filepath.Join(r.eff.Output, relocate.MigratedDir))
	case scan.Contains(r.eff.Input, r.eff.Output):
		inExcl = append(inExcl, r.eff.Output)
	}
	in, err = scan.Tree(r.fs, r.insp, r.eff.Input, scan.Options{Exclude: inExcl, IgnoreFolders: r.eff.IgnoreFolders})
	if err != nil {
		return nil, nil, &FatalError{Code: FatalInputUnreadable, Path: r.eff.Input, Err: err}
	}

	empty := &scan.Result{Tree: folder.NewTree(r.eff.Output, r.eff.IgnoreFolders)}
	// Organizing a tree in place: every file is an input and is compared
	// against its own destination only.
	if r.eff.Recreate || r.eff.Input == r.eff.Output || !fsx.Exists(r.fs, r.eff.Output) {
		return in, empty, nil
	}
	outExcl := []string{filepath.Join(r.eff.Output, relocate.DuplicatesDir)}
	if scan.Contains(r.eff.Output, r.eff.Input) {
		outExcl = append(outExcl, r.eff.Input)
	}
	out, err = scan.Tree(r.fs, r.insp, r.eff.Output, scan.Options{Exclude: outExcl, IgnoreFolders: r.eff.IgnoreFolders})
	if err != nil {
		r.log.Warn("output scan failed; treating output as empty", "error", err)
		return in, empty, nil
	}
	return in, out, nil
}

func (r *runner) setup(outTree *folder.Tree) {
	r.rel = &relocate.Relocator{
		Fs:         r.fs,
		Inspector:  r.insp,
		Dates:      r.deps.DateWriter,
		Tree:       outTree,
		Log:        r.deps.Log,
		OutputRoot: r.eff.Output,
		OnMove: func(from, to string) {
			r.moves = append(r.moves, manifest.Move{From: from, To: to})
		},
	}
	r.conv = &convert.Converter{
		Fs:        r.fs,
		WorkDir:   filepath.Join(r.eff.Output, relocate.StateDir, WorkDirName),
		Codec:     r.deps.Codec,
		Tags:      r.deps.Tags,
		Inspector: r.insp,
		Log:       r.deps.Log,
	}
}

func (r *runner) opts(keep bool) relocate.Options {
	return relocate.Options{
		Keep:      keep,
		Rollover:  r.eff.Rollover,
		FixDate:   r.eff.FixDate,
		MatchDate: r.eff.MatchDate,
	}
}

// destination applies the check-small policy on top of the organized path.
func (r *runner) destination(f *media.File) string {
	dst := r.rel.Destination(f)
	if r.eff.CheckSmall && f.IsImage() && imgx.IsSmall(r.fs, f.Path) {
		if rel, err := filepath.Rel(r.eff.Output, dst); err == nil {
			dst = r.rel.Area(relocate.SmallDir, rel)
		}
	}
	return dst
}

func (r *runner) importFile(f *media.File) domain.ItemResult {
	item := domain.ItemResult{Src: f.Path}
	dst := r.destination(f)
	converting := r.eff.Convert && r.conv.Applies(f)

	if !r.eff.Execute {
		item.Status = domain.StatusPlanned
		item.Dst = dst
		if converting {
			item.Reason = "convert"
		}
		r.log.Debug("planned", "src", f.Path, "dst", dst)
		return item
	}

	if converting {
		if res, ok := r.convertFile(f, dst); ok {
			return res
		}
	}
	moved, err := r.rel.Relocate(f, dst, r.opts(r.eff.KeepOriginals), r.out)
	if err != nil {
		return r.failed(item, dst, err)
	}
	r.record(f, moved)
	item.Status = domain.StatusImported
	item.Dst = moved.Path
	return item
}

// convertFile imports the converted replacement of f and then relocates the
// original, to the archive area when configured. ok is false when conversion
// itself failed and f should be imported unconverted.
func (r *runner) convertFile(f *media.File, dst string) (domain.ItemResult, bool) {
	item := domain.ItemResult{Src: f.Path}
	conv, err := r.conv.Convert(f)
	if err != nil {
		r.log.Warn("conversion failed; importing original", "src", f.Path, "error", err)
		return item, false
	}

	cdst := r.destination(conv)
	moved, err := r.rel.Relocate(conv, cdst, r.opts(false), r.out)
	if err != nil {
		_ = r.fs.Remove(conv.Path)
		item.ErrorCode = domain.ErrCodeConvertFailed
		return r.failed(item, cdst, err), true
	}
	r.record(f, moved)

	odst := dst
	if r.eff.ArchiveConverted {
		if rel, err := filepath.Rel(r.eff.Output, dst); err == nil {
			odst = r.rel.Area(relocate.MigratedDir, rel)
		}
	}
	opts := r.opts(r.eff.KeepOriginals)
	opts.Rollover = true
	if orig, err := r.rel.Relocate(f, odst, opts, r.out); err != nil {
		r.log.Warn("relocate converted original failed", "src", f.Path, "dst", odst, "error", err)
		item.Reason = "original not relocated: " + err.Error()
	} else {
		item.Reason = "original: " + orig.Path
	}

	item.Status = domain.StatusConverted
	item.Dst = moved.Path
	return item, true
}

func (r *runner) skipFile(s resolve.Skip) domain.ItemResult {
	item := domain.ItemResult{
		Src:    s.File.Path,
		Kept:   s.Kept.Path,
		Status: domain.StatusSkipped,
		Reason: string(s.Reason),
	}
	if s.Reason == resolve.ReasonInputDuplicate {
		item.Status = domain.StatusDuplicate
	}
	if s.InPlace {
		item.Status = domain.StatusSkipped
		item.Reason = "in_place"
		return item
	}
	r.log.Debug("skip", "src", s.File.Path, "kept", s.Kept.Path, "reason", s.Reason)
	if !r.eff.Execute || r.eff.KeepOriginals {
		return item
	}

	rel, err := filepath.Rel(r.eff.Input, s.File.Path)
	if err != nil {
		rel = s.File.Name
	}
	dst := r.rel.Area(relocate.DuplicatesDir, rel)
	moved, err := r.rel.Relocate(s.File, dst, relocate.Options{Rollover: true}, nil)
	if err != nil {
		return r.failed(item, dst, err)
	}
	item.Dst = moved.Path
	return item
}

// failed maps a relocation error onto the item. A file that already sits at
// its destination is not a failure.
func (r *runner) failed(item domain.ItemResult, dst string, err error) domain.ItemResult {
	if errors.Is(err, relocate.ErrSameLocation) {
		item.Status = domain.StatusSkipped
		item.Reason = "in_place"
		return item
	}
	code := domain.ErrCodeIOFailed
	switch {
	case errors.Is(err, relocate.ErrSourceMissing):
		code = domain.ErrCodeSourceMissing
	case errors.Is(err, relocate.ErrOccupied):
		code = domain.ErrCodeOccupied
	case fsx.IsPathTypeConflict(err):
		code = domain.ErrCodeTargetConflict
	}
	if item.ErrorCode == "" {
		item.ErrorCode = code
	}
	item.Status = domain.StatusFailed
	item.Dst = dst
	item.ErrorMsg = err.Error()
	r.log.Warn("relocate failed", "src", item.Src, "dst", dst, "error", err)
	return item
}

func (r *runner) record(src, moved *media.File) {
	capture, _ := src.Date()
	r.imported = append(r.imported, manifest.Entry{
		Src:         src.Path,
		Dst:         moved.Path,
		Size:        moved.Size,
		ModTime:     moved.ModTime,
		CaptureDate: capture,
		Moves:       r.moves,
	})
	r.moves = nil
}

// finishUp runs the post-relocation steps of an executing run.
func (r *runner) finishUp(runID string) {
	if !r.eff.Execute {
		return
	}
	started := time.Now()
	fields := map[string]any{}

	if err := r.fs.RemoveAll(r.conv.WorkDir); err != nil {
		r.log.Warn("remove work dir failed", "path", r.conv.WorkDir, "error", err)
	}
	if !r.eff.KeepOriginals {
		var skip []string
		if r.eff.Input != r.eff.Output {
			skip = append(skip, r.eff.Output)
		}
		removed, err := fsx.RemoveEmptyDirs(r.fs, r.eff.Input, skip...)
		if err != nil {
			r.log.Warn("cleanup failed", "error", err)
		}
		fields["removed_dirs"] = len(removed)
		if len(removed) > 0 {
			r.log.Info("cleaned up empty folders", "count", len(removed))
		}
	}
	if len(r.moves) > 0 {
		r.imported = append(r.imported, manifest.Entry{Moves: r.moves})
		r.moves = nil
	}
	if r.eff.Manifest && len(r.imported) > 0 {
		m := &manifest.Manifest{
			Fs:         r.fs,
			Path:       filepath.Join(r.eff.Output, relocate.StateDir, ManifestName),
			InputRoot:  r.eff.Input,
			OutputRoot: r.eff.Output,
			RunID:      runID,
		}
		added, err := m.Update(r.imported)
		if err != nil {
			r.log.Warn("manifest update failed", "error", err)
		}
		fields["manifest_added"] = added
		r.log.Info("manifest updated", "added", added)
	}
	r.obs.OnPhaseDone("finish", fields, time.Since(started))
}

func (r *runner) writeReport(rr domain.RunReport) error {
	b, err := json.MarshalIndent(rr, "", "  ")
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return fsx.WriteFileAtomic(r.fs, filepath.Join(r.eff.Output, relocate.StateDir), ReportName, append(b, '\n'))
}
