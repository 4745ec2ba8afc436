// Package resolve computes, once per run, which input files must be imported
// and which are duplicates of something better.
package resolve

import (
	"github.com/sagshome/ImageClean-sub000/internal/media"
	"github.com/sagshome/ImageClean-sub000/internal/registry"
)

// Reason explains a skip.
type Reason string

const (
	// ReasonInputDuplicate means a better equal copy exists in the input tree.
	ReasonInputDuplicate Reason = "input_duplicate"
	// ReasonOrganized means the output tree already holds an equal copy that
	// is at least as good.
	ReasonOrganized Reason = "already_organized"
)

// Skip is an input file that will not be imported.
type Skip struct {
	File   *media.File
	Kept   *media.File // the winning copy
	Reason Reason

	// InPlace is set when Kept is the same physical file, which happens when
	// the input tree overlaps the output tree. Nothing should be done to it.
	InPlace bool
}

// Result is the batch decision. Both lists are ordered by identity name and
// then by path, independent of walk order.
type Result struct {
	Import []*media.File
	Skip   []Skip
}

// Resolve reduces every identity group of in to its distinct best
// representatives and schedules each for import unless out already holds an
// equal entry that it does not strictly outrank. Neither cache is modified.
func Resolve(in, out *registry.Cache) Result {
	var res Result
	for _, norm := range in.Names() {
		var reps []*media.File
		for _, f := range in.Entries(norm) {
			reps = reduce(reps, f, &res)
		}
		for _, rep := range reps {
			match := out.BestMatch(rep)
			if match == nil || media.Compare(rep, match) > 0 {
				res.Import = append(res.Import, rep)
				continue
			}
			res.Skip = append(res.Skip, Skip{
				File:    rep,
				Kept:    match,
				Reason:  ReasonOrganized,
				InPlace: rep.SameFile(match),
			})
		}
	}
	return res
}

// reduce folds f into reps, keeping one representative per equal group.
func reduce(reps []*media.File, f *media.File, res *Result) []*media.File {
	for i, r := range reps {
		if !media.Equal(r, f) {
			continue
		}
		win := media.Better(r, f)
		lose := f
		if win == f {
			lose = r
		}
		reps[i] = win
		res.Skip = append(res.Skip, Skip{File: lose, Kept: win, Reason: ReasonInputDuplicate})
		return reps
	}
	return append(reps, f)
}
