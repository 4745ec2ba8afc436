package media

import (
	"cmp"
	"path/filepath"
)

// Equal is the duplicate test. Both entries must be the same kind; then they
// are equal when they are the same inode or share size and identity name.
// Images are also equal when both perceptual hashes exist and are identical.
// A missing hash degrades images to the standard rule.
func Equal(a, b *File) bool {
	if a == nil || b == nil || a.Kind != b.Kind {
		return false
	}
	if a.SameFile(b) {
		return true
	}
	if a.Norm == b.Norm && a.Size == b.Size {
		return true
	}
	if a.Kind != KindImage {
		return false
	}
	ha, hb := a.Hash(), b.Hash()
	if ha == nil || hb == nil {
		return false
	}
	d, err := ha.Distance(hb)
	return err == nil && d == 0
}

// Compare orders two entries that test Equal. It returns >0 when a is
// preferred over b, <0 when b is preferred and 0 when neither wins.
//
// A higher folder score wins when both entries have a folder. Otherwise, and
// on equal scores, a dated image beats an undated one and the older of two
// dated images wins; for standard files the later modification time wins.
func Compare(a, b *File) int {
	if a.Folder != nil && b.Folder != nil {
		if c := cmp.Compare(a.Folder.Score(), b.Folder.Score()); c != 0 {
			return c
		}
	}
	if a.Kind == KindImage {
		da, oka := a.Date()
		db, okb := b.Date()
		switch {
		case oka && !okb:
			return 1
		case !oka && okb:
			return -1
		case oka && okb:
			return db.Compare(da)
		}
		return 0
	}
	return a.ModTime.Compare(b.ModTime)
}

// Better returns the preferred of two equal entries. Ties go to the
// lexically smaller path so the choice never depends on walk order.
func Better(a, b *File) *File {
	switch c := Compare(a, b); {
	case c > 0:
		return a
	case c < 0:
		return b
	}
	if filepath.Clean(a.Path) <= filepath.Clean(b.Path) {
		return a
	}
	return b
}
