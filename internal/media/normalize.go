package media

import (
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

var (
	counterRE  = regexp.MustCompile(`\s*\(\d+\)$`)
	rolloverRE = regexp.MustCompile(`_(?:1?[0-9]|20)$`)
	disallowRE = regexp.MustCompile(`[^A-Za-z0-9_\-. ]`)
)

// Normalize reduces a literal filename to its identity name: one trailing
// rollover suffix and then one parenthesized copy counter are removed from the
// stem, characters outside [A-Za-z0-9_-. ] and leading dots are dropped, and
// the result is case-folded. It depends only on the name, never on the
// location.
func Normalize(name string) string {
	name = filepath.Base(name)
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	stem = stripOnce(rolloverRE, stem)
	stem = stripOnce(counterRE, stem)
	out := disallowRE.ReplaceAllString(stem+ext, "")
	out = strings.TrimLeft(out, ".")
	return strings.ToLower(out)
}

// stripOnce removes the trailing match of re unless nothing would remain.
func stripOnce(re *regexp.Regexp, stem string) string {
	if next := re.ReplaceAllString(stem, ""); next != "" {
		return next
	}
	return stem
}

// VersionName returns the rollover sibling name for index n ("a.jpg" -> "a_3.jpg").
func VersionName(name string, n int) string {
	ext := filepath.Ext(name)
	return strings.TrimSuffix(name, ext) + "_" + strconv.Itoa(n) + ext
}
