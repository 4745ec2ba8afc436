// Package folder infers a date and a human description from a folder's path
// and ranks how trustworthy that folder is as an organizing location.
package folder

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// =============================================================================
// Date Specificity
// =============================================================================

// Specificity records how much of a folder's date came from its path.
type Specificity uint8

const (
	None  Specificity = iota // no date
	Year                     // YYYY
	Month                    // YYYY/MM
	Day                      // a full day pattern; scored like Year
)

func (s Specificity) String() string {
	switch s {
	case Year:
		return "year"
	case Month:
		return "month"
	case Day:
		return "day"
	default:
		return "none"
	}
}

// Year bounds for a four digit run to count as a year rather than a number.
const (
	minYear = 1900
	maxYear = 2099
)

// =============================================================================
// Scoring
// =============================================================================

const (
	monthPoints   = 100
	yearPoints    = 50 // Year and Day patterns
	undatedPoints = -50
	segmentPoints = 100
)

// score combines date specificity with the number of descriptive segments.
// An undated folder sits below a bare YYYY/MM so a lone label never outranks
// date scaffolding that the label would otherwise tie with.
func score(spec Specificity, segments int) int {
	s := segments * segmentPoints
	switch spec {
	case Month:
		s += monthPoints
	case Year, Day:
		s += yearPoints
	default:
		s += undatedPoints
	}
	return s
}

// =============================================================================
// Pattern Cascade
// =============================================================================

// Every pattern captures its trailing remainder in the last group; the
// remainder must start with a non-digit so "2021-0912" is not a month.
var (
	dayRE       = regexp.MustCompile(`^(\d{4})[-_. /](\d{2})[-_. /](\d{2})(\D.*)?$`)
	monthNameRE = regexp.MustCompile(`(?i)^(\d{1,2})[-_. ]?(jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[-_. ]?(\d{4})(\D.*)?$`)
	monthRE     = regexp.MustCompile(`^(\d{4})[-_. /](\d{2})(\D.*)?$`)
	stampRE     = regexp.MustCompile(`^(\d{4})(\d{2})(\d{2})(?:[-_]\d{6})?(\D.*)?$`)
	yearRE      = regexp.MustCompile(`^(\d{4})(\D.*)?$`)
)

var monthNames = map[string]time.Month{
	"jan": time.January, "feb": time.February, "mar": time.March,
	"apr": time.April, "may": time.May, "jun": time.June,
	"jul": time.July, "aug": time.August, "sep": time.September,
	"oct": time.October, "nov": time.November, "dec": time.December,
}

type dateMatch struct {
	date     time.Time
	spec     Specificity
	consumed int // bytes of the input taken by the date itself
}

// matchDate runs the cascade against s. Most specific patterns come first and
// the first one that yields a valid calendar date wins.
func matchDate(s string) (dateMatch, bool) {
	if m := dayRE.FindStringSubmatch(s); m != nil {
		if d, ok := makeDate(atoi(m[1]), atoi(m[2]), atoi(m[3])); ok {
			return dateMatch{d, Day, len(s) - len(m[4])}, true
		}
	}
	if m := monthNameRE.FindStringSubmatch(s); m != nil {
		mon := monthNames[strings.ToLower(m[2])]
		if d, ok := makeDate(atoi(m[3]), int(mon), atoi(m[1])); ok {
			return dateMatch{d, Day, len(s) - len(m[4])}, true
		}
	}
	if m := monthRE.FindStringSubmatch(s); m != nil {
		if d, ok := makeDate(atoi(m[1]), atoi(m[2]), 1); ok {
			return dateMatch{d, Month, len(s) - len(m[3])}, true
		}
	}
	if m := stampRE.FindStringSubmatch(s); m != nil {
		if d, ok := makeDate(atoi(m[1]), atoi(m[2]), atoi(m[3])); ok {
			return dateMatch{d, Day, len(s) - len(m[4])}, true
		}
	}
	if m := yearRE.FindStringSubmatch(s); m != nil {
		if d, ok := makeDate(atoi(m[1]), 1, 1); ok {
			return dateMatch{d, Year, len(s) - len(m[2])}, true
		}
	}
	return dateMatch{}, false
}

func makeDate(y, m, d int) (time.Time, bool) {
	if y < minYear || y > maxYear || m < 1 || m > 12 || d < 1 {
		return time.Time{}, false
	}
	t := time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
	if t.Day() != d {
		return time.Time{}, false
	}
	return t, true
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

// =============================================================================
// Classification
// =============================================================================

// Classification is the result of classifying one significant path.
type Classification struct {
	Date        time.Time // zero when Specificity is None
	Specificity Specificity
	// Segments holds the cleaned description of every path segment, outermost
	// first; a segment that contributes nothing is "".
	Segments []string
	Score    int
}

// HasDate reports whether a date was inferred.
func (c Classification) HasDate() bool { return c.Specificity != None }

// Own returns the description contributed by the innermost path segment.
func (c Classification) Own() string {
	if len(c.Segments) == 0 {
		return ""
	}
	return c.Segments[len(c.Segments)-1]
}

// Described returns the non-empty descriptions, outermost first.
func (c Classification) Described() []string {
	out := make([]string, 0, len(c.Segments))
	for _, s := range c.Segments {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Classify classifies a slash separated path relative to a base root using the
// default set of non-descriptive names.
func Classify(rel string) Classification {
	return classify(rel, defaultIgnored)
}

// classify tries the cascade at every segment boundary, outermost first, so a
// date may follow a purely descriptive prefix ("Trips/2021/09"). Segments that
// precede the match keep their full text as description; the catch-all treats
// the whole path as description.
func classify(rel string, ignored map[string]bool) Classification {
	segs := splitRel(rel)
	for k := range segs {
		m, ok := matchDate(strings.Join(segs[k:], "/"))
		if !ok {
			continue
		}
		raw := make([]string, len(segs))
		copy(raw[:k], segs[:k])
		pos := 0
		for i := k; i < len(segs); i++ {
			start, end := pos, pos+len(segs[i])
			switch {
			case m.consumed >= end:
				raw[i] = ""
			case m.consumed > start:
				raw[i] = segs[i][m.consumed-start:]
			default:
				raw[i] = segs[i]
			}
			pos = end + 1
		}
		return build(m.date, m.spec, raw, ignored)
	}
	return build(time.Time{}, None, segs, ignored)
}

func build(date time.Time, spec Specificity, raw []string, ignored map[string]bool) Classification {
	c := Classification{Date: date, Specificity: spec, Segments: make([]string, len(raw))}
	n := 0
	for i, r := range raw {
		c.Segments[i] = cleanSegment(r, ignored)
		if c.Segments[i] != "" {
			n++
		}
	}
	c.Score = score(spec, n)
	return c
}

func splitRel(rel string) []string {
	rel = strings.Trim(strings.ReplaceAll(rel, "\\", "/"), "/")
	if rel == "" || rel == "." {
		return nil
	}
	parts := strings.Split(rel, "/")
	out := parts[:0]
	for _, p := range parts {
		if p != "" && p != "." {
			out = append(out, p)
		}
	}
	return out
}

// =============================================================================
// Description Cleanup
// =============================================================================

const leadingJunk = " _-.,;:~+#()[]"

// cleanSegment drops segments that carry no human meaning: cloud sync ids
// (21-22 characters, no space), bare numbers, and reserved or vendor names.
func cleanSegment(s string, ignored map[string]bool) string {
	s = strings.TrimSpace(strings.TrimLeft(s, leadingJunk))
	s = strings.TrimRight(s, " _-.")
	if s == "" {
		return ""
	}
	if (len(s) == 21 || len(s) == 22) && !strings.Contains(s, " ") {
		return ""
	}
	if _, err := strconv.ParseInt(s, 10, 64); err == nil {
		return ""
	}
	if ignored[strings.ToLower(s)] {
		return ""
	}
	return s
}

// defaultIgnored holds system-reserved side areas and common vendor folders.
var defaultIgnored = map[string]bool{
	"duplicates":      true,
	"no_date":         true,
	"no-date":         true,
	"nodate":          true,
	"migrated":        true,
	"small":           true,
	"imageclean":      true,
	"converted":       true,
	"dcim":            true,
	"camera":          true,
	"camera roll":     true,
	"camera uploads":  true,
	"photos":          true,
	"pictures":        true,
	"my pictures":     true,
	"images":          true,
	"screenshots":     true,
	"google photos":   true,
	"takeout":         true,
	"icloud photos":   true,
	"onedrive":        true,
	"dropbox":         true,
	"whatsapp images": true,
	"100apple":        true,
	"100andro":        true,
	"100media":        true,
	"100canon":        true,
	"100nikon":        true,
	"private":         true,
	"thmbnl":          true,
}

// IgnoreSet merges extra names into the default non-descriptive set.
func IgnoreSet(extra []string) map[string]bool {
	out := make(map[string]bool, len(defaultIgnored)+len(extra))
	for k := range defaultIgnored {
		out[k] = true
	}
	for _, e := range extra {
		if e = strings.ToLower(strings.TrimSpace(e)); e != "" {
			out[e] = true
		}
	}
	return out
}
