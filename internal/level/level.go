// Package level parses ski-school proficiency codes out of free-text labels.
//
// Instructors at Born to Ski annotate a client's display name in EVO with the
// client's current grade, e.g. "DANIEL BRUNS 1B", "MARIA 1BSK" or a transition
// state like "HENRIQUE 3A SB/2CSKI". The grade domain is {1,2,3,4}x{A,B,C,D},
// totally ordered 1A < 1B < ... < 4D.
package level

import (
	"regexp"
	"strings"
)

// Discipline is the optional qualifier glued to a level code in free text.
type Discipline string

const (
	DisciplineSki          Discipline = "SK"
	DisciplineSnowboard    Discipline = "SB"
	DisciplineUndesignated Discipline = ""
)

// Codes lists the 16 valid level codes in ascending order.
var Codes = []string{
	"1A", "1B", "1C", "1D",
	"2A", "2B", "2C", "2D",
	"3A", "3B", "3C", "3D",
	"4A", "4B", "4C", "4D",
}

// rankOf maps a code to its rank. The scheme is digit*10 + letter index
// (1A=10 ... 4D=43), so ranks sort the same way the codes do but leave gaps
// between stages.
var rankOf = func() map[string]int {
	m := make(map[string]int, len(Codes))
	for _, c := range Codes {
		digit := int(c[0] - '0')
		letter := int(c[1] - 'A')
		m[c] = digit*10 + letter
	}
	return m
}()

// codePattern matches a stage digit optionally separated from the sub-stage
// letter by whitespace ("2B", "2 B"). It is deliberately not word-bounded so
// glued qualifiers like "1BSK" still match.
var codePattern = regexp.MustCompile(`([1-4])\s*([A-D])`)

var spaceRun = regexp.MustCompile(`\s+`)

// Rank returns the sort rank of a level code and whether the code is valid.
func Rank(code string) (int, bool) {
	r, ok := rankOf[NormalizeCode(code)]
	return r, ok
}

// IsValid reports whether code normalizes to one of the 16 level codes.
func IsValid(code string) bool {
	_, ok := Rank(code)
	return ok
}

// NormalizeCode uppercases a raw level token and drops everything that is not
// a digit or an ASCII letter. "SBB" is an EVO typo for "SB".
func NormalizeCode(code string) string {
	c := strings.ToUpper(strings.TrimSpace(code))
	if c == "" {
		return ""
	}
	c = strings.ReplaceAll(c, "SBB", "SB")
	var b strings.Builder
	for _, r := range c {
		if (r >= '0' && r <= '9') || (r >= 'A' && r <= 'Z') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Match is one level token found in a label.
type Match struct {
	Code       string
	Rank       int
	Discipline Discipline
}

// Result is the outcome of extracting level tokens from a label.
// A zero Code means no level was detected.
type Result struct {
	CleanLabel string
	Code       string
	Rank       int
	Discipline Discipline
	Matches    []Match
}

// HasLevel reports whether a level code was detected.
func (r Result) HasLevel() bool { return r.Code != "" }

// Extract scans a free-text label for level codes and returns the
// highest-ranked one as the primary level ("most advanced level seen").
//
// It is total: nil-ish input or a label without a recognizable code yields a
// Result with an empty Code and the trimmed label passed through. When strip
// is true, recognized codes (with any glued SK/SKI/SB suffix) are removed from
// CleanLabel; stripping is known to miss spaced variants like "2 B" and is off
// by default at call sites.
func Extract(label string, strip bool) Result {
	trimmed := strings.TrimSpace(label)
	res := Result{CleanLabel: trimmed}
	if trimmed == "" {
		return res
	}

	upper := strings.ToUpper(trimmed)
	locs := codePattern.FindAllStringSubmatchIndex(upper, -1)
	if locs == nil {
		return res
	}

	for _, loc := range locs {
		code := string(upper[loc[2]]) + string(upper[loc[4]])
		rank, ok := rankOf[code]
		if !ok {
			continue
		}
		res.Matches = append(res.Matches, Match{
			Code:       code,
			Rank:       rank,
			Discipline: qualifierAfter(upper, loc[1]),
		})
	}
	if len(res.Matches) == 0 {
		return res
	}

	best := res.Matches[0]
	for _, m := range res.Matches[1:] {
		if m.Rank > best.Rank {
			best = m
		}
	}
	res.Code = best.Code
	res.Rank = best.Rank
	res.Discipline = best.Discipline

	if strip {
		res.CleanLabel = stripCodes(trimmed, res.Matches)
	}
	return res
}

// qualifierAfter inspects the letters glued directly after a matched code for
// a SK/SB discipline tag. The qualifier token ends at the first non-letter, so
// "2CSKI" tags ski while "3A SB" leaves 3A undesignated (the SB belongs to a
// different token).
func qualifierAfter(upper string, end int) Discipline {
	tail := upper[end:]
	stop := len(tail)
	for i := 0; i < len(tail); i++ {
		if tail[i] < 'A' || tail[i] > 'Z' {
			stop = i
			break
		}
	}
	tail = tail[:stop]
	switch {
	case strings.Contains(tail, "SK"):
		return DisciplineSki
	case strings.Contains(tail, "SB"):
		return DisciplineSnowboard
	}
	return DisciplineUndesignated
}

// stripCodes removes each matched code, with any glued SKI/SK/SB/SBI suffix,
// from the label and collapses leftover whitespace.
func stripCodes(label string, matches []Match) string {
	out := label
	seen := make(map[string]bool, len(matches))
	for _, m := range matches {
		if seen[m.Code] {
			continue
		}
		seen[m.Code] = true
		re := regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(m.Code) + `(?:SKI?|SBI?)?\b`)
		out = re.ReplaceAllString(out, "")
	}
	return strings.TrimSpace(spaceRun.ReplaceAllString(out, " "))
}

// SplitLevelList parses a raw multi-level field such as "2BSK, 1ASB" into the
// latest ski and snowboard codes. Entries are separated by commas, pipes,
// semicolons or slashes; later entries win, so the list is walked backwards.
// "KC" is a legacy spelling for the ski qualifier.
func SplitLevelList(raw string) (ski, snow string) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", ""
	}

	var parts []string
	for _, p := range strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == '|' || r == ';' || r == '/'
	}) {
		if n := NormalizeCode(p); n != "" {
			parts = append(parts, n)
		}
	}

	for i := len(parts) - 1; i >= 0; i-- {
		p := parts[i]
		if ski == "" && (strings.HasSuffix(p, "SK") || strings.HasSuffix(p, "KC") || strings.HasPrefix(p, "KC")) {
			ski = p
		}
		if snow == "" && strings.HasSuffix(p, "SB") {
			snow = p
		}
		if ski != "" && snow != "" {
			break
		}
	}
	return ski, snow
}

// RouteLevelNames routes EVO memberLevel entries to ski/snow slots: a name
// containing SB counts as snowboard and one containing SK as ski. A single
// name can set both (it never does in practice).
func RouteLevelNames(names []string) (ski, snow string) {
	for _, n := range names {
		lvl := strings.ToUpper(strings.TrimSpace(n))
		if lvl == "" {
			continue
		}
		if strings.Contains(lvl, "SB") {
			snow = lvl
		}
		if strings.Contains(lvl, "SK") {
			ski = lvl
		}
	}
	return ski, snow
}
