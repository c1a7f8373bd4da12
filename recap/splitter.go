package recap

import "strings"

// Segment is a contiguous, in-memory slice of a Document's lines produced by
// splitting. Segments of one split partition the parent with no overlap and
// no gaps: concatenating their lines reproduces the parent exactly.
type Segment struct {
	Ordinal int // 1-based position within the split
	Of      int // total segments in the split
	Lines   []string
}

// sectionBoundaryPrefix matches the level-2 heading marker the upstream
// month renderer emits between sections.
const sectionBoundaryPrefix = "## "

func isSectionBoundary(line string) bool {
	return strings.HasPrefix(line, sectionBoundaryPrefix)
}

// SplitInTwo cuts doc at the first section boundary at or after the midpoint
// line, falling back to the exact midpoint when the tail has no boundary.
// Callers must not invoke it on documents with fewer than 2 lines.
func SplitInTwo(doc Document) [2]Segment {
	lines := doc.Lines
	mid := len(lines) / 2

	cut := mid
	for i := mid; i < len(lines); i++ {
		if isSectionBoundary(lines[i]) {
			cut = i
			break
		}
	}
	if cut == 0 || cut >= len(lines) {
		cut = mid
	}

	return [2]Segment{
		{Ordinal: 1, Of: 2, Lines: lines[:cut]},
		{Ordinal: 2, Of: 2, Lines: lines[cut:]},
	}
}

// SplitInFour cuts doc at three points targeted at 1/4, 1/2 and 3/4 of its
// lines. Each target scans forward at most a quarter-length for a section
// boundary, defaulting to the raw target index; cut points are clamped to be
// monotonically non-decreasing.
func SplitInFour(doc Document) [4]Segment {
	lines := doc.Lines
	n := len(lines)
	quarter := n / 4
	targets := [3]int{n / 4, n / 2, 3 * n / 4}

	var cuts [3]int
	prev := 0
	for ti, target := range targets {
		cut := target
		limit := target + quarter
		if limit > n {
			limit = n
		}
		for i := target; i < limit; i++ {
			if isSectionBoundary(lines[i]) {
				cut = i
				break
			}
		}
		if cut < prev {
			cut = prev
		}
		cuts[ti] = cut
		prev = cut
	}

	return [4]Segment{
		{Ordinal: 1, Of: 4, Lines: lines[:cuts[0]]},
		{Ordinal: 2, Of: 4, Lines: lines[cuts[0]:cuts[1]]},
		{Ordinal: 3, Of: 4, Lines: lines[cuts[1]:cuts[2]]},
		{Ordinal: 4, Of: 4, Lines: lines[cuts[2]:]},
	}
}
