package dedup

import (
	"github.com/sergi/go-diff/diffmatchpatch"
)

// sequenceRatio computes a Python difflib.SequenceMatcher-equivalent
// similarity ratio: 2*M / T, where M is the total length of matching
// blocks and T is the combined length of both strings. go-diff's
// diffmatchpatch is the pack's standard port of the same algorithm family.
func sequenceRatio(a, b string) float64 {
	if a == "" && b == "" {
		return 1.0
	}
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(a, b, false)

	var matched int
	for _, d := range diffs {
		if d.Type == diffmatchpatch.DiffEqual {
			matched += len(d.Text)
		}
	}
	total := len(a) + len(b)
	if total == 0 {
		return 1.0
	}
	return 2 * float64(matched) / float64(total)
}
