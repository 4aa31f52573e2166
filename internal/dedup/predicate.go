package dedup

import (
	"github.com/catalogmerge/dedupengine/internal/domain"
	"github.com/catalogmerge/dedupengine/internal/normalize"
)

// titleRatioThreshold and authorRatioThreshold are percentages: the title
// gate vetoes at >= 10, the author gate vetoes at > 20, so a title edit
// distance ratio of exactly 10.00 fails and 9.99 passes.
const (
	titleRatioThreshold  = 10.0
	authorRatioThreshold = 20.0
)

// match runs the fixed short-circuit rule ladder deciding whether R and C
// represent the same work. Rm and Cm are the MetadataViews for R and C
// respectively, built by the record factory ahead of this call.
func (e *Engine) match(R, C *domain.Record, Rm, Cm domain.MetadataView) bool {
	if sharesAny(Rm.ISBNs(), Cm.ISBNs()) {
		return true
	}
	if sharesAny(Rm.UniqueIDs(), Cm.UniqueIDs()) {
		return true
	}

	rISSNs, cISSNs := Rm.ISSNs(), Cm.ISSNs()
	if len(rISSNs) > 0 && len(cISSNs) > 0 && !sharesAny(rISSNs, cISSNs) {
		return false
	}

	if Rm.Format() != Cm.Format() &&
		e.formatMapper.Map(R.SourceID, Rm.Format()) != e.formatMapper.Map(C.SourceID, Cm.Format()) {
		return false
	}

	if ry, rok := Rm.PublicationYear(); rok {
		if cy, cok := Cm.PublicationYear(); cok && ry != cy {
			return false
		}
	}

	if rp, rok := Rm.PageCount(); rok {
		if cp, cok := Cm.PageCount(); cok {
			if absInt(rp-cp) > 10 {
				return false
			}
		}
	}

	if Rm.SeriesISSN() != Cm.SeriesISSN() {
		return false
	}
	if Rm.SeriesNumbering() != Cm.SeriesNumbering() {
		return false
	}

	tR := normalize.Truncate255(Rm.Title(true))
	tC := normalize.Truncate255(Cm.Title(true))
	if tR == "" || tC == "" {
		return false
	}
	if titleRatio(tR, tC) >= titleRatioThreshold {
		return false
	}

	aR := normalize.Normalize(Rm.MainAuthor())
	aC := normalize.Normalize(Cm.MainAuthor())
	switch {
	case aR == "" && aC == "":
		// Neither side declares an author; the gate is skipped entirely.
	case aR == "" || aC == "":
		return false
	default:
		if !normalize.AuthorMatch(aR, aC) {
			ta := normalize.Truncate255(aR)
			tc := normalize.Truncate255(aC)
			if titleRatio(ta, tc) > authorRatioThreshold {
				return false
			}
		}
	}

	return true
}

// titleRatio computes 100 * editDistance(a, b) / len(a) as a float,
// matching the rule ladder's percentage comparisons exactly at the
// boundary (10.00 fails, 9.99 passes).
func titleRatio(a, b string) float64 {
	d := normalize.Levenshtein(a, b)
	return 100 * float64(d) / float64(len([]rune(a)))
}

func absInt(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
