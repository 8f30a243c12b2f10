package aggregate

import "github.com/raine/visual-measurement/internal/measurement"

type tally struct {
	first      measurement.ObservableAttribute
	count      int
	confidence float64
	order      int
}

// Vote picks the majority value. Ties go to the larger summed confidence,
// then to the value seen first. The result carries the mean confidence of
// the images that voted for it.
func Vote(votes []measurement.ObservableAttribute) measurement.ObservableAttribute {
	if len(votes) == 0 {
		return measurement.ObservableAttribute{}
	}

	tallies := make(map[string]*tally)
	for i, v := range votes {
		t, ok := tallies[v.Key()]
		if !ok {
			t = &tally{first: v, order: i}
			tallies[v.Key()] = t
		}
		t.count++
		t.confidence += v.Confidence
	}

	var best *tally
	for _, t := range tallies {
		if best == nil || better(t, best) {
			best = t
		}
	}

	winner := best.first
	winner.Confidence = best.confidence / float64(best.count)
	return winner
}

func better(a, b *tally) bool {
	if a.count != b.count {
		return a.count > b.count
	}
	if a.confidence != b.confidence {
		return a.confidence > b.confidence
	}
	return a.order < b.order
}
