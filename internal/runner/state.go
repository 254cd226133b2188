package runner

import "github.com/aptscan/aptscan/internal/model"

// nextState computes the building status and zero counter after a successful
// scrape that committed unitCount units. Failures never reach here; they pin
// the status to failed and leave the counter alone.
//
// A non-empty unit set always resets the counter and clears needs_attention.
// Consecutive empty sets increment the counter; at the threshold the building
// flips to needs_attention and stays there while the streak continues.
func nextState(b model.Building, unitCount int) (model.ScrapeStatus, int) {
	if unitCount > 0 {
		return model.StatusSuccess, 0
	}
	zero := b.ConsecutiveZeroCount + 1
	if zero >= model.ZeroUnitThreshold {
		return model.StatusNeedsAttention, zero
	}
	return model.StatusSuccess, zero
}
