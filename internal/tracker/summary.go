package tracker

import "sort"

// Summary is a status overview of the signal store.
type Summary struct {
	LastProcessedDate string         `json:"last_processed_date"`
	Total             int            `json:"total"`
	ByStatus          map[Status]int `json:"by_status"`
	Top               []*Signal      `json:"top"`
}

// Summarize counts signals per status and lists up to topN signals by 7-day
// mentions, optionally restricted to one status. An empty status means all
// live signals (dead ones are excluded from Top).
func Summarize(st *State, status Status, topN int) Summary {
	s := Summary{
		LastProcessedDate: st.LastProcessedDate,
		Total:             len(st.Signals),
		ByStatus:          make(map[Status]int, len(Statuses)),
	}

	var candidates []*Signal
	for _, sig := range st.Sorted() {
		s.ByStatus[sig.Status]++
		switch {
		case status != "" && sig.Status == status:
			candidates = append(candidates, sig)
		case status == "" && sig.Status.Active():
			candidates = append(candidates, sig)
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i].Metrics, candidates[j].Metrics
		if a.Mentions7D != b.Mentions7D {
			return a.Mentions7D > b.Mentions7D
		}
		return a.Confidence > b.Confidence
	})
	if topN > 0 && len(candidates) > topN {
		candidates = candidates[:topN]
	}
	s.Top = candidates
	return s
}
