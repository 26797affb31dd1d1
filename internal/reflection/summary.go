package reflection

import "sort"

// CompetencySummary is one row of the scan overview: the average self
// and peer score for a competency across everyone who filled it in.
type CompetencySummary struct {
	CompetencyID string   `json:"competency_id"`
	SelfAvg      *float64 `json:"self_avg,omitempty"`
	PeerAvg      *float64 `json:"peer_avg,omitempty"`
	Responses    int      `json:"responses"`
}

// Summarize folds raw scan rows into per-competency averages. Rows with
// neither score filled in do not count as a response.
func Summarize(scores []CompetencyScore) []CompetencySummary {
	type acc struct {
		selfSum, peerSum float64
		selfN, peerN     int
		responses        int
	}
	byComp := map[string]*acc{}
	for _, cs := range scores {
		if cs.SelfScore == nil && cs.PeerScore == nil {
			continue
		}
		a := byComp[cs.CompetencyID]
		if a == nil {
			a = &acc{}
			byComp[cs.CompetencyID] = a
		}
		a.responses++
		if cs.SelfScore != nil {
			a.selfSum += *cs.SelfScore
			a.selfN++
		}
		if cs.PeerScore != nil {
			a.peerSum += *cs.PeerScore
			a.peerN++
		}
	}

	out := make([]CompetencySummary, 0, len(byComp))
	for id, a := range byComp {
		s := CompetencySummary{CompetencyID: id, Responses: a.responses}
		if a.selfN > 0 {
			v := a.selfSum / float64(a.selfN)
			s.SelfAvg = &v
		}
		if a.peerN > 0 {
			v := a.peerSum / float64(a.peerN)
			s.PeerAvg = &v
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CompetencyID < out[j].CompetencyID })
	return out
}
