package polls

import (
	"sort"

	"github.com/clearbook/scheduling-engine/models"
)

// SlotScore is one proposed slot's tally.
type SlotScore struct {
	SlotID  uint
	Yes     int
	Maybe   int
	No      int
	Ranking float64 // yes + 0.5*maybe
}

// Tally scores every slot of a poll from its votes.
func Tally(slots []models.PollSlot) []SlotScore {
	scores := make([]SlotScore, 0, len(slots))
	for _, slot := range slots {
		sc := SlotScore{SlotID: slot.ID}
		for _, v := range slot.Votes {
			switch v.Choice {
			case models.VoteYes:
				sc.Yes++
			case models.VoteMaybe:
				sc.Maybe++
			case models.VoteNo:
				sc.No++
			}
		}
		sc.Ranking = float64(sc.Yes) + 0.5*float64(sc.Maybe)
		scores = append(scores, sc)
	}
	return scores
}

// Winner picks the resolving slot: most yes votes win, maybe counts half for
// ranking but never resolves on its own, ties break to the earliest start.
// Returns false when no slot has a single yes vote.
func Winner(slots []models.PollSlot) (models.PollSlot, bool) {
	if len(slots) == 0 {
		return models.PollSlot{}, false
	}
	scores := Tally(slots)
	byID := make(map[uint]models.PollSlot, len(slots))
	for _, s := range slots {
		byID[s.ID] = s
	}

	sort.SliceStable(scores, func(i, j int) bool {
		if scores[i].Ranking != scores[j].Ranking {
			return scores[i].Ranking > scores[j].Ranking
		}
		return byID[scores[i].SlotID].StartTime.Before(byID[scores[j].SlotID].StartTime)
	})

	best := scores[0]
	if best.Yes == 0 {
		// Maybe-only support never auto-resolves.
		return models.PollSlot{}, false
	}
	return byID[best.SlotID], true
}
