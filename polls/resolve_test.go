package polls

import (
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/clearbook/scheduling-engine/models"
)

func slot(id uint, start time.Time, votes ...models.VoteChoice) models.PollSlot {
	s := models.PollSlot{
		Model:     gorm.Model{ID: id},
		StartTime: start,
		EndTime:   start.Add(time.Hour),
	}
	for i, c := range votes {
		s.Votes = append(s.Votes, models.PollVote{
			SlotID:       id,
			InviteeEmail: string(rune('a'+i)) + "@example.com",
			Choice:       c,
		})
	}
	return s
}

func TestTally(t *testing.T) {
	start := time.Date(2025, time.June, 2, 14, 0, 0, 0, time.UTC)
	slots := []models.PollSlot{
		slot(1, start, models.VoteYes, models.VoteMaybe, models.VoteNo),
	}
	scores := Tally(slots)
	if len(scores) != 1 {
		t.Fatalf("got %d scores", len(scores))
	}
	sc := scores[0]
	if sc.Yes != 1 || sc.Maybe != 1 || sc.No != 1 {
		t.Errorf("tally = %+v", sc)
	}
	if sc.Ranking != 1.5 {
		t.Errorf("ranking = %v, want 1.5", sc.Ranking)
	}
}

func TestWinner(t *testing.T) {
	t0 := time.Date(2025, time.June, 2, 10, 0, 0, 0, time.UTC)
	t1 := t0.Add(2 * time.Hour)
	t2 := t0.Add(4 * time.Hour)

	tests := []struct {
		name   string
		slots  []models.PollSlot
		wantID uint
		wantOK bool
	}{
		{
			name: "most yes wins over yes plus maybe",
			slots: []models.PollSlot{
				slot(1, t0, models.VoteYes, models.VoteYes, models.VoteMaybe), // ranking 2.5
				slot(2, t1, models.VoteYes, models.VoteYes, models.VoteYes),   // ranking 3.0
			},
			wantID: 2,
			wantOK: true,
		},
		{
			name: "ranking tie breaks to earliest start",
			slots: []models.PollSlot{
				slot(1, t2, models.VoteYes, models.VoteYes),
				slot(2, t0, models.VoteYes, models.VoteYes),
				slot(3, t1, models.VoteYes, models.VoteYes),
			},
			wantID: 2,
			wantOK: true,
		},
		{
			name: "maybe-only support never resolves",
			slots: []models.PollSlot{
				slot(1, t0, models.VoteMaybe, models.VoteMaybe),
				slot(2, t1, models.VoteNo),
			},
			wantOK: false,
		},
		{
			name:   "no slots",
			slots:  nil,
			wantOK: false,
		},
		{
			name: "no votes at all",
			slots: []models.PollSlot{
				slot(1, t0),
			},
			wantOK: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Winner(tt.slots)
			if ok != tt.wantOK {
				t.Fatalf("Winner() ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && got.ID != tt.wantID {
				t.Errorf("Winner() = slot %d, want %d", got.ID, tt.wantID)
			}
		})
	}
}

func TestSweepActionFor(t *testing.T) {
	t0 := time.Date(2025, time.June, 2, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		slots []models.PollSlot
		want  sweepAction
	}{
		{
			name: "yes majority auto-resolves",
			slots: []models.PollSlot{
				slot(1, t0, models.VoteYes, models.VoteYes),
				slot(2, t0.Add(2*time.Hour), models.VoteYes, models.VoteYes, models.VoteYes),
			},
			want: sweepAutoResolve,
		},
		{
			name: "maybe votes alone never resolve",
			slots: []models.PollSlot{
				slot(1, t0, models.VoteMaybe, models.VoteMaybe),
			},
			want: sweepMarkUnresolved,
		},
		{
			name: "no votes at all",
			slots: []models.PollSlot{
				slot(1, t0),
			},
			want: sweepMarkUnresolved,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sweepActionFor(tt.slots); got != tt.want {
				t.Errorf("sweepActionFor() = %v, want %v", got, tt.want)
			}
		})
	}
}
