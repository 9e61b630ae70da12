package api

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/victornm/quizjudge/internal/domain"
)

type (
	Notification struct {
		Event string `json:"event"`
		Data  any    `json:"data"`
	}

	Leaderboard struct {
		ChallengeID string             `json:"challenge_id"`
		Entries     []LeaderboardEntry `json:"entries"`
	}

	LeaderboardEntry struct {
		Rank             int    `json:"rank"`
		Username         string `json:"username"`
		Score            int    `json:"score"`
		TimeTakenSeconds int64  `json:"time_taken_seconds"`
	}

	ScoreRecorded struct {
		Username         string `json:"username"`
		ChallengeID      string `json:"challenge_id"`
		Score            int    `json:"score"`
		TimeTakenSeconds int64  `json:"time_taken_seconds"`
	}
)

func newLeaderboard(l domain.Leaderboard) Leaderboard {
	data := Leaderboard{
		ChallengeID: l.ChallengeID,
		Entries:     make([]LeaderboardEntry, 0, len(l.Entries)),
	}

	for i, entry := range l.Entries {
		data.Entries = append(data.Entries, LeaderboardEntry{
			Rank:             i + 1,
			Username:         entry.Username,
			Score:            entry.Score,
			TimeTakenSeconds: entry.ElapsedSeconds,
		})
	}

	return data
}

// PublishLeaderboardUpdated fans the new ranking out to the challenge channel.
func (a *API) PublishLeaderboardUpdated(ctx context.Context, e domain.EventLeaderboardUpdated) error {
	return a.publishNotification(ctx, e.Leaderboard.ChallengeID, e.Name(), newLeaderboard(e.Leaderboard))
}

func (a *API) PublishScoreRecorded(ctx context.Context, e domain.EventScoreRecorded) error {
	en := e.Entry
	return a.publishNotification(ctx, en.ChallengeID, e.Name(), ScoreRecorded{
		Username:         en.Username,
		ChallengeID:      en.ChallengeID,
		Score:            en.Score,
		TimeTakenSeconds: en.ElapsedSeconds,
	})
}

func (a *API) publishNotification(ctx context.Context, challengeID, event string, data any) error {
	n := Notification{
		Event: event,
		Data:  data,
	}

	b, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("pubsub: marshal %s: %v", event, err)
	}

	return a.redis.Publish(ctx, fmt.Sprintf("%s:challenge:%s", a.prefix, challengeID), b).Err()
}
