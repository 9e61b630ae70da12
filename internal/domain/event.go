package domain

const (
	EventNameSessionCompleted   = "session.completed"
	EventNameScoreRecorded      = "scoreboard.recorded"
	EventNameLeaderboardUpdated = "leaderboard.updated"
)

// EventSessionCompleted is published exactly once, when an attempt moves past its last question.
type EventSessionCompleted struct {
	SessionID string
	Entry     ScoreboardEntry
}

func (EventSessionCompleted) Name() string { return EventNameSessionCompleted }

type EventScoreRecorded struct {
	Entry ScoreboardEntry
}

func (EventScoreRecorded) Name() string { return EventNameScoreRecorded }

type EventLeaderboardUpdated struct {
	Leaderboard Leaderboard
}

func (EventLeaderboardUpdated) Name() string { return EventNameLeaderboardUpdated }
