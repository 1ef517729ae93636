package snapshot

import "time"

// PlayerSnapshot is one participant in a live match. Nullable identity
// fields stay nil rather than empty strings and numeric fields default to
// zero so structural comparison stays meaningful across polls.
type PlayerSnapshot struct {
	Subject         string  `json:"subject"`
	Character       string  `json:"character"`
	TeamID          string  `json:"team_id"`
	DisplayName     string  `json:"game_name"`
	AccountLevel    int     `json:"account_level"`
	PlayerCardID    *string `json:"player_card_id"`
	PlayerTitleID   *string `json:"player_title_id"`
	LevelBorderID   *string `json:"preferred_level_border_id"`
	CharacterIcon   string  `json:"agent_icon"`
	Rank            string  `json:"rank"`
	RankRating      int     `json:"rr"`
	LeaderboardRank *int    `json:"leaderboard_rank"`
}

// MatchSnapshot is one point-in-time normalized view of a live match.
// Superseded snapshots are discarded; only the last sent one is kept for
// diffing.
type MatchSnapshot struct {
	MatchID    string           `json:"match_uuid"`
	Map        string           `json:"game_map"`
	Mode       string           `json:"game_mode"`
	State      string           `json:"state"`
	PartySize  int              `json:"party_size"`
	OwnerScore int              `json:"party_owner_score"`
	EnemyScore int              `json:"party_owner_enemy_score"`
	StartedAt  *time.Time       `json:"game_start"`
	Players    []PlayerSnapshot `json:"players"`

	// Roster-level derived fields, computed once per match on the init
	// pass (per-player rank lookups are expensive).
	AllyAverageTier  int `json:"ally_average_tier"`
	EnemyAverageTier int `json:"enemy_average_tier"`
}

// Clone returns a deep copy. The orchestrator hands snapshots to the
// delivery listener, which must never observe later mutations.
func (m MatchSnapshot) Clone() MatchSnapshot {
	out := m
	if m.StartedAt != nil {
		ts := *m.StartedAt
		out.StartedAt = &ts
	}
	out.Players = make([]PlayerSnapshot, len(m.Players))
	for i, p := range m.Players {
		out.Players[i] = p.clone()
	}
	return out
}

func (p PlayerSnapshot) clone() PlayerSnapshot {
	out := p
	out.PlayerCardID = cloneStringPtr(p.PlayerCardID)
	out.PlayerTitleID = cloneStringPtr(p.PlayerTitleID)
	out.LevelBorderID = cloneStringPtr(p.LevelBorderID)
	if p.LeaderboardRank != nil {
		v := *p.LeaderboardRank
		out.LeaderboardRank = &v
	}
	return out
}

func cloneStringPtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
