package snapshot

import "time"

// Differs reports whether two snapshots differ meaningfully. Scalar fields
// compare directly; the players list is a documented unordered collection,
// so it compares content keyed by the stable player id, never by position.
// The agent suppresses sends when this returns false.
func Differs(a, b MatchSnapshot) bool {
	if a.MatchID != b.MatchID ||
		a.Map != b.Map ||
		a.Mode != b.Mode ||
		a.State != b.State ||
		a.PartySize != b.PartySize ||
		a.OwnerScore != b.OwnerScore ||
		a.EnemyScore != b.EnemyScore ||
		a.AllyAverageTier != b.AllyAverageTier ||
		a.EnemyAverageTier != b.EnemyAverageTier {
		return true
	}
	if !timePtrEqual(a.StartedAt, b.StartedAt) {
		return true
	}
	return playersDiffer(a.Players, b.Players)
}

func playersDiffer(a, b []PlayerSnapshot) bool {
	if len(a) != len(b) {
		return true
	}
	bySubject := make(map[string]PlayerSnapshot, len(a))
	for _, p := range a {
		bySubject[p.Subject] = p
	}
	if len(bySubject) != len(a) {
		// Duplicate subjects: position is the only identity left, so fall
		// back to pairwise comparison.
		for i := range a {
			if playerDiffers(a[i], b[i]) {
				return true
			}
		}
		return false
	}
	for _, p := range b {
		other, ok := bySubject[p.Subject]
		if !ok || playerDiffers(p, other) {
			return true
		}
	}
	return false
}

func playerDiffers(a, b PlayerSnapshot) bool {
	if a.Subject != b.Subject ||
		a.Character != b.Character ||
		a.TeamID != b.TeamID ||
		a.DisplayName != b.DisplayName ||
		a.AccountLevel != b.AccountLevel ||
		a.CharacterIcon != b.CharacterIcon ||
		a.Rank != b.Rank ||
		a.RankRating != b.RankRating {
		return true
	}
	return !stringPtrEqual(a.PlayerCardID, b.PlayerCardID) ||
		!stringPtrEqual(a.PlayerTitleID, b.PlayerTitleID) ||
		!stringPtrEqual(a.LevelBorderID, b.LevelBorderID) ||
		!intPtrEqual(a.LeaderboardRank, b.LeaderboardRank)
}

func stringPtrEqual(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func intPtrEqual(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func timePtrEqual(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
