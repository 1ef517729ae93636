package snapshot

import (
	"context"
	"log"
	"sort"
	"time"

	"github.com/matchwire/matchwire/internal/gameclient"
	"github.com/matchwire/matchwire/internal/lifecycle"
)

// NameSource resolves display names for a batch of player ids.
type NameSource interface {
	FetchPlayerNames(ctx context.Context, puuids []string) (map[string]string, error)
}

// RankSource resolves a player's competitive standing.
type RankSource interface {
	FetchPlayerRank(ctx context.Context, puuid string) (gameclient.PlayerRank, error)
}

// Normalizer turns raw match payloads into the stable internal schema.
// The expensive roster pass (name resolution, per-player rank lookups,
// side averages) runs once per matchId; subsequent polls reuse the cached
// roster and only refresh scoreboard and state fields.
//
// Only the orchestrator goroutine calls Normalize and Reset, so the
// roster cache needs no locking.
type Normalizer struct {
	names NameSource
	ranks RankSource
	cache *NameCache

	rosterMatchID string
	roster        []PlayerSnapshot
	allyAvgTier   int
	enemyAvgTier  int
	startedAt     *time.Time
}

// NewNormalizer constructs a normalizer around the given lookup sources.
// cache may be nil, in which case every miss goes to the name source.
func NewNormalizer(cache *NameCache, names NameSource, ranks RankSource) *Normalizer {
	return &Normalizer{cache: cache, names: names, ranks: ranks}
}

// Reset clears the per-match roster cache. The agent calls this when the
// observed match ends or changes.
func (n *Normalizer) Reset() {
	n.rosterMatchID = ""
	n.roster = nil
	n.allyAvgTier = 0
	n.enemyAvgTier = 0
	n.startedAt = nil
}

// Normalize builds a MatchSnapshot from the raw payload and the decoded
// presence extras. localSubject identifies the observing player so side
// averages can be labelled ally/enemy.
func (n *Normalizer) Normalize(ctx context.Context, raw *gameclient.RawMatch, extras lifecycle.PartyPresence, localSubject string) MatchSnapshot {
	if raw.MatchID != n.rosterMatchID {
		n.initRoster(ctx, raw, localSubject)
	}

	players := make([]PlayerSnapshot, len(n.roster))
	for i, p := range n.roster {
		players[i] = p.clone()
	}

	return MatchSnapshot{
		MatchID:          raw.MatchID,
		Map:              MapName(raw.MapID),
		Mode:             ModeName(raw.QueueID()),
		State:            raw.State,
		PartySize:        extras.PartySize,
		OwnerScore:       extras.ScoreAlly,
		EnemyScore:       extras.ScoreEnemy,
		StartedAt:        n.startedAt,
		Players:          players,
		AllyAverageTier:  n.allyAvgTier,
		EnemyAverageTier: n.enemyAvgTier,
	}
}

// initRoster performs the expensive once-per-match pass: display names,
// cosmetic ids, per-player ranks and side averages.
func (n *Normalizer) initRoster(ctx context.Context, raw *gameclient.RawMatch, localSubject string) {
	subjects := make([]string, len(raw.Players))
	for i, p := range raw.Players {
		subjects[i] = p.Subject
	}
	names := n.resolveNames(ctx, subjects)

	localTeam := ""
	for _, p := range raw.Players {
		if p.Subject == localSubject {
			localTeam = p.TeamID
			break
		}
	}

	roster := make([]PlayerSnapshot, 0, len(raw.Players))
	tierSums := make(map[string]int)
	tierCounts := make(map[string]int)

	for _, p := range raw.Players {
		name, ok := names[p.Subject]
		if !ok {
			// Cache miss with no remote answer: the raw id is the safe
			// fallback, never a failed normalization.
			name = p.Subject
		}

		player := PlayerSnapshot{
			Subject:       p.Subject,
			Character:     CharacterName(p.CharacterID),
			TeamID:        p.TeamID,
			DisplayName:   name,
			AccountLevel:  p.PlayerIdentity.AccountLevel,
			CharacterIcon: CharacterIcon(p.CharacterID),
			PlayerCardID:  optionalID(p.PlayerIdentity.PlayerCardID),
			PlayerTitleID: optionalID(p.PlayerIdentity.PlayerTitleID),
			LevelBorderID: optionalID(p.PlayerIdentity.LevelBorderID),
			Rank:          RankName(0),
		}

		if n.ranks != nil {
			rank, err := n.ranks.FetchPlayerRank(ctx, p.Subject)
			if err != nil {
				log.Printf("[Normalizer] rank lookup failed for %s: %v", p.Subject, err)
			} else {
				player.Rank = RankName(rank.Tier)
				player.RankRating = rank.RankRating
				if rank.LeaderboardRank > 0 {
					lb := rank.LeaderboardRank
					player.LeaderboardRank = &lb
				}
				if rank.Tier > 0 {
					tierSums[p.TeamID] += rank.Tier
					tierCounts[p.TeamID]++
				}
			}
		}

		roster = append(roster, player)
	}

	sort.Slice(roster, func(i, j int) bool {
		if roster[i].TeamID != roster[j].TeamID {
			return roster[i].TeamID < roster[j].TeamID
		}
		return roster[i].Subject < roster[j].Subject
	})

	n.rosterMatchID = raw.MatchID
	n.roster = roster
	n.allyAvgTier = 0
	n.enemyAvgTier = 0
	for team, sum := range tierSums {
		avg := sum / tierCounts[team]
		if team == localTeam {
			n.allyAvgTier = avg
		} else {
			n.enemyAvgTier = avg
		}
	}
	now := time.Now().UTC()
	n.startedAt = &now
}

// resolveNames checks the local cache first and fetches only the missing
// subjects from the remote source, populating the cache on the way back.
func (n *Normalizer) resolveNames(ctx context.Context, subjects []string) map[string]string {
	names := make(map[string]string, len(subjects))
	missing := subjects

	if n.cache != nil {
		cached, miss, err := n.cache.Lookup(ctx, subjects)
		if err != nil {
			log.Printf("[Normalizer] name cache lookup failed: %v", err)
		} else {
			names = cached
			missing = miss
		}
	}

	if len(missing) > 0 && n.names != nil {
		fetched, err := n.names.FetchPlayerNames(ctx, missing)
		if err != nil {
			log.Printf("[Normalizer] name lookup failed for %d players: %v", len(missing), err)
		} else {
			for subject, name := range fetched {
				names[subject] = name
			}
			if n.cache != nil {
				if err := n.cache.Store(ctx, fetched); err != nil {
					log.Printf("[Normalizer] name cache store failed: %v", err)
				}
			}
		}
	}

	return names
}

func optionalID(id string) *string {
	if id == "" {
		return nil
	}
	return &id
}
