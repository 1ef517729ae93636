package gameclient

import "encoding/json"

// RawPresence is one entry from the local chat presence list. Private is a
// base64-encoded JSON blob decoded by the lifecycle package.
type RawPresence struct {
	PUUID   string `json:"puuid"`
	Product string `json:"product"`
	Private string `json:"private"`
}

type presenceList struct {
	Presences []RawPresence `json:"presences"`
}

// RawPlayerIdentity carries the cosmetic identity block of a match player.
type RawPlayerIdentity struct {
	Subject        string `json:"Subject"`
	PlayerCardID   string `json:"PlayerCardID"`
	PlayerTitleID  string `json:"PlayerTitleID"`
	LevelBorderID  string `json:"PreferredLevelBorderID"`
	AccountLevel   int    `json:"AccountLevel"`
	HideAccountLvl bool   `json:"HideAccountLevel"`
	Incognito      bool   `json:"Incognito"`
}

// RawMatchPlayer is one participant from the core-game match endpoint.
type RawMatchPlayer struct {
	Subject        string            `json:"Subject"`
	TeamID         string            `json:"TeamID"`
	CharacterID    string            `json:"CharacterID"`
	PlayerIdentity RawPlayerIdentity `json:"PlayerIdentity"`
}

type rawMatchmakingData struct {
	QueueID string `json:"QueueID"`
}

// RawMatch is the current-match payload from the core-game endpoint.
type RawMatch struct {
	MatchID         string             `json:"MatchID"`
	State           string             `json:"State"`
	MapID           string             `json:"MapID"`
	ModeID          string             `json:"ModeID"`
	Players         []RawMatchPlayer   `json:"Players"`
	MatchmakingData rawMatchmakingData `json:"MatchmakingData"`
}

// QueueID returns the matchmaking queue for the match, empty when absent.
func (m *RawMatch) QueueID() string {
	return m.MatchmakingData.QueueID
}

type corePlayerResponse struct {
	MatchID string `json:"MatchID"`
}

type entitlementsResponse struct {
	AccessToken string `json:"accessToken"`
	Token       string `json:"token"`
	Subject     string `json:"subject"`
}

type chatSession struct {
	PUUID    string `json:"puuid"`
	GameName string `json:"game_name"`
	GameTag  string `json:"game_tag"`
	Name     string `json:"name"`
}

// nameServiceEntry is one row of the batch display-name endpoint.
type nameServiceEntry struct {
	Subject  string `json:"Subject"`
	GameName string `json:"GameName"`
	TagLine  string `json:"TagLine"`
}

// competitiveUpdates is the ranked history payload used by the init-pass
// roster stats.
type competitiveUpdates struct {
	Matches []competitiveMatch `json:"Matches"`
}

type competitiveMatch struct {
	MatchID          string `json:"MatchID"`
	TierAfterUpdate  int    `json:"TierAfterUpdate"`
	RatingAfter      int    `json:"RankedRatingAfterUpdate"`
	CompetitiveMove  string `json:"CompetitiveMovement"`
	LeaderboardAfter int    `json:"LeaderboardRank"`
}

// decodeJSON unmarshals a response body into v, distinguishing protocol
// garbage from transport failures for the caller.
func decodeJSON(op string, body []byte, v any) error {
	if err := json.Unmarshal(body, v); err != nil {
		return &TransportError{Op: op, Err: err}
	}
	return nil
}
