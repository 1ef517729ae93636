package lifecycle

import (
	"encoding/base64"
	"encoding/json"
	"strings"

	"github.com/matchwire/matchwire/internal/gameclient"
)

// State is the observed game lifecycle phase. The machine is cyclical:
// there is no terminal state, classification runs for the process lifetime.
type State string

const (
	StateUnknown State = "UNKNOWN"
	StateMenus   State = "MENUS"
	StatePregame State = "PREGAME"
	StateIngame  State = "INGAME"
	StateEnded   State = "ENDED"
)

// PartyPresence is the decoded private presence blob. Everything the agent
// can learn without a match-details fetch lives here.
type PartyPresence struct {
	IsValid          bool   `json:"isValid"`
	SessionLoopState string `json:"sessionLoopState"`
	PartyID          string `json:"partyId"`
	PartySize        int    `json:"partySize"`
	MatchMap         string `json:"matchMap"`
	ScoreAlly        int    `json:"partyOwnerMatchScoreAllyTeam"`
	ScoreEnemy       int    `json:"partyOwnerMatchScoreEnemyTeam"`
	QueueID          string `json:"queueId"`
	ProvisioningFlow string `json:"provisioningFlow"`
}

// DecodePrivate decodes the base64 JSON private presence payload.
func DecodePrivate(private string) (PartyPresence, error) {
	var p PartyPresence
	if strings.TrimSpace(private) == "" {
		return p, nil
	}
	raw, err := base64.StdEncoding.DecodeString(private)
	if err != nil {
		return p, err
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return p, err
	}
	return p, nil
}

// Classify maps the polled presence list to a lifecycle state for the
// local player. Malformed or absent presence maps to UNKNOWN, which the
// poll loop treats exactly like MENUS: keep polling, no connection
// activity.
func Classify(presences []gameclient.RawPresence, puuid string) (State, PartyPresence) {
	for _, pres := range presences {
		if pres.PUUID != puuid {
			continue
		}
		// Presence rows from other titles on the same account carry no
		// session loop state.
		if pres.Product != "" && pres.Product != "valorant" {
			continue
		}
		decoded, err := DecodePrivate(pres.Private)
		if err != nil {
			return StateUnknown, PartyPresence{}
		}
		return stateFromLoop(decoded.SessionLoopState), decoded
	}
	return StateUnknown, PartyPresence{}
}

func stateFromLoop(loop string) State {
	switch strings.ToUpper(loop) {
	case "MENUS":
		return StateMenus
	case "PREGAME":
		return StatePregame
	case "INGAME":
		return StateIngame
	default:
		return StateUnknown
	}
}
