package lifecycle

import (
	"encoding/base64"
	"testing"

	"github.com/matchwire/matchwire/internal/gameclient"
)

func encodePrivate(t *testing.T, payload string) string {
	t.Helper()
	return base64.StdEncoding.EncodeToString([]byte(payload))
}

func TestClassifyStates(t *testing.T) {
	cases := []struct {
		loop string
		want State
	}{
		{"MENUS", StateMenus},
		{"PREGAME", StatePregame},
		{"INGAME", StateIngame},
		{"", StateUnknown},
		{"GARBAGE", StateUnknown},
	}
	for _, tc := range cases {
		private := encodePrivate(t, `{"isValid":true,"sessionLoopState":"`+tc.loop+`","partySize":2}`)
		presences := []gameclient.RawPresence{{PUUID: "me", Private: private}}
		state, party := Classify(presences, "me")
		if state != tc.want {
			t.Errorf("loop %q: state = %s, want %s", tc.loop, state, tc.want)
		}
		if tc.want != StateUnknown && party.PartySize != 2 {
			t.Errorf("loop %q: party size = %d, want 2", tc.loop, party.PartySize)
		}
	}
}

func TestClassifyMissingPlayer(t *testing.T) {
	presences := []gameclient.RawPresence{{PUUID: "someone-else", Private: ""}}
	state, _ := Classify(presences, "me")
	if state != StateUnknown {
		t.Errorf("state = %s, want UNKNOWN", state)
	}
}

func TestClassifyMalformedPrivateMapsToUnknown(t *testing.T) {
	presences := []gameclient.RawPresence{{PUUID: "me", Private: "!!!not-base64!!!"}}
	state, _ := Classify(presences, "me")
	if state != StateUnknown {
		t.Errorf("state = %s, want UNKNOWN", state)
	}
}

func TestClassifySkipsOtherProducts(t *testing.T) {
	ingame := encodePrivate(t, `{"isValid":true,"sessionLoopState":"INGAME"}`)
	presences := []gameclient.RawPresence{
		{PUUID: "me", Product: "league_of_legends", Private: encodePrivate(t, `{"sessionLoopState":"MENUS"}`)},
		{PUUID: "me", Product: "valorant", Private: ingame},
	}
	state, party := Classify(presences, "me")
	if state != StateIngame {
		t.Errorf("state = %s, want INGAME", state)
	}
	if !party.IsValid {
		t.Error("expected decoded party presence")
	}
}

func TestDecodePrivateScoreFields(t *testing.T) {
	private := encodePrivate(t,
		`{"isValid":true,"sessionLoopState":"INGAME","matchMap":"/Game/Maps/Ascent/Ascent","partyOwnerMatchScoreAllyTeam":7,"partyOwnerMatchScoreEnemyTeam":5}`)
	decoded, err := DecodePrivate(private)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.ScoreAlly != 7 || decoded.ScoreEnemy != 5 {
		t.Errorf("scores = %d/%d, want 7/5", decoded.ScoreAlly, decoded.ScoreEnemy)
	}
}
