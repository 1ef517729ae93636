package snapshot

import "fmt"

// Static asset tables. The seed data ships with the binary; the sqlite
// cache layers remotely-resolved names on top. Lookup misses fall back to
// the raw id so a stale table never fails normalization.

var mapNames = map[string]string{
	"/Game/Maps/Ascent/Ascent":   "Ascent",
	"/Game/Maps/Duality/Duality": "Bind",
	"/Game/Maps/Foxtrot/Foxtrot": "Breeze",
	"/Game/Maps/Canyon/Canyon":   "Fracture",
	"/Game/Maps/Triad/Triad":     "Haven",
	"/Game/Maps/Port/Port":       "Icebox",
	"/Game/Maps/Jam/Jam":         "Lotus",
	"/Game/Maps/Pitt/Pitt":       "Pearl",
	"/Game/Maps/Bonsai/Bonsai":   "Split",
}

var characterNames = map[string]string{
	"5f8d3a7f-467b-97f3-062c-13acf203c006": "Breach",
	"117ed9e3-49f3-6512-3ccf-0cada7e3823b": "Cypher",
	"1e58de9c-4950-5125-93e9-a0aee9f98746": "Killjoy",
	"569fdd95-4d10-43ab-ca70-79becc718b46": "Sage",
	"320b2a48-4d9b-a075-30f1-1f93a9b638fa": "Sova",
	"707eab51-4836-f488-046a-cda6bf494859": "Viper",
	"8e253930-4c05-31dd-1b6c-968525494517": "Omen",
	"eb93336a-449b-9c1b-0a54-a891f7921d69": "Phoenix",
	"add6443a-41bd-e414-f6ad-e58d267f4e95": "Jett",
	"f94c3b30-42be-e959-889c-5aa313dba261": "Raze",
	"a3bfb853-43b2-7238-a4f1-ad90e9e46bcc": "Reyna",
	"6f2a04ca-43e0-be17-7f36-b3908627744d": "Skye",
	"7f94d92c-4234-0a36-9646-3a87eb8b5c89": "Yoru",
	"601dbbe7-43ce-be57-2a40-4abd24953621": "KAY/O",
}

var modeNames = map[string]string{
	"newmap":      "New Map",
	"competitive": "Competitive",
	"unrated":     "Unrated",
	"swiftplay":   "Swiftplay",
	"spikerush":   "Spike Rush",
	"deathmatch":  "Deathmatch",
	"ggteam":      "Escalation",
	"onefa":       "Replication",
	"hurm":        "Team Deathmatch",
	"snowball":    "Snowball Fight",
	"custom":      "Custom",
	"":            "Custom",
}

// rankNames maps competitive tier numbers to display names. Tier zero is
// unranked; tiers 1 and 2 are unused by the service.
var rankNames = map[int]string{
	0:  "UNRANKED",
	3:  "IRON 1",
	4:  "IRON 2",
	5:  "IRON 3",
	6:  "BRONZE 1",
	7:  "BRONZE 2",
	8:  "BRONZE 3",
	9:  "SILVER 1",
	10: "SILVER 2",
	11: "SILVER 3",
	12: "GOLD 1",
	13: "GOLD 2",
	14: "GOLD 3",
	15: "PLATINUM 1",
	16: "PLATINUM 2",
	17: "PLATINUM 3",
	18: "DIAMOND 1",
	19: "DIAMOND 2",
	20: "DIAMOND 3",
	21: "ASCENDANT 1",
	22: "ASCENDANT 2",
	23: "ASCENDANT 3",
	24: "IMMORTAL 1",
	25: "IMMORTAL 2",
	26: "IMMORTAL 3",
	27: "RADIANT",
}

const characterIconURL = "https://media.valorant-api.com/agents/%s/displayicon.png"

// MapName resolves a map asset path to its display name.
func MapName(mapID string) string {
	if name, ok := mapNames[mapID]; ok {
		return name
	}
	return mapID
}

// CharacterName resolves a character id to its display name.
func CharacterName(characterID string) string {
	if name, ok := characterNames[characterID]; ok {
		return name
	}
	return characterID
}

// CharacterIcon returns the icon URL for a character id.
func CharacterIcon(characterID string) string {
	return fmt.Sprintf(characterIconURL, characterID)
}

// ModeName resolves a queue id to its display name.
func ModeName(queueID string) string {
	if name, ok := modeNames[queueID]; ok {
		return name
	}
	return queueID
}

// RankName resolves a competitive tier to its display name.
func RankName(tier int) string {
	if name, ok := rankNames[tier]; ok {
		return name
	}
	return fmt.Sprintf("TIER %d", tier)
}
