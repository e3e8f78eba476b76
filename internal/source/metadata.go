package source

import (
	"regexp"
	"strings"
)

var playerPatterns = []*regexp.Regexp{
	regexp.MustCompile(`([A-Z][a-z]+(?:\s+[A-Z][a-z]+)*)\s+vs?\.?\s+([A-Z][a-z]+(?:\s+[A-Z][a-z]+)*)`),
	regexp.MustCompile(`([A-Z][a-z]+(?:\s+[A-Z][a-z]+)*)\s+-\s+([A-Z][a-z]+(?:\s+[A-Z][a-z]+)*)`),
}

var nonPlayers = map[string]bool{
	"highlights": true,
	"match":      true,
	"final":      true,
	"semi":       true,
	"quarter":    true,
	"atp":        true,
	"wta":        true,
	"tennis":     true,
}

// ExtractPlayers finds "A vs B", "A v B" or "A - B" in a title.
func ExtractPlayers(title string) []string {
	players := []string{}
	for _, re := range playerPatterns {
		m := re.FindStringSubmatch(title)
		if m == nil {
			continue
		}
		for _, name := range m[1:] {
			name = strings.TrimSpace(name)
			if len(name) > 2 && !nonPlayers[strings.ToLower(name)] {
				players = append(players, name)
			}
		}
		break
	}
	return players
}

// knownTournaments is checked in order; earlier entries win.
var knownTournaments = []struct{ needle, name string }{
	{"wimbledon", "Wimbledon"},
	{"roland garros", "Roland Garros"},
	{"roland-garros", "Roland Garros"},
	{"french open", "French Open"},
	{"us open", "US Open"},
	{"australian open", "Australian Open"},
	{"miami open", "Miami Open"},
	{"indian wells", "Indian Wells"},
	{"atp finals", "ATP Finals"},
	{"wta finals", "WTA Finals"},
	{"cincinnati", "Cincinnati"},
	{"toronto", "Toronto"},
	{"madrid", "Madrid"},
	{"rome", "Rome"},
	{"monte carlo", "Monte Carlo"},
	{"masters", "Masters"},
}

var tournamentPattern = regexp.MustCompile(`(\d{4}\s+[A-Z][a-zA-Z\s]+(?:Open|Masters|Cup|Championship))`)

// ExtractTournament names the tournament mentioned in a title, or returns "".
func ExtractTournament(title string) string {
	lower := strings.ToLower(title)
	for _, t := range knownTournaments {
		if strings.Contains(lower, t.needle) {
			return t.name
		}
	}
	if m := tournamentPattern.FindStringSubmatch(title); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}
