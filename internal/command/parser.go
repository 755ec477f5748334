package command

import (
	"sort"
	"strings"
	"unicode"

	"github.com/antzucaro/matchr"
)

// WakeWord gates all command handling. Transcripts that never mention it are
// ignored outright and must not reach the dispatcher.
const WakeWord = "computer"

// phoneticThreshold is the minimum Jaro-Winkler score for a phonetically
// matched villain name to be accepted when no exact substring match exists.
const phoneticThreshold = 0.80

// rule pairs a predicate over the raw command text with a Command builder.
// Rules are evaluated in order; the first matching predicate wins. A builder
// may return ok=false to silently ignore the transcript (the lights-without-
// on/off case and its siblings).
type rule struct {
	name  string
	match func(cmd string) bool
	build func(p *Parser, cmd string) (Command, bool)
}

// Parser turns final transcripts into Commands using the wake word and an
// ordered rule table. All methods are safe for concurrent use; the Parser is
// read-only after construction.
type Parser struct {
	villains []string
}

// NewParser returns a Parser whose locate rule matches against the known
// villain registry.
func NewParser() *Parser {
	names := make([]string, 0, len(Villains))
	for name := range Villains {
		names = append(names, name)
	}
	sort.Strings(names)
	return &Parser{villains: names}
}

// Parse extracts and classifies the command in transcript. The second return
// value is false when the transcript must be ignored entirely: no wake word,
// or a rule that matched but carried no actionable sub-command. An
// unrecognized-but-wake-word-bearing transcript returns a Command of
// [KindUnrecognized] with ok=true.
func (p *Parser) Parse(transcript string) (Command, bool) {
	lower := strings.ToLower(transcript)
	idx := strings.Index(lower, WakeWord)
	if idx < 0 {
		return Command{}, false
	}

	raw := strings.TrimSpace(lower[idx+len(WakeWord):])

	for _, r := range rules {
		if !r.match(raw) {
			continue
		}
		cmd, ok := r.build(p, raw)
		if !ok {
			return Command{}, false
		}
		cmd.Raw = raw
		return cmd, true
	}

	return Command{Kind: KindUnrecognized, Raw: raw}, true
}

// rules is the ordered rule table. Earlier entries win ties.
var rules = []rule{
	{
		name:  "time",
		match: func(cmd string) bool { return strings.Contains(cmd, "what time") || strings.Contains(cmd, "date") },
		build: func(_ *Parser, _ string) (Command, bool) { return Command{Kind: KindTime}, true },
	},
	{
		name:  "weather",
		match: func(cmd string) bool { return strings.Contains(cmd, "weather") },
		build: func(_ *Parser, cmd string) (Command, bool) {
			return Command{Kind: KindWeather, City: extractCity(cmd)}, true
		},
	},
	{
		name:  "lights",
		match: func(cmd string) bool { return strings.Contains(cmd, "lights") },
		build: func(_ *Parser, cmd string) (Command, bool) {
			switch {
			case strings.Contains(cmd, "on"):
				return Command{Kind: KindLightsOn}, true
			case strings.Contains(cmd, "off"):
				return Command{Kind: KindLightsOff}, true
			}
			// Neither sub-keyword: the transcript is dropped, not answered.
			return Command{}, false
		},
	},
	{
		name:  "security",
		match: func(cmd string) bool { return strings.Contains(cmd, "security") },
		build: func(_ *Parser, cmd string) (Command, bool) {
			switch {
			case strings.Contains(cmd, "disarm"):
				return Command{Kind: KindSecurityDisarm}, true
			case strings.Contains(cmd, "arm"):
				return Command{Kind: KindSecurityArm}, true
			}
			return Command{}, false
		},
	},
	{
		name:  "batcave-status",
		match: func(cmd string) bool { return strings.Contains(cmd, "batcave status") },
		build: func(_ *Parser, _ string) (Command, bool) { return Command{Kind: KindBatcaveStatus}, true },
	},
	{
		name:  "batmobile",
		match: func(cmd string) bool { return strings.Contains(cmd, "batmobile") },
		build: func(_ *Parser, cmd string) (Command, bool) {
			switch {
			case strings.Contains(cmd, "start"):
				return Command{Kind: KindBatmobileStart}, true
			case strings.Contains(cmd, "status"):
				return Command{Kind: KindBatmobileStatus}, true
			}
			return Command{}, false
		},
	},
	{
		name:  "locate",
		match: func(cmd string) bool { return strings.Contains(cmd, "locate") },
		build: func(p *Parser, cmd string) (Command, bool) {
			return Command{Kind: KindLocateVillain, Villain: p.matchVillain(cmd)}, true
		},
	},
	{
		name:  "system",
		match: func(cmd string) bool { return strings.Contains(cmd, "system") },
		build: func(_ *Parser, cmd string) (Command, bool) {
			switch {
			case strings.Contains(cmd, "status"):
				return Command{Kind: KindSystemStatus}, true
			case strings.Contains(cmd, "shutdown"):
				return Command{Kind: KindSystemShutdown}, true
			}
			return Command{}, false
		},
	},
	{
		name:  "greeting",
		match: func(cmd string) bool { return strings.Contains(cmd, "hello") || strings.Contains(cmd, "hi") },
		build: func(_ *Parser, _ string) (Command, bool) { return Command{Kind: KindGreeting}, true },
	},
	{
		name:  "farewell",
		match: func(cmd string) bool { return strings.Contains(cmd, "goodbye") || strings.Contains(cmd, "bye") },
		build: func(_ *Parser, _ string) (Command, bool) { return Command{Kind: KindFarewell}, true },
	},
	{
		name:  "thanks",
		match: func(cmd string) bool { return strings.Contains(cmd, "thank") },
		build: func(_ *Parser, _ string) (Command, bool) { return Command{Kind: KindThanks}, true },
	},
	{
		name:  "help",
		match: func(cmd string) bool { return strings.Contains(cmd, "help") },
		build: func(_ *Parser, _ string) (Command, bool) { return Command{Kind: KindHelp}, true },
	},
}

// matchVillain finds the known villain named in cmd. Exact case-insensitive
// substring containment wins first (in sorted name order); otherwise a
// phonetic pass using Double Metaphone overlap ranked by Jaro-Winkler
// recovers STT misspellings like "choker" for "Joker". Returns "" when no
// name matches either way.
func (p *Parser) matchVillain(cmd string) string {
	for _, name := range p.villains {
		if strings.Contains(cmd, strings.ToLower(name)) {
			return name
		}
	}

	var (
		bestName  string
		bestScore float64
	)
	for _, token := range strings.Fields(cmd) {
		tp, ts := matchr.DoubleMetaphone(token)
		for _, name := range p.villains {
			nameLower := strings.ToLower(name)
			np, ns := matchr.DoubleMetaphone(nameLower)
			if !codesOverlap(tp, ts, np, ns) {
				continue
			}
			if score := matchr.JaroWinkler(token, nameLower, false); score >= phoneticThreshold && score > bestScore {
				bestName, bestScore = name, score
			}
		}
	}
	return bestName
}

// codesOverlap reports whether the two Double Metaphone code pairs share at
// least one non-empty code.
func codesOverlap(a1, a2, b1, b2 string) bool {
	for _, a := range [2]string{a1, a2} {
		if a == "" {
			continue
		}
		if a == b1 || a == b2 {
			return true
		}
	}
	return false
}

// extractCity pulls the city argument out of a weather command: the words
// following the first "in" or "for", title-cased. Returns "" when the
// command names no city, in which case the dispatcher asks for one instead
// of calling the weather service.
func extractCity(cmd string) string {
	tokens := strings.Fields(cmd)
	for i, tok := range tokens {
		if (tok == "in" || tok == "for") && i+1 < len(tokens) {
			return titleCase(strings.Join(tokens[i+1:], " "))
		}
	}
	return ""
}

// titleCase upper-cases the first letter of each word, leaving the rest
// untouched ("new york" → "New York").
func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		runes := []rune(w)
		runes[0] = unicode.ToUpper(runes[0])
		words[i] = string(runes)
	}
	return strings.Join(words, " ")
}
