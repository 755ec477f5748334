package command

import (
	"fmt"
	"math/rand"
)

// Fixed response phrases. These are the Bat Computer's voice; the dispatcher
// never invents text outside these catalogues and its format strings.
const (
	// ChallengePhrase is spoken when a sensitive command arrives without
	// prior authentication. Issuing it has no side effects.
	ChallengePhrase = "Voice authentication required. Please state: 'I am vengeance, I am the night'"

	// Passphrase is the expected spoken secret for voice authentication.
	Passphrase = "i am vengeance, i am the night"

	// NoTrackingData is spoken when a locate request names no known villain.
	NoTrackingData = "No tracking data available for the specified target."

	// WeatherUnavailable is spoken when the weather service fails. The
	// lookup is not retried.
	WeatherUnavailable = "Weather monitoring systems encountered an error. Please try again later."

	// WeatherNeedsCity is spoken when a weather request names no city.
	WeatherNeedsCity = "Please specify a city for weather information."

	// ShutdownRefusal is the permanent response to a shutdown request.
	ShutdownRefusal = "Warning: Full system shutdown requires override authorization."

	// Farewell acknowledges a goodbye.
	Farewell = "Bat Computer standing by. Maintaining surveillance of Gotham City."

	// Thanks acknowledges gratitude.
	Thanks = "At your service, sir."

	// Unrecognized is the generic fallback for commands matching no rule.
	Unrecognized = "Command not recognized. Please try again or ask for help."

	// BatmobileStarted confirms batmobile engine start.
	BatmobileStarted = "Batmobile engines initialized. Ready for deployment."

	// BatmobileReport is the batmobile status summary.
	BatmobileReport = "Batmobile systems: Fuel at 98%, weapons armed, defensive systems active."

	// Online is announced when the listening loop first comes up.
	Online = "Bat Computer online. Awaiting your orders."
)

// Greetings are hello responses; one is chosen at random per greeting.
var Greetings = []string{
	"Welcome back to the Batcave, sir.",
	"The Batcomputer is at your service.",
	"Batcave systems online and ready.",
	"Good evening. The city awaits your protection.",
}

// Confirmations acknowledge accepted instructions, such as a successful
// voice authentication.
var Confirmations = []string{
	"Acknowledged, implementing protocol alpha.",
	"Command confirmed, executing now.",
	"As you wish, sir.",
	"Initiating requested procedure.",
}

// Warnings are unsolicited alert phrases available to future monitoring
// features; kept with the other catalogues so the voice stays consistent.
var Warnings = []string{
	"Caution advised. Security protocols detecting anomalies.",
	"Warning: Gotham Police frequencies showing increased activity.",
	"Alert: Weather conditions may impact visibility for tonight's patrol.",
	"Security breach attempted. Countermeasures engaged.",
}

// BatcaveStatus lines are joined into the batcave status report.
var BatcaveStatus = []string{
	"Batmobile: Fully operational",
	"Weapons systems: Online",
	"Security protocols: Active",
	"Computer systems: 100% functional",
	"Medical bay: Stocked and ready",
}

// Villains maps known villain names to their current tracking status.
var Villains = map[string]string{
	"Joker":    "Last known sighting: Arkham Asylum. Status: Under surveillance.",
	"Penguin":  "Currently monitored at the Iceberg Lounge.",
	"Riddler":  "No recent activity detected. Maintaining vigilance.",
	"Two-Face": "Police reports indicate activity in the East End.",
	"Catwoman": "Recent break-in reported at Gotham Museum.",
}

// HelpText lists the available commands.
const HelpText = `Available commands include:
- Time and date
- Weather for any city
- Batcave status
- Security systems control
- Lighting control
- Villain tracking
- Batmobile control
- System status
Just say 'computer' followed by your command.`

// RandomResponse returns a uniformly random member of set. It panics on an
// empty set; all catalogues in this package are non-empty.
func RandomResponse(set []string) string {
	return set[rand.Intn(len(set))]
}

// VillainInfo returns the tracking status for a known villain name, or a
// per-name fallback when the registry has no entry.
func VillainInfo(name string) string {
	if info, ok := Villains[name]; ok {
		return info
	}
	return fmt.Sprintf("No current information on %s", name)
}
