// Package command implements the transcript-to-command pipeline of the Bat
// Computer: the command model, the wake-word parser with its ordered rule
// table, and the dispatcher that executes commands against the home
// automation registry and the weather service.
package command

import "strings"

// Kind identifies the action a parsed [Command] requests.
type Kind string

const (
	KindTime            Kind = "time"
	KindWeather         Kind = "weather"
	KindLightsOn        Kind = "lights_on"
	KindLightsOff       Kind = "lights_off"
	KindSecurityArm     Kind = "security_arm"
	KindSecurityDisarm  Kind = "security_disarm"
	KindBatcaveStatus   Kind = "batcave_status"
	KindBatmobileStart  Kind = "batmobile_start"
	KindBatmobileStatus Kind = "batmobile_status"
	KindLocateVillain   Kind = "locate_villain"
	KindSystemStatus    Kind = "system_status"
	KindSystemShutdown  Kind = "system_shutdown"
	KindGreeting        Kind = "greeting"
	KindFarewell        Kind = "farewell"
	KindThanks          Kind = "thanks"
	KindHelp            Kind = "help"
	KindUnrecognized    Kind = "unrecognized"
)

// Command is a parsed voice command. Raw is the lowercased command text after
// the wake word, used for sensitivity classification. City is set only for
// [KindWeather]; Villain only for [KindLocateVillain] (empty when the spoken
// name matched no known villain).
type Command struct {
	Kind    Kind
	Raw     string
	City    string
	Villain string
}

// sensitiveKeywords is the fixed set of substrings that mark a command as
// requiring prior voice authentication.
var sensitiveKeywords = []string{"security", "batcave", "override", "protocol", "weapons"}

// Sensitive reports whether the command requires voice authentication before
// it may be dispatched. Classification is by raw command text, matching the
// keyword set regardless of which rule produced the command.
func (c Command) Sensitive() bool {
	for _, kw := range sensitiveKeywords {
		if strings.Contains(c.Raw, kw) {
			return true
		}
	}
	return false
}
