package command

import (
	"strings"
	"testing"
)

func TestRandomResponse_DrawsFromSet(t *testing.T) {
	t.Parallel()

	members := make(map[string]bool, len(Greetings))
	for _, g := range Greetings {
		members[g] = true
	}
	for i := 0; i < 50; i++ {
		if got := RandomResponse(Greetings); !members[got] {
			t.Fatalf("RandomResponse returned %q, not in set", got)
		}
	}
}

func TestRandomResponse_SingleElement(t *testing.T) {
	t.Parallel()
	if got := RandomResponse([]string{"only"}); got != "only" {
		t.Errorf("RandomResponse = %q; want only", got)
	}
}

func TestVillainInfo(t *testing.T) {
	t.Parallel()

	for name, status := range Villains {
		if got := VillainInfo(name); got != status {
			t.Errorf("VillainInfo(%q) = %q; want %q", name, got, status)
		}
	}

	if got := VillainInfo("Bane"); got != "No current information on Bane" {
		t.Errorf("VillainInfo(unknown) = %q; want fallback", got)
	}
}

func TestChallengePhraseNamesPassphrase(t *testing.T) {
	t.Parallel()
	if !strings.Contains(strings.ToLower(ChallengePhrase), Passphrase) {
		t.Errorf("challenge phrase %q does not contain passphrase %q", ChallengePhrase, Passphrase)
	}
}
