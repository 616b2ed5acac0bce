package narrative

import (
	"strings"

	"miniquest-server/shared/models"
)

// Intent is what the engine understood from the child's input on a given branch.
type Intent int

const (
	IntentUnknown Intent = iota
	IntentChooseRiver
	IntentChooseCave
	IntentCorrectAnswer
)

func (i Intent) String() string {
	switch i {
	case IntentChooseRiver:
		return "choose_river"
	case IntentChooseCave:
		return "choose_cave"
	case IntentCorrectAnswer:
		return "correct_answer"
	default:
		return "unknown"
	}
}

// Expected answers of the two challenges.
const (
	RiverAnswerKeyword = "clock"
	CaveAnswerKeyword  = "red"
)

var (
	riverKeywords = []string{"left", "river"}
	caveKeywords  = []string{"right", "cave"}
)

// ClassifyIntent maps input to an intent using plain substring checks on the
// lower-cased text. Substrings, not words: "bored" contains "red" and counts as
// the cave answer. River keywords are checked before cave keywords.
func ClassifyIntent(branch models.Branch, input string) Intent {
	text := Normalize(input)
	switch branch {
	case models.BranchStart:
		if containsAny(text, riverKeywords) {
			return IntentChooseRiver
		}
		if containsAny(text, caveKeywords) {
			return IntentChooseCave
		}
	case models.BranchRiverChallenge:
		if strings.Contains(text, RiverAnswerKeyword) {
			return IntentCorrectAnswer
		}
	case models.BranchCaveChallenge:
		if strings.Contains(text, CaveAnswerKeyword) {
			return IntentCorrectAnswer
		}
	}
	return IntentUnknown
}

// Normalize lower-cases and trims child input.
func Normalize(input string) string {
	return strings.ToLower(strings.TrimSpace(input))
}

func containsAny(text string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(text, k) {
			return true
		}
	}
	return false
}
