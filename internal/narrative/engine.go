// Package narrative holds the quest state machine. Everything here is pure: no I/O,
// no clock, no randomness.
package narrative

import "miniquest-server/shared/models"

// Outcome is the result of one transition.
type Outcome struct {
	State     models.QuestState
	Directive string
	Terminal  bool
	Changed   bool
	Intent    Intent
}

// Transition advances state by one turn of child input.
//
// A solved challenge does not end the quest on the same turn. The answer turn sets
// ChallengeComplete and announces success; the next turn, whatever its input,
// moves to the ending and is the terminal one.
func Transition(state models.QuestState, input string) Outcome {
	intent := ClassifyIntent(state.Branch, input)
	next := state
	out := Outcome{Intent: intent}

	switch {
	case state.ChallengeComplete && state.Branch.IsCave():
		next.Branch = models.BranchCaveEnding
		next.ChallengeType = ""
		out.Directive = DirectiveCaveEnding
		out.Terminal = true

	case state.ChallengeComplete && state.Branch.IsRiver():
		next.Branch = models.BranchRiverEnding
		next.ChallengeType = ""
		out.Directive = DirectiveRiverEnding
		out.Terminal = true

	case state.Branch == models.BranchStart:
		switch intent {
		case IntentChooseRiver:
			next.Branch = models.BranchRiverChallenge
			next.ChallengeType = models.ChallengeTypeRiddle
			out.Directive = DirectiveRiverChallenge
		case IntentChooseCave:
			next.Branch = models.BranchCaveChallenge
			next.ChallengeType = models.ChallengeTypeColor
			out.Directive = DirectiveCaveChallenge
		default:
			out.Directive = DirectiveStartReprompt
		}

	case state.Branch == models.BranchRiverChallenge:
		if intent == IntentCorrectAnswer {
			next.ChallengeComplete = true
			out.Directive = DirectiveRiverSuccess
		} else {
			out.Directive = DirectiveRiverRetry
		}

	case state.Branch == models.BranchCaveChallenge:
		if intent == IntentCorrectAnswer {
			next.ChallengeComplete = true
			out.Directive = DirectiveCaveSuccess
		} else {
			out.Directive = DirectiveCaveRetry
		}

	default:
		out.Directive = DirectiveReprompt
	}

	out.State = next
	out.Changed = next != state
	return out
}
