package narrative

// Directives tell the storyteller what to narrate next. They are topics, not the
// narration itself.
const (
	DirectiveStartReprompt = "The child is still at the fork in the magical forest. " +
		"Kindly ask whether they want to go left to the river or right to the cave."

	DirectiveRiverChallenge = "The child chose the left path and arrives at a sparkling river. " +
		"A friendly otter asks a riddle: \"I have hands but cannot clap, and I help you know the time. What am I?\" " +
		"Ask the child to answer the riddle."

	DirectiveCaveChallenge = "The child chose the right path and enters a glowing cave. " +
		"A gentle dragon shows three gems and asks for the one that is the color of a strawberry. " +
		"Ask the child which color the gem is."

	DirectiveRiverSuccess = "The child solved the otter's riddle: the answer is a clock! " +
		"Celebrate with the child and say the otter is getting ready to show them something special."

	DirectiveCaveSuccess = "The child found the dragon's red gem! " +
		"Celebrate with the child and say the dragon is glowing with happiness."

	DirectiveRiverRetry = "The otter smiles and gives a gentle hint: it goes tick-tock on the wall. " +
		"Encourage the child to try the riddle again."

	DirectiveCaveRetry = "The dragon gives a gentle hint: the gem is the color of a ripe strawberry. " +
		"Encourage the child to guess the color again."

	DirectiveRiverEnding = "Tell a short happy ending: the otter leads the child along the river to a meadow full of fireflies. " +
		"Congratulate the child for finishing the MiniQuest."

	DirectiveCaveEnding = "Tell a short happy ending: the dragon gives the child a shining red gem as a gift of friendship. " +
		"Congratulate the child for finishing the MiniQuest."

	DirectiveReprompt = "Kindly ask the child what they would like to do next on their adventure."
)

// AllDirectives lists every directive the engine can emit.
var AllDirectives = []string{
	DirectiveStartReprompt,
	DirectiveRiverChallenge,
	DirectiveCaveChallenge,
	DirectiveRiverSuccess,
	DirectiveCaveSuccess,
	DirectiveRiverRetry,
	DirectiveCaveRetry,
	DirectiveRiverEnding,
	DirectiveCaveEnding,
	DirectiveReprompt,
}
