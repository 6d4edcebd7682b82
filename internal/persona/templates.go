package persona

// One-shot exemplar used by the intent and person stages.
var exemplarSpeech = []string{
	"person: Hey, have you heard about the latest advancements in space technology?",
	"person: I'm really interested in the concept of colonizing Mars.",
	"person: Did you know that SpaceX has plans to send humans to Mars as soon as 2024?",
}

const (
	exampleSeparator = "\nEXAMPLE 2:"

	intentQuestion  = "Q: What is the intent of the person speaking?"
	intentExample   = "Answer: The intent of the person is: to start conversation about space exploration and colonizing Mars"
	intentAnswerCue = "Answer: The intent of this person is:"

	personQuestion  = "Q: what kind of person is the person speaking?"
	personExample   = "Answer: This person is: a scientist"
	personAnswerCue = "Answer: This person is:"

	stateInstruction = `Infer some more state about the preceding speaker. "Person" is speaking to a bot. Youre the bot.`
	stateQuestion    = "Q: What other qualities about the person we can infer?"
	stateAnswerCue   = "So we already know that %s An additional thing we can infer from the conversation is that"
	worldStateFormat = "this person is a %s and their intent is %s."

	thoughtsHeader    = "Person's speech"
	thoughtsAnswerCue = "Random thoughts about the speech, that you, a sentient robot, could have:"

	responsePreamble  = "I'm a helpful, happy, sentient robot. This is the conversation of a human that they're having with me"
	responseThoughts  = "These are my thoughts about the preceding lines. I should use thoughts, when I generate a reasonable response."
	responseAnswerCue = "My response to the person should be:"

	framedIntent = "this person's intent is %s"
	framedPerson = "this person is a %s"
)

func intentExemplar() []string {
	return append(append([]string{}, exemplarSpeech...), intentQuestion, intentExample)
}

func personExemplar() []string {
	return append(append([]string{}, exemplarSpeech...), personQuestion, personExample)
}
