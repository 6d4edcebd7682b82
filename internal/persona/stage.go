package persona

import "fmt"

// StageName identifies a pipeline stage and its result field.
type StageName string

const (
	StageIntent     StageName = "intent"
	StagePersonIs   StageName = "person_is"
	StageExtraState StageName = "extra_state"
	StageThoughts   StageName = "thoughts"
	StageResponse   StageName = "response"
)

// PromptFunc builds the prompt fragments of a stage from the conversation and
// the normalised outputs of the stages it depends on.
type PromptFunc func(conversation []string, outputs map[StageName]string) []string

// Stage is a single generation step of the pipeline.
type Stage struct {
	Name    StageName
	Inputs  []StageName
	Options GenerateOptions
	Prompt  PromptFunc
}

// DefaultStages returns the five persona stages in sequential execution order.
func DefaultStages(maxLength, thoughtsMaxLength int, temperature float64) []Stage {
	opts := GenerateOptions{MaxLength: maxLength, Temperature: temperature}

	return []Stage{
		{
			Name:    StageIntent,
			Options: opts,
			Prompt:  intentPrompt,
		},
		{
			Name:    StagePersonIs,
			Options: opts,
			Prompt:  personPrompt,
		},
		{
			Name:    StageExtraState,
			Inputs:  []StageName{StageIntent, StagePersonIs},
			Options: opts,
			Prompt:  statePrompt,
		},
		{
			Name:    StageThoughts,
			Options: GenerateOptions{MaxLength: thoughtsMaxLength, Temperature: temperature},
			Prompt:  thoughtsPrompt,
		},
		{
			Name:    StageResponse,
			Inputs:  []StageName{StageIntent, StagePersonIs, StageExtraState, StageThoughts},
			Options: opts,
			Prompt:  responsePrompt,
		},
	}
}

func intentPrompt(conversation []string, _ map[StageName]string) []string {
	fragments := append(intentExemplar(), exampleSeparator)
	fragments = append(fragments, conversation...)
	return append(fragments, intentQuestion, intentAnswerCue)
}

func personPrompt(conversation []string, _ map[StageName]string) []string {
	fragments := append(personExemplar(), exampleSeparator)
	fragments = append(fragments, conversation...)
	return append(fragments, personQuestion, personAnswerCue)
}

func statePrompt(conversation []string, outputs map[StageName]string) []string {
	worldState := fmt.Sprintf(worldStateFormat, outputs[StagePersonIs], outputs[StageIntent])

	fragments := append([]string{}, conversation...)
	return append(fragments,
		stateInstruction,
		stateQuestion,
		fmt.Sprintf(stateAnswerCue, worldState),
	)
}

func thoughtsPrompt(conversation []string, _ map[StageName]string) []string {
	fragments := append([]string{thoughtsHeader}, conversation...)
	return append(fragments, thoughtsAnswerCue)
}

func responsePrompt(conversation []string, outputs map[StageName]string) []string {
	fragments := append([]string{responsePreamble}, conversation...)
	return append(fragments,
		responseThoughts,
		fmt.Sprintf(framedIntent, outputs[StageIntent]),
		fmt.Sprintf(framedPerson, outputs[StagePersonIs]),
		outputs[StageExtraState],
		outputs[StageThoughts],
		responseAnswerCue,
	)
}
