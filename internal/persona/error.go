package persona

import (
	"errors"
	"fmt"
)

// Error definitions for the persona package.
var (
	ErrMalformedOutput   = errors.New("generated text has no answer marker")
	ErrGeneration        = errors.New("text generation failed")
	ErrEmptyConversation = errors.New("conversation has no utterances")
)

// StageError reports which pipeline stage failed.
type StageError struct {
	Stage StageName
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}
