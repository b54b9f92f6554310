package generator

import "errors"

var (
	errEmptyPrompt     = errors.New("generator: empty prompt")
	errPromptTooLong   = errors.New("generator: prompt exceeds 1000 characters")
	errControlChars    = errors.New("generator: prompt contains control characters")
	errDuplicateTaskID = errors.New("generator: task_id already used in this run")
	errDegenerateDraw  = errors.New("generator: degenerate draw exhausted retries")
)
