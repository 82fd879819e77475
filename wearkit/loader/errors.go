package loader

import "errors"

var (
	// ErrUnknownUser is returned when a user id matches no participant
	// folder in the export directory.
	ErrUnknownUser = errors.New("loader: unknown user")

	// ErrAmbiguousUser is returned when a bare participant id prefixes
	// more than one full id.
	ErrAmbiguousUser = errors.New("loader: ambiguous user id")

	// ErrMissingTaskName is returned when a questionnaire or todo is
	// requested without naming which one.
	ErrMissingTaskName = errors.New("loader: task name required")

	// ErrUnknownTask is returned when the named questionnaire or todo
	// does not exist for the user.
	ErrUnknownTask = errors.New("loader: unknown task")

	// ErrMalformedHeader is returned when a CSV file does not follow the
	// Labfront header layout.
	ErrMalformedHeader = errors.New("loader: malformed file header")
)
