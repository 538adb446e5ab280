package pipeline

import "errors"

var (
	// Run-level fatal conditions.
	ErrNoSources = errors.New("no sources configured")
	ErrNoLines   = errors.New("no lines fetched from any source")

	// Per-line outcomes. None of them abort a run.
	ErrUnclassifiable   = errors.New("line unclassifiable")
	ErrBlacklisted      = errors.New("endpoint blacklisted")
	ErrDuplicate        = errors.New("duplicate record")
	ErrConfigGeneration = errors.New("engine config generation failed")

	errNumbered = errors.New("numbered duplicate line")
)
