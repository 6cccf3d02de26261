package domain

import "time"

// Prompt is a named template with a version history.
type Prompt struct {
	Name             string
	CurrentVersion   int64
	ActiveExperiment *string
	Tags             []string
	CreatedAt        time.Time
}

// PromptVersion is a single immutable revision of a prompt's content.
type PromptVersion struct {
	PromptName string
	Version    int64
	Content    string
	Author     *string
	Message    *string
	CreatedAt  time.Time
}
