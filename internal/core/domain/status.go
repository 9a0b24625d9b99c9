package domain

import "fmt"

type ProjectStatus string

const (
	StatusDraft      ProjectStatus = "draft"
	StatusUploading  ProjectStatus = "uploading"
	StatusIngested   ProjectStatus = "ingested"
	StatusEmbedded   ProjectStatus = "embedded"
	StatusGenerating ProjectStatus = "generating"
	StatusGenerated  ProjectStatus = "generated"
	StatusExported   ProjectStatus = "exported"
	StatusError      ProjectStatus = "error"
)

// legalTransitions is the single definition of the project state machine.
// Every status write goes through CanTransition; no call site may skip a stage
// by mutating the field directly.
var legalTransitions = map[ProjectStatus][]ProjectStatus{
	StatusDraft:      {StatusUploading, StatusIngested, StatusError},
	StatusUploading:  {StatusUploading, StatusIngested, StatusError},
	StatusIngested:   {StatusUploading, StatusIngested, StatusEmbedded, StatusError},
	StatusEmbedded:   {StatusUploading, StatusIngested, StatusEmbedded, StatusGenerating, StatusError},
	StatusGenerating: {StatusGenerated, StatusError},
	StatusGenerated:  {StatusUploading, StatusIngested, StatusEmbedded, StatusGenerating, StatusExported, StatusError},
	StatusExported:   {StatusUploading, StatusIngested, StatusEmbedded, StatusGenerating, StatusExported, StatusError},
	// error is recoverable: re-running a stage with corrected inputs moves
	// the project forward again without deleting completed artifacts.
	StatusError: {StatusUploading, StatusIngested, StatusEmbedded, StatusGenerating, StatusError},
}

func (s ProjectStatus) Valid() bool {
	_, ok := legalTransitions[s]
	return ok
}

// CanTransition reports whether from → to is a legal stage transition.
func CanTransition(from, to ProjectStatus) bool {
	for _, next := range legalTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Transition validates and returns the new status, or ErrStateConflict with
// both states named so boundary responses stay actionable.
func Transition(from, to ProjectStatus) (ProjectStatus, error) {
	if !CanTransition(from, to) {
		return from, WrapError(ErrStateConflict, "project status transition",
			fmt.Errorf("%s -> %s is not allowed", from, to))
	}
	return to, nil
}
