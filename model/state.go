package model

import (
	"time"
)

// Phase is one stage of the per-document pipeline.
type Phase string

const (
	PhaseOCR                 Phase = "ocr"
	PhaseChunking            Phase = "chunking"
	PhaseEntityExtraction    Phase = "entity_extraction"
	PhaseEntityResolution    Phase = "entity_resolution"
	PhaseRelationshipStaging Phase = "relationship_staging"
)

// Phases lists all pipeline phases in their fixed linear order.
var Phases = []Phase{
	PhaseOCR,
	PhaseChunking,
	PhaseEntityExtraction,
	PhaseEntityResolution,
	PhaseRelationshipStaging,
}

// PhaseStatus is the state of a single phase.
type PhaseStatus string

const (
	PhaseStatusStarted   PhaseStatus = "started"
	PhaseStatusCompleted PhaseStatus = "completed"
	PhaseStatusFailed    PhaseStatus = "failed"
)

// PhaseRecord holds the cached status of one phase for one document.
type PhaseRecord struct {
	Status    PhaseStatus `json:"status"`
	Timestamp time.Time   `json:"timestamp"`
	Metadata  Metadata    `json:"metadata,omitempty"`
}

// PipelineState is the per-document map from phase to record plus the
// derived progress. It is a cache view, never the system of record:
// it must always be reconstructable from the persisted documents,
// chunks, mentions, canonical entities, and edges.
type PipelineState struct {
	Phases   map[Phase]PhaseRecord `json:"phases"`
	Progress float64               `json:"progress"`
}

// NewPipelineState returns an empty state with no phase records.
func NewPipelineState() *PipelineState {
	return &PipelineState{
		Phases: make(map[Phase]PhaseRecord),
	}
}

// Predecessor returns the phase that must be completed before the
// given phase may start, or "" for the first phase.
func Predecessor(phase Phase) Phase {
	for i, p := range Phases {
		if p == phase && i > 0 {
			return Phases[i-1]
		}
	}
	return ""
}

// RecomputeProgress recalculates progress as the fraction of phases
// with status completed.
func (s *PipelineState) RecomputeProgress() {
	completed := 0
	for _, p := range Phases {
		if rec, ok := s.Phases[p]; ok && rec.Status == PhaseStatusCompleted {
			completed++
		}
	}
	s.Progress = float64(completed) / float64(len(Phases))
}

// PhaseCompleted reports whether the given phase has completed.
func (s *PipelineState) PhaseCompleted(phase Phase) bool {
	rec, ok := s.Phases[phase]
	return ok && rec.Status == PhaseStatusCompleted
}
