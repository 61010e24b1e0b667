package anyworld

import (
	"encoding/json"
	"strings"
)

// Status is the client-side classification of a model's pipeline stage.
type Status string

const (
	StatusPending    Status = "pending"    // accepted, no stage reported yet
	StatusProcessing Status = "processing" // mid-pipeline stage reported
	StatusDone       Status = "done"       // reached a finished stage
	StatusFailed     Status = "failed"     // reached a failure stage
)

// Receipt is the server's acknowledgement of an accepted animate/generate
// submission. ModelID is the handle for all subsequent status checks.
type Receipt struct {
	ModelID string `json:"model_id"`
	Name    string `json:"name,omitempty"`
	Message string `json:"message,omitempty"`
}

// Model is a server-side unit of work (animate or generate) as reported by
// the polling endpoints. The server mutates it; the client only observes.
type Model struct {
	ID    string      `json:"_id"`
	Name  string      `json:"name"`
	Type  string      `json:"type,omitempty"`
	Stage string      `json:"stage"`
	Model ModelAssets `json:"model"`

	// Raw is the undecoded status payload, kept for diagnostics.
	Raw json.RawMessage `json:"-"`
}

// ModelAssets holds the output artifact URLs, keyed by format (e.g. "glb").
type ModelAssets struct {
	Mesh       map[string]string `json:"mesh,omitempty"`
	Rig        json.RawMessage   `json:"rig,omitempty"`
	Animations json.RawMessage   `json:"animations,omitempty"`
}

// MeshURL returns the artifact URL for the given format, empty if absent.
func (a ModelAssets) MeshURL(format string) string {
	return a.Mesh[format]
}

// Failed reports whether the model reached a terminal failure stage.
func (m *Model) Failed() bool {
	if m == nil {
		return false
	}
	return m.Stage == "failed" || strings.HasSuffix(m.Stage, "_failed")
}

// Status classifies the model against the given completion predicate.
// Stages only move forward, so repeated pending/processing reads are normal.
func (m *Model) Status(done func(*Model) bool) Status {
	switch {
	case m == nil || m.Stage == "":
		return StatusPending
	case m.Failed():
		return StatusFailed
	case done != nil && done(m):
		return StatusDone
	default:
		return StatusProcessing
	}
}

// Stage names that identify the end of a pipeline. Which stages count as
// finished depends on the endpoint and on whether the caller wants the extra
// output formats (.gltf, .dae) on top of the basic ones (.glb, .fbx).
var (
	animateDoneStages = []string{
		"thumbnails_generation_finished",
		"formats_conversion_finished",
		"migrate_animation_finished",
	}
	animateExtraFormatsDoneStages = []string{
		"formats_conversion_finished",
	}
	generateDoneStages = []string{
		"thumbnails_generation_finished",
		"formats_conversion_finished",
	}
)

// StageOneOf returns a completion predicate that is satisfied when the
// model's stage is any of the given stage names.
func StageOneOf(stages ...string) func(*Model) bool {
	return func(m *Model) bool {
		if m == nil {
			return false
		}
		for _, s := range stages {
			if m.Stage == s {
				return true
			}
		}
		return false
	}
}

// AnimateDone is the completion predicate for the animate pipeline.
// With extraFormats set it waits until the extra formats are converted too.
func AnimateDone(extraFormats bool) func(*Model) bool {
	if extraFormats {
		return StageOneOf(animateExtraFormatsDoneStages...)
	}
	return StageOneOf(animateDoneStages...)
}

// GenerateDone is the completion predicate for the generate pipeline.
func GenerateDone() func(*Model) bool {
	return StageOneOf(generateDoneStages...)
}
