package jobs

import (
	"time"
)

// Mode selects which pipeline processes an upload. Immutable after creation.
type Mode string

const (
	ModeAudio Mode = "audio"
	ModeScene Mode = "scene"
)

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	return m == ModeAudio || m == ModeScene
}

// Stage is the current state-machine position of a job. Transitions are
// totally ordered per mode; the only permitted regression is into the
// mode's failure stage.
type Stage string

const (
	StageUploaded Stage = "uploaded"

	// Audio pipeline
	StageExtractingAudio  Stage = "extracting_audio"
	StageTranscribing     Stage = "transcribing"
	StageSavingTranscript Stage = "saving_transcript"
	StageReadyAudio       Stage = "ready_audio"
	StageFailedAudio      Stage = "failed_audio"

	// Scene pipeline
	StageBuildingSceneIndex Stage = "building_scene_index"
	StageReadyScene         Stage = "ready_scene"
	StageFailedScene        Stage = "failed_scene"
)

// ReadyStage returns the mode's terminal success stage.
func (m Mode) ReadyStage() Stage {
	if m == ModeScene {
		return StageReadyScene
	}
	return StageReadyAudio
}

// FailedStage returns the mode's terminal failure stage.
func (m Mode) FailedStage() Stage {
	if m == ModeScene {
		return StageFailedScene
	}
	return StageFailedAudio
}

// Job is one upload and its pipeline state. Only the runner driving the
// job's pipeline mutates it after creation.
type Job struct {
	ID         string    `json:"id"`
	Mode       Mode      `json:"mode"`
	Language   string    `json:"language,omitempty"`   // audio mode: ISO code or "auto"
	ModelSize  string    `json:"model_size,omitempty"` // audio mode: quality tier
	SourceName string    `json:"source_name"`
	Stage      Stage     `json:"stage"`
	Progress   int       `json:"progress"` // 0-100, monotone within a run
	Error      string    `json:"error,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Ready reports whether the job reached its mode's success stage.
func (j *Job) Ready() bool {
	return j.Stage == j.Mode.ReadyStage()
}

// Failed reports whether the job reached its mode's failure stage.
func (j *Job) Failed() bool {
	return j.Stage == j.Mode.FailedStage()
}

// IsTerminal returns true if the job is in a terminal state
func (j *Job) IsTerminal() bool {
	return j.Ready() || j.Failed()
}
