package server

import (
	"github.com/jaki95/timeline-editor/internal/domain"
)

// TimelineResponse is the full editor state returned after every edit.
type TimelineResponse struct {
	Tracks        []domain.Track `json:"tracks"`
	Duration      float64        `json:"duration"`
	CurrentTime   float64        `json:"currentTime"`
	Selection     []string       `json:"selection"`
	ClipboardSize int            `json:"clipboardSize"`
	CanUndo       bool           `json:"canUndo"`
	CanRedo       bool           `json:"canRedo"`
}

// PlaceClipRequest drops a media file onto the timeline.
type PlaceClipRequest struct {
	FileID    string      `json:"fileId" binding:"required"`
	TrackType domain.Kind `json:"trackType"`
	DropTime  float64     `json:"dropTime"`
}

type MoveClipRequest struct {
	StartTime *float64 `json:"startTime" binding:"required"`
}

type TrimClipRequest struct {
	TrimStart float64 `json:"trimStart"`
	TrimEnd   float64 `json:"trimEnd"`
}

type VolumeRequest struct {
	Volume *int `json:"volume" binding:"required"`
}

type SelectRequest struct {
	ClipID string `json:"clipId" binding:"required"`
	Shift  bool   `json:"shift"`
}

type DeleteClipsRequest struct {
	ClipIDs []string `json:"clipIds"`
}

// TimeRequest carries a timeline position. A nil At means the playhead.
type TimeRequest struct {
	At *float64 `json:"at"`
}

type PlayheadRequest struct {
	Time *float64 `json:"time" binding:"required"`
}

type ImportRequest struct {
	URL string `json:"url" binding:"required"`
}

type DurationRequest struct {
	Duration *float64 `json:"duration" binding:"required"`
}

type TrimMediaRequest struct {
	Start *float64 `json:"start" binding:"required"`
	End   *float64 `json:"end" binding:"required"`
}

type ExtractAudioRequest struct {
	Format string `json:"format"`
}

type MergeMediaRequest struct {
	FileIDs []string `json:"fileIds" binding:"required,min=2"`
	Name    string   `json:"name"`
}

// ClipsResponse lists clips created by an edit together with the new state.
type ClipsResponse struct {
	Clips    []domain.Clip    `json:"clips"`
	Timeline TimelineResponse `json:"timeline"`
}

// MessageResponse represents a generic message payload used for success responses.
type MessageResponse struct {
	Message string `json:"message"`
}

// ErrorResponse represents a generic error payload used for error responses.
type ErrorResponse struct {
	Error string `json:"error"`
}
