package domain

import (
	"encoding/json"
	"sort"
)

const (
	// MinClipDuration is the floor applied when trimming would collapse a clip.
	MinClipDuration = 0.1
	// DefaultClipDuration is used when a file has not been probed yet.
	DefaultClipDuration = 5.0
	// MinTimelineDuration is reported for an empty timeline.
	MinTimelineDuration = 10.0
	// FullVolume is the default clip and track volume in percent.
	FullVolume = 100
)

// Clip is a placed, time-bounded reference to a portion of a media file.
type Clip struct {
	ID        string  `json:"id"`
	Kind      Kind    `json:"type"`
	TrackID   string  `json:"trackId"`
	FileID    string  `json:"fileId"`
	StartTime float64 `json:"startTime"`
	Duration  float64 `json:"duration"`
	TrimStart float64 `json:"trimStart"`
	TrimEnd   float64 `json:"trimEnd"`
	Volume    int     `json:"volume"`
	Muted     bool    `json:"muted"`
	HasAudio  bool    `json:"hasAudio"`
}

// End returns the timeline position where the clip stops playing.
func (c Clip) End() float64 {
	return c.StartTime + c.Duration
}

// Contains reports whether t falls inside [StartTime, End).
func (c Clip) Contains(t float64) bool {
	return t >= c.StartTime && t < c.End()
}

// UnmarshalJSON decodes a clip, treating a missing hasAudio as true.
func (c *Clip) UnmarshalJSON(data []byte) error {
	type alias Clip
	aux := struct {
		*alias
		HasAudio *bool `json:"hasAudio"`
	}{alias: (*alias)(c)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	c.HasAudio = aux.HasAudio == nil || *aux.HasAudio
	return nil
}

// Track is an ordered lane of clips of a single kind.
type Track struct {
	ID     string `json:"id"`
	Kind   Kind   `json:"type"`
	Name   string `json:"name"`
	Clips  []Clip `json:"clips"`
	Muted  bool   `json:"muted"`
	Volume int    `json:"volume"`
	Locked bool   `json:"locked"`
}

// SortClips orders the clips of the track by start time, keeping the
// relative order of clips that start together.
func (t *Track) SortClips() {
	sort.SliceStable(t.Clips, func(i, j int) bool {
		return t.Clips[i].StartTime < t.Clips[j].StartTime
	})
}

// Timeline is a read-only view of the track set and its derived duration.
type Timeline struct {
	Tracks   []Track `json:"tracks"`
	Duration float64 `json:"duration"`
}

// NewTimeline builds a view over a deep copy of tracks.
func NewTimeline(tracks []Track) Timeline {
	return Timeline{
		Tracks:   CloneTracks(tracks),
		Duration: Duration(tracks),
	}
}

// DefaultTracks returns the track set a new session starts with.
func DefaultTracks() []Track {
	return []Track{
		{ID: "video-track-1", Kind: KindVideo, Name: "Video Track 1", Clips: []Clip{}, Volume: FullVolume},
		{ID: "audio-track-1", Kind: KindAudio, Name: "Audio Track 1", Clips: []Clip{}, Volume: FullVolume},
		{ID: "audio-track-2", Kind: KindAudio, Name: "Audio Track 2", Clips: []Clip{}, Volume: FullVolume},
	}
}

// Duration is the end of the last clip across all tracks, or
// MinTimelineDuration when there is no content.
func Duration(tracks []Track) float64 {
	var end float64
	for _, track := range tracks {
		for _, clip := range track.Clips {
			if e := clip.End(); e > end {
				end = e
			}
		}
	}
	if end <= 0 {
		return MinTimelineDuration
	}
	return end
}

// CloneTracks returns a structurally independent copy of tracks.
func CloneTracks(tracks []Track) []Track {
	if tracks == nil {
		return nil
	}
	out := make([]Track, len(tracks))
	for i, track := range tracks {
		out[i] = track
		out[i].Clips = make([]Clip, len(track.Clips))
		copy(out[i].Clips, track.Clips)
	}
	return out
}

// CloneClips returns a copy of clips.
func CloneClips(clips []Clip) []Clip {
	out := make([]Clip, len(clips))
	copy(out, clips)
	return out
}
