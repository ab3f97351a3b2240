package timeline

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/jaki95/timeline-editor/internal/domain"
	"github.com/jaki95/timeline-editor/internal/ids"
	"github.com/jaki95/timeline-editor/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type fileMap map[string]domain.MediaFile

func (m fileMap) Get(id string) (domain.MediaFile, bool) {
	f, ok := m[id]
	return f, ok
}

// MockRecordStore is a mock implementation of storage.RecordStore
type MockRecordStore struct {
	mock.Mock
}

func (m *MockRecordStore) Put(ctx context.Context, record storage.Record) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

func (m *MockRecordStore) GetAll(ctx context.Context) ([]storage.Record, error) {
	args := m.Called(ctx)
	records, _ := args.Get(0).([]storage.Record)
	return records, args.Error(1)
}

func (m *MockRecordStore) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockRecordStore) Clear(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

var (
	video10 = domain.MediaFile{ID: "video-10", Name: "a.mp4", Kind: domain.KindVideo, Duration: 10}
	video8  = domain.MediaFile{ID: "video-8", Name: "b.mp4", Kind: domain.KindVideo, Duration: 8}
	video4  = domain.MediaFile{ID: "video-4", Name: "e.mp4", Kind: domain.KindVideo, Duration: 4}
	audio5  = domain.MediaFile{ID: "audio-5", Name: "c.mp3", Kind: domain.KindAudio, Duration: 5}
	audio4  = domain.MediaFile{ID: "audio-4", Name: "d.mp3", Kind: domain.KindAudio, Duration: 4}
)

func testFiles() fileMap {
	return fileMap{
		video10.ID: video10,
		video8.ID:  video8,
		video4.ID:  video4,
		audio5.ID:  audio5,
		audio4.ID:  audio4,
	}
}

func newTestEngine(t *testing.T) (*Engine, *storage.MemoryStore) {
	t.Helper()
	store := storage.NewMemoryStore()
	engine := New(context.Background(), Options{
		Store: store,
		Files: testFiles(),
		IDs:   ids.NewSequence(),
	})
	return engine, store
}

func place(t *testing.T, e *Engine, file domain.MediaFile) domain.Clip {
	t.Helper()
	clip, err := e.PlaceClip(context.Background(), file, file.Kind, 0)
	require.NoError(t, err)
	return clip
}

func TestNewStartsWithDefaultTracks(t *testing.T) {
	engine, _ := newTestEngine(t)

	tracks := engine.Tracks()
	require.Len(t, tracks, 3)
	assert.Equal(t, "video-track-1", tracks[0].ID)
	assert.Equal(t, domain.KindVideo, tracks[0].Kind)
	assert.Equal(t, "audio-track-1", tracks[1].ID)
	assert.Equal(t, "audio-track-2", tracks[2].ID)
	assert.Equal(t, domain.MinTimelineDuration, engine.Duration())
	assert.False(t, engine.CanUndo())
	assert.False(t, engine.CanRedo())
}

func TestBasicAssembly(t *testing.T) {
	engine, _ := newTestEngine(t)

	videoClip := place(t, engine, video10)
	assert.Equal(t, "video-track-1", videoClip.TrackID)
	assert.Equal(t, 0.0, videoClip.StartTime)
	assert.Equal(t, 10.0, videoClip.Duration)
	assert.Equal(t, 100, videoClip.Volume)
	assert.True(t, videoClip.HasAudio)

	audioClip := place(t, engine, audio5)
	assert.Equal(t, "audio-track-1", audioClip.TrackID)
	assert.Equal(t, 0.0, audioClip.StartTime)
	assert.Equal(t, 5.0, audioClip.Duration)

	assert.Equal(t, 10.0, engine.Duration())
}

func TestAppendPlacement(t *testing.T) {
	engine, _ := newTestEngine(t)

	place(t, engine, video10)
	second, err := engine.PlaceClip(context.Background(), video4, domain.KindVideo, 2.5)
	require.NoError(t, err)
	assert.Equal(t, 10.0, second.StartTime)
	assert.Equal(t, 4.0, second.Duration)
	assert.Equal(t, 14.0, engine.Duration())
}

func TestPlacementUsesLatestStartNotLatestEnd(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	place(t, engine, video10)
	short := place(t, engine, video8)
	require.NoError(t, engine.MoveClip(ctx, short.ID, 1))

	// The clip starting at 1 is last by start time and ends at 9, even
	// though the clip at 0 ends at 10.
	next := place(t, engine, video8)
	assert.Equal(t, 9.0, next.StartTime)
}

func TestPlacementFallbackDuration(t *testing.T) {
	engine, _ := newTestEngine(t)
	unprobed := domain.MediaFile{ID: "raw", Kind: domain.KindVideo}

	clip := place(t, engine, unprobed)
	assert.Equal(t, domain.DefaultClipDuration, clip.Duration)
}

func TestLockedTrackRejectsPlacement(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	_, err := engine.ToggleTrackLock(ctx, "audio-track-1")
	require.NoError(t, err)
	_, err = engine.ToggleTrackLock(ctx, "audio-track-2")
	require.NoError(t, err)
	before := engine.Tracks()

	_, err = engine.PlaceClip(ctx, audio5, domain.KindAudio, 0)
	assert.ErrorIs(t, err, ErrNoTrackAvailable)
	assert.Equal(t, before, engine.Tracks())
	assert.False(t, engine.CanUndo())
}

func TestPlacementSkipsLockedTrack(t *testing.T) {
	engine, _ := newTestEngine(t)
	_, err := engine.ToggleTrackLock(context.Background(), "audio-track-1")
	require.NoError(t, err)

	clip := place(t, engine, audio5)
	assert.Equal(t, "audio-track-2", clip.TrackID)
}

func TestMoveClip(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()
	clip := place(t, engine, video10)

	require.NoError(t, engine.MoveClip(ctx, clip.ID, 3.5))
	moved, ok := engine.Clip(clip.ID)
	require.True(t, ok)
	assert.Equal(t, 3.5, moved.StartTime)
	assert.Equal(t, 10.0, moved.Duration)

	require.NoError(t, engine.MoveClip(ctx, clip.ID, -4))
	moved, _ = engine.Clip(clip.ID)
	assert.Equal(t, 0.0, moved.StartTime)

	assert.ErrorIs(t, engine.MoveClip(ctx, "missing", 1), ErrClipNotFound)

	_, err := engine.ToggleTrackLock(ctx, "video-track-1")
	require.NoError(t, err)
	assert.ErrorIs(t, engine.MoveClip(ctx, clip.ID, 2), ErrTrackLocked)
	moved, _ = engine.Clip(clip.ID)
	assert.Equal(t, 0.0, moved.StartTime)
}

func TestMoveClipResortsTrack(t *testing.T) {
	engine, _ := newTestEngine(t)
	first := place(t, engine, video10)
	second := place(t, engine, video8)

	require.NoError(t, engine.MoveClip(context.Background(), first.ID, 30))

	clips := engine.Tracks()[0].Clips
	assert.Equal(t, second.ID, clips[0].ID)
	assert.Equal(t, first.ID, clips[1].ID)
}

func TestTrimClip(t *testing.T) {
	tests := []struct {
		name             string
		trimStart        float64
		trimEnd          float64
		expectedStart    float64
		expectedEnd      float64
		expectedDuration float64
	}{
		{"trim both ends", 2, 3, 2, 3, 5},
		{"trim start only", 1.5, 0, 1.5, 0, 8.5},
		{"negative values clamp to zero", -1, -2, 0, 0, 10},
		{"over-trim floors duration", 6, 6, 6, 6, domain.MinClipDuration},
		{"exact full trim floors duration", 10, 0, 10, 0, domain.MinClipDuration},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine, _ := newTestEngine(t)
			clip := place(t, engine, video10)

			require.NoError(t, engine.TrimClip(context.Background(), clip.ID, tt.trimStart, tt.trimEnd))

			trimmed, ok := engine.Clip(clip.ID)
			require.True(t, ok)
			assert.Equal(t, tt.expectedStart, trimmed.TrimStart)
			assert.Equal(t, tt.expectedEnd, trimmed.TrimEnd)
			assert.InDelta(t, tt.expectedDuration, trimmed.Duration, 1e-9)
			assert.Equal(t, clip.StartTime, trimmed.StartTime)
		})
	}
}

func TestTrimClipUnknownFileUsesSourceWindow(t *testing.T) {
	engine := New(context.Background(), Options{IDs: ids.NewSequence()})
	clip, err := engine.PlaceClip(context.Background(), video10, domain.KindVideo, 0)
	require.NoError(t, err)

	require.NoError(t, engine.TrimClip(context.Background(), clip.ID, 1, 1))
	trimmed, _ := engine.Clip(clip.ID)
	assert.Equal(t, 8.0, trimmed.Duration)
}

func TestDeleteClips(t *testing.T) {
	ctx := context.Background()

	t.Run("explicit ids", func(t *testing.T) {
		engine, _ := newTestEngine(t)
		a := place(t, engine, video10)
		b := place(t, engine, audio5)

		n, err := engine.DeleteClips(ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
		_, ok := engine.Clip(a.ID)
		assert.False(t, ok)
		_, ok = engine.Clip(b.ID)
		assert.True(t, ok)
	})

	t.Run("uses selection and prunes it", func(t *testing.T) {
		engine, _ := newTestEngine(t)
		a := place(t, engine, video10)
		b := place(t, engine, audio5)
		engine.Select(a.ID, false)
		engine.Select(b.ID, true)

		n, err := engine.DeleteClips(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, n)
		assert.Empty(t, engine.Selection())
		assert.Equal(t, domain.MinTimelineDuration, engine.Duration())
	})

	t.Run("prunes every target from the selection", func(t *testing.T) {
		engine, _ := newTestEngine(t)
		a := place(t, engine, video10)
		b := place(t, engine, audio5)
		engine.Select(a.ID, false)
		engine.Select("clip-gone", true)
		engine.Select(b.ID, true)

		n, err := engine.DeleteClips(ctx, a.ID, "clip-gone")
		require.NoError(t, err)
		assert.Equal(t, 1, n)
		assert.Equal(t, []string{b.ID}, engine.Selection())
	})

	t.Run("empty selection", func(t *testing.T) {
		engine, _ := newTestEngine(t)
		place(t, engine, video10)
		_, err := engine.DeleteClips(ctx)
		assert.ErrorIs(t, err, ErrEmptySelection)
	})

	t.Run("unknown id", func(t *testing.T) {
		engine, _ := newTestEngine(t)
		_, err := engine.DeleteClips(ctx, "nope")
		assert.ErrorIs(t, err, ErrClipNotFound)
		assert.False(t, engine.CanUndo())
	})

	t.Run("locked track keeps its clips", func(t *testing.T) {
		engine, _ := newTestEngine(t)
		a := place(t, engine, video10)
		b := place(t, engine, audio5)
		_, err := engine.ToggleTrackLock(ctx, "video-track-1")
		require.NoError(t, err)

		n, err := engine.DeleteClips(ctx, a.ID, b.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
		_, ok := engine.Clip(a.ID)
		assert.True(t, ok)

		_, err = engine.DeleteClips(ctx, a.ID)
		assert.ErrorIs(t, err, ErrTrackLocked)
	})
}

func TestToggleTrackMuteRecordsHistory(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	muted, err := engine.ToggleTrackMute(ctx, "audio-track-1")
	require.NoError(t, err)
	assert.True(t, muted)
	assert.True(t, engine.CanUndo())

	require.NoError(t, engine.Undo(ctx))
	assert.False(t, engine.Tracks()[1].Muted)

	_, err = engine.ToggleTrackMute(ctx, "nope")
	assert.ErrorIs(t, err, ErrTrackNotFound)
}

func TestToggleTrackLockSkipsHistory(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()

	locked, err := engine.ToggleTrackLock(ctx, "video-track-1")
	require.NoError(t, err)
	assert.True(t, locked)
	assert.False(t, engine.CanUndo())

	// Still persisted.
	reloaded := New(ctx, Options{Store: store, IDs: ids.NewSequence()})
	assert.True(t, reloaded.Tracks()[0].Locked)
}

func TestUndoRestoresSnapshotWithLockFlags(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	before := engine.Tracks()
	place(t, engine, video10)
	_, err := engine.ToggleTrackLock(ctx, "video-track-1")
	require.NoError(t, err)
	edited := engine.Tracks()

	require.NoError(t, engine.Undo(ctx))
	assert.Equal(t, before, engine.Tracks())
	assert.False(t, engine.Tracks()[0].Locked)

	require.NoError(t, engine.Redo(ctx))
	assert.Equal(t, edited, engine.Tracks())
	assert.True(t, engine.Tracks()[0].Locked)
}

func TestSplitAtPlayhead(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	clip := place(t, engine, video8)
	require.NoError(t, engine.MoveClip(ctx, clip.ID, 2))
	engine.Select(clip.ID, false)

	created, err := engine.SplitAtPlayhead(ctx, 5)
	require.NoError(t, err)
	require.Len(t, created, 2)

	clips := engine.Tracks()[0].Clips
	require.Len(t, clips, 2)
	first, second := clips[0], clips[1]

	assert.Equal(t, 2.0, first.StartTime)
	assert.Equal(t, 3.0, first.Duration)
	assert.Equal(t, 0.0, first.TrimStart)
	assert.Equal(t, 5.0, first.TrimEnd)

	assert.Equal(t, 5.0, second.StartTime)
	assert.Equal(t, 5.0, second.Duration)
	assert.Equal(t, 3.0, second.TrimStart)
	assert.Equal(t, 0.0, second.TrimEnd)

	assert.NotEqual(t, clip.ID, first.ID)
	assert.NotEqual(t, clip.ID, second.ID)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Empty(t, engine.Selection())
}

func TestSplitPreservesSourceWindow(t *testing.T) {
	tests := []struct {
		name      string
		start     float64
		trimStart float64
		trimEnd   float64
		playhead  float64
	}{
		{"untrimmed", 0, 0, 0, 4.2},
		{"trimmed", 3, 1.5, 2.25, 6.1},
		{"near start", 1, 0, 0, 1.02},
		{"near end", 1, 2, 0, 6.98},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine, _ := newTestEngine(t)
			ctx := context.Background()

			clip := place(t, engine, video10)
			require.NoError(t, engine.TrimClip(ctx, clip.ID, tt.trimStart, tt.trimEnd))
			require.NoError(t, engine.MoveClip(ctx, clip.ID, tt.start))
			original, _ := engine.Clip(clip.ID)
			engine.Select(clip.ID, false)

			_, err := engine.SplitAtPlayhead(ctx, tt.playhead)
			require.NoError(t, err)

			clips := engine.Tracks()[0].Clips
			require.Len(t, clips, 2)
			a, b := clips[0], clips[1]

			assert.InDelta(t, original.Duration, a.Duration+b.Duration, 1e-9)
			assert.Equal(t, tt.playhead, b.StartTime)
			// [a.TrimStart, 10-a.TrimEnd] and [b.TrimStart, 10-b.TrimEnd] meet
			// and together cover the original window.
			assert.InDelta(t, original.TrimStart, a.TrimStart, 1e-9)
			assert.InDelta(t, 10-a.TrimEnd, b.TrimStart, 1e-9)
			assert.InDelta(t, original.TrimEnd, b.TrimEnd, 1e-9)
		})
	}
}

func TestSplitRejectsEdgesAndUnselected(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	clip := place(t, engine, video10)

	_, err := engine.SplitAtPlayhead(ctx, 5)
	assert.ErrorIs(t, err, ErrNoSplittableClipAtPlayhead)

	engine.Select(clip.ID, false)
	for _, at := range []float64{0, 0.005, 9.995, 10, 12} {
		_, err := engine.SplitAtPlayhead(ctx, at)
		assert.ErrorIs(t, err, ErrNoSplittableClipAtPlayhead, "playhead %v", at)
	}
	assert.Len(t, engine.Tracks()[0].Clips, 1)
}

func TestCopyPastePreservesOffsets(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	a := place(t, engine, video10) // [0,10)
	b := place(t, engine, video8)  // [10,18)
	c := place(t, engine, audio5)  // [0,5) on audio-track-1
	require.NoError(t, engine.MoveClip(ctx, c.ID, 3))

	engine.Select(a.ID, false)
	engine.Select(b.ID, true)
	engine.Select(c.ID, true)
	n, err := engine.CopySelection()
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	pasted, err := engine.PasteClipboard(ctx, 30)
	require.NoError(t, err)
	require.Len(t, pasted, 3)

	starts := make(map[string]float64)
	for _, p := range pasted {
		starts[p.FileID] = p.StartTime
		assert.NotContains(t, []string{a.ID, b.ID, c.ID}, p.ID)
	}
	assert.Equal(t, 30.0, starts[video10.ID])
	assert.Equal(t, 40.0, starts[video8.ID])
	assert.Equal(t, 33.0, starts[audio5.ID])

	selection := engine.Selection()
	assert.Len(t, selection, 3)
	for _, p := range pasted {
		assert.Contains(t, selection, p.ID)
	}

	// The clipboard is decoupled from live clips.
	require.NoError(t, engine.MoveClip(ctx, a.ID, 100))
	again, err := engine.PasteClipboard(ctx, 0)
	require.NoError(t, err)
	for _, p := range again {
		if p.FileID == video10.ID {
			assert.Equal(t, 0.0, p.StartTime)
		}
	}
}

func TestPasteErrors(t *testing.T) {
	engine, _ := newTestEngine(t)
	_, err := engine.PasteClipboard(context.Background(), 0)
	assert.ErrorIs(t, err, ErrClipboardEmpty)

	_, err = engine.CopySelection()
	assert.ErrorIs(t, err, ErrEmptySelection)
}

func TestPasteFallsBackToLockedTrack(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	clip := place(t, engine, audio5)
	engine.Select(clip.ID, false)
	_, err := engine.CopySelection()
	require.NoError(t, err)

	_, err = engine.ToggleTrackLock(ctx, "audio-track-1")
	require.NoError(t, err)
	_, err = engine.ToggleTrackLock(ctx, "audio-track-2")
	require.NoError(t, err)

	pasted, err := engine.PasteClipboard(ctx, 20)
	require.NoError(t, err)
	require.Len(t, pasted, 1)
	assert.Equal(t, "audio-track-1", pasted[0].TrackID)
}

func TestCutSelection(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	clip := place(t, engine, video10)
	engine.Select(clip.ID, false)

	n, err := engine.CutSelection(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Empty(t, engine.Tracks()[0].Clips)
	assert.Equal(t, 1, engine.ClipboardSize())

	pasted, err := engine.PasteClipboard(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 2.0, pasted[0].StartTime)
}

func TestExtractAudio(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	clip := place(t, engine, video10)
	require.NoError(t, engine.TrimClip(ctx, clip.ID, 1, 2))
	require.NoError(t, engine.MoveClip(ctx, clip.ID, 4))
	engine.Select(clip.ID, false)

	extracted, err := engine.ExtractAudio(ctx)
	require.NoError(t, err)
	require.Len(t, extracted, 1)

	audio := extracted[0]
	assert.Equal(t, domain.KindAudio, audio.Kind)
	assert.Equal(t, "audio-track-1", audio.TrackID)
	assert.Equal(t, video10.ID, audio.FileID)
	assert.Equal(t, 4.0, audio.StartTime)
	assert.Equal(t, 7.0, audio.Duration)
	assert.Equal(t, 1.0, audio.TrimStart)
	assert.Equal(t, 2.0, audio.TrimEnd)
	assert.False(t, audio.Muted)
	assert.Equal(t, 100, audio.Volume)

	video, _ := engine.Clip(clip.ID)
	assert.True(t, video.Muted)
	assert.False(t, video.HasAudio)

	// Second call is a no-op.
	again, err := engine.ExtractAudio(ctx)
	require.NoError(t, err)
	assert.Empty(t, again)
	assert.Len(t, engine.Tracks()[1].Clips, 1)
}

func TestExtractAudioWithoutAudioTrack(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	clip := place(t, engine, video10)
	engine.Select(clip.ID, false)
	_, err := engine.ToggleTrackLock(ctx, "audio-track-1")
	require.NoError(t, err)
	_, err = engine.ToggleTrackLock(ctx, "audio-track-2")
	require.NoError(t, err)

	_, err = engine.ExtractAudio(ctx)
	assert.ErrorIs(t, err, ErrNoAudioTrackAvailable)

	video, _ := engine.Clip(clip.ID)
	assert.True(t, video.HasAudio)
	assert.False(t, video.Muted)
}

func TestRemoveClipsForFileCascade(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	videoClip := place(t, engine, video10)
	other := place(t, engine, audio5)

	// Audio copy on audio-track-1 via extraction.
	engine.Select(videoClip.ID, false)
	extracted, err := engine.ExtractAudio(ctx)
	require.NoError(t, err)

	// A second audio copy lands on audio-track-2 once track 1 is locked.
	engine.Select(extracted[0].ID, false)
	_, err = engine.CopySelection()
	require.NoError(t, err)
	_, err = engine.ToggleTrackLock(ctx, "audio-track-1")
	require.NoError(t, err)
	pasted, err := engine.PasteClipboard(ctx, 0)
	require.NoError(t, err)
	require.Equal(t, "audio-track-2", pasted[0].TrackID)

	n, err := engine.RemoveClipsForFile(ctx, video10.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	for _, track := range engine.Tracks() {
		for _, c := range track.Clips {
			assert.NotEqual(t, video10.ID, c.FileID)
		}
	}
	_, ok := engine.Clip(other.ID)
	assert.True(t, ok)
	assert.Empty(t, engine.Selection())
	assert.Equal(t, 0, engine.ClipboardSize())

	// Nothing left to remove: no history entry.
	require.NoError(t, engine.Undo(ctx))
	require.NoError(t, engine.Redo(ctx))
	n, err = engine.RemoveClipsForFile(ctx, video10.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.False(t, engine.CanRedo())
	require.NoError(t, engine.Undo(ctx))
	assert.Len(t, engine.Tracks()[0].Clips, 1)
}

func TestUndoRedoRoundTrip(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	initial := engine.Tracks()
	var clip domain.Clip
	ops := []func(){
		func() { clip = place(t, engine, video10) },
		func() { place(t, engine, audio5) },
		func() { require.NoError(t, engine.MoveClip(ctx, clip.ID, 2)) },
		func() { require.NoError(t, engine.TrimClip(ctx, clip.ID, 1, 1)) },
		func() {
			engine.Select(clip.ID, false)
			_, err := engine.SplitAtPlayhead(ctx, 5)
			require.NoError(t, err)
		},
		func() {
			_, err := engine.ToggleTrackMute(ctx, "audio-track-2")
			require.NoError(t, err)
		},
		func() { require.NoError(t, engine.SetTrackVolume(ctx, "audio-track-1", 40)) },
	}
	for _, op := range ops {
		op()
	}
	final := engine.Tracks()

	for range ops {
		require.NoError(t, engine.Undo(ctx))
	}
	assert.Equal(t, initial, engine.Tracks())
	assert.ErrorIs(t, engine.Undo(ctx), ErrNothingToUndo)

	for range ops {
		require.NoError(t, engine.Redo(ctx))
	}
	assert.Equal(t, final, engine.Tracks())
	assert.ErrorIs(t, engine.Redo(ctx), ErrNothingToRedo)
}

func TestMutationClearsRedo(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	place(t, engine, video10)
	require.NoError(t, engine.Undo(ctx))
	assert.True(t, engine.CanRedo())

	place(t, engine, audio5)
	assert.False(t, engine.CanRedo())
}

func TestHistoryIsBounded(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	for i := 0; i < DefaultHistoryLimit+10; i++ {
		_, err := engine.ToggleTrackMute(ctx, "video-track-1")
		require.NoError(t, err)
	}

	undone := 0
	for engine.Undo(ctx) == nil {
		undone++
	}
	assert.Equal(t, DefaultHistoryLimit, undone)
}

func TestSnapshotsAreIndependent(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	clip := place(t, engine, video10)
	tracks := engine.Tracks()
	tracks[0].Clips[0].StartTime = 99

	got, _ := engine.Clip(clip.ID)
	assert.Equal(t, 0.0, got.StartTime)

	require.NoError(t, engine.MoveClip(ctx, clip.ID, 4))
	require.NoError(t, engine.Undo(ctx))
	got, _ = engine.Clip(clip.ID)
	assert.Equal(t, 0.0, got.StartTime)
}

func TestSelection(t *testing.T) {
	engine, _ := newTestEngine(t)

	assert.Equal(t, []string{"a"}, engine.Select("a", false))
	assert.Equal(t, []string{"a", "b"}, engine.Select("b", true))
	assert.Equal(t, []string{"b"}, engine.Select("a", true))
	assert.Equal(t, []string{"c"}, engine.Select("c", false))
	assert.Equal(t, []string{"c"}, engine.Select("", true))
	assert.Empty(t, engine.Select("", false))
}

func TestSetCurrentTimeClamps(t *testing.T) {
	engine, _ := newTestEngine(t)
	place(t, engine, video8)

	assert.Equal(t, 0.0, engine.SetCurrentTime(-3))
	assert.Equal(t, 8.0, engine.SetCurrentTime(30))
	assert.Equal(t, 4.5, engine.SetCurrentTime(4.5))
	assert.Equal(t, 4.5, engine.CurrentTime())
}

func TestVolumes(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()
	clip := place(t, engine, audio5)

	require.NoError(t, engine.SetClipVolume(ctx, clip.ID, 150))
	got, _ := engine.Clip(clip.ID)
	assert.Equal(t, 100, got.Volume)

	require.NoError(t, engine.SetClipVolume(ctx, clip.ID, 35))
	got, _ = engine.Clip(clip.ID)
	assert.Equal(t, 35, got.Volume)

	require.NoError(t, engine.SetTrackVolume(ctx, "audio-track-1", -5))
	assert.Equal(t, 0, engine.Tracks()[1].Volume)
}

func TestPersistenceRoundTrip(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()

	clip := place(t, engine, video10)

	reloaded := New(ctx, Options{Store: store, IDs: ids.NewSequence()})
	got, ok := reloaded.Clip(clip.ID)
	require.True(t, ok)
	assert.Equal(t, clip, got)

	records, err := store.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, TracksKey, records[0].ID)
}

func TestLoadRepairsDuplicateIDs(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()

	tracks := domain.DefaultTracks()
	tracks[0].Clips = []domain.Clip{
		{ID: "dup", Kind: domain.KindVideo, TrackID: "wrong", StartTime: 5, Duration: 2},
		{ID: "dup", Kind: domain.KindVideo, TrackID: "video-track-1", StartTime: 0, Duration: 0},
	}
	tracks[1].Clips = []domain.Clip{{ID: "dup", Kind: domain.KindAudio, Duration: 1}}
	data, err := json.Marshal(tracks)
	require.NoError(t, err)
	require.NoError(t, store.Put(ctx, storage.Record{ID: TracksKey, Data: data}))

	engine := New(ctx, Options{Store: store, IDs: ids.NewSequence()})
	loaded := engine.Tracks()

	seen := make(map[string]bool)
	for _, track := range loaded {
		for _, c := range track.Clips {
			assert.False(t, seen[c.ID], "duplicate id %s", c.ID)
			seen[c.ID] = true
			assert.Equal(t, track.ID, c.TrackID)
			assert.Greater(t, c.Duration, 0.0)
		}
	}
	assert.Len(t, seen, 3)
	assert.Equal(t, 0.0, loaded[0].Clips[0].StartTime)
}

func TestLoadFailureFallsBackToDefaults(t *testing.T) {
	ctx := context.Background()

	t.Run("store error", func(t *testing.T) {
		store := new(MockRecordStore)
		store.On("GetAll", mock.Anything).Return(nil, errors.New("store unavailable"))

		engine := New(ctx, Options{Store: store})
		assert.Equal(t, domain.DefaultTracks(), engine.Tracks())
		store.AssertExpectations(t)
	})

	t.Run("corrupt blob", func(t *testing.T) {
		store := storage.NewMemoryStore()
		require.NoError(t, store.Put(ctx, storage.Record{ID: TracksKey, Data: []byte("{not json")}))

		engine := New(ctx, Options{Store: store})
		assert.Equal(t, domain.DefaultTracks(), engine.Tracks())
	})

	t.Run("empty track list", func(t *testing.T) {
		store := storage.NewMemoryStore()
		require.NoError(t, store.Put(ctx, storage.Record{ID: TracksKey, Data: []byte("[]")}))

		engine := New(ctx, Options{Store: store})
		assert.Equal(t, domain.DefaultTracks(), engine.Tracks())
	})
}

func TestPersistFailureDoesNotFailEdit(t *testing.T) {
	ctx := context.Background()
	store := new(MockRecordStore)
	store.On("GetAll", mock.Anything).Return([]storage.Record{}, nil)
	store.On("Put", mock.Anything, mock.AnythingOfType("storage.Record")).Return(errors.New("disk full"))

	engine := New(ctx, Options{Store: store, IDs: ids.NewSequence()})
	clip, err := engine.PlaceClip(ctx, video10, domain.KindVideo, 0)
	require.NoError(t, err)

	_, ok := engine.Clip(clip.ID)
	assert.True(t, ok)
	store.AssertCalled(t, "Put", mock.Anything, mock.AnythingOfType("storage.Record"))
}

func TestShortcuts(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	assert.Equal(t, DefaultShortcuts(), engine.Shortcuts(ctx))

	custom := DefaultShortcuts()
	custom.Split = "S"
	require.NoError(t, engine.SaveShortcuts(ctx, custom))
	assert.Equal(t, "S", engine.Shortcuts(ctx).Split)
	assert.Equal(t, "Ctrl+V", engine.Shortcuts(ctx).Paste)

	require.NoError(t, engine.ResetShortcuts(ctx))
	assert.Equal(t, DefaultShortcuts(), engine.Shortcuts(ctx))
}

func TestShortcutsDoNotDisturbTimelineLoad(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()

	clip := place(t, engine, video10)
	require.NoError(t, engine.SaveShortcuts(ctx, DefaultShortcuts()))

	reloaded := New(ctx, Options{Store: store, IDs: ids.NewSequence()})
	_, ok := reloaded.Clip(clip.ID)
	assert.True(t, ok)
}

func TestReset(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	clip := place(t, engine, video10)
	engine.Select(clip.ID, false)
	engine.SetCurrentTime(3)

	engine.Reset(ctx)
	assert.Equal(t, domain.DefaultTracks(), engine.Tracks())
	assert.Empty(t, engine.Selection())
	assert.False(t, engine.CanUndo())
	assert.Equal(t, 0.0, engine.CurrentTime())
}
