package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jaki95/timeline-editor/config"
	"github.com/jaki95/timeline-editor/internal/domain"
	"github.com/jaki95/timeline-editor/internal/export"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{}
	cfg.Storage.Records.Type = "local"
	cfg.Storage.Records.Dir = filepath.Join(dir, "records")
	cfg.Storage.Media.Type = "local"
	cfg.Storage.Media.Dir = filepath.Join(dir, "media")
	cfg.FFmpeg.FFprobePath = filepath.Join(dir, "missing-ffprobe")
	cfg.Editor.HistoryLimit = 10
	return cfg
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestAppPersistsAcrossRestarts(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)

	a, err := newApp(ctx, cfg, discardLogger())
	require.NoError(t, err)
	file, err := a.catalog.Ingest(ctx, "intro.mp4", 0, "video/mp4", strings.NewReader("video"))
	require.NoError(t, err)
	_, err = a.catalog.SetDuration(ctx, file.ID, 8)
	require.NoError(t, err)
	file, _ = a.catalog.Get(file.ID)
	clip, err := a.engine.PlaceClip(ctx, file, domain.KindVideo, 0)
	require.NoError(t, err)
	require.NoError(t, a.Close())

	reopened, err := newApp(ctx, cfg, discardLogger())
	require.NoError(t, err)
	defer reopened.Close()

	restored, ok := reopened.catalog.Get(file.ID)
	require.True(t, ok)
	assert.Equal(t, 8.0, restored.Duration)

	got, ok := reopened.engine.Clip(clip.ID)
	require.True(t, ok)
	assert.Equal(t, file.ID, got.FileID)
	assert.Equal(t, 8.0, reopened.engine.Duration())
}

func TestAppUnknownStorage(t *testing.T) {
	cfg := testConfig(t)
	cfg.Storage.Records.Type = "cassette"
	_, err := newApp(context.Background(), cfg, discardLogger())
	assert.ErrorContains(t, err, "cassette")

	cfg = testConfig(t)
	cfg.Storage.Media.Type = "floppy"
	_, err = newApp(context.Background(), cfg, discardLogger())
	assert.ErrorContains(t, err, "floppy")
}

func TestPrintTimeline(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	cfg.Storage.Records.Type = "memory"
	cfg.Storage.Media.Type = "memory"

	a, err := newApp(ctx, cfg, discardLogger())
	require.NoError(t, err)
	defer a.Close()

	file, err := a.catalog.Ingest(ctx, "song.mp3", 0, "audio/mpeg", strings.NewReader("audio"))
	require.NoError(t, err)
	_, err = a.engine.PlaceClip(ctx, file, domain.KindAudio, 0)
	require.NoError(t, err)
	_, err = a.engine.ToggleTrackLock(ctx, "audio-track-1")
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, printTimeline(&out, a.engine.Snapshot(), a.catalog))

	text := out.String()
	assert.Contains(t, text, "Duration: 5.00s")
	assert.Contains(t, text, "Audio Track 1 (audio, volume 100%, locked)")
	assert.Contains(t, text, "song.mp3")
	assert.Contains(t, text, "Video Track 1 (video, volume 100%)\n  (empty)")
	assert.Contains(t, text, "Media (1)")
}

type recordingBar struct {
	values []int
}

func (b *recordingBar) Set(n int) error {
	b.values = append(b.values, n)
	return nil
}

type stubTranscoder struct {
	outputs map[string][]byte
}

func (s *stubTranscoder) WriteInput(context.Context, string, []byte) error { return nil }

func (s *stubTranscoder) Execute(_ context.Context, args []string, _ float64, onProgress func(float64)) error {
	s.outputs[args[len(args)-1]] = []byte("movie")
	onProgress(1)
	return nil
}

func (s *stubTranscoder) ReadOutput(_ context.Context, handle string) ([]byte, error) {
	return s.outputs[handle], nil
}

func (s *stubTranscoder) DeleteHandle(context.Context, string) error { return nil }

func TestRenderTimeline(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	cfg.Storage.Records.Type = "memory"
	cfg.Storage.Media.Type = "memory"

	a, err := newApp(ctx, cfg, discardLogger())
	require.NoError(t, err)
	defer a.Close()

	file, err := a.catalog.Ingest(ctx, "clip.mp4", 0, "video/mp4", strings.NewReader("video"))
	require.NoError(t, err)
	_, err = a.engine.PlaceClip(ctx, file, domain.KindVideo, 0)
	require.NoError(t, err)

	o := export.New(export.Options{
		Transcoder: &stubTranscoder{outputs: map[string][]byte{}},
		Content:    a.catalog,
		Logger:     discardLogger(),
	})

	outDir := t.TempDir()
	bar := &recordingBar{}
	path, err := renderTimeline(ctx, o, a.engine.Tracks(), export.FormatMP4, outDir, bar)
	require.NoError(t, err)

	assert.Equal(t, outDir, filepath.Dir(path))
	assert.True(t, strings.HasPrefix(filepath.Base(path), "export_"))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "movie", string(data))
	assert.Equal(t, []int{99, 100}, bar.values)

	explicit := filepath.Join(outDir, "final.mp4")
	path, err = renderTimeline(ctx, o, a.engine.Tracks(), export.FormatMP4, explicit, &recordingBar{})
	require.NoError(t, err)
	assert.Equal(t, explicit, path)
}

func TestLoadConfigFallback(t *testing.T) {
	t.Chdir(t.TempDir())

	loaded, err := loadConfig("missing.yaml", false)
	require.NoError(t, err)
	assert.Equal(t, "8080", loaded.Server.Port)

	_, err = loadConfig("missing.yaml", true)
	assert.Error(t, err)
}
