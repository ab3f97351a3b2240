// Package playback keeps one media element per track phase-locked to the
// global timeline clock.
package playback

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/jaki95/timeline-editor/internal/domain"
)

const (
	DefaultDriftThreshold = 0.3
	DefaultTickInterval   = 16 * time.Millisecond
)

var ErrFileUnavailable = errors.New("media file not in catalog")

// Source is the timeline state the synchronizer reads and whose playhead it advances.
type Source interface {
	Snapshot() domain.Timeline
	CurrentTime() float64
	SetCurrentTime(t float64) float64
}

// FileLookup resolves the files referenced by clips.
type FileLookup interface {
	Get(id string) (domain.MediaFile, bool)
}

// Options configures a Synchronizer.
type Options struct {
	Source         Source
	Files          FileLookup
	NewElement     ElementFactory
	Clock          Clock
	DriftThreshold float64
	TickInterval   time.Duration
	// OnTime receives the playhead after every tick and seek. It runs
	// without locks held but must not call Pause or Close.
	OnTime  func(t float64)
	OnError func(err error)
	Logger  *slog.Logger
}

// slot is the element currently bound to a track.
type slot struct {
	clip    domain.Clip
	element MediaElement
	ready   bool
	failed  bool
	playing bool
	volume  float64
	// target is the local source time to apply once the element is ready.
	target float64
}

// Synchronizer drives the media elements of all tracks from a single clock.
type Synchronizer struct {
	mu          sync.Mutex
	playing     bool
	volume      int
	lastTick    time.Time
	slots       map[string]*slot
	cancelLoop  context.CancelFunc
	loopDone    chan struct{}
	lifetime    context.Context
	stopElement context.CancelFunc

	source     Source
	files      FileLookup
	newElement ElementFactory
	clock      Clock
	drift      float64
	interval   time.Duration
	onTime     func(float64)
	onError    func(error)
	logger     *slog.Logger
}

// New creates a paused synchronizer at full volume.
func New(opts Options) *Synchronizer {
	s := &Synchronizer{
		volume:     domain.FullVolume,
		slots:      make(map[string]*slot),
		source:     opts.Source,
		files:      opts.Files,
		newElement: opts.NewElement,
		clock:      opts.Clock,
		drift:      opts.DriftThreshold,
		interval:   opts.TickInterval,
		onTime:     opts.OnTime,
		onError:    opts.OnError,
		logger:     opts.Logger,
	}
	if s.clock == nil {
		s.clock = systemClock{}
	}
	if s.drift <= 0 {
		s.drift = DefaultDriftThreshold
	}
	if s.interval <= 0 {
		s.interval = DefaultTickInterval
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.lifetime, s.stopElement = context.WithCancel(context.Background())
	return s
}

// IsPlaying reports whether the tick loop is running.
func (s *Synchronizer) IsPlaying() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playing
}

// Volume returns the global volume percentage.
func (s *Synchronizer) Volume() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.volume
}

// Play starts the tick loop. Playing from the end restarts at zero. Calling
// Play while playing leaves the running loop alone.
func (s *Synchronizer) Play() {
	if s.IsPlaying() {
		return
	}
	// A loop that ended on its own may not have been reaped yet.
	s.stopLoop()

	s.mu.Lock()
	if s.playing {
		s.mu.Unlock()
		return
	}
	timeline := s.source.Snapshot()
	t := s.source.CurrentTime()
	if t >= timeline.Duration {
		t = s.source.SetCurrentTime(0)
	}
	s.playing = true
	s.lastTick = s.clock.Now()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	s.cancelLoop, s.loopDone = cancel, done
	fx := s.reconcile(timeline, t)
	s.mu.Unlock()

	go s.loop(ctx, done)
	s.apply(fx)
	s.logger.Debug("Playback started", "time", t)
}

func (s *Synchronizer) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !s.Tick() {
				return
			}
		}
	}
}

// Pause stops the tick loop and waits for it to exit before pausing every element.
func (s *Synchronizer) Pause() {
	s.mu.Lock()
	s.playing = false
	s.mu.Unlock()

	s.stopLoop()

	s.mu.Lock()
	for _, sl := range s.slots {
		s.pauseSlot(sl)
	}
	t := s.source.CurrentTime()
	s.mu.Unlock()
	s.logger.Debug("Playback paused", "time", t)
}

func (s *Synchronizer) stopLoop() {
	s.mu.Lock()
	cancel, done := s.cancelLoop, s.loopDone
	s.cancelLoop, s.loopDone = nil, nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

// Tick advances the clock by the real time elapsed since the previous tick
// and reconciles all tracks. It stops playback at the end of the timeline
// and reports whether playback continues.
func (s *Synchronizer) Tick() bool {
	s.mu.Lock()
	if !s.playing {
		s.mu.Unlock()
		return false
	}
	now := s.clock.Now()
	delta := now.Sub(s.lastTick).Seconds()
	s.lastTick = now

	timeline := s.source.Snapshot()
	t := s.source.CurrentTime() + delta
	if t >= timeline.Duration {
		t = timeline.Duration
		s.playing = false
	}
	t = s.source.SetCurrentTime(t)
	fx := s.reconcile(timeline, t)
	playing := s.playing
	s.mu.Unlock()

	s.apply(fx)
	s.notify(t)
	return playing
}

// Seek moves the playhead and re-aligns every element. A paused
// synchronizer stays paused.
func (s *Synchronizer) Seek(t float64) float64 {
	s.mu.Lock()
	timeline := s.source.Snapshot()
	t = s.source.SetCurrentTime(t)
	if s.playing {
		s.lastTick = s.clock.Now()
	}
	fx := s.reconcile(timeline, t)
	s.mu.Unlock()

	s.apply(fx)
	s.notify(t)
	return t
}

// Refresh re-aligns elements after the timeline was edited.
func (s *Synchronizer) Refresh() {
	s.mu.Lock()
	fx := s.reconcile(s.source.Snapshot(), s.source.CurrentTime())
	s.mu.Unlock()
	s.apply(fx)
}

// SetVolume sets the global volume percentage, clamped to [0, 100].
func (s *Synchronizer) SetVolume(pct int) {
	s.mu.Lock()
	s.volume = max(0, min(domain.FullVolume, pct))
	fx := s.reconcile(s.source.Snapshot(), s.source.CurrentTime())
	s.mu.Unlock()
	s.apply(fx)
}

// Close stops playback and releases every element.
func (s *Synchronizer) Close() {
	s.Pause()

	s.mu.Lock()
	defer s.mu.Unlock()
	for trackID, sl := range s.slots {
		s.release(trackID, sl)
	}
	s.stopElement()
}

// EffectiveVolume combines the global, clip and track volume into the
// element gain in [0, 1]. Muted or silent clips get zero.
func EffectiveVolume(global int, clip domain.Clip, track domain.Track) float64 {
	if clip.Muted || track.Muted || !clip.HasAudio {
		return 0
	}
	return float64(global) / 100 * float64(clip.Volume) / 100 * float64(track.Volume) / 100
}

// ActiveClip returns the first clip of track whose [start, end) contains t.
func ActiveClip(track domain.Track, t float64) (domain.Clip, bool) {
	for _, c := range track.Clips {
		if c.Contains(t) {
			return c, true
		}
	}
	return domain.Clip{}, false
}

// LocalTime maps timeline time t to the source time of clip.
func LocalTime(clip domain.Clip, t float64) float64 {
	return t - clip.StartTime + clip.TrimStart
}

// effects are element calls that may re-enter the synchronizer and run
// after the lock is released.
type effects struct {
	loads []pendingLoad
	errs  []error
}

type pendingLoad struct {
	trackID string
	clipID  string
	slot    *slot
	file    domain.MediaFile
}

// reconcile binds the active clip of every track to an element and drives
// it towards t. Callers hold s.mu.
func (s *Synchronizer) reconcile(timeline domain.Timeline, t float64) effects {
	var fx effects
	seen := make(map[string]bool, len(timeline.Tracks))

	for _, track := range timeline.Tracks {
		seen[track.ID] = true
		sl := s.slots[track.ID]

		clip, ok := ActiveClip(track, t)
		if !ok {
			if sl != nil {
				s.release(track.ID, sl)
			}
			continue
		}

		if sl != nil && sl.clip.FileID != clip.FileID {
			s.release(track.ID, sl)
			sl = nil
		}
		if sl == nil {
			sl = s.bind(track.ID, clip, &fx)
		}
		sl.clip = clip
		sl.target = LocalTime(clip, t)
		s.drive(sl, EffectiveVolume(s.volume, clip, track), &fx)
	}

	for trackID, sl := range s.slots {
		if !seen[trackID] {
			s.release(trackID, sl)
		}
	}
	return fx
}

func (s *Synchronizer) bind(trackID string, clip domain.Clip, fx *effects) *slot {
	sl := &slot{clip: clip, volume: -1}
	s.slots[trackID] = sl

	file, ok := s.files.Get(clip.FileID)
	if !ok {
		sl.failed = true
		fx.errs = append(fx.errs, &LoadError{TrackID: trackID, ClipID: clip.ID, FileID: clip.FileID, Err: ErrFileUnavailable})
		return sl
	}

	sl.element = s.newElement(clip)
	element := sl.element
	element.OnReady(func() { s.handleReady(trackID, element) })
	element.OnEnded(func() {
		s.logger.Debug("Media element reached end of source", "track", trackID, "file", file.ID)
	})
	fx.loads = append(fx.loads, pendingLoad{trackID: trackID, clipID: clip.ID, slot: sl, file: file})
	return sl
}

// drive applies position, play state and gain to a ready element and
// leaves the intent queued otherwise.
func (s *Synchronizer) drive(sl *slot, volume float64, fx *effects) {
	if sl.failed || !sl.ready {
		sl.volume = volume
		return
	}

	if math.Abs(sl.element.Position()-sl.target) > s.drift {
		sl.element.Seek(sl.target)
	}
	if sl.volume != volume {
		sl.element.SetVolume(volume)
		sl.volume = volume
	}
	switch {
	case s.playing && !sl.playing:
		if err := sl.element.Play(); err != nil {
			fx.errs = append(fx.errs, err)
			return
		}
		sl.playing = true
	case !s.playing && sl.playing:
		s.pauseSlot(sl)
	}
}

func (s *Synchronizer) handleReady(trackID string, element MediaElement) {
	s.mu.Lock()
	sl := s.slots[trackID]
	if sl == nil || sl.element != element {
		s.mu.Unlock()
		return
	}
	sl.ready = true
	volume := sl.volume
	sl.volume = -1
	var fx effects
	s.drive(sl, volume, &fx)
	s.mu.Unlock()

	s.apply(fx)
}

func (s *Synchronizer) pauseSlot(sl *slot) {
	if sl.element != nil && sl.playing {
		sl.element.Pause()
	}
	sl.playing = false
}

func (s *Synchronizer) release(trackID string, sl *slot) {
	delete(s.slots, trackID)
	if sl.element == nil {
		return
	}
	s.pauseSlot(sl)
	if err := sl.element.Close(); err != nil {
		s.logger.Warn("Failed to close media element", "track", trackID, "clip", sl.clip.ID, "error", err)
	}
}

func (s *Synchronizer) apply(fx effects) {
	for _, l := range fx.loads {
		if err := l.slot.element.Load(s.lifetime, l.file); err != nil {
			s.mu.Lock()
			l.slot.failed = true
			s.mu.Unlock()
			fx.errs = append(fx.errs, &LoadError{TrackID: l.trackID, ClipID: l.clipID, FileID: l.file.ID, Err: err})
		}
	}
	for _, err := range fx.errs {
		s.logger.Warn("Playback error", "error", err)
		if s.onError != nil {
			s.onError(err)
		}
	}
}

func (s *Synchronizer) notify(t float64) {
	if s.onTime != nil {
		s.onTime(t)
	}
}
