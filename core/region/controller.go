package region

import (
	"fmt"
	"sync"

	"stemlab/logger"
	"stemlab/model"
)

// ViewState is the position of one waveform view in the selection lifecycle.
type ViewState string

const (
	StateIdle       ViewState = "idle"
	StateDragging   ViewState = "dragging"
	StateSelected   ViewState = "selected"
	StatePreviewing ViewState = "previewing"
)

// NudgeStep is the precision-edit increment in seconds (10 ms).
const NudgeStep = 0.01

// Edge selects which region boundary a precision edit applies to.
type Edge int

const (
	EdgeStart Edge = iota
	EdgeEnd
)

// Player is the playback handle owned by one waveform view. Implementations
// are not expected to be safe for concurrent use; the controller serializes
// access.
type Player interface {
	Seek(pos float64)
	Play()
	Pause()
	Position() float64
}

// FrameScheduler repeatedly runs a per-frame check until the returned stop
// function is called. Stop must be synchronous: after it returns, fn is
// guaranteed not to run again.
type FrameScheduler interface {
	Schedule(fn func()) (stop func())
}

// Committer persists a finished selection as a library artifact.
type Committer interface {
	CommitSample(trackName, stemName string, start, end float64) error
	CommitLoop(sourceType, trackName, stemName string, start, end float64, count int) error
}

// Controller coordinates drag-based region selection, precision editing and
// bounded loop preview for a single waveform view. Every view owns its own
// controller, player and frame loop, so any number of views may preview
// concurrently.
type Controller struct {
	trackName  string
	stemName   string
	sourceType string // what a committed loop derives from: stem or sample
	duration   float64

	player    Player
	scheduler FrameScheduler
	committer Committer

	mu        sync.Mutex
	state     ViewState
	start     float64
	end       float64
	anchor    float64
	stopFrame func()
}

// NewController creates a controller for one waveform view showing a stem.
// duration is the length of the audio bound to the view; selections are
// clamped to it.
func NewController(trackName, stemName string, duration float64, player Player, scheduler FrameScheduler, committer Committer) *Controller {
	return &Controller{
		trackName:  trackName,
		stemName:   stemName,
		sourceType: model.LoopSourceStem,
		duration:   duration,
		player:     player,
		scheduler:  scheduler,
		committer:  committer,
		state:      StateIdle,
	}
}

// NewSampleController creates a controller for a view showing an existing
// sample, so committed loops record the sample as their source.
func NewSampleController(trackName, stemName string, duration float64, player Player, scheduler FrameScheduler, committer Committer) *Controller {
	c := NewController(trackName, stemName, duration, player, scheduler, committer)
	c.sourceType = model.LoopSourceSample
	return c
}

// State returns the view's current lifecycle state.
func (c *Controller) State() ViewState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Region returns the current selection boundaries.
func (c *Controller) Region() (start, end float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.start, c.end
}

func (c *Controller) clamp(pos float64) float64 {
	if pos < 0 {
		return 0
	}
	if pos > c.duration {
		return c.duration
	}
	return pos
}

// BeginDrag starts the modifier-drag gesture. Any pre-existing region or
// running preview for this view is discarded first: a view holds at most one
// active region.
func (c *Controller) BeginDrag(pos float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stopPreviewLocked()
	c.anchor = c.clamp(pos)
	c.start = c.anchor
	c.end = c.anchor
	c.state = StateDragging
}

// Drag updates the moving edge of the gesture. Ignored outside DRAGGING.
func (c *Controller) Drag(pos float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateDragging {
		return
	}
	pos = c.clamp(pos)
	if pos < c.anchor {
		c.start, c.end = pos, c.anchor
	} else {
		c.start, c.end = c.anchor, pos
	}
}

// EndDrag releases the gesture. A zero-width gesture leaves no region and
// returns the view to IDLE.
func (c *Controller) EndDrag(pos float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateDragging {
		return
	}
	pos = c.clamp(pos)
	if pos < c.anchor {
		c.start, c.end = pos, c.anchor
	} else {
		c.start, c.end = c.anchor, pos
	}
	if c.start >= c.end {
		c.state = StateIdle
		return
	}
	c.state = StateSelected
}

// SetStart sets the region start from the precision field. Valid in SELECTED
// and PREVIEWING; while previewing the active loop boundary moves without
// interrupting playback.
func (c *Controller) SetStart(pos float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateSelected && c.state != StatePreviewing {
		return fmt.Errorf("no active region to edit")
	}
	pos = c.clamp(pos)
	if pos >= c.end {
		return fmt.Errorf("start time %g must be before end time %g", pos, c.end)
	}
	c.start = pos
	return nil
}

// SetEnd sets the region end from the precision field, under the same rules
// as SetStart.
func (c *Controller) SetEnd(pos float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateSelected && c.state != StatePreviewing {
		return fmt.Errorf("no active region to edit")
	}
	pos = c.clamp(pos)
	if pos <= c.start {
		return fmt.Errorf("end time %g must be after start time %g", pos, c.start)
	}
	c.end = pos
	return nil
}

// Nudge moves one boundary by the fixed 10 ms step.
func (c *Controller) Nudge(edge Edge, forward bool) error {
	step := NudgeStep
	if !forward {
		step = -step
	}
	c.mu.Lock()
	var target float64
	if edge == EdgeStart {
		target = c.start + step
	} else {
		target = c.end + step
	}
	c.mu.Unlock()

	if edge == EdgeStart {
		return c.SetStart(target)
	}
	return c.SetEnd(target)
}

// StartPreview begins bounded loop playback of the selection. Playback seeks
// to the region start and a per-frame check wraps it back whenever the
// position reaches the region end, looping seamlessly until stopped.
func (c *Controller) StartPreview() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateSelected {
		return fmt.Errorf("no selection to preview")
	}

	c.player.Seek(c.start)
	c.player.Play()
	c.stopFrame = c.scheduler.Schedule(c.frameTick)
	c.state = StatePreviewing
	return nil
}

// frameTick is the cooperative per-frame boundary check.
func (c *Controller) frameTick() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StatePreviewing {
		return
	}
	if c.player.Position() >= c.end {
		c.player.Seek(c.start)
	}
}

// StopPreview halts loop playback and returns to SELECTED. The stop is
// synchronous: no further frame checks run after it returns.
func (c *Controller) StopPreview() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StatePreviewing {
		return
	}
	c.stopPreviewLocked()
	c.state = StateSelected
}

// stopPreviewLocked tears down the frame loop and pauses playback. Caller
// holds c.mu.
func (c *Controller) stopPreviewLocked() {
	if c.stopFrame != nil {
		stop := c.stopFrame
		c.stopFrame = nil
		// Release the lock while stopping so an in-flight frameTick can
		// finish instead of deadlocking against us.
		c.mu.Unlock()
		stop()
		c.mu.Lock()
		c.player.Pause()
	}
}

// Cancel is the global cancel gesture: it stops any preview, discards the
// region and popup state, and returns the view to IDLE.
func (c *Controller) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopPreviewLocked()
	c.start = 0
	c.end = 0
	c.state = StateIdle
}

// CommitSample extracts the selection as a Sample. On success the view
// returns to IDLE; on failure the selection is retained so the user can
// retry.
func (c *Controller) CommitSample() error {
	c.mu.Lock()
	if c.state != StateSelected {
		c.mu.Unlock()
		return fmt.Errorf("no selection to commit")
	}
	start, end := c.start, c.end
	c.mu.Unlock()

	if err := c.committer.CommitSample(c.trackName, c.stemName, start, end); err != nil {
		logger.Warn("sample commit failed",
			logger.String("track", c.trackName), logger.ErrorField(err))
		return err
	}

	c.Cancel()
	return nil
}

// CommitLoop extracts the selection repeated count times as a Loop, under the
// same success/failure rules as CommitSample.
func (c *Controller) CommitLoop(count int) error {
	if !model.ValidLoopCount(count) {
		return fmt.Errorf("invalid loop count %d: must be one of %v", count, model.ValidLoopCounts)
	}

	c.mu.Lock()
	if c.state != StateSelected {
		c.mu.Unlock()
		return fmt.Errorf("no selection to commit")
	}
	start, end := c.start, c.end
	c.mu.Unlock()

	if err := c.committer.CommitLoop(c.sourceType, c.trackName, c.stemName, start, end, count); err != nil {
		logger.Warn("loop commit failed",
			logger.String("track", c.trackName), logger.ErrorField(err))
		return err
	}

	c.Cancel()
	return nil
}
