// Package camera captures a still photo for one job-card image slot.
//
// A Capture owns at most one open Stream. Every path out of a state that
// holds a stream (confirm, retake, close, error) stops it before moving on,
// and a Controller keeps a single Capture active across slots.
package camera

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"log/slog"
	"sync"
	"time"
)

// State is the capture dialog state.
type State int

const (
	Idle State = iota
	Requesting
	Streaming
	Captured
	Error
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Requesting:
		return "requesting"
	case Streaming:
		return "streaming"
	case Captured:
		return "captured"
	case Error:
		return "error"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// ValidTransitions maps each state to its valid next states. Every state
// may return to Idle through Close.
var ValidTransitions = map[State][]State{
	Idle:       {Requesting},
	Requesting: {Streaming, Error, Idle},
	Streaming:  {Captured, Error, Idle},
	Captured:   {Requesting, Idle},
	Error:      {Requesting, Idle},
}

// Facing selects the camera on devices that have more than one.
type Facing int

const (
	FacingRear Facing = iota
	FacingFront
)

func (f Facing) String() string {
	if f == FacingFront {
		return "front"
	}
	return "rear"
}

var (
	ErrPermissionDenied  = errors.New("camera: permission denied")
	ErrNoCamera          = errors.New("camera: no camera found")
	ErrUnsupported       = errors.New("camera: not supported")
	ErrStreamClosed      = errors.New("camera: stream closed")
	ErrInvalidTransition = errors.New("camera: invalid state transition")
)

// DefaultJPEGQuality is the encoder quality for captured frames.
const DefaultJPEGQuality = 92

// Device opens a live stream from a camera.
type Device interface {
	Open(ctx context.Context, facing Facing) (Stream, error)
}

// Stream is an open camera. Stop releases it and is safe to call twice.
type Stream interface {
	Frame(ctx context.Context) (image.Image, error)
	Stop()
}

// Photo is a captured JPEG.
type Photo struct {
	Name        string
	ContentType string
	Data        []byte
}

// Message returns the text shown in the capture dialog for err.
func Message(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrPermissionDenied):
		return "Camera permission denied. Please allow camera access and try again."
	case errors.Is(err, ErrNoCamera):
		return "No camera found on this device."
	case errors.Is(err, ErrUnsupported):
		return "Camera is not supported on this device."
	default:
		return "Unable to access the camera. Please try again."
	}
}

// Capture is the capture dialog for one slot.
type Capture struct {
	device  Device
	slot    string
	quality int
	now     func() time.Time
	logger  *slog.Logger

	mu      sync.Mutex
	state   State
	stream  Stream
	photo   *Photo
	message string
}

// NewCapture returns an idle Capture for slot.
func NewCapture(device Device, slot string, logger *slog.Logger) *Capture {
	if logger == nil {
		logger = slog.Default()
	}
	return &Capture{
		device:  device,
		slot:    slot,
		quality: DefaultJPEGQuality,
		now:     time.Now,
		logger:  logger,
	}
}

// Slot returns the slot this capture is for.
func (c *Capture) Slot() string { return c.slot }

// State returns the current state.
func (c *Capture) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Message returns the device error text shown in Error, "" otherwise.
func (c *Capture) Message() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.message
}

// Photo returns the captured frame while in Captured.
func (c *Capture) Photo() *Photo {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.photo
}

// transition moves to next if allowed. Caller holds c.mu.
func (c *Capture) transition(next State) error {
	for _, s := range ValidTransitions[c.state] {
		if s == next {
			c.state = next
			return nil
		}
	}
	return fmt.Errorf("%w: %s → %s", ErrInvalidTransition, c.state, next)
}

// release stops the open stream, if any. Caller holds c.mu.
func (c *Capture) release() {
	if c.stream != nil {
		c.stream.Stop()
		c.stream = nil
	}
}

// Open requests the stream: Idle → Requesting → Streaming or Error.
func (c *Capture) Open(ctx context.Context) error {
	return c.request(ctx, Idle)
}

// Retake drops the captured frame and requests the stream again.
func (c *Capture) Retake(ctx context.Context) error {
	return c.request(ctx, Captured)
}

// Retry requests the stream again after an error.
func (c *Capture) Retry(ctx context.Context) error {
	return c.request(ctx, Error)
}

func (c *Capture) request(ctx context.Context, from State) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != from {
		return fmt.Errorf("%w: %s → %s", ErrInvalidTransition, c.state, Requesting)
	}
	if err := c.transition(Requesting); err != nil {
		return err
	}
	c.release()
	c.photo = nil
	c.message = ""

	stream, err := c.device.Open(ctx, FacingRear)
	if errors.Is(err, ErrNoCamera) {
		// no rear camera, take whatever faces the operator
		stream, err = c.device.Open(ctx, FacingFront)
	}
	if err != nil {
		c.message = Message(err)
		c.state = Error
		c.logger.Warn("camera unavailable", "slot", c.slot, "err", err)
		return err
	}
	c.stream = stream
	return c.transition(Streaming)
}

// Snap grabs one frame from the stream and encodes it as JPEG:
// Streaming → Captured. A frame error releases the stream and enters Error.
func (c *Capture) Snap(ctx context.Context) (*Photo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Streaming {
		return nil, fmt.Errorf("%w: %s → %s", ErrInvalidTransition, c.state, Captured)
	}
	img, err := c.stream.Frame(ctx)
	if err != nil {
		c.release()
		c.message = Message(err)
		c.state = Error
		return nil, fmt.Errorf("camera: capture frame: %w", err)
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: c.quality}); err != nil {
		c.release()
		c.message = Message(err)
		c.state = Error
		return nil, fmt.Errorf("camera: encode jpeg: %w", err)
	}
	c.photo = &Photo{
		Name:        fmt.Sprintf("%s-%d.jpg", c.slot, c.now().Unix()),
		ContentType: "image/jpeg",
		Data:        buf.Bytes(),
	}
	if err := c.transition(Captured); err != nil {
		return nil, err
	}
	return c.photo, nil
}

// Confirm adopts the captured photo, releases the stream and returns to
// Idle.
func (c *Capture) Confirm() (*Photo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Captured {
		return nil, fmt.Errorf("%w: %s → %s", ErrInvalidTransition, c.state, Idle)
	}
	photo := c.photo
	c.release()
	c.photo = nil
	c.state = Idle
	return photo, nil
}

// Close releases the stream and returns to Idle without adopting a photo.
func (c *Capture) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.release()
	c.photo = nil
	c.message = ""
	c.state = Idle
}

// Controller hands out captures so that at most one slot holds the camera.
type Controller struct {
	device Device
	logger *slog.Logger

	mu     sync.Mutex
	active *Capture
}

// NewController returns a Controller over device.
func NewController(device Device, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{device: device, logger: logger}
}

// Open closes any active capture and opens a new one for slot. The returned
// Capture is returned even when the device fails, in its Error state, so
// the caller can Retry.
func (c *Controller) Open(ctx context.Context, slot string) (*Capture, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active != nil {
		c.active.Close()
	}
	c.active = NewCapture(c.device, slot, c.logger)
	return c.active, c.active.Open(ctx)
}

// Active returns the current capture, nil if none.
func (c *Controller) Active() *Capture {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// Close closes the active capture.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active != nil {
		c.active.Close()
		c.active = nil
	}
}
