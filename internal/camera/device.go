package camera

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/png"
	"io/fs"
	"net/http"
	"os"
	"sync"
	"time"
)

// SnapshotDevice reads frames from the still-image endpoint of an IP
// camera, one HTTP GET per frame.
type SnapshotDevice struct {
	RearURL  string
	FrontURL string
	Client   *http.Client
}

// NewSnapshotDevice returns a SnapshotDevice with a client bounded by
// timeout.
func NewSnapshotDevice(rearURL, frontURL string, timeout time.Duration) *SnapshotDevice {
	return &SnapshotDevice{
		RearURL:  rearURL,
		FrontURL: frontURL,
		Client:   &http.Client{Timeout: timeout},
	}
}

// Open checks that the camera answers and returns a stream over it.
func (d *SnapshotDevice) Open(ctx context.Context, facing Facing) (Stream, error) {
	url := d.RearURL
	if facing == FacingFront {
		url = d.FrontURL
	}
	if url == "" {
		return nil, fmt.Errorf("%w: no %s camera configured", ErrNoCamera, facing)
	}
	client := d.Client
	if client == nil {
		client = http.DefaultClient
	}
	s := &snapshotStream{url: url, client: client}
	if _, err := s.Frame(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

type snapshotStream struct {
	url    string
	client *http.Client

	mu      sync.Mutex
	stopped bool
}

func (s *snapshotStream) Frame(ctx context.Context) (image.Image, error) {
	s.mu.Lock()
	stopped := s.stopped
	s.mu.Unlock()
	if stopped {
		return nil, ErrStreamClosed
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupported, err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoCamera, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w: %s", ErrPermissionDenied, resp.Status)
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrNoCamera, resp.Status)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, fmt.Errorf("camera: snapshot: %s", resp.Status)
	}
	img, _, err := image.Decode(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: decode snapshot: %v", ErrUnsupported, err)
	}
	return img, nil
}

func (s *snapshotStream) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
}

// FileDevice serves a still image from disk as its only frame. Facing is
// ignored.
type FileDevice struct {
	Path string
}

func (d FileDevice) Open(ctx context.Context, _ Facing) (Stream, error) {
	if _, err := os.Stat(d.Path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNoCamera, d.Path)
		}
		if errors.Is(err, fs.ErrPermission) {
			return nil, fmt.Errorf("%w: %s", ErrPermissionDenied, d.Path)
		}
		return nil, fmt.Errorf("camera: %w", err)
	}
	return &fileStream{path: d.Path}, nil
}

type fileStream struct {
	path string

	mu      sync.Mutex
	stopped bool
}

func (s *fileStream) Frame(context.Context) (image.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return nil, ErrStreamClosed
	}
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("camera: open %s: %w", s.path, err)
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", ErrUnsupported, s.path, err)
	}
	return img, nil
}

func (s *fileStream) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
}

// Unavailable is the Device used when no camera is configured.
type Unavailable struct{}

func (Unavailable) Open(context.Context, Facing) (Stream, error) {
	return nil, ErrUnsupported
}
