package jobcard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/workbay/garagedesk/internal/api"
	"github.com/workbay/garagedesk/internal/nav"
	"github.com/workbay/garagedesk/internal/notify"
)

// Client is the subset of the API used by the editor.
type Client interface {
	GetJobCard(ctx context.Context, id string, out any) error
	CreateJobCard(ctx context.Context, body io.Reader, contentType string, out any) error
	UpdateJobCard(ctx context.Context, id string, body io.Reader, contentType string, out any) error
}

var (
	ErrInvalid       = errors.New("jobcard: form has errors")
	ErrNoImages      = errors.New("jobcard: at least one vehicle image is required")
	ErrNoPreview     = errors.New("jobcard: card must be previewed before saving")
	ErrSubmitPending = errors.New("jobcard: save already in progress")
)

// Editor messages.
const (
	MsgImageRequired = "Please add at least one vehicle image"
	MsgSaveFailed    = "Failed to save job card"
	MsgLoadFailed    = "Failed to load job card"
	MsgCreated       = "Job card created successfully"
	MsgUpdated       = "Job card updated successfully"
)

// Options configures an Editor.
type Options struct {
	ShowPrices    bool
	RedirectDelay time.Duration
	Notifier      notify.Notifier
	Logger        *slog.Logger
}

// Editor drives one job card from form to saved card: preview, confirm,
// then hand-off to engineer assignment.
type Editor struct {
	client Client
	nav    nav.Navigator
	opts   Options
	logger *slog.Logger

	mu      sync.Mutex
	form    *Form
	preview *Preview
	pending bool
	message string
	notice  string
}

// NewEditor returns an Editor holding an empty form for a new card.
func NewEditor(client Client, navigator nav.Navigator, opts Options) *Editor {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Notifier == nil {
		opts.Notifier = notify.Nop{}
	}
	return &Editor{
		client: client,
		nav:    navigator,
		opts:   opts,
		logger: opts.Logger,
		form:   NewForm(),
	}
}

// Form returns the form being edited.
func (e *Editor) Form() *Form {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.form
}

// Message returns the last blocking or server error message.
func (e *Editor) Message() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.message
}

// Notice returns the last success notice.
func (e *Editor) Notice() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.notice
}

// Pending reports whether a save is in flight.
func (e *Editor) Pending() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pending
}

func (e *Editor) setMessage(msg string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.message = msg
}

// Load fetches card id for editing and seeds the form with it, including
// the existing remote images and video.
func (e *Editor) Load(ctx context.Context, id string) error {
	var raw json.RawMessage
	if err := e.client.GetJobCard(ctx, id, &raw); err != nil {
		e.setMessage(api.Message(err, MsgLoadFailed))
		return fmt.Errorf("jobcard: load %s: %w", id, err)
	}
	card, images, video, err := decodeCard(raw)
	if err != nil {
		e.setMessage(MsgLoadFailed)
		return err
	}
	if card.ID == "" {
		card.ID = id
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.form = FromCard(card, images, video)
	e.preview = nil
	e.message = ""
	e.logger.Debug("job card loaded", "id", card.ID, "images", len(images))
	return nil
}

// Preview validates every field and the image requirement. On failure it
// records the first blocking message and returns an error; on success it
// returns the read-only preview that ConfirmSave will submit.
func (e *Editor) Preview() (*Preview, error) {
	form := e.Form()
	errs := form.ValidateAll()
	if len(errs) > 0 {
		field, msg := firstError(errs)
		e.setMessage(msg)
		return nil, fmt.Errorf("%w: %s: %s", ErrInvalid, field, msg)
	}
	if !form.HasImage() {
		e.setMessage(MsgImageRequired)
		return nil, ErrNoImages
	}
	p := &Preview{
		Card:       form.Card(),
		Images:     form.Images(),
		Video:      form.Video(),
		ShowPrices: e.opts.ShowPrices,
	}
	e.mu.Lock()
	e.preview = p
	e.message = ""
	e.mu.Unlock()
	return p, nil
}

// ClosePreview discards the open preview.
func (e *Editor) ClosePreview() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.preview = nil
}

// ConfirmSave submits the previewed card and returns its id. On success it
// notifies the workshop and, after RedirectDelay, navigates to engineer
// assignment. A second call while one is in flight returns
// ErrSubmitPending.
func (e *Editor) ConfirmSave(ctx context.Context) (string, error) {
	e.mu.Lock()
	if e.pending {
		e.mu.Unlock()
		return "", ErrSubmitPending
	}
	if e.preview == nil {
		e.mu.Unlock()
		return "", ErrNoPreview
	}
	p := e.preview
	form := e.form
	e.pending = true
	e.message = ""
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.pending = false
		e.mu.Unlock()
	}()

	id := p.Card.ID
	editing := id != ""
	body, contentType, err := buildPayload(p, editing)
	if err != nil {
		e.setMessage(MsgSaveFailed)
		return "", err
	}

	var resp json.RawMessage
	if editing {
		err = e.client.UpdateJobCard(ctx, id, body, contentType, &resp)
	} else {
		err = e.client.CreateJobCard(ctx, body, contentType, &resp)
	}
	if err != nil {
		e.mu.Lock()
		e.message = api.Message(err, MsgSaveFailed)
		var apiErr *api.Error
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusBadRequest && len(apiErr.Fields) > 0 {
			form.MergeServerErrors(apiErr.Fields)
			e.preview = nil
		}
		e.mu.Unlock()
		e.logger.Warn("save job card failed", "id", id, "err", err)
		return "", fmt.Errorf("jobcard: save: %w", err)
	}

	if newID := savedID(resp); newID != "" {
		id = newID
	}
	if id == "" {
		e.setMessage(MsgSaveFailed)
		return "", fmt.Errorf("jobcard: save: response carried no id")
	}

	notice := MsgCreated
	if editing {
		notice = MsgUpdated
	}
	e.mu.Lock()
	e.notice = notice
	e.preview = nil
	form.mu.Lock()
	form.card.ID = id
	form.mu.Unlock()
	e.mu.Unlock()
	e.logger.Info("job card saved", "id", id, "editing", editing)

	if err := e.opts.Notifier.Notify(ctx, savedEvent(p, id, editing)); err != nil {
		e.logger.Warn("notify job card saved", "id", id, "err", err)
	}

	e.wait(ctx, e.opts.RedirectDelay)
	e.nav.Navigate(nav.AssignEngineer(id))
	return id, nil
}

// wait sleeps for d, returning early when ctx is done.
func (e *Editor) wait(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

func savedEvent(p *Preview, id string, editing bool) notify.Event {
	c := p.Card
	title := "Job card created: " + c.CarNumber
	color := notify.ColorSuccess
	if editing {
		title = "Job card updated: " + c.CarNumber
		color = notify.ColorInfo
	}
	images := 0
	for _, m := range p.Images {
		if !m.Empty() {
			images++
		}
	}
	return notify.Event{
		Title: title,
		Body:  c.CustomerName + " · " + c.Model,
		Color: color,
		Fields: []notify.Field{
			{Name: "Job card", Value: id, Short: true},
			{Name: "Status", Value: string(c.Status), Short: true},
			{Name: "Contact", Value: c.ContactNumber, Short: true},
			{Name: "Fuel", Value: string(c.FuelType), Short: true},
			{Name: "Job lines", Value: strconv.Itoa(len(c.payloadLines())), Short: true},
			{Name: "Images", Value: strconv.Itoa(images), Short: true},
		},
	}
}
