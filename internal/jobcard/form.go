package jobcard

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/workbay/garagedesk/internal/api"
)

var (
	ErrUnknownField     = errors.New("jobcard: unknown field")
	ErrEmptyDescription = errors.New("jobcard: job line description is required")
	ErrLineIndex        = errors.New("jobcard: job line index out of range")
	ErrFuelLevelHidden  = errors.New("jobcard: fuel level does not apply to gas fuels")
	ErrInvalidSlot      = errors.New("jobcard: invalid image slot")
)

// Form is the editable state of one job card: field values, per-field
// errors, image and video slots. It is safe for concurrent use.
type Form struct {
	mu      sync.Mutex
	card    JobCard
	errors  map[string]string
	touched map[string]bool
	images  [NumSlots]Media
	video   Media
}

// NewForm returns an empty form for a new card with status pending.
func NewForm() *Form {
	return &Form{
		card:    JobCard{Status: StatusPending},
		errors:  map[string]string{},
		touched: map[string]bool{},
	}
}

// FromCard returns a form seeded with card, for editing. Existing remote
// images fill the slots in order.
func FromCard(card JobCard, images []string, video string) *Form {
	f := NewForm()
	f.card = card.clone()
	if f.card.Status == "" {
		f.card.Status = StatusPending
	}
	for i, u := range images {
		if i >= int(NumSlots) {
			break
		}
		f.images[i] = Media{RemoteURL: u}
	}
	f.video = Media{RemoteURL: video}
	return f
}

// ID returns the card id, "" for a card not yet saved.
func (f *Form) ID() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.card.ID
}

// Card returns a copy of the card.
func (f *Form) Card() JobCard {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.card.clone()
}

// stringField returns a pointer to the string-valued field name.
func (c *JobCard) stringField(name string) *string {
	switch name {
	case "customerName":
		return &c.CustomerName
	case "contactNumber":
		return &c.ContactNumber
	case "email":
		return &c.Email
	case "address":
		return &c.Address
	case "carNumber":
		return &c.CarNumber
	case "model":
		return &c.Model
	case "company":
		return &c.Company
	case "kilometer":
		return &c.Kilometer
	case "chassisNumber":
		return &c.ChassisNumber
	case "registrationNumber":
		return &c.RegistrationNumber
	case "insuranceProvider":
		return &c.InsuranceProvider
	case "policyNumber":
		return &c.PolicyNumber
	case "insuranceType":
		return &c.InsuranceType
	case "insuranceExpiry":
		return &c.InsuranceExpiry
	case "excessAmount":
		return &c.ExcessAmount
	}
	return nil
}

// value returns the field as the operator would see it. Caller holds f.mu.
func (f *Form) value(name string) (string, bool) {
	switch name {
	case "fuelType":
		return string(f.card.FuelType), true
	case "status":
		return string(f.card.Status), true
	case "fuelLevel":
		if f.card.FuelLevel == nil {
			return "", true
		}
		return strconv.Itoa(*f.card.FuelLevel), true
	}
	if p := f.card.stringField(name); p != nil {
		return *p, true
	}
	return "", false
}

// Value returns the current value of field.
func (f *Form) Value(field string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.value(field)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownField, field)
	}
	return v, nil
}

// Set normalizes value, stores it and validates the field. Changing the
// fuel type applies the fuel-level rule.
func (f *Form) Set(field, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	value = Normalize(field, value)
	switch field {
	case "fuelType":
		f.setFuelType(FuelType(value))
	case "status":
		f.card.Status = Status(value)
	case "fuelLevel":
		if err := f.setFuelLevel(value); err != nil {
			return err
		}
	default:
		p := f.card.stringField(field)
		if p == nil {
			return fmt.Errorf("%w: %q", ErrUnknownField, field)
		}
		*p = value
	}
	f.touched[field] = true
	f.check(field)
	return nil
}

// Blur marks field as visited and validates it.
func (f *Form) Blur(field string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.value(field); !ok {
		return fmt.Errorf("%w: %q", ErrUnknownField, field)
	}
	f.touched[field] = true
	f.check(field)
	return nil
}

// check validates field and records or clears its error. Caller holds f.mu.
func (f *Form) check(field string) {
	v, _ := f.value(field)
	if msg := Validate(field, v); msg != "" {
		f.errors[field] = msg
	} else {
		delete(f.errors, field)
	}
}

// setFuelType applies the fuel-level rule: gas fuels have no level; any
// other known fuel gets DefaultFuelLevel when coming from a gas fuel or when
// no level is set yet. Caller holds f.mu.
func (f *Form) setFuelType(ft FuelType) {
	prev := f.card.FuelType
	f.card.FuelType = ft
	switch {
	case ft.Gas():
		f.card.FuelLevel = nil
		delete(f.errors, "fuelLevel")
	case ft.Valid() && (prev.Gas() || f.card.FuelLevel == nil):
		lvl := DefaultFuelLevel
		f.card.FuelLevel = &lvl
	}
}

// setFuelLevel stores a 1–5 level, or clears it for "". Caller holds f.mu.
func (f *Form) setFuelLevel(value string) error {
	if f.card.FuelType.Gas() {
		return ErrFuelLevelHidden
	}
	if value == "" {
		f.card.FuelLevel = nil
		return nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		f.errors["fuelLevel"] = fieldMessages["fuelLevel"][""]
		return fmt.Errorf("jobcard: fuel level %q: %w", value, err)
	}
	f.card.FuelLevel = &n
	return nil
}

// FuelLevelVisible reports whether the fuel-level control applies.
func (f *Form) FuelLevelVisible() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return !f.card.FuelType.Gas()
}

// Error returns the current error for field, "" if none.
func (f *Form) Error(field string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.errors[field]
}

// Errors returns a copy of all current field errors.
func (f *Form) Errors() map[string]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]string, len(f.errors))
	for k, v := range f.errors {
		out[k] = v
	}
	return out
}

// Touched reports whether field has been changed or visited.
func (f *Form) Touched(field string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.touched[field]
}

// ValidateAll validates every field, replaces the error state with the
// result and returns it.
func (f *Form) ValidateAll() map[string]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errors = ValidateAll(&f.card)
	out := make(map[string]string, len(f.errors))
	for k, v := range f.errors {
		out[k] = v
	}
	return out
}

// FirstError returns the error of the earliest field in form order.
func (f *Form) FirstError() (field, msg string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return firstError(f.errors)
}

func firstError(errs map[string]string) (string, string) {
	for _, name := range fieldOrder {
		if msg, ok := errs[name]; ok {
			return name, msg
		}
	}
	// server fields outside the form, in stable order
	rest := make([]string, 0, len(errs))
	for k := range errs {
		rest = append(rest, k)
	}
	sort.Strings(rest)
	if len(rest) > 0 {
		return rest[0], errs[rest[0]]
	}
	return "", ""
}

// MergeServerErrors adds field errors reported by the server to the error
// state. Entries without a field are ignored.
func (f *Form) MergeServerErrors(fields []api.FieldError) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, fe := range fields {
		if fe.Field == "" {
			continue
		}
		f.errors[fe.Field] = fe.Message
	}
}

// Image slots

// Image returns the content of slot.
func (f *Form) Image(slot Slot) Media {
	f.mu.Lock()
	defer f.mu.Unlock()
	if slot < 0 || slot >= NumSlots {
		return Media{}
	}
	return f.images[slot]
}

// Images returns all four slots.
func (f *Form) Images() [NumSlots]Media {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.images
}

// SetImageFile puts a new local file into slot, replacing any remote image.
func (f *Form) SetImageFile(slot Slot, file LocalFile) error {
	return f.setImage(slot, Media{File: &file})
}

// SetImageURL puts an existing remote image into slot, dropping any local
// file.
func (f *Form) SetImageURL(slot Slot, url string) error {
	return f.setImage(slot, Media{RemoteURL: url})
}

// ClearImage empties slot.
func (f *Form) ClearImage(slot Slot) error {
	return f.setImage(slot, Media{})
}

func (f *Form) setImage(slot Slot, m Media) error {
	if slot < 0 || slot >= NumSlots {
		return fmt.Errorf("%w: %d", ErrInvalidSlot, int(slot))
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.images[slot] = m
	return nil
}

// HasImage reports whether at least one slot is filled.
func (f *Form) HasImage() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return hasImage(f.images)
}

func hasImage(images [NumSlots]Media) bool {
	for _, m := range images {
		if !m.Empty() {
			return true
		}
	}
	return false
}

// Video returns the video slot.
func (f *Form) Video() Media {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.video
}

// SetVideoFile attaches a new local video, replacing any remote one.
func (f *Form) SetVideoFile(file LocalFile) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.video = Media{File: &file}
}

// SetVideoURL keeps an existing remote video.
func (f *Form) SetVideoURL(url string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.video = Media{RemoteURL: url}
}

// ClearVideo empties the video slot.
func (f *Form) ClearVideo() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.video = Media{}
}

// Job lines

// AddLine appends a job line. The description is required; an empty price
// is stored as "0".
func (f *Form) AddLine(description, price string) error {
	description = strings.TrimSpace(description)
	if description == "" {
		return ErrEmptyDescription
	}
	price = strings.TrimSpace(price)
	if price == "" {
		price = "0"
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.card.JobLines = append(f.card.JobLines, JobLine{Description: description, Price: price})
	return nil
}

// EditLine replaces line i.
func (f *Form) EditLine(i int, description, price string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if i < 0 || i >= len(f.card.JobLines) {
		return fmt.Errorf("%w: %d", ErrLineIndex, i)
	}
	f.card.JobLines[i] = JobLine{Description: description, Price: price}
	return nil
}

// RemoveLine deletes line i, keeping the order of the rest.
func (f *Form) RemoveLine(i int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if i < 0 || i >= len(f.card.JobLines) {
		return fmt.Errorf("%w: %d", ErrLineIndex, i)
	}
	f.card.JobLines = append(f.card.JobLines[:i], f.card.JobLines[i+1:]...)
	return nil
}

// Lines returns a copy of the job lines.
func (f *Form) Lines() []JobLine {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]JobLine(nil), f.card.JobLines...)
}

// Apply sets every non-empty field of card through Set, in form order, and
// appends its job lines. Fields left empty keep their current value.
func (f *Form) Apply(card JobCard) error {
	src := FromCard(card, nil, "")
	for _, field := range fieldOrder {
		v, _ := src.Value(field)
		if v == "" {
			continue
		}
		if err := f.Set(field, v); err != nil {
			if errors.Is(err, ErrFuelLevelHidden) {
				continue
			}
			return err
		}
	}
	for _, l := range card.JobLines {
		if err := f.AddLine(l.Description, l.Price); err != nil {
			return err
		}
	}
	return nil
}
