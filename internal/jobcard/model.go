// Package jobcard is the job-card editor: field validation, image slots,
// job lines, preview and the create/update submission.
package jobcard

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
)

// FuelType is the vehicle's fuel kind.
type FuelType string

const (
	FuelPetrol   FuelType = "petrol"
	FuelDiesel   FuelType = "diesel"
	FuelCNG      FuelType = "cng"
	FuelLPG      FuelType = "lpg"
	FuelElectric FuelType = "electric"
	FuelHybrid   FuelType = "hybrid"
)

// FuelTypes lists every fuel kind in display order.
var FuelTypes = []FuelType{FuelPetrol, FuelDiesel, FuelCNG, FuelLPG, FuelElectric, FuelHybrid}

// Gas reports whether f is a gas fuel, which has no fuel-level gauge.
func (f FuelType) Gas() bool {
	return f == FuelCNG || f == FuelLPG
}

// Valid reports whether f is a known fuel kind.
func (f FuelType) Valid() bool {
	for _, v := range FuelTypes {
		if f == v {
			return true
		}
	}
	return false
}

// Status is the workshop status of a job card.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
	StatusOnHold     Status = "on_hold"
)

// Statuses lists every status in display order.
var Statuses = []Status{StatusPending, StatusInProgress, StatusCompleted, StatusCancelled, StatusOnHold}

// DefaultFuelLevel is the level set when a liquid fuel type is chosen.
const DefaultFuelLevel = 2

// FuelLevelLabels names the 1–5 gauge positions.
var FuelLevelLabels = map[int]string{1: "Empty", 2: "Low", 3: "Half", 4: "High", 5: "Full"}

// JobLine is one itemized line of work.
type JobLine struct {
	Description string `json:"description" yaml:"description"`
	Price       string `json:"price" yaml:"price"`
}

// UnmarshalJSON accepts a numeric or string price.
func (l *JobLine) UnmarshalJSON(data []byte) error {
	var raw struct {
		Description string          `json:"description"`
		Price       json.RawMessage `json:"price"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	l.Description = raw.Description
	l.Price = ""
	if len(raw.Price) == 0 || string(raw.Price) == "null" {
		return nil
	}
	var s string
	if json.Unmarshal(raw.Price, &s) == nil {
		l.Price = s
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(raw.Price, &n); err != nil {
		return fmt.Errorf("jobcard: price: %w", err)
	}
	l.Price = n.String()
	return nil
}

// JobCard is the editable card. Every form field is carried as the string
// the operator typed; FuelLevel is nil when absent.
type JobCard struct {
	ID string `json:"_id,omitempty" yaml:"-" validate:"-"`

	CustomerName  string `json:"customerName" yaml:"customerName" validate:"required,trimlen=2 50"`
	ContactNumber string `json:"contactNumber" yaml:"contactNumber" validate:"required,number,len=10"`
	Email         string `json:"email" yaml:"email" validate:"omitempty,simpleemail"`
	Address       string `json:"address" yaml:"address"`

	CarNumber          string   `json:"carNumber" yaml:"carNumber" validate:"required,carnumber"`
	Model              string   `json:"model" yaml:"model" validate:"required,min=2"`
	Company            string   `json:"company" yaml:"company" validate:"omitempty,min=2"`
	Kilometer          string   `json:"kilometer" yaml:"kilometer" validate:"omitempty,intrange=0 9999999"`
	FuelType           FuelType `json:"fuelType" yaml:"fuelType" validate:"required,oneof=petrol diesel cng lpg electric hybrid"`
	FuelLevel          *int     `json:"fuelLevel,omitempty" yaml:"fuelLevel,omitempty" validate:"omitempty,min=1,max=5"`
	ChassisNumber      string   `json:"chassisNumber" yaml:"chassisNumber" validate:"omitempty,chassis"`
	RegistrationNumber string   `json:"registrationNumber" yaml:"registrationNumber" validate:"omitempty,min=5,max=20"`

	InsuranceProvider string `json:"insuranceProvider" yaml:"insuranceProvider" validate:"omitempty,min=2"`
	PolicyNumber      string `json:"policyNumber" yaml:"policyNumber" validate:"omitempty,min=5,max=20"`
	InsuranceType     string `json:"insuranceType" yaml:"insuranceType"`
	InsuranceExpiry   string `json:"insuranceExpiry" yaml:"insuranceExpiry"`
	ExcessAmount      string `json:"excessAmount" yaml:"excessAmount" validate:"omitempty,numrange=0 1000000"`

	JobLines []JobLine `json:"jobDetails" yaml:"jobDetails" validate:"-"`
	Status   Status    `json:"status" yaml:"status" validate:"required,oneof=pending in_progress completed cancelled on_hold"`
}

// payloadLines returns the job lines with empty descriptions dropped.
func (c *JobCard) payloadLines() []JobLine {
	out := make([]JobLine, 0, len(c.JobLines))
	for _, l := range c.JobLines {
		if l.Description != "" {
			out = append(out, l)
		}
	}
	return out
}

// clone returns a deep copy of c.
func (c JobCard) clone() JobCard {
	if c.JobLines != nil {
		c.JobLines = append([]JobLine(nil), c.JobLines...)
	}
	if c.FuelLevel != nil {
		lvl := *c.FuelLevel
		c.FuelLevel = &lvl
	}
	return c
}

// Slot is one of the four fixed vehicle image positions.
type Slot int

const (
	SlotFront Slot = iota
	SlotRear
	SlotLeft
	SlotRight
	NumSlots
)

var slotNames = [NumSlots]string{"front", "rear", "left", "right"}

func (s Slot) String() string {
	if s < 0 || s >= NumSlots {
		return "slot(" + strconv.Itoa(int(s)) + ")"
	}
	return slotNames[s]
}

// ParseSlot maps "front", "rear", "left" or "right" to a Slot.
func ParseSlot(name string) (Slot, error) {
	for i, n := range slotNames {
		if n == name {
			return Slot(i), nil
		}
	}
	return 0, fmt.Errorf("jobcard: unknown image slot %q", name)
}

// LocalFile is a file picked or captured on this machine and not yet
// uploaded. Either Data or Path holds the content.
type LocalFile struct {
	Name        string
	ContentType string
	Data        []byte
	Path        string
}

// FileFromPath returns a LocalFile reading from path.
func FileFromPath(path, contentType string) LocalFile {
	return LocalFile{Name: filepath.Base(path), ContentType: contentType, Path: path}
}

// Open returns a reader for the file content.
func (f LocalFile) Open() (io.ReadCloser, error) {
	if f.Path != "" {
		return os.Open(f.Path)
	}
	return io.NopCloser(bytes.NewReader(f.Data)), nil
}

// Media is an image or video slot holding either a remote URL or a local
// file, never both.
type Media struct {
	RemoteURL string
	File      *LocalFile
}

// Empty reports whether the slot holds nothing.
func (m Media) Empty() bool {
	return m.RemoteURL == "" && m.File == nil
}

// IsNew reports whether the slot holds a file that still has to be uploaded.
func (m Media) IsNew() bool {
	return m.File != nil
}

func (m Media) String() string {
	switch {
	case m.File != nil:
		return "new file " + m.File.Name
	case m.RemoteURL != "":
		return m.RemoteURL
	default:
		return "(empty)"
	}
}
