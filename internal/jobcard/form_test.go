package jobcard

import (
	"errors"
	"testing"

	"github.com/workbay/garagedesk/internal/api"
)

func TestForm_SetNormalizesAndValidates(t *testing.T) {
	f := NewForm()
	if err := f.Set("carNumber", "mh12ab1234"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if v, _ := f.Value("carNumber"); v != "MH12AB1234" {
		t.Errorf("carNumber = %q", v)
	}
	if f.Error("carNumber") != "" {
		t.Errorf("unexpected error %q", f.Error("carNumber"))
	}
	if !f.Touched("carNumber") {
		t.Error("carNumber should be touched")
	}

	_ = f.Set("email", "bad")
	if f.Error("email") == "" {
		t.Error("expected email error")
	}
	_ = f.Set("email", " Good@Mail.com ")
	if f.Error("email") != "" {
		t.Errorf("email error not cleared: %q", f.Error("email"))
	}
	if v, _ := f.Value("email"); v != "good@mail.com" {
		t.Errorf("email = %q", v)
	}
}

func TestForm_UnknownField(t *testing.T) {
	f := NewForm()
	if err := f.Set("colour", "red"); !errors.Is(err, ErrUnknownField) {
		t.Errorf("Set err = %v", err)
	}
	if err := f.Blur("colour"); !errors.Is(err, ErrUnknownField) {
		t.Errorf("Blur err = %v", err)
	}
}

func TestForm_BlurValidatesUntouchedField(t *testing.T) {
	f := NewForm()
	if err := f.Blur("customerName"); err != nil {
		t.Fatalf("Blur: %v", err)
	}
	if f.Error("customerName") != "Customer name is required" {
		t.Errorf("Error = %q", f.Error("customerName"))
	}
}

func TestForm_FuelLevelRule(t *testing.T) {
	level := func(f *Form) string {
		v, _ := f.Value("fuelLevel")
		return v
	}

	f := NewForm()
	_ = f.Set("fuelType", "petrol")
	if level(f) != "2" {
		t.Errorf("first liquid fuel: level = %q, want 2", level(f))
	}
	_ = f.Set("fuelLevel", "4")
	_ = f.Set("fuelType", "diesel")
	if level(f) != "4" {
		t.Errorf("liquid to liquid: level = %q, want 4 kept", level(f))
	}

	for _, gas := range []string{"cng", "lpg"} {
		_ = f.Set("fuelType", gas)
		if level(f) != "" {
			t.Errorf("%s: level = %q, want absent", gas, level(f))
		}
		if f.FuelLevelVisible() {
			t.Errorf("%s: fuel level should be hidden", gas)
		}
		if err := f.Set("fuelLevel", "3"); !errors.Is(err, ErrFuelLevelHidden) {
			t.Errorf("%s: Set fuelLevel err = %v", gas, err)
		}
		_ = f.Set("fuelType", "electric")
		if level(f) != "2" {
			t.Errorf("away from %s: level = %q, want 2", gas, level(f))
		}
		_ = f.Set("fuelLevel", "5")
	}
}

func TestForm_JobLines(t *testing.T) {
	f := NewForm()
	if err := f.AddLine("  ", "100"); !errors.Is(err, ErrEmptyDescription) {
		t.Errorf("AddLine empty err = %v", err)
	}
	_ = f.AddLine("Oil change", "")
	_ = f.AddLine("Brake pads", "1800")
	_ = f.AddLine("Wash", "200")

	lines := f.Lines()
	if len(lines) != 3 || lines[0].Price != "0" || lines[1].Price != "1800" {
		t.Fatalf("lines = %+v", lines)
	}

	if err := f.EditLine(2, "", "200"); err != nil {
		t.Fatalf("EditLine: %v", err)
	}
	if err := f.RemoveLine(0); err != nil {
		t.Fatalf("RemoveLine: %v", err)
	}
	if err := f.RemoveLine(5); !errors.Is(err, ErrLineIndex) {
		t.Errorf("RemoveLine out of range err = %v", err)
	}
	if err := f.EditLine(-1, "x", "1"); !errors.Is(err, ErrLineIndex) {
		t.Errorf("EditLine out of range err = %v", err)
	}

	card := f.Card()
	if len(card.JobLines) != 2 {
		t.Fatalf("JobLines = %+v", card.JobLines)
	}
	payload := card.payloadLines()
	if len(payload) != 1 || payload[0].Description != "Brake pads" {
		t.Errorf("payload lines = %+v, want empty description filtered", payload)
	}
}

func TestForm_ImageSlotsAreExclusive(t *testing.T) {
	f := NewForm()
	if f.HasImage() {
		t.Fatal("new form should have no image")
	}
	_ = f.SetImageURL(SlotFront, "https://cdn/front.jpg")
	_ = f.SetImageFile(SlotFront, LocalFile{Name: "front.jpg", Data: []byte("x")})
	m := f.Image(SlotFront)
	if m.RemoteURL != "" || m.File == nil {
		t.Errorf("front = %+v, want local file only", m)
	}
	_ = f.SetImageURL(SlotFront, "https://cdn/front2.jpg")
	m = f.Image(SlotFront)
	if m.File != nil || m.RemoteURL != "https://cdn/front2.jpg" {
		t.Errorf("front = %+v, want remote only", m)
	}
	if !f.HasImage() {
		t.Error("HasImage should be true")
	}
	_ = f.ClearImage(SlotFront)
	if f.HasImage() {
		t.Error("HasImage should be false after clear")
	}
	if err := f.SetImageURL(NumSlots, "x"); !errors.Is(err, ErrInvalidSlot) {
		t.Errorf("invalid slot err = %v", err)
	}

	f.SetVideoURL("https://cdn/v.mp4")
	f.SetVideoFile(LocalFile{Name: "v.mp4"})
	if v := f.Video(); v.RemoteURL != "" || v.File == nil {
		t.Errorf("video = %+v", v)
	}
	f.ClearVideo()
	if !f.Video().Empty() {
		t.Error("video should be empty")
	}
}

func TestForm_MergeServerErrors(t *testing.T) {
	f := NewForm()
	f.MergeServerErrors([]api.FieldError{
		{Field: "carNumber", Message: "Car number already registered"},
		{Field: "", Message: "ignored"},
	})
	if f.Error("carNumber") != "Car number already registered" {
		t.Errorf("carNumber error = %q", f.Error("carNumber"))
	}
	if len(f.Errors()) != 1 {
		t.Errorf("Errors = %v", f.Errors())
	}
}

func TestForm_FromCardSeedsMedia(t *testing.T) {
	card := validCard()
	card.ID = "jc-1"
	f := FromCard(card, []string{"u1", "u2", "u3", "u4", "u5"}, "v1")
	if f.ID() != "jc-1" {
		t.Errorf("ID = %q", f.ID())
	}
	imgs := f.Images()
	if imgs[SlotFront].RemoteURL != "u1" || imgs[SlotRight].RemoteURL != "u4" {
		t.Errorf("images = %+v", imgs)
	}
	if f.Video().RemoteURL != "v1" {
		t.Errorf("video = %+v", f.Video())
	}
}

func TestFirstErrorFollowsFormOrder(t *testing.T) {
	field, msg := firstError(map[string]string{
		"status":       "s",
		"carNumber":    "c",
		"customerName": "n",
		"zzz":          "server",
	})
	if field != "customerName" || msg != "n" {
		t.Errorf("firstError = %s %s", field, msg)
	}
	field, _ = firstError(map[string]string{"zzz": "a", "aaa": "b"})
	if field != "aaa" {
		t.Errorf("firstError fallback = %s", field)
	}
}

func TestParseSlot(t *testing.T) {
	for i, name := range []string{"front", "rear", "left", "right"} {
		s, err := ParseSlot(name)
		if err != nil || s != Slot(i) || s.String() != name {
			t.Errorf("ParseSlot(%q) = %v, %v", name, s, err)
		}
	}
	if _, err := ParseSlot("roof"); err == nil {
		t.Error("expected error for unknown slot")
	}
}

func TestApply(t *testing.T) {
	f := NewForm()
	card := validCard()
	card.CarNumber = "mh 12 ab 1234"
	card.JobLines = []JobLine{{Description: " Oil change ", Price: ""}}
	if err := f.Apply(card); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	got := f.Card()
	if got.CustomerName != "Asha Rao" || got.FuelLevel == nil || *got.FuelLevel != 3 {
		t.Errorf("card = %+v", got)
	}
	if errs := f.ValidateAll(); len(errs) != 0 {
		t.Errorf("errors = %v", errs)
	}
	if lines := f.Lines(); len(lines) != 1 || lines[0].Description != "Oil change" || lines[0].Price != "0" {
		t.Errorf("lines = %+v", lines)
	}

	// Empty fields keep what the form already holds.
	if err := f.Apply(JobCard{Model: "Baleno"}); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	got = f.Card()
	if got.Model != "Baleno" || got.CustomerName != "Asha Rao" {
		t.Errorf("partial apply = %+v", got)
	}
}

func TestApply_GasIgnoresFuelLevel(t *testing.T) {
	f := NewForm()
	card := validCard()
	card.FuelType = FuelCNG
	if err := f.Apply(card); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if f.Card().FuelLevel != nil {
		t.Error("gas fuel should have no level")
	}
}
