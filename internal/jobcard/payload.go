package jobcard

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/textproto"
	"path/filepath"
	"strconv"
	"strings"
)

// updateBody is the JSON edit payload sent when no new media is attached.
// FuelLevel shadows the card's so a cleared level is sent as null.
type updateBody struct {
	*JobCard
	FuelLevel          *int     `json:"fuelLevel"`
	KeepExistingImages bool     `json:"keepExistingImages"`
	KeepExistingVideo  bool     `json:"keepExistingVideo"`
	ExistingImages     []string `json:"existingImages,omitempty"`
}

// hasNewMedia reports whether any image or the video holds a local file.
func (p *Preview) hasNewMedia() bool {
	for _, m := range p.Images {
		if m.IsNew() {
			return true
		}
	}
	return p.Video.IsNew()
}

func (p *Preview) existingImages() []string {
	var out []string
	for _, m := range p.Images {
		if m.RemoteURL != "" {
			out = append(out, m.RemoteURL)
		}
	}
	return out
}

// buildPayload encodes p. A new card is always multipart; an edit is
// multipart only when new media is attached, else JSON with keep flags.
func buildPayload(p *Preview, editing bool) (io.Reader, string, error) {
	if editing && !p.hasNewMedia() {
		return buildJSON(p)
	}
	return buildMultipart(p, editing)
}

func buildJSON(p *Preview) (io.Reader, string, error) {
	card := p.Card.clone()
	card.JobLines = card.payloadLines()
	existing := p.existingImages()
	body := updateBody{
		JobCard:            &card,
		FuelLevel:          card.FuelLevel,
		KeepExistingImages: len(existing) > 0,
		KeepExistingVideo:  p.Video.RemoteURL != "",
		ExistingImages:     existing,
	}
	data, err := json.Marshal(body)
	if err != nil {
		return nil, "", fmt.Errorf("jobcard: encode json payload: %w", err)
	}
	return bytes.NewReader(data), "application/json", nil
}

// formValues returns the card fields in form order, skipping empty ones
// unless all is set.
func formValues(c *JobCard, all bool) [][2]string {
	var out [][2]string
	for _, name := range fieldOrder {
		var v string
		switch name {
		case "fuelType":
			v = string(c.FuelType)
		case "status":
			v = string(c.Status)
		case "fuelLevel":
			if c.FuelLevel != nil {
				v = strconv.Itoa(*c.FuelLevel)
			}
		default:
			if p := c.stringField(name); p != nil {
				v = *p
			}
		}
		if v != "" || all {
			out = append(out, [2]string{name, v})
		}
	}
	return out
}

func buildMultipart(p *Preview, editing bool) (io.Reader, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	for _, kv := range formValues(&p.Card, editing) {
		if err := mw.WriteField(kv[0], kv[1]); err != nil {
			return nil, "", fmt.Errorf("jobcard: write field %s: %w", kv[0], err)
		}
	}
	lines, err := json.Marshal(p.Card.payloadLines())
	if err != nil {
		return nil, "", fmt.Errorf("jobcard: encode job lines: %w", err)
	}
	if err := mw.WriteField("jobDetails", string(lines)); err != nil {
		return nil, "", fmt.Errorf("jobcard: write field jobDetails: %w", err)
	}

	if editing {
		existing := p.existingImages()
		for _, u := range existing {
			if err := mw.WriteField("existingImages", u); err != nil {
				return nil, "", fmt.Errorf("jobcard: write field existingImages: %w", err)
			}
		}
		_ = mw.WriteField("keepExistingImages", strconv.FormatBool(len(existing) > 0))
		_ = mw.WriteField("keepExistingVideo", strconv.FormatBool(p.Video.RemoteURL != ""))
	}

	for _, m := range p.Images {
		if m.File == nil {
			continue
		}
		if err := writeFile(mw, "images", *m.File); err != nil {
			return nil, "", err
		}
	}
	if p.Video.File != nil {
		if err := writeFile(mw, "video", *p.Video.File); err != nil {
			return nil, "", err
		}
	}

	if err := mw.Close(); err != nil {
		return nil, "", fmt.Errorf("jobcard: close multipart: %w", err)
	}
	return &buf, mw.FormDataContentType(), nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func writeFile(mw *multipart.Writer, field string, f LocalFile) error {
	ct := f.ContentType
	if ct == "" {
		ct = mime.TypeByExtension(filepath.Ext(f.Name))
	}
	if ct == "" {
		ct = "application/octet-stream"
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
		quoteEscaper.Replace(field), quoteEscaper.Replace(f.Name)))
	h.Set("Content-Type", ct)
	part, err := mw.CreatePart(h)
	if err != nil {
		return fmt.Errorf("jobcard: create %s part: %w", field, err)
	}
	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("jobcard: open %s: %w", f.Name, err)
	}
	defer rc.Close()
	if _, err := io.Copy(part, rc); err != nil {
		return fmt.Errorf("jobcard: copy %s: %w", f.Name, err)
	}
	return nil
}

// decodeCard reads a fetched card. Numeric fields may arrive as JSON
// numbers and are kept as their decimal text.
func decodeCard(data []byte) (JobCard, []string, string, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return JobCard{}, nil, "", fmt.Errorf("jobcard: decode card: %w", err)
	}
	for _, wrap := range []string{"jobCard", "data"} {
		if inner, ok := raw[wrap]; ok && len(inner) > 0 && inner[0] == '{' {
			return decodeCard(inner)
		}
	}

	var c JobCard
	c.ID = rawText(raw["_id"])
	for _, name := range fieldOrder {
		v := rawText(raw[name])
		switch name {
		case "fuelType":
			c.FuelType = FuelType(v)
		case "status":
			c.Status = Status(v)
		case "fuelLevel":
			if n, err := strconv.Atoi(v); err == nil {
				c.FuelLevel = &n
			}
		default:
			if p := c.stringField(name); p != nil {
				*p = v
			}
		}
	}
	if lines, ok := raw["jobDetails"]; ok && string(lines) != "null" {
		if err := json.Unmarshal(lines, &c.JobLines); err != nil {
			return JobCard{}, nil, "", fmt.Errorf("jobcard: decode job lines: %w", err)
		}
	}
	var images []string
	if v, ok := raw["images"]; ok && string(v) != "null" {
		if err := json.Unmarshal(v, &images); err != nil {
			return JobCard{}, nil, "", fmt.Errorf("jobcard: decode images: %w", err)
		}
	}
	return c, images, rawText(raw["video"]), nil
}

// rawText returns a JSON string's value or a number's literal text.
func rawText(v json.RawMessage) string {
	if len(v) == 0 || string(v) == "null" {
		return ""
	}
	var s string
	if json.Unmarshal(v, &s) == nil {
		return s
	}
	var n json.Number
	if json.Unmarshal(v, &n) == nil {
		return n.String()
	}
	return ""
}

// savedID extracts the card id from a create or update response.
func savedID(data []byte) string {
	var raw map[string]json.RawMessage
	if json.Unmarshal(data, &raw) != nil {
		return ""
	}
	for _, k := range []string{"_id", "id"} {
		if id := rawText(raw[k]); id != "" {
			return id
		}
	}
	for _, wrap := range []string{"jobCard", "data"} {
		if inner, ok := raw[wrap]; ok {
			if id := savedID(inner); id != "" {
				return id
			}
		}
	}
	return ""
}
