package jobcard

import (
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
)

// Preview is the read-only view of a card shown before saving.
type Preview struct {
	Card       JobCard
	Images     [NumSlots]Media
	Video      Media
	ShowPrices bool
}

// Render writes the preview as aligned text sections.
func (p *Preview) Render(out io.Writer) error {
	c := p.Card
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)

	section(w, "Customer")
	row(w, "Name", c.CustomerName)
	row(w, "Contact", c.ContactNumber)
	row(w, "Email", c.Email)
	row(w, "Address", c.Address)

	section(w, "Vehicle")
	row(w, "Car number", c.CarNumber)
	row(w, "Model", c.Model)
	row(w, "Company", c.Company)
	row(w, "Kilometer", c.Kilometer)
	row(w, "Fuel type", string(c.FuelType))
	if c.FuelLevel != nil {
		row(w, "Fuel level", strconv.Itoa(*c.FuelLevel)+" ("+FuelLevelLabels[*c.FuelLevel]+")")
	}
	row(w, "Chassis", c.ChassisNumber)
	row(w, "Registration", c.RegistrationNumber)

	section(w, "Insurance")
	row(w, "Provider", c.InsuranceProvider)
	row(w, "Policy", c.PolicyNumber)
	row(w, "Type", c.InsuranceType)
	row(w, "Expiry", c.InsuranceExpiry)
	row(w, "Excess", c.ExcessAmount)

	section(w, "Job details")
	lines := c.payloadLines()
	if len(lines) == 0 {
		fmt.Fprintln(w, "  (none)")
	}
	for i, l := range lines {
		if p.ShowPrices {
			fmt.Fprintf(w, "  %d.\t%s\t%s\n", i+1, l.Description, l.Price)
		} else {
			fmt.Fprintf(w, "  %d.\t%s\n", i+1, l.Description)
		}
	}

	section(w, "Media")
	for i, m := range p.Images {
		row(w, Slot(i).String(), m.String())
	}
	if !p.Video.Empty() {
		row(w, "video", p.Video.String())
	}

	section(w, "Status")
	row(w, "Status", string(c.Status))

	return w.Flush()
}

func section(w io.Writer, title string) {
	fmt.Fprintf(w, "\n%s\n", title)
}

func row(w io.Writer, label, value string) {
	if value == "" {
		value = "-"
	}
	fmt.Fprintf(w, "  %s:\t%s\n", label, value)
}
