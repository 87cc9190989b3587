package selection

import (
	"fmt"
	"io"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// Cutflow counts events reaching each stage of a selection.
type Cutflow struct {
	names  []string
	counts []uint64
}

// NewCutflow returns a cutflow with one counter per stage name.
func NewCutflow(names ...string) *Cutflow {
	return &Cutflow{names: names, counts: make([]uint64, len(names))}
}

// Apply increments the counter of stage. Unknown stages are ignored.
func (c *Cutflow) Apply(stage int) {
	if stage >= 0 && stage < len(c.counts) {
		c.counts[stage]++
	}
}

// Count returns the number of events that reached stage.
func (c *Cutflow) Count(stage int) uint64 {
	if stage < 0 || stage >= len(c.counts) {
		return 0
	}
	return c.counts[stage]
}

// Len is the number of stages.
func (c *Cutflow) Len() int { return len(c.counts) }

// Name returns the label of stage.
func (c *Cutflow) Name(stage int) string { return c.names[stage] }

// SetName relabels stage.
func (c *Cutflow) SetName(stage int, name string) { c.names[stage] = name }

// Merge adds the counts of other, which must have the same stages.
func (c *Cutflow) Merge(other *Cutflow) error {
	if other.Len() != c.Len() {
		return fmt.Errorf("cutflow: merging %d stages into %d", other.Len(), c.Len())
	}
	for i, n := range other.counts {
		c.counts[i] += n
	}
	return nil
}

// Table renders the cutflow with per-stage efficiency relative to the
// previous stage.
func (c *Cutflow) Table(title string) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("#", title, "events", "eff")

	for i, n := range c.counts {
		eff := "-"
		if i > 0 && c.counts[i-1] > 0 {
			eff = strconv.FormatFloat(100*float64(n)/float64(c.counts[i-1]), 'f', 1, 64) + "%"
		}
		t.Row(strconv.Itoa(i), c.names[i], strconv.FormatUint(n, 10), eff)
	}
	return t.String()
}

// WriteTo prints the cutflow table.
func (c *Cutflow) WriteTo(w io.Writer) (int64, error) {
	n, err := fmt.Fprintln(w, c.Table("cut"))
	return int64(n), err
}
