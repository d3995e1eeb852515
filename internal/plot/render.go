// Package plot renders event sets and detection results as interactive 3-D
// scatter plots.
package plot

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"os"

	"github.com/xastro/xtd/internal/events"
	"github.com/xastro/xtd/internal/pipeline"
)

// Mode selects how points are colored.
type Mode string

const (
	// ModeEvents colors points by their simulated flag.
	ModeEvents Mode = "events"

	// ModeDetection colors survivors by cluster label and fades the rest.
	ModeDetection Mode = "detection"
)

// Point is a single plotted event.
type Point struct {
	// Pos is the spatial position, ordered like the axis labels.
	Pos [3]float64 `json:"pos"`

	// Score is the final diffusion score, 1.0 for raw event plots.
	Score float64 `json:"score"`

	// Label is the cluster id, -1 for noise. Meaningless unless Survivor.
	Label int `json:"label"`

	// Simulated marks injected events.
	Simulated bool `json:"simulated"`

	// Survivor marks events that passed the diffusion threshold.
	Survivor bool `json:"survivor"`
}

// Scatter is a renderable 3-D scatter plot.
type Scatter struct {
	Title  string
	Axes   [3]string
	Mode   Mode
	Points []Point
}

// FromEvents builds a raw-event scatter, colored by the simulated flag.
func FromEvents(set *events.Set, title string) (*Scatter, error) {
	sc, err := newScatter(set, title, ModeEvents)
	if err != nil {
		return nil, err
	}
	positions, err := set.Positions()
	if err != nil {
		return nil, err
	}
	for i, pos := range positions {
		sc.Points = append(sc.Points, Point{
			Pos:       [3]float64{pos[0], pos[1], pos[2]},
			Score:     1,
			Label:     -1,
			Simulated: set.Simulated[i],
		})
	}
	return sc, nil
}

// FromDetection builds a detection scatter: survivors colored by cluster
// label and sized by score, the remaining events faded into the background.
func FromDetection(det *pipeline.Detection, title string) (*Scatter, error) {
	set := det.Events
	sc, err := newScatter(set, title, ModeDetection)
	if err != nil {
		return nil, err
	}
	if len(det.Scores) != set.Len() || len(det.Mask) != set.Len() {
		return nil, fmt.Errorf("plot: detection arrays not parallel to %d events", set.Len())
	}

	labelOf := make(map[int]int, len(det.Survivors))
	for i, idx := range det.Survivors {
		labelOf[idx] = det.Labels[i]
	}

	for i := 0; i < set.Len(); i++ {
		pos, err := set.Pos(i)
		if err != nil {
			return nil, err
		}
		p := Point{
			Pos:       [3]float64{pos[0], pos[1], pos[2]},
			Score:     det.Scores[i],
			Label:     -1,
			Simulated: set.Simulated[i],
			Survivor:  det.Mask[i],
		}
		if label, ok := labelOf[i]; ok {
			p.Label = label
		}
		sc.Points = append(sc.Points, p)
	}
	return sc, nil
}

func newScatter(set *events.Set, title string, mode Mode) (*Scatter, error) {
	cols, err := set.PosColumns()
	if err != nil {
		return nil, fmt.Errorf("plot: %w", err)
	}
	return &Scatter{
		Title: title,
		Axes:  [3]string{cols[0], cols[1], cols[2]},
		Mode:  mode,
	}, nil
}

// payload is the JSON document handed to the page script.
type payload struct {
	Title  string   `json:"title"`
	Axes   []string `json:"axes"`
	Mode   Mode     `json:"mode"`
	Points []Point  `json:"points"`
}

func (s *Scatter) payload() payload {
	points := s.Points
	if points == nil {
		points = []Point{}
	}
	return payload{
		Title:  s.Title,
		Axes:   s.Axes[:],
		Mode:   s.Mode,
		Points: points,
	}
}

// MarshalJSON exposes the plot data in the page-script layout, so the HTML
// page and the JSON API serve the same document.
func (s *Scatter) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.payload())
}

// templateData holds data passed to the HTML template. PlotJSON is
// pre-sanitized with json.HTMLEscape so it is safe inside <script>.
type templateData struct {
	Title    string
	PlotJSON template.JS
}

// RenderHTML produces a self-contained HTML page with the interactive plot.
func (s *Scatter) RenderHTML() ([]byte, error) {
	raw, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("plot: marshal plot data: %w", err)
	}

	tmplBytes, err := templates.ReadFile("templates/scatter.html.tmpl")
	if err != nil {
		return nil, fmt.Errorf("plot: read HTML template: %w", err)
	}
	tmpl, err := template.New("scatter").Parse(string(tmplBytes))
	if err != nil {
		return nil, fmt.Errorf("plot: parse HTML template: %w", err)
	}

	// json.HTMLEscape converts <, > and & to unicode escapes, preventing
	// </script> breakout from column names or titles.
	var escaped bytes.Buffer
	json.HTMLEscape(&escaped, raw)

	var buf bytes.Buffer
	data := templateData{
		Title:    s.Title,
		PlotJSON: template.JS(escaped.String()), // #nosec G203 -- sanitized above
	}
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("plot: execute HTML template: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteHTML renders the plot and writes it to path.
func (s *Scatter) WriteHTML(path string) error {
	html, err := s.RenderHTML()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, html, 0o644); err != nil {
		return fmt.Errorf("plot: write %s: %w", path, err)
	}
	return nil
}
