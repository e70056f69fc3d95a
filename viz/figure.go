// Package viz renders the exploratory plots of a dataset with gonum/plot.
package viz

import (
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/YuminosukeSato/trainedml/pkg/errors"
)

// Default figure geometry. Stacked figures grow by PlotHeight per plot.
const (
	DefaultWidth  = 8 * vg.Inch
	PlotHeight    = 4 * vg.Inch
	DefaultFormat = "png"
)

var formats = map[string]bool{
	"png": true, "svg": true, "pdf": true, "jpg": true, "jpeg": true,
	"eps": true, "tif": true, "tiff": true,
}

// Figure is one or more plots stacked vertically.
type Figure struct {
	Width  vg.Length
	Height vg.Length
	// Text is the plain-text form of report figures. Empty for charts.
	Text string

	plots []*plot.Plot
}

// NewFigure stacks plots into a figure of the default size.
func NewFigure(plots ...*plot.Plot) *Figure {
	return &Figure{
		Width:  DefaultWidth,
		Height: PlotHeight * vg.Length(len(plots)),
		plots:  plots,
	}
}

// Plots returns the stacked plots, top first.
func (f *Figure) Plots() []*plot.Plot { return f.plots }

// Title returns the title of the first plot.
func (f *Figure) Title() string {
	if len(f.plots) == 0 {
		return ""
	}
	return f.plots[0].Title.Text
}

// Render draws the figure to w in the given format (png, svg, pdf, jpg,
// eps or tiff).
func (f *Figure) Render(w io.Writer, format string) error {
	if len(f.plots) == 0 {
		return errors.NewValueError("Figure.Render", "figure has no plots")
	}
	format = strings.ToLower(strings.TrimPrefix(format, "."))
	if !formats[format] {
		return errors.WithHint(
			errors.NewValidationError("format", "unsupported image format", format),
			"use png, svg, pdf, jpg, eps or tiff",
		)
	}
	c, err := draw.NewFormattedCanvas(f.Width, f.Height, format)
	if err != nil {
		return errors.Wrap(err, "create canvas")
	}
	dc := draw.New(c)
	if len(f.plots) == 1 {
		f.plots[0].Draw(dc)
	} else {
		grid := make([][]*plot.Plot, len(f.plots))
		for i, p := range f.plots {
			grid[i] = []*plot.Plot{p}
		}
		tiles := draw.Tiles{
			Rows:      len(f.plots),
			Cols:      1,
			PadY:      vg.Points(12),
			PadTop:    vg.Points(4),
			PadBottom: vg.Points(4),
		}
		canvases := plot.Align(grid, tiles, dc)
		for i := range grid {
			grid[i][0].Draw(canvases[i][0])
		}
	}
	if _, err := c.WriteTo(w); err != nil {
		return errors.Wrap(err, "write figure")
	}
	return nil
}

// Save writes the figure to path, creating the parent directory. The format
// comes from the extension; a path without one gets ".png". Save returns the
// path written.
func (f *Figure) Save(path string) (string, error) {
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	if ext == "" {
		ext = DefaultFormat
		path += "." + DefaultFormat
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", errors.Wrapf(err, "create %s", dir)
		}
	}
	file, err := os.Create(path)
	if err != nil {
		return "", errors.Wrapf(err, "create %s", path)
	}
	if err := f.Render(file, ext); err != nil {
		file.Close()
		os.Remove(path)
		return "", err
	}
	if err := file.Close(); err != nil {
		return "", errors.Wrapf(err, "close %s", path)
	}
	return path, nil
}

// openCommand returns the system viewer command for path.
var openCommand = func(path string) (string, []string) {
	switch runtime.GOOS {
	case "darwin":
		return "open", []string{path}
	case "windows":
		return "rundll32", []string{"url.dll,FileProtocolHandler", path}
	default:
		return "xdg-open", []string{path}
	}
}

// Show opens a saved figure in the system viewer without waiting for it.
func Show(path string) error {
	if _, err := os.Stat(path); err != nil {
		return errors.Wrapf(err, "show %s", path)
	}
	if _, err := launch(path); err != nil {
		return errors.WithHint(
			errors.Wrapf(err, "open %s", path),
			"the figure was saved; open it manually",
		)
	}
	return nil
}

// launch starts the viewer and reaps it in the background so long-lived
// callers do not collect zombies. The channel yields the exit status.
func launch(path string) (<-chan error, error) {
	name, args := openCommand(path)
	cmd := exec.Command(name, args...)
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()
	return done, nil
}
