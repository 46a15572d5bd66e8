package options

import (
	"fmt"
	"image/color"
	"strconv"
)

type Box struct {
	Top    int
	Right  int
	Bottom int
	Left   int
}

type Options struct {
	Format      string
	Quality     *int
	RemoveAlpha bool
	EnsureAlpha bool
	Crop        *Box
	Flip        string
	Sharpen     bool
	Threshold   *int
	Negate      bool
	Blur        bool
	Tint        *color.NRGBA
	Greyscale   bool
	Width       int
	Height      int
	Rotation    int
	Extend      *Box
	Background  *color.NRGBA
	SourceURL   string
}

func (o *Options) Effective() []string {
	var lines []string
	add := func(name, value string) {
		lines = append(lines, name+": "+value)
	}
	flag := func(name string, set bool) {
		if set {
			lines = append(lines, name)
		}
	}

	if o.Format != "" {
		add("format", o.Format)
	}
	if o.Quality != nil {
		add("quality", strconv.Itoa(*o.Quality))
	}
	flag("remove-alpha", o.RemoveAlpha)
	flag("ensure-alpha", o.EnsureAlpha)
	if o.Crop != nil {
		add("crop", formatBox(*o.Crop))
	}
	if o.Flip != "" {
		add("flip", o.Flip)
	}
	flag("sharpen", o.Sharpen)
	if o.Threshold != nil {
		add("threshold", strconv.Itoa(*o.Threshold))
	}
	flag("negate", o.Negate)
	flag("blur", o.Blur)
	if o.Tint != nil {
		add("tint", formatColor(*o.Tint))
	}
	flag("greyscale", o.Greyscale)
	if o.Width > 0 {
		add("width", strconv.Itoa(o.Width))
	}
	if o.Height > 0 {
		add("height", strconv.Itoa(o.Height))
	}
	if o.Rotation != 0 {
		add("rotation", strconv.Itoa(o.Rotation))
	}
	if o.Extend != nil {
		add("extend", formatBox(*o.Extend))
	}
	if o.Background != nil {
		add("background", formatColor(*o.Background))
	}
	if o.SourceURL != "" {
		add("source", o.SourceURL)
	}

	return lines
}

func formatBox(b Box) string {
	return fmt.Sprintf("%d;%d;%d;%d", b.Top, b.Right, b.Bottom, b.Left)
}

func formatColor(c color.NRGBA) string {
	if c.A != 0xff {
		return fmt.Sprintf("#%02x%02x%02x%02x", c.R, c.G, c.B, c.A)
	}
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}
