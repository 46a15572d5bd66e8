package options

import (
	"fmt"
	"strings"
)

type optionSpec struct {
	name        string
	flags       []string
	placeholder string
	help        string
	set         func(*Options)
	apply       func(*Options, string) error
}

var schema = []optionSpec{
	{
		name: "format", flags: []string{"--format", "-F"}, placeholder: "png|jpeg|webp|gif",
		help: "output format (default: source format)",
		apply: func(o *Options, raw string) error {
			format, err := parseFormat(raw)
			if err != nil {
				return err
			}
			o.Format = format
			return nil
		},
	},
	{
		name: "quality", flags: []string{"--quality", "-Q"}, placeholder: "0-100",
		help: "encode quality, jpeg and webp only (default: codec default)",
		apply: func(o *Options, raw string) error {
			quality, err := parsePercentage(raw)
			if err != nil {
				return err
			}
			o.Quality = &quality
			return nil
		},
	},
	{
		name: "remove-alpha", flags: []string{"--remove-alpha"},
		help: "drop the alpha channel",
		set:  func(o *Options) { o.RemoveAlpha = true },
	},
	{
		name: "ensure-alpha", flags: []string{"--ensure-alpha"},
		help: "add an alpha channel when missing",
		set:  func(o *Options) { o.EnsureAlpha = true },
	},
	{
		name: "crop", flags: []string{"--crop", "-c"}, placeholder: "box",
		help: "cut the given inset off each edge",
		apply: func(o *Options, raw string) error {
			box, err := parseBox(raw)
			if err != nil {
				return err
			}
			o.Crop = &box
			return nil
		},
	},
	{
		name: "flip", flags: []string{"--flip", "-f"}, placeholder: "x|y",
		help: "mirror along the given axis",
		apply: func(o *Options, raw string) error {
			axis, err := parseAxis(raw)
			if err != nil {
				return err
			}
			o.Flip = axis
			return nil
		},
	},
	{
		name: "sharpen", flags: []string{"--sharpen"},
		help: "sharpen edges",
		set:  func(o *Options) { o.Sharpen = true },
	},
	{
		name: "threshold", flags: []string{"--threshold"}, placeholder: "luminosity",
		help: "white above the given luminosity, black below",
		apply: func(o *Options, raw string) error {
			threshold, err := parseInteger(raw)
			if err != nil {
				return err
			}
			o.Threshold = &threshold
			return nil
		},
	},
	{
		name: "negate", flags: []string{"--negative", "--negate"},
		help: "invert colors",
		set:  func(o *Options) { o.Negate = true },
	},
	{
		name: "blur", flags: []string{"--blur"},
		help: "blur the image",
		set:  func(o *Options) { o.Blur = true },
	},
	{
		name: "tint", flags: []string{"--tint", "-t"}, placeholder: "color",
		help: "tint with the given color",
		apply: func(o *Options, raw string) error {
			tint, err := parseColor(raw)
			if err != nil {
				return err
			}
			o.Tint = &tint
			return nil
		},
	},
	{
		name: "greyscale", flags: []string{"--greyscale", "-g", "--grayscale"},
		help: "convert to greyscale",
		set:  func(o *Options) { o.Greyscale = true },
	},
	{
		name: "width", flags: []string{"--width", "-w"}, placeholder: "pixels",
		help: "output width (fill: no aspect ratio kept when height is also set)",
		apply: func(o *Options, raw string) error {
			width, err := parseInteger(raw)
			if err != nil {
				return err
			}
			o.Width = width
			return nil
		},
	},
	{
		name: "height", flags: []string{"--height", "-h"}, placeholder: "pixels",
		help: "output height",
		apply: func(o *Options, raw string) error {
			height, err := parseInteger(raw)
			if err != nil {
				return err
			}
			o.Height = height
			return nil
		},
	},
	{
		name: "rotation", flags: []string{"--rotation", "-r", "--rotate"}, placeholder: "degrees",
		help: "rotate clockwise",
		apply: func(o *Options, raw string) error {
			degrees, err := parseInteger(raw)
			if err != nil {
				return err
			}
			o.Rotation = degrees
			return nil
		},
	},
	{
		name: "extend", flags: []string{"--extend", "-e", "--pad", "--padding", "--margin"}, placeholder: "box",
		help: "pad each edge with the background color",
		apply: func(o *Options, raw string) error {
			box, err := parseBox(raw)
			if err != nil {
				return err
			}
			o.Extend = &box
			return nil
		},
	},
	{
		name: "background", flags: []string{"--background", "-b"}, placeholder: "color",
		help: "background for rotate and extend (default: black)",
		apply: func(o *Options, raw string) error {
			background, err := parseColor(raw)
			if err != nil {
				return err
			}
			o.Background = &background
			return nil
		},
	},
}

var flagIndex = buildFlagIndex()

func buildFlagIndex() map[string]*optionSpec {
	index := make(map[string]*optionSpec, len(schema)*2)
	for i := range schema {
		for _, flag := range schema[i].flags {
			index[flag] = &schema[i]
		}
	}
	return index
}

func Usage() string {
	var b strings.Builder
	b.WriteString("usage: imgbot [options] [image-url]\n")
	b.WriteString("transforms the attached image (or the one at image-url) and replies with the result\n")
	b.WriteString("\noptions:\n")
	for _, spec := range schema {
		left := strings.Join(spec.flags, ", ")
		if spec.placeholder != "" {
			left += " <" + spec.placeholder + ">"
		}
		fmt.Fprintf(&b, "  %-36s %s\n", left, spec.help)
	}
	b.WriteString("\nbox: 1, 2 or 4 non-negative integers split by ';' (all | top/bottom;left/right | top;right;bottom;left)\n")
	b.WriteString("color: css color name, #hex or rgb()/rgba()\n")
	b.WriteString("quote values that contain spaces, e.g. --crop \"5 10 5 10\"")
	return b.String()
}
