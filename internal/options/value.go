package options

import (
	"errors"
	"fmt"
	"image/color"
	"strconv"
	"strings"
	"unicode"

	"github.com/mazznoer/csscolorparser"
)

func parseInteger(raw string) (int, error) {
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("%q is not a whole number", raw)
	}
	if value < 0 {
		return 0, fmt.Errorf("%d is negative", value)
	}
	return value, nil
}

func parsePercentage(raw string) (int, error) {
	value, err := parseInteger(raw)
	if err != nil {
		return 0, err
	}
	if value > 100 {
		return 0, fmt.Errorf("%d is above 100", value)
	}
	return value, nil
}

func parseAxis(raw string) (string, error) {
	axis := strings.ToLower(strings.TrimSpace(raw))
	if axis != "x" && axis != "y" {
		return "", fmt.Errorf("%q is not x or y", raw)
	}
	return axis, nil
}

func parseFormat(raw string) (string, error) {
	format := strings.ToLower(strings.TrimSpace(raw))
	switch format {
	case "jpg":
		return "jpeg", nil
	case "png", "jpeg", "webp", "gif":
		return format, nil
	default:
		return "", fmt.Errorf("%q is not one of png, jpeg, webp, gif", raw)
	}
}

func parseColor(raw string) (color.NRGBA, error) {
	if strings.TrimSpace(raw) == "" {
		return color.NRGBA{}, errors.New("color is empty")
	}
	parsed, err := csscolorparser.Parse(raw)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("%q is not a recognized color", raw)
	}
	r, g, b, a := parsed.RGBA255()
	return color.NRGBA{R: r, G: g, B: b, A: a}, nil
}

func parseBox(raw string) (Box, error) {
	parts := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ';' || unicode.IsSpace(r)
	})

	values := make([]int, 0, len(parts))
	for _, part := range parts {
		value, err := parseInteger(part)
		if err != nil {
			return Box{}, fmt.Errorf("box side %v", err)
		}
		values = append(values, value)
	}

	switch len(values) {
	case 1:
		return Box{Top: values[0], Right: values[0], Bottom: values[0], Left: values[0]}, nil
	case 2:
		return Box{Top: values[0], Right: values[1], Bottom: values[0], Left: values[1]}, nil
	case 4:
		return Box{Top: values[0], Right: values[1], Bottom: values[2], Left: values[3]}, nil
	default:
		return Box{}, fmt.Errorf("expected 1, 2 or 4 box sides, got %d", len(values))
	}
}
