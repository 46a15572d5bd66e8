package options

import (
	"reflect"
	"strings"
	"testing"
)

func TestParseCollectsAllErrorBuckets(t *testing.T) {
	_, parseErr := Parse(Tokenize("--quality 140 --tint --bogus extra1 extra2"))
	if parseErr == nil {
		t.Fatal("expected parse error")
	}

	if len(parseErr.Invalid) != 1 || parseErr.Invalid[0].Option != "quality" {
		t.Fatalf("expected quality in invalid bucket, got %+v", parseErr.Invalid)
	}
	if len(parseErr.Missing) != 1 || parseErr.Missing[0] != "tint" {
		t.Fatalf("expected tint in missing bucket, got %+v", parseErr.Missing)
	}
	if !reflect.DeepEqual(parseErr.Unexpected, []string{"--bogus", "extra2"}) {
		t.Fatalf("expected --bogus and extra2 in unexpected bucket, got %+v", parseErr.Unexpected)
	}

	message := parseErr.Message()
	for _, fragment := range []string{"quality", "tint: missing value", `unexpected argument "--bogus"`} {
		if !strings.Contains(message, fragment) {
			t.Fatalf("expected message to contain %q, got:\n%s", fragment, message)
		}
	}
}

func TestParseUnknownFlagIsUnexpectedOnly(t *testing.T) {
	_, parseErr := Parse([]string{"--bogus"})
	if parseErr == nil {
		t.Fatal("expected parse error")
	}
	if len(parseErr.Invalid) != 0 || len(parseErr.Missing) != 0 {
		t.Fatalf("expected empty invalid/missing buckets, got %+v", parseErr)
	}
	if len(parseErr.Unexpected) != 1 || parseErr.Unexpected[0] != "--bogus" {
		t.Fatalf("expected --bogus under unexpected, got %+v", parseErr.Unexpected)
	}
}

func TestParsePopulatesRecord(t *testing.T) {
	opts, parseErr := Parse(Tokenize(
		`--format JPG -Q 85 --crop "5 10 5 10" --flip Y --threshold 128 --negative --blur ` +
			`--tint coral -g -w 640 -h 480 --rotate 90 --pad 4 -b "#336699" https://example.com/cat.png`,
	))
	if parseErr != nil {
		t.Fatalf("parse: %v", parseErr)
	}

	if opts.Format != "jpeg" {
		t.Fatalf("expected format jpeg, got %q", opts.Format)
	}
	if opts.Quality == nil || *opts.Quality != 85 {
		t.Fatalf("expected quality 85, got %+v", opts.Quality)
	}
	if opts.Crop == nil || *opts.Crop != (Box{Top: 5, Right: 10, Bottom: 5, Left: 10}) {
		t.Fatalf("unexpected crop box: %+v", opts.Crop)
	}
	if opts.Flip != "y" {
		t.Fatalf("expected flip y, got %q", opts.Flip)
	}
	if opts.Threshold == nil || *opts.Threshold != 128 {
		t.Fatalf("expected threshold 128, got %+v", opts.Threshold)
	}
	if !opts.Negate || !opts.Blur || !opts.Greyscale {
		t.Fatalf("expected negate/blur/greyscale set, got %+v", opts)
	}
	if opts.Tint == nil {
		t.Fatal("expected tint to be set")
	}
	if opts.Width != 640 || opts.Height != 480 || opts.Rotation != 90 {
		t.Fatalf("unexpected dimensions: width=%d height=%d rotation=%d", opts.Width, opts.Height, opts.Rotation)
	}
	if opts.Extend == nil || *opts.Extend != (Box{Top: 4, Right: 4, Bottom: 4, Left: 4}) {
		t.Fatalf("unexpected extend box: %+v", opts.Extend)
	}
	if opts.Background == nil || opts.Background.R != 0x33 || opts.Background.G != 0x66 || opts.Background.B != 0x99 {
		t.Fatalf("unexpected background: %+v", opts.Background)
	}
	if opts.SourceURL != "https://example.com/cat.png" {
		t.Fatalf("unexpected source url: %q", opts.SourceURL)
	}
}

func TestParseBooleanAliases(t *testing.T) {
	cases := map[string]func(*Options) bool{
		"--negative":  func(o *Options) bool { return o.Negate },
		"--negate":    func(o *Options) bool { return o.Negate },
		"--greyscale": func(o *Options) bool { return o.Greyscale },
		"--grayscale": func(o *Options) bool { return o.Greyscale },
		"-g":          func(o *Options) bool { return o.Greyscale },
	}
	for flag, isSet := range cases {
		opts, parseErr := Parse([]string{flag})
		if parseErr != nil {
			t.Fatalf("parse %s: %v", flag, parseErr)
		}
		if !isSet(opts) {
			t.Fatalf("expected %s to set its option", flag)
		}
	}
}

func TestParseValuedAliases(t *testing.T) {
	for _, flag := range []string{"--extend", "-e", "--pad", "--padding", "--margin"} {
		opts, parseErr := Parse([]string{flag, "7"})
		if parseErr != nil {
			t.Fatalf("parse %s: %v", flag, parseErr)
		}
		if opts.Extend == nil || opts.Extend.Top != 7 {
			t.Fatalf("expected %s to set the extend box, got %+v", flag, opts.Extend)
		}
	}

	for _, flag := range []string{"--rotation", "-r", "--rotate"} {
		opts, parseErr := Parse([]string{flag, "45"})
		if parseErr != nil {
			t.Fatalf("parse %s: %v", flag, parseErr)
		}
		if opts.Rotation != 45 {
			t.Fatalf("expected %s to set rotation, got %d", flag, opts.Rotation)
		}
	}
}

func TestParseMissingValueBeforeNextFlag(t *testing.T) {
	_, parseErr := Parse([]string{"--tint", "--blur"})
	if parseErr == nil {
		t.Fatal("expected parse error")
	}
	if len(parseErr.Missing) != 1 || parseErr.Missing[0] != "tint" {
		t.Fatalf("expected tint missing, got %+v", parseErr.Missing)
	}
}

func TestParseNegativeNumberIsValueNotFlag(t *testing.T) {
	_, parseErr := Parse([]string{"--rotation", "-90"})
	if parseErr == nil {
		t.Fatal("expected parse error")
	}
	if len(parseErr.Invalid) != 1 || parseErr.Invalid[0].Option != "rotation" {
		t.Fatalf("expected rotation in invalid bucket, got %+v", parseErr)
	}
	if len(parseErr.Missing) != 0 {
		t.Fatalf("expected no missing values, got %+v", parseErr.Missing)
	}
}

func TestParseEmptyCommand(t *testing.T) {
	opts, parseErr := Parse(nil)
	if parseErr != nil {
		t.Fatalf("parse: %v", parseErr)
	}
	if len(opts.Effective()) != 0 {
		t.Fatalf("expected no effective options, got %+v", opts.Effective())
	}
}

func TestTokenizeQuotes(t *testing.T) {
	cases := []struct {
		command string
		want    []string
	}{
		{`--crop "5 10 5 10"`, []string{"--crop", "5 10 5 10"}},
		{`--tint 'light blue'`, []string{"--tint", "light blue"}},
		{"  -g   --blur  ", []string{"-g", "--blur"}},
		{`--tint "unterminated`, []string{"--tint", "unterminated"}},
		{"", nil},
	}
	for _, tc := range cases {
		got := Tokenize(tc.command)
		if !reflect.DeepEqual(got, tc.want) {
			t.Fatalf("Tokenize(%q) = %q, want %q", tc.command, got, tc.want)
		}
	}
}

func TestIsHelpRequest(t *testing.T) {
	for _, tokens := range [][]string{{"help"}, {"--help"}, {"?"}, {"help", "--blur"}} {
		if !IsHelpRequest(tokens) {
			t.Fatalf("expected help request for %q", tokens)
		}
	}
	for _, tokens := range [][]string{nil, {}, {"--blur", "help"}, {"helpme"}} {
		if IsHelpRequest(tokens) {
			t.Fatalf("expected no help request for %q", tokens)
		}
	}
}
