package engine

import (
	"errors"
	"testing"
)

func TestResolveDefaults(t *testing.T) {
	o := Options{}.Resolve()
	if o.Quality != 80 {
		t.Errorf("Quality = %d, want 80", o.Quality)
	}
	if o.Format != FormatAuto {
		t.Errorf("Format = %s, want auto", o.Format)
	}
	if o.Strategy != PolicyAuto {
		t.Errorf("Strategy = %s, want auto", o.Strategy)
	}
	if o.Parallel != 8 {
		t.Errorf("Parallel = %d, want 8", o.Parallel)
	}
}

func TestResolveIdempotent(t *testing.T) {
	o := Options{Quality: 150, Ultrafast: true, Width: -5}.Resolve()
	again := o.Resolve()
	if o != again {
		t.Errorf("Resolve not idempotent: %+v vs %+v", o, again)
	}
	if o.Quality != 100 {
		t.Errorf("Quality = %d, want clamped 100", o.Quality)
	}
	if !o.SpeedOptimized {
		t.Errorf("Ultrafast did not imply SpeedOptimized")
	}
	if o.Width != 0 {
		t.Errorf("Width = %d, want 0", o.Width)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		opts    Options
		wantErr error
	}{
		{"Defaults", Options{}.Resolve(), nil},
		{"NegativeTarget", Options{TargetSize: -10}.Resolve(), ErrInvalidTargetSize},
		{"UnreachableTarget", Options{TargetSize: 10}.Resolve(), ErrInvalidTargetSize},
		{"ReachableTarget", Options{TargetSize: 50 << 10}.Resolve(), nil},
		{"BadFormat", Options{Format: "bmp"}.Resolve(), ErrUnsupportedFormat},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.opts.Validate()
			if tt.wantErr == nil && err != nil {
				t.Errorf("Validate() = %v, want nil", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestParseByteSize(t *testing.T) {
	tests := []struct {
		input   string
		want    int64
		wantErr bool
	}{
		{"50KB", 50 << 10, false},
		{"1.5MB", 1536 << 10, false},
		{"2gb", 2 << 30, false},
		{"820", 820, false},
		{"820B", 820, false},
		{" 64 KB ", 64 << 10, false},
		{"", 0, true},
		{"-5KB", 0, true},
		{"abc", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseByteSize(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidTargetSize) {
					t.Errorf("ParseByteSize(%q) err = %v, want ErrInvalidTargetSize", tt.input, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseByteSize(%q): %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParseByteSize(%q) = %d, want %d", tt.input, got, tt.want)
			}
		})
	}
}
