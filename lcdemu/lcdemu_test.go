// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package lcdemu

import (
	"bytes"
	"errors"
	"image/color"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"periph.io/x/conn/v3/physic"
)

func lcd(t *testing.T, b *Board, w ...byte) {
	t.Helper()
	if err := b.Tx(0x3e, w, nil); err != nil {
		t.Fatal(err)
	}
}

func powerOn(t *testing.T, b *Board) {
	t.Helper()
	for _, c := range []byte{0x28, 0x0c, 0x01, 0x06} {
		lcd(t, b, 0x80, c)
	}
}

func TestText(t *testing.T) {
	b := New(nil)
	powerOn(t, b)
	for _, c := range []byte("Hello") {
		lcd(t, b, 0x40, c)
	}
	lcd(t, b, 0x80, 0xc2)
	// Co clear: every following byte is data.
	lcd(t, b, 0x40, 'w', 'o', 'r', 'l', 'd')
	want := []string{"Hello           ", "  world         "}
	if diff := cmp.Diff(want, b.Lines()); diff != "" {
		t.Errorf("Lines() (-want +got):\n%s", diff)
	}
	if row, col := b.Cursor(); row != 1 || col != 7 {
		t.Errorf("Cursor() = %d, %d", row, col)
	}

	lcd(t, b, 0x80, 0x01)
	if got := b.Lines()[0]; strings.TrimSpace(got) != "" {
		t.Errorf("after clear: %q", got)
	}
}

func TestMixedFrame(t *testing.T) {
	b := New(nil)
	powerOn(t, b)
	lcd(t, b, 0x80, 0xc0, 0xc0, 'x', 0x80, 0x80, 0x40, 'y', 'z')
	want := []string{"yz              ", "x               "}
	if diff := cmp.Diff(want, b.Lines()); diff != "" {
		t.Errorf("Lines() (-want +got):\n%s", diff)
	}
	if err := b.Tx(0x3e, []byte{0x80, 0x01, 0x80}, nil); !errors.Is(err, ErrNACK) {
		t.Errorf("dangling control byte: %v", err)
	}
}

func TestWrapAndShift(t *testing.T) {
	b := New(nil)
	powerOn(t, b)
	lcd(t, b, 0x80, 0x80|0x27)
	lcd(t, b, 0x40, 'a')
	lcd(t, b, 0x40, 'b')
	if got := b.DDRAM(0)[39]; got != 'a' {
		t.Errorf("DDRAM(0)[39] = %q", got)
	}
	if got := b.Lines()[1][0]; got != 'b' {
		t.Errorf("second line starts with %q", got)
	}
	// Display shift left brings column 1 to the left edge.
	lcd(t, b, 0x80, 0x18)
	if got := b.Lines()[1][0]; got != ' ' {
		t.Errorf("after shift: %q", got)
	}
	lcd(t, b, 0x80, 0x02)
	if got := b.Lines()[1][0]; got != 'b' {
		t.Errorf("after home: %q", got)
	}
}

func TestDisplayFlags(t *testing.T) {
	b := New(nil)
	powerOn(t, b)
	lcd(t, b, 0x40, 'x')
	lcd(t, b, 0x80, 0x0b)
	on, cursor, blink := b.DisplayOn()
	if on || !cursor || !blink {
		t.Errorf("DisplayOn() = %t, %t, %t", on, cursor, blink)
	}
	if got := b.Lines()[0]; got != strings.Repeat(" ", 16) {
		t.Errorf("display off shows %q", got)
	}
	if diff := cmp.Diff([]byte{0x28, 0x0c, 0x01, 0x06, 0x0b}, b.Commands()); diff != "" {
		t.Errorf("Commands() (-want +got):\n%s", diff)
	}
}

func TestBacklight(t *testing.T) {
	tests := []struct {
		name string
		ops  [][]byte
		want color.NRGBA
	}{
		{"power on", nil, color.NRGBA{A: 0xff}},
		{
			"burst",
			[][]byte{{0x00, 0x00}, {0x08, 0xaa}, {0x82, 0x10, 0x20, 0x30}},
			color.NRGBA{R: 0x30, G: 0x20, B: 0x10, A: 0xff},
		},
		{
			"group dimming",
			[][]byte{{0x00, 0x00}, {0x08, 0xff}, {0x01, 0x00}, {0x06, 0x80}, {0x82, 0xff, 0xff, 0x00}},
			color.NRGBA{R: 0x00, G: 0x80, B: 0x80, A: 0xff},
		},
		{
			"full on and inverted",
			[][]byte{{0x00, 0x00}, {0x08, 0x15}, {0x01, 0x10}},
			color.NRGBA{A: 0xff},
		},
		{
			"sleeping",
			[][]byte{{0x08, 0x15}},
			color.NRGBA{A: 0xff},
		},
		{
			"brightness auto increment rolls over",
			[][]byte{{0x00, 0x00}, {0x08, 0xaa}, {0xa5, 0x01, 0x02, 0x03, 0x04}},
			color.NRGBA{R: 0x04, G: 0x03, B: 0x02, A: 0xff},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			b := New(nil)
			for _, w := range tc.ops {
				if err := b.Tx(0x60, w, nil); err != nil {
					t.Fatal(err)
				}
			}
			if got := b.Backlight(); got != tc.want {
				t.Errorf("Backlight() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestRegisterRead(t *testing.T) {
	b := New(nil)
	r := make([]byte, 2)
	if err := b.Tx(0x60, []byte{0x80}, r); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]byte{0x11, 0x05}, r); diff != "" {
		t.Errorf("read (-want +got):\n%s", diff)
	}
	if err := b.Tx(0x60, []byte{0x0e}, nil); !errors.Is(err, ErrNACK) {
		t.Errorf("bad register: %v", err)
	}
	if b.Register(0x06) != 0xff {
		t.Errorf("GRPPWM = %#x", b.Register(0x06))
	}
}

func TestFailAfter(t *testing.T) {
	b := New(nil)
	b.FailAfter(2)
	powerOnErr := func(c byte) error { return b.Tx(0x3e, []byte{0x80, c}, nil) }
	if err := powerOnErr(0x28); err != nil {
		t.Fatal(err)
	}
	if err := powerOnErr(0x28); err != nil {
		t.Fatal(err)
	}
	if err := powerOnErr(0x28); !errors.Is(err, ErrNACK) {
		t.Errorf("third transaction: %v", err)
	}
	if b.Count() != 3 {
		t.Errorf("Count = %d", b.Count())
	}
	if err := New(nil).Tx(0x27, []byte{0}, nil); !errors.Is(err, ErrNACK) {
		t.Errorf("unknown address: %v", err)
	}
}

func TestCountConcurrent(t *testing.T) {
	b := New(nil)
	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 50 {
				_ = b.Tx(0x60, []byte{0x06, 0x80}, nil)
				_ = b.Count()
			}
		}()
	}
	b.FailAfter(1000)
	wg.Wait()
	if n := b.Count(); n != 200 {
		t.Errorf("Count() = %d", n)
	}
}

func TestSetSpeed(t *testing.T) {
	b := New(nil)
	if err := b.SetSpeed(400 * physic.KiloHertz); err != nil {
		t.Error(err)
	}
	if err := b.SetSpeed(physic.MegaHertz); err == nil {
		t.Error("expected error above fast mode")
	}
	if err := b.Close(); err != nil {
		t.Error(err)
	}
}

func TestRender(t *testing.T) {
	b := New(nil)
	powerOn(t, b)
	lcd(t, b, 0x40, 'H', 'i', 0xdf)
	var buf bytes.Buffer
	if err := b.Render(&buf); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.Contains(out, "|Hiﾟ"+strings.Repeat(" ", 13)+"|") {
		t.Errorf("Render() = %q", out)
	}
	if n := strings.Count(out, "\n"); n != 2 {
		t.Errorf("%d rows rendered", n)
	}

	img := b.Image()
	if got := img.Bounds().Dx(); got != 2*margin+16*cellWidth {
		t.Errorf("image width %d", got)
	}
	if got := img.Bounds().Dy(); got != 2*margin+2*cellHeight {
		t.Errorf("image height %d", got)
	}
}
