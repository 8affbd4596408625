// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package lcdemu

import (
	"bytes"
	"image"
	"image/color"
	"io"

	"github.com/fogleman/gg"
	"github.com/maruel/ansi256"
	"github.com/mattn/go-colorable"
	"golang.org/x/image/font/basicfont"
)

const (
	margin     = 6
	cellWidth  = 7
	cellHeight = 16
)

// Backlight returns the color of the backlight as driven by the PCA9633:
// sleep, LED output modes, group dimming and inversion are honored. In
// blinking mode the "on" phase is reported.
func (b *Board) Backlight() color.NRGBA {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out [4]byte
	if b.regs[regMode1]&mode1Sleep == 0 {
		for i := range out {
			out[i] = b.channel(i)
		}
	}
	l := b.opts.Layout
	return color.NRGBA{R: out[l[0]], G: out[l[1]], B: out[l[2]], A: 0xff}
}

func (b *Board) channel(i int) byte {
	var v byte
	switch (b.regs[regLEDOut] >> (2 * i)) & 0x03 {
	case 0:
		v = 0
	case 1:
		v = 0xff
	case 2:
		v = b.regs[regPWM0+i]
	case 3:
		v = b.regs[regPWM0+i]
		if b.regs[regMode2]&mode2Blink == 0 {
			v = byte(uint16(v) * uint16(b.regs[regGrpPWM]) / 0xff)
		}
	}
	if b.regs[regMode2]&mode2Invert != 0 {
		v = 0xff - v
	}
	return v
}

// Render prints the panel to w using ANSI color codes, a swatch of the
// backlight color on each side of every row. If w is nil, it goes to stdout.
func (b *Board) Render(w io.Writer) error {
	if w == nil {
		w = colorable.NewColorableStdout()
	}
	bl := b.Backlight()
	swatch := ansi256.Default.Block(bl)
	var buf bytes.Buffer
	for _, line := range b.Lines() {
		_, _ = buf.WriteString("\r\033[0m")
		_, _ = buf.WriteString(swatch)
		_, _ = buf.WriteString("\033[0m|")
		_, _ = buf.WriteString(line)
		_, _ = buf.WriteString("|")
		_, _ = buf.WriteString(swatch)
		_, _ = buf.WriteString("\033[0m\n")
	}
	_, err := buf.WriteTo(w)
	return err
}

// Image draws the panel: dark glyphs over the backlight color.
func (b *Board) Image() image.Image {
	lines := b.Lines()
	dc := gg.NewContext(2*margin+b.opts.Cols*cellWidth, 2*margin+len(lines)*cellHeight)
	dc.SetColor(b.Backlight())
	dc.Clear()
	dc.SetFontFace(basicfont.Face7x13)
	dc.SetColor(color.Black)
	for i, line := range lines {
		for j, r := range []rune(line) {
			dc.DrawString(string(r), float64(margin+j*cellWidth), float64(margin+(i+1)*cellHeight-3))
		}
	}
	return dc.Image()
}

// SavePNG writes Image to a PNG file.
func (b *Board) SavePNG(path string) error {
	return gg.SavePNG(path, b.Image())
}
