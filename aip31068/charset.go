// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package aip31068

import (
	"errors"
	"fmt"
	"unicode/utf8"
)

// CharsetPolicy selects how text handed to Print is turned into character
// generator ROM codes.
type CharsetPolicy byte

const (
	// CharsetRaw sends every byte of the text to the controller unchanged.
	// ASCII renders as expected. A multi-byte UTF-8 rune fills one cell per
	// byte, each showing whatever the ROM has at that code.
	CharsetRaw CharsetPolicy = iota
	// CharsetRemap translates runes to the A00 (Japanese/Western) ROM.
	// Runes with no ROM glyph are replaced by '?'.
	CharsetRemap
	// CharsetFilter translates like CharsetRemap but silently drops runes
	// with no ROM glyph.
	CharsetFilter
	// CharsetReject translates like CharsetRemap but fails the whole call,
	// before anything is sent, if a rune has no ROM glyph.
	CharsetReject
)

// ErrUnsupportedChar is returned by Print when the CharsetReject policy meets
// a rune that the character ROM can't display.
var ErrUnsupportedChar = errors.New(packageName + ": character not in ROM")

const replacementCode byte = '?'

// romExtra maps the non-ASCII glyphs of the A00 ROM to their codes. The
// halfwidth katakana block is handled arithmetically.
var romExtra = map[rune]byte{
	'¥': 0x5c,
	'→': 0x7e,
	'←': 0x7f,
	'°': 0xdf,
	'α': 0xe0,
	'ä': 0xe1,
	'β': 0xe2,
	'ε': 0xe3,
	'μ': 0xe4,
	'σ': 0xe5,
	'ρ': 0xe6,
	'√': 0xe8,
	'¢': 0xec,
	'£': 0xed,
	'ñ': 0xee,
	'ö': 0xef,
	'θ': 0xf2,
	'∞': 0xf3,
	'Ω': 0xf4,
	'ü': 0xf5,
	'Σ': 0xf6,
	'π': 0xf7,
	'千': 0xfa,
	'万': 0xfb,
	'円': 0xfc,
	'÷': 0xfd,
	'█': 0xff,
}

var romRunes = func() map[byte]rune {
	m := make(map[byte]rune, len(romExtra))
	for r, c := range romExtra {
		m[c] = r
	}
	// ° and ゜ share a glyph; decoding picks the katakana mark.
	m[0xdf] = 'ﾟ'
	return m
}()

const (
	katakanaFirst rune = '｡'
	katakanaLast  rune = 'ﾟ'
	katakanaCode  byte = 0xa1
)

// ROMCode returns the A00 character ROM code displaying r.
func ROMCode(r rune) (byte, bool) {
	switch {
	case r == '\\' || r == '~':
		// The A00 ROM has ¥ and → at these codes.
		return 0, false
	case r >= 0x20 && r <= 0x7d:
		return byte(r), true
	case r >= katakanaFirst && r <= katakanaLast:
		return katakanaCode + byte(r-katakanaFirst), true
	}
	c, ok := romExtra[r]
	return c, ok
}

// ROMRune is the inverse of ROMCode. Codes without a Unicode counterpart
// decode as utf8.RuneError.
func ROMRune(code byte) rune {
	switch {
	case code >= 0x20 && code <= 0x7d && code != 0x5c:
		return rune(code)
	case code >= katakanaCode && code < 0xdf:
		return katakanaFirst + rune(code-katakanaCode)
	}
	if r, ok := romRunes[code]; ok {
		return r
	}
	return utf8.RuneError
}

// encode turns text into ROM codes according to the policy.
func (p CharsetPolicy) encode(text string) ([]byte, error) {
	if p == CharsetRaw {
		return []byte(text), nil
	}
	codes := make([]byte, 0, len(text))
	for offset, r := range text {
		c, ok := ROMCode(r)
		if ok {
			codes = append(codes, c)
			continue
		}
		switch p {
		case CharsetRemap:
			codes = append(codes, replacementCode)
		case CharsetFilter:
		case CharsetReject:
			return nil, fmt.Errorf("%w: %q at offset %d", ErrUnsupportedChar, r, offset)
		default:
			return nil, fmt.Errorf("%s: unknown charset policy %d", packageName, p)
		}
	}
	return codes, nil
}

func (p CharsetPolicy) String() string {
	switch p {
	case CharsetRaw:
		return "Raw"
	case CharsetRemap:
		return "Remap"
	case CharsetFilter:
		return "Filter"
	case CharsetReject:
		return "Reject"
	}
	return fmt.Sprintf("CharsetPolicy(%d)", byte(p))
}
