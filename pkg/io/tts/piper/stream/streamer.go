// Package stream cuts reply text into TTS-sized chunks.
package stream

import (
	"strings"
	"unicode/utf8"
)

// Segmenter splits text at sentence punctuation, merging fragments shorter
// than MinChars and hard-splitting anything longer than MaxChars on a space.
type Segmenter struct {
	MaxChars   int    // default 240
	MinChars   int    // default 40
	FlushPunct string // default ".!?;:" plus the Devanagari danda
}

func New() Segmenter {
	return Segmenter{MaxChars: 240, MinChars: 40, FlushPunct: ".!?;:।"}
}

func (s Segmenter) Split(text string) []string {
	if s.MaxChars == 0 {
		s.MaxChars = 240
	}
	if s.MinChars == 0 {
		s.MinChars = 40
	}
	if s.FlushPunct == "" {
		s.FlushPunct = ".!?;:।"
	}

	var (
		out []string
		buf strings.Builder
	)
	flush := func(force bool) {
		t := strings.TrimSpace(buf.String())
		if t == "" {
			buf.Reset()
			return
		}
		if !force && utf8.RuneCountInString(t) < s.MinChars {
			return
		}
		out = append(out, s.hardSplit(t)...)
		buf.Reset()
	}

	for _, r := range text {
		buf.WriteRune(r)
		if strings.ContainsRune(s.FlushPunct, r) || r == '\n' {
			flush(false)
		}
	}
	flush(true)
	return out
}

func (s Segmenter) hardSplit(t string) []string {
	var out []string
	for utf8.RuneCountInString(t) > s.MaxChars {
		runes := []rune(t)
		cut := s.MaxChars
		for i := s.MaxChars; i > s.MaxChars/2; i-- {
			if runes[i] == ' ' {
				cut = i
				break
			}
		}
		out = append(out, strings.TrimSpace(string(runes[:cut])))
		t = strings.TrimSpace(string(runes[cut:]))
	}
	if t != "" {
		out = append(out, t)
	}
	return out
}
