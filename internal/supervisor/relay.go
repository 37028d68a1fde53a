// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: internal/supervisor/relay.go
// Summary: Forwards backend stderr to log sinks line by line.
//
// Output is decoded lossily: invalid UTF-8 becomes U+FFFD instead of
// aborting the relay.

package supervisor

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"unicode/utf8"

	"github.com/mattn/go-runewidth"
	"github.com/rs/zerolog"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// LineSink receives one decoded stderr line at a time, without the
// trailing newline.
type LineSink interface {
	WriteLine(line string)
}

// LineSinkFunc adapts a function to LineSink.
type LineSinkFunc func(line string)

func (f LineSinkFunc) WriteLine(line string) { f(line) }

// MaxLineBytes bounds a relayed line. Longer output without a newline is
// delivered in pieces of about this size, split on rune boundaries.
const MaxLineBytes = 64 * 1024

// Relay reads r until EOF and hands every line to each sink. A trailing
// line without a newline is delivered at EOF. It returns the number of
// lines delivered and any read error other than EOF.
func Relay(r io.Reader, sinks ...LineSink) (int, error) {
	return relayLines(r, MaxLineBytes, sinks)
}

func relayLines(r io.Reader, limit int, sinks []LineSink) (int, error) {
	br := bufio.NewReaderSize(transform.NewReader(r, unicode.UTF8.NewDecoder()), limit)
	var carry []byte
	n := 0
	emit := func(b []byte) {
		line := string(bytes.TrimRight(b, "\r\n"))
		for _, s := range sinks {
			s.WriteLine(line)
		}
		n++
	}
	for {
		raw, err := br.ReadSlice('\n')
		if len(carry) > 0 {
			raw = append(carry, raw...)
			carry = nil
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			cut := runeCut(raw)
			carry = append([]byte(nil), raw[cut:]...)
			emit(raw[:cut])
			continue
		}
		if len(raw) > 0 {
			emit(raw)
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return n, nil
			}
			return n, err
		}
	}
}

// runeCut returns the length of b without a trailing incomplete rune.
func runeCut(b []byte) int {
	for k := 1; k <= utf8.UTFMax && k <= len(b); k++ {
		i := len(b) - k
		if utf8.RuneStart(b[i]) {
			if utf8.FullRune(b[i:]) {
				return len(b)
			}
			return i
		}
	}
	return len(b)
}

// LogSink writes backend lines to a zerolog logger at info level.
type LogSink struct {
	Logger zerolog.Logger

	// MaxWidth truncates lines to this many display cells. 0 disables it.
	MaxWidth int
}

func (s LogSink) WriteLine(line string) {
	if s.MaxWidth > 0 && runewidth.StringWidth(line) > s.MaxWidth {
		line = runewidth.Truncate(line, s.MaxWidth, "…")
	}
	s.Logger.Info().Str("stream", "stderr").Msg(line)
}
