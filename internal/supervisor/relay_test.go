// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package supervisor

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"
	"unicode/utf8"

	"github.com/rs/zerolog"
)

type lineRecorder struct {
	lines []string
}

func (r *lineRecorder) WriteLine(line string) { r.lines = append(r.lines, line) }

func TestRelaySplitsLines(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"empty", "", nil},
		{"single", "ready\n", []string{"ready"}},
		{"crlf", "a\r\nb\r\n", []string{"a", "b"}},
		{"partial tail", "one\ntwo", []string{"one", "two"}},
		{"blank line kept", "x\n\ny\n", []string{"x", "", "y"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &lineRecorder{}
			n, err := Relay(strings.NewReader(tt.input), rec)
			if err != nil {
				t.Fatalf("Relay: %v", err)
			}
			if n != len(tt.want) {
				t.Fatalf("count = %d, want %d", n, len(tt.want))
			}
			if strings.Join(rec.lines, "|") != strings.Join(tt.want, "|") {
				t.Fatalf("lines = %q, want %q", rec.lines, tt.want)
			}
		})
	}
}

func TestRelayToleratesInvalidUTF8(t *testing.T) {
	input := []byte("INFO: started\nbad \xff\xfe bytes\n")
	rec := &lineRecorder{}

	n, err := Relay(bytes.NewReader(input), rec)
	if err != nil {
		t.Fatalf("Relay: %v", err)
	}
	if n != 2 {
		t.Fatalf("count = %d, want 2", n)
	}
	got := rec.lines[1]
	if !utf8.ValidString(got) {
		t.Fatalf("line is not valid UTF-8: %q", got)
	}
	if !strings.HasPrefix(got, "bad ") || !strings.HasSuffix(got, " bytes") {
		t.Fatalf("valid text lost: %q", got)
	}
	if !strings.ContainsRune(got, utf8.RuneError) {
		t.Fatalf("expected replacement character in %q", got)
	}
}

func TestRelayHandlesRunesSplitAcrossReads(t *testing.T) {
	// "héllo" with the two-byte é split between reads.
	r := iotest.OneByteReader(strings.NewReader("héllo\n"))
	rec := &lineRecorder{}
	if _, err := Relay(r, rec); err != nil {
		t.Fatalf("Relay: %v", err)
	}
	if len(rec.lines) != 1 || rec.lines[0] != "héllo" {
		t.Fatalf("lines = %q", rec.lines)
	}
}

func TestRelayFansOutToAllSinks(t *testing.T) {
	a, b := &lineRecorder{}, &lineRecorder{}
	var count int
	c := LineSinkFunc(func(string) { count++ })

	if _, err := Relay(strings.NewReader("1\n2\n3\n"), a, b, c); err != nil {
		t.Fatalf("Relay: %v", err)
	}
	if len(a.lines) != 3 || len(b.lines) != 3 || count != 3 {
		t.Fatalf("sinks saw %d/%d/%d lines, want 3 each", len(a.lines), len(b.lines), count)
	}
}

func TestRelayReturnsReadError(t *testing.T) {
	boom := errors.New("pipe broke")
	r := io.MultiReader(strings.NewReader("partial\n"), iotest.ErrReader(boom))
	rec := &lineRecorder{}

	n, err := Relay(r, rec)
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
	if n != 1 || rec.lines[0] != "partial" {
		t.Fatalf("lines before error = %q", rec.lines)
	}
}

func TestLogSinkTruncatesWideLines(t *testing.T) {
	var buf bytes.Buffer
	sink := LogSink{Logger: zerolog.New(&buf), MaxWidth: 8}

	sink.WriteLine("0123456789abcdef")
	out := buf.String()
	if !strings.Contains(out, `"stream":"stderr"`) {
		t.Fatalf("missing stream field: %s", out)
	}
	if strings.Contains(out, "0123456789") {
		t.Fatalf("line was not truncated: %s", out)
	}
	if !strings.Contains(out, "…") {
		t.Fatalf("missing truncation marker: %s", out)
	}

	buf.Reset()
	LogSink{Logger: zerolog.New(&buf)}.WriteLine("0123456789abcdef")
	if !strings.Contains(buf.String(), "0123456789abcdef") {
		t.Fatalf("unlimited sink truncated: %s", buf.String())
	}
}

func TestRelayBoundsLongLines(t *testing.T) {
	long := strings.Repeat("x", 3*MaxLineBytes+10)
	rec := &lineRecorder{}

	n, err := Relay(strings.NewReader(long+"\nafter\n"), rec)
	if err != nil {
		t.Fatalf("Relay: %v", err)
	}
	if n != 5 || rec.lines[4] != "after" {
		t.Fatalf("got %d lines, last %q", n, rec.lines[len(rec.lines)-1])
	}
	for i, l := range rec.lines[:4] {
		if len(l) > MaxLineBytes {
			t.Fatalf("piece %d is %d bytes", i, len(l))
		}
	}
	if strings.Join(rec.lines[:4], "") != long {
		t.Fatalf("pieces do not reassemble the line")
	}
}

func TestRelaySplitsLongLinesOnRuneBoundaries(t *testing.T) {
	line := strings.Repeat("añ€😀", 10)
	rec := &lineRecorder{}

	if _, err := relayLines(strings.NewReader(line+"\n"), 16, []LineSink{rec}); err != nil {
		t.Fatalf("relayLines: %v", err)
	}
	if len(rec.lines) < 2 {
		t.Fatalf("line was not split: %q", rec.lines)
	}
	for i, l := range rec.lines {
		if !utf8.ValidString(l) {
			t.Fatalf("piece %d splits a rune: %q", i, l)
		}
	}
	if strings.Join(rec.lines, "") != line {
		t.Fatalf("pieces = %q", rec.lines)
	}
}
