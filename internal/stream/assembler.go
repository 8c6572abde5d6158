// Package stream turns the agent's chunked response body into display text.
package stream

import (
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	textunicode "golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

const (
	chunkSize      = 32 * 1024
	paragraphBreak = "\n\n"
)

var (
	dataMarker     = regexp.MustCompile(`(?i)data:\s*`)
	leadingQuotes  = regexp.MustCompile(`^(\s*)["']+`)
	trailingQuotes = regexp.MustCompile(`["']+(\s*)$`)
	sentenceEnd    = regexp.MustCompile(`[.!?]\s*$`)
)

// ErrStreamRead wraps failures reading the response body.
var ErrStreamRead = errors.New("stream: read response body")

// UpdateFunc receives the trimmed committed text after every flush.
type UpdateFunc func(text string)

// Assembler groups raw stream fragments into sentences and paragraphs so the
// display is repainted once per readable unit instead of once per chunk.
//
// An Assembler is single-use and not safe for concurrent use.
type Assembler struct {
	onUpdate UpdateFunc

	pending   strings.Builder
	committed strings.Builder
	// separator is the space owed between the last committed fragment and
	// the next one. It is written lazily so it never doubles up with
	// whitespace the stream already carries.
	separator bool
	flushes   int
}

// NewAssembler returns an Assembler that reports progress to onUpdate, which
// may be nil.
func NewAssembler(onUpdate UpdateFunc) *Assembler {
	return &Assembler{onUpdate: onUpdate}
}

// CleanChunk removes event-stream framing that leaks into the text: every
// "data:" marker (any case) with the whitespace after it, and quote runs at
// either end of the chunk. Whitespace around the quotes is kept.
func CleanChunk(chunk string) string {
	chunk = dataMarker.ReplaceAllString(chunk, "")
	chunk = leadingQuotes.ReplaceAllString(chunk, "$1")
	return trailingQuotes.ReplaceAllString(chunk, "$1")
}

// Push adds one decoded chunk and reports whether it completed a unit.
func (a *Assembler) Push(chunk string) bool {
	a.pending.WriteString(CleanChunk(chunk))
	p := a.pending.String()
	if !sentenceEnd.MatchString(p) && !strings.Contains(p, paragraphBreak) {
		return false
	}
	a.commit(p, true)
	return true
}

// Finish commits whatever is still pending and returns the final text.
func (a *Assembler) Finish() string {
	if a.pending.Len() > 0 {
		a.commit(a.pending.String(), false)
	}
	return a.Text()
}

// Committed returns the committed text including a trailing separator owed
// to the next fragment.
func (a *Assembler) Committed() string {
	if a.separator {
		return a.committed.String() + " "
	}
	return a.committed.String()
}

// Text returns the trimmed committed text.
func (a *Assembler) Text() string {
	return strings.TrimSpace(a.committed.String())
}

// Consume reads r to EOF, pushing each read as exactly one chunk, and
// returns the final text. Bytes go through an incremental UTF-8 decoder so a
// rune split across reads is held back and emitted whole with the next one.
func (a *Assembler) Consume(r io.Reader) (string, error) {
	if r == nil {
		return "", fmt.Errorf("%w: no response body", ErrStreamRead)
	}
	dec := textunicode.UTF8.NewDecoder()
	buf := make([]byte, chunkSize)
	var carry []byte
	for {
		n, err := r.Read(buf)
		atEOF := errors.Is(err, io.EOF)
		if n > 0 || (atEOF && len(carry) > 0) {
			text, rest, derr := decode(dec, append(carry, buf[:n]...), atEOF)
			if derr != nil {
				return "", fmt.Errorf("%w: %w", ErrStreamRead, derr)
			}
			carry = append([]byte(nil), rest...)
			if text != "" {
				a.Push(text)
			}
		}
		if atEOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("%w: %w", ErrStreamRead, err)
		}
	}
	return a.Finish(), nil
}

// decode runs one read through t and returns the decoded text plus the
// trailing bytes of an incomplete rune. Invalid bytes decode to U+FFFD, which
// is three bytes wide, so dst never runs short.
func decode(t transform.Transformer, src []byte, atEOF bool) (string, []byte, error) {
	dst := make([]byte, 3*len(src)+utf8.UTFMax)
	nDst, nSrc, err := t.Transform(dst, src, atEOF)
	if err != nil && !errors.Is(err, transform.ErrShortSrc) {
		return "", nil, err
	}
	return string(dst[:nDst]), src[nSrc:], nil
}

func (a *Assembler) commit(fragment string, separate bool) {
	if a.separator && !startsWithSpace(fragment) {
		a.committed.WriteByte(' ')
	}
	a.committed.WriteString(fragment)
	a.pending.Reset()
	a.separator = separate && !endsWithSpace(fragment)
	a.flushes++
	if a.onUpdate != nil {
		a.onUpdate(a.Text())
	}
}

func startsWithSpace(s string) bool {
	r, _ := utf8.DecodeRuneInString(s)
	return r != utf8.RuneError && unicode.IsSpace(r)
}

func endsWithSpace(s string) bool {
	r, _ := utf8.DecodeLastRuneInString(s)
	return r != utf8.RuneError && unicode.IsSpace(r)
}
