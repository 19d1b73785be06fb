package http

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// frameDelimiter separates server-sent frames.
const frameDelimiter = "\n\n"

// FrameDecoder turns arbitrarily chunked response bytes into complete
// server-sent frames. Bytes of a multi-byte character split across chunks
// are held until the character is complete, and text after the last
// delimiter is held until more input or Flush. A FrameDecoder is not safe
// for concurrent use.
type FrameDecoder struct {
	dec     *encoding.Decoder
	pending []byte // undecoded tail of the previous chunk
	buf     string // decoded text not yet emitted as a frame
	out     []byte
}

// NewFrameDecoder returns an empty decoder.
func NewFrameDecoder() *FrameDecoder {
	return &FrameDecoder{dec: unicode.UTF8.NewDecoder()}
}

// Feed decodes chunk and returns every frame it completed, in order.
// Frames are trimmed of surrounding whitespace; blank frames are dropped.
func (d *FrameDecoder) Feed(chunk []byte) []string {
	d.decode(chunk, false)
	return d.split()
}

// Flush ends the input. It returns the frames still buffered, including a
// final undelimited frame when one is non-blank, and resets the decoder.
func (d *FrameDecoder) Flush() []string {
	d.decode(nil, true)
	frames := d.split()
	if rest := strings.TrimSpace(d.buf); rest != "" {
		frames = append(frames, rest)
	}
	d.buf = ""
	d.pending = nil
	d.dec.Reset()
	return frames
}

func (d *FrameDecoder) decode(chunk []byte, atEOF bool) {
	src := append(d.pending, chunk...)
	d.pending = nil
	if cap(d.out) < len(src)+utf8.UTFMax {
		d.out = make([]byte, len(src)+utf8.UTFMax)
	}
	dst := d.out[:cap(d.out)]

	var sb strings.Builder
	sb.WriteString(d.buf)
	for len(src) > 0 {
		nDst, nSrc, err := d.dec.Transform(dst, src, atEOF)
		sb.Write(dst[:nDst])
		src = src[nSrc:]
		switch err {
		case nil:
		case transform.ErrShortDst:
			if nSrc == 0 {
				dst = make([]byte, 2*len(dst))
				d.out = dst
			}
		case transform.ErrShortSrc:
			d.pending = append([]byte(nil), src...)
			src = nil
		default:
			// Ill-formed byte: substitute and skip it.
			sb.WriteRune(utf8.RuneError)
			if len(src) > 0 {
				src = src[1:]
			}
		}
	}
	d.buf = sb.String()
}

func (d *FrameDecoder) split() []string {
	d.buf = strings.ReplaceAll(d.buf, "\r\n", "\n")
	parts := strings.Split(d.buf, frameDelimiter)
	d.buf = parts[len(parts)-1]

	var frames []string
	for _, p := range parts[:len(parts)-1] {
		if p = strings.TrimSpace(p); p != "" {
			frames = append(frames, p)
		}
	}
	return frames
}
