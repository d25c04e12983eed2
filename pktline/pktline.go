// Package pktline implements git's pkt-line framing, the line-oriented
// wire format used by every smart HTTP and protocol-v2 exchange.
// https://git-scm.com/docs/protocol-common#_pkt_line_format
package pktline

import (
	"bufio"
	"bytes"
	"encoding/hex"
	"errors"
	"io"

	"golang.org/x/xerrors"
)

const (
	// MaxLineSize is the largest amount of payload a single pkt-line can
	// carry (65516 bytes of data plus the 4 byte length prefix).
	MaxLineSize = 65516

	lengthPrefixSize = 4
)

// Special, zero-length control packets. Each is represented on the wire
// as just its 4 byte length prefix, with no payload and no trailing LF.
var (
	// FlushPkt ("0000") terminates a list of pkt-lines.
	FlushPkt = []byte("0000")
	// DelimPkt ("0001") separates sections within a single list of
	// pkt-lines, used by protocol v2 commands.
	DelimPkt = []byte("0001")
	// ResponseEndPkt ("0002") terminates a response to a protocol v2
	// command that can be followed by another command on the same
	// connection.
	ResponseEndPkt = []byte("0002")
)

// ErrInvalidLength is returned when a line's length prefix isn't a valid
// 4 digit hex number.
var ErrInvalidLength = errors.New("invalid pkt-line length prefix")

// ErrLineTooLong is returned when a line's declared length is bigger than
// MaxLineSize.
var ErrLineTooLong = errors.New("pkt-line payload too long")

// Line is a single decoded pkt-line. Flush, delim, and response-end
// packets are represented with Payload set to nil and the matching
// Is* flag set to true.
type Line struct {
	Payload []byte

	IsFlush       bool
	IsDelim       bool
	IsResponseEnd bool
}

// Encode writes data as a single pkt-line (length prefix + payload) to w.
// data must already include its own trailing LF if the caller wants one,
// matching git's own convention of including the newline in the line
// content rather than adding it automatically.
func Encode(w io.Writer, data []byte) error {
	if len(data) > MaxLineSize {
		return xerrors.Errorf("payload is %d bytes: %w", len(data), ErrLineTooLong)
	}

	var buf bytes.Buffer
	buf.WriteString(lengthPrefix(len(data) + lengthPrefixSize))
	buf.Write(data)

	if _, err := w.Write(buf.Bytes()); err != nil {
		return xerrors.Errorf("could not write pkt-line: %w", err)
	}
	return nil
}

// EncodeString is a convenience wrapper around Encode for string payloads.
func EncodeString(w io.Writer, data string) error {
	return Encode(w, []byte(data))
}

// WriteFlush writes a flush-pkt ("0000") to w.
func WriteFlush(w io.Writer) error {
	_, err := w.Write(FlushPkt)
	if err != nil {
		return xerrors.Errorf("could not write flush-pkt: %w", err)
	}
	return nil
}

// WriteDelim writes a delim-pkt ("0001") to w.
func WriteDelim(w io.Writer) error {
	_, err := w.Write(DelimPkt)
	if err != nil {
		return xerrors.Errorf("could not write delim-pkt: %w", err)
	}
	return nil
}

// lengthPrefix renders n (the total line length, prefix included) as the
// 4 lowercase hex digits git expects.
func lengthPrefix(n int) string {
	b := make([]byte, lengthPrefixSize)
	hex.Encode(b, []byte{byte(n >> 8), byte(n)})
	return string(b)
}

// Reader decodes a stream of pkt-lines.
type Reader struct {
	r *bufio.Reader
}

// NewReader returns a Reader reading pkt-lines from r.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReader(r)}
}

// ReadLine reads and decodes the next pkt-line. It returns io.EOF once the
// underlying reader is exhausted with nothing left to read.
func (r *Reader) ReadLine() (Line, error) {
	prefix := make([]byte, lengthPrefixSize)
	if _, err := io.ReadFull(r.r, prefix); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return Line{}, xerrors.Errorf("truncated pkt-line length: %w", err)
		}
		return Line{}, err
	}

	length, err := parseLength(prefix)
	if err != nil {
		return Line{}, err
	}

	switch length {
	case 0:
		return Line{IsFlush: true}, nil
	case 1:
		return Line{IsDelim: true}, nil
	case 2:
		return Line{IsResponseEnd: true}, nil
	}

	if length > MaxLineSize+lengthPrefixSize {
		return Line{}, ErrLineTooLong
	}

	payload := make([]byte, length-lengthPrefixSize)
	if _, err := io.ReadFull(r.r, payload); err != nil {
		return Line{}, xerrors.Errorf("could not read pkt-line payload: %w", err)
	}

	return Line{Payload: payload}, nil
}

// ReadLines reads every pkt-line up to (and including) the first flush-pkt,
// returning the decoded payloads in order. Delim and response-end packets
// are returned as zero-length entries with no payload, same as reading
// them individually through ReadLine, so callers can still tell sections
// apart.
func ReadLines(r io.Reader) ([]Line, error) {
	pr := NewReader(r)
	var lines []Line
	for {
		line, err := pr.ReadLine()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return lines, nil
			}
			return lines, err
		}
		lines = append(lines, line)
		if line.IsFlush {
			return lines, nil
		}
	}
}

func parseLength(prefix []byte) (int, error) {
	var decoded [2]byte
	if _, err := hex.Decode(decoded[:], prefix); err != nil {
		return 0, xerrors.Errorf("%s: %w", err, ErrInvalidLength)
	}
	return int(decoded[0])<<8 | int(decoded[1]), nil
}
