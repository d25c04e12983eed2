package pktline_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/ashbourne/gitkit/pktline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, pktline.EncodeString(&buf, "want 0000\n"))
	assert.Equal(t, "000ewant 0000\n", buf.String())
}

func TestEncodeTooLong(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	err := pktline.Encode(&buf, bytes.Repeat([]byte{'a'}, pktline.MaxLineSize+1))
	assert.ErrorIs(t, err, pktline.ErrLineTooLong)
}

func TestReadLineRoundTrip(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, pktline.EncodeString(&buf, "command=ls-refs\n"))
	require.NoError(t, pktline.WriteDelim(&buf))
	require.NoError(t, pktline.EncodeString(&buf, "agent=gitkit\n"))
	require.NoError(t, pktline.WriteFlush(&buf))

	r := pktline.NewReader(&buf)

	l1, err := r.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, "command=ls-refs\n", string(l1.Payload))

	l2, err := r.ReadLine()
	require.NoError(t, err)
	assert.True(t, l2.IsDelim)

	l3, err := r.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, "agent=gitkit\n", string(l3.Payload))

	l4, err := r.ReadLine()
	require.NoError(t, err)
	assert.True(t, l4.IsFlush)
}

func TestReadLines(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, pktline.EncodeString(&buf, "first\n"))
	require.NoError(t, pktline.EncodeString(&buf, "second\n"))
	require.NoError(t, pktline.WriteFlush(&buf))

	lines, err := pktline.ReadLines(&buf)
	require.NoError(t, err)
	require.Len(t, lines, 3)
	assert.Equal(t, "first\n", string(lines[0].Payload))
	assert.Equal(t, "second\n", string(lines[1].Payload))
	assert.True(t, lines[2].IsFlush)
}

func TestReadLineInvalidLength(t *testing.T) {
	t.Parallel()

	r := pktline.NewReader(strings.NewReader("zzzzgarbage"))
	_, err := r.ReadLine()
	assert.ErrorIs(t, err, pktline.ErrInvalidLength)
}
