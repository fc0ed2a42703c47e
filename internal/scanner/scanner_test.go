package scanner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(t *testing.T, text string) []Segment {
	t.Helper()
	s := New(text)
	var segs []Segment
	for s.Scan() {
		segs = append(segs, s.Segment())
	}
	return segs
}

func TestScanNoFences(t *testing.T) {
	segs := collect(t, "just prose\nno code here\n")
	require.Len(t, segs, 1)
	assert.Nil(t, segs[0].Fence)
	assert.Equal(t, "just prose\nno code here\n", segs[0].Text)
}

func TestScanSingleFence(t *testing.T) {
	text := "before\n```go\nprint(1)\n```\nafter\n"
	segs := collect(t, text)
	require.Len(t, segs, 2)

	require.NotNil(t, segs[0].Fence)
	assert.Equal(t, "before\n", segs[0].Text)
	assert.Equal(t, "go", segs[0].Fence.Tag)
	assert.Equal(t, "\nprint(1)\n", segs[0].Fence.Body)

	assert.Nil(t, segs[1].Fence)
	assert.Equal(t, "\nafter\n", segs[1].Text)
}

func TestScanTagLowercased(t *testing.T) {
	segs := collect(t, "```GO-Exception\nbody\n```")
	require.NotNil(t, segs[0].Fence)
	assert.Equal(t, "go-exception", segs[0].Fence.Tag)
}

func TestScanEmptyTag(t *testing.T) {
	segs := collect(t, "```\noutput\n```")
	require.NotNil(t, segs[0].Fence)
	assert.Equal(t, "", segs[0].Fence.Tag)
	assert.Equal(t, "\noutput\n", segs[0].Fence.Body)
}

func TestScanBodyOffsets(t *testing.T) {
	text := "ab\n```go\nx\n```"
	segs := collect(t, text)
	require.NotNil(t, segs[0].Fence)
	f := segs[0].Fence
	assert.Equal(t, text[f.BodyStart:f.End-3], f.Body)
	assert.Equal(t, "```", text[f.Open:f.Open+3])
}

func TestScanConsecutiveFences(t *testing.T) {
	text := "```go\na\n```\n```go\nb\n```"
	segs := collect(t, text)
	require.Len(t, segs, 3)
	assert.Equal(t, "\na\n", segs[0].Fence.Body)
	assert.Equal(t, "\n", segs[1].Text)
	assert.Equal(t, "\nb\n", segs[1].Fence.Body)
	assert.Nil(t, segs[2].Fence)
	assert.Equal(t, "", segs[2].Text)
}

func TestScanDanglingDelimiterAtEOF(t *testing.T) {
	// A trailing delimiter with no tag line passes through with the text.
	text := "prose\n```"
	s := New(text)
	var segs []Segment
	for s.Scan() {
		segs = append(segs, s.Segment())
	}
	require.Len(t, segs, 1)
	assert.Nil(t, segs[0].Fence)
	assert.Equal(t, text, segs[0].Text)
	assert.False(t, s.Unclosed())
}

func TestScanUnclosedFence(t *testing.T) {
	text := "prose\n```go\nnever closed\n"
	s := New(text)
	require.True(t, s.Scan())
	seg := s.Segment()
	assert.Nil(t, seg.Fence)
	assert.Equal(t, text, seg.Text)
	assert.True(t, s.Unclosed())
	assert.False(t, s.Scan())
}

func TestScanNotRestartable(t *testing.T) {
	s := New("text")
	require.True(t, s.Scan())
	assert.False(t, s.Scan())
	assert.False(t, s.Scan())
}
