package output

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWriter_StatusLines(t *testing.T) {
	var buf bytes.Buffer
	w := NewPlain(&buf)

	w.Success("indexed 120 files")
	w.Warning("3 files skipped")
	w.Error("store locked")
	w.Detail("see .symdex/logs for details")

	out := buf.String()
	assert.Contains(t, out, "ok indexed 120 files")
	assert.Contains(t, out, "warn 3 files skipped")
	assert.Contains(t, out, "error store locked")
	assert.Contains(t, out, "  see .symdex/logs")
	assert.NotContains(t, out, "\x1b[", "plain writer must not emit ANSI codes")
}

func TestWriter_Formatting(t *testing.T) {
	var buf bytes.Buffer
	w := NewPlain(&buf)

	w.Successf("%d symbols in %s", 42, "main.go")
	assert.Contains(t, buf.String(), "ok 42 symbols in main.go")
}

func TestWriter_ColorOnlyWhenEnabled(t *testing.T) {
	var buf bytes.Buffer
	w := &Writer{out: &buf, useColor: true}
	w.Success("done")

	assert.Contains(t, buf.String(), colorGreen)
	assert.Contains(t, buf.String(), colorReset)
}

func TestWriter_BufferNeverDetectsColor(t *testing.T) {
	var buf bytes.Buffer
	w := New(&buf)
	w.Success("done")
	assert.NotContains(t, buf.String(), "\x1b[")
}

func TestWriter_Progress(t *testing.T) {
	var buf bytes.Buffer
	w := NewPlain(&buf)

	w.Progress(15, 30, "extracting")
	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "\r["))
	assert.Contains(t, out, "50%")
	assert.Contains(t, out, "extracting")
	assert.NotContains(t, out, "\n")

	w.Progress(30, 30, "extracting")
	assert.Contains(t, buf.String(), "100%")
	assert.True(t, strings.HasSuffix(buf.String(), "\n"))
}

func TestWriter_ProgressZeroTotalIsNoop(t *testing.T) {
	var buf bytes.Buffer
	w := NewPlain(&buf)
	w.Progress(5, 0, "nothing")
	assert.Empty(t, buf.String())
}

func TestRenderBar(t *testing.T) {
	tests := []struct {
		name    string
		current int
		total   int
		filled  int
	}{
		{"empty", 0, 10, 0},
		{"half", 5, 10, 15},
		{"full", 10, 10, 30},
		{"overshoot clamps", 20, 10, 30},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bar := renderBar(tt.current, tt.total, 30)
			assert.Equal(t, tt.filled, strings.Count(bar, "█"))
			assert.Equal(t, 30-tt.filled, strings.Count(bar, "░"))
		})
	}
}
