package headless

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Swind/go-display-runner/core"
)

func TestDisplay_RecordsCalls(t *testing.T) {
	d := New()
	require.NoError(t, d.Open())
	assert.True(t, d.IsOpen())

	require.NoError(t, d.CreateWindow("b"))
	require.NoError(t, d.CreateWindow("a"))
	assert.Error(t, d.CreateWindow("a"))

	frame := &core.Frame{Width: 1, Height: 1, Format: core.FormatBGR24, Pix: []byte{1, 2, 3}}
	require.NoError(t, d.ShowFrame("a", frame))
	assert.Error(t, d.ShowFrame("missing", frame))

	got, ok := d.LastFrame("a")
	require.True(t, ok)
	assert.Same(t, frame, got)
	_, ok = d.LastFrame("b")
	assert.False(t, ok, "b has never been shown")

	assert.Equal(t, []string{"a", "b"}, d.Windows())
	require.NoError(t, d.DestroyWindow("b"))
	assert.Error(t, d.DestroyWindow("b"))
	assert.Equal(t, []string{"a"}, d.Windows())

	require.NoError(t, d.Pump())
	require.NoError(t, d.Close())
	assert.False(t, d.IsOpen())

	assert.Equal(t, 1, d.Pumps())
	assert.Equal(t, 2, d.Count(OpShow, ""))
	assert.Equal(t, 1, d.Count(OpShow, "a"))
	assert.Equal(t, 0, d.Count(OpPump, ""), "pumps are not recorded by default")
	assert.Len(t, d.Goroutines(), 1)
}

func TestDisplay_FailureInjection(t *testing.T) {
	d := New()
	d.OpenErr = errors.New("no server")
	assert.Error(t, d.Open())
	assert.False(t, d.IsOpen())

	d = New()
	d.RecordPumps = true
	d.CreateErr = func(name string) error {
		if name == "bad" {
			return errors.New("refused")
		}
		return nil
	}
	d.PumpErr = func() error { return errors.New("connection lost") }
	require.NoError(t, d.Open())

	assert.Error(t, d.CreateWindow("bad"))
	assert.NoError(t, d.CreateWindow("good"))
	assert.Error(t, d.Pump())
	assert.Equal(t, 1, d.Count(OpPump, ""))
}

func TestDisplay_CreateOnClosed(t *testing.T) {
	d := New()
	assert.Error(t, d.CreateWindow("cam"), "Open was never called")
}
