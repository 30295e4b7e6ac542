package l1frames

import (
	"image"
	"image/color"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSliceSource(t *testing.T) {
	t.Parallel()

	a := constFrame(t, 2, 2, 1)
	b := constFrame(t, 2, 2, 2)
	src := NewSliceSource(a, b)

	f, err := src.Next()
	require.NoError(t, err)
	assert.Equal(t, 0, f.Index)
	f, err = src.Next()
	require.NoError(t, err)
	assert.Equal(t, 1, f.Index)
	assert.Equal(t, uint16(2), f.At(0, 0))
	_, err = src.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestDirSource_OrderAndFormats(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	g := image.NewGray(image.Rect(0, 0, 4, 3))
	g.SetGray(1, 1, color.Gray{Y: 77})
	require.NoError(t, imaging.Save(g, filepath.Join(dir, "frame_0001_214501_000250.png")))

	f16, err := NewFrame(4, 3, 16, make([]uint16, 12), time.Time{})
	require.NoError(t, err)
	fh, err := os.Create(filepath.Join(dir, "frame_0000_214500_000000.fits"))
	require.NoError(t, err)
	require.NoError(t, EncodeFITS(fh, f16))
	require.NoError(t, fh.Close())

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))

	src, err := OpenDir(dir)
	require.NoError(t, err)
	assert.Equal(t, 2, src.Len())

	first, err := src.Next()
	require.NoError(t, err)
	assert.Equal(t, 16, first.BitDepth())
	assert.Equal(t, 0, first.Index)

	second, err := src.Next()
	require.NoError(t, err)
	assert.Equal(t, 8, second.BitDepth())
	assert.Equal(t, 1, second.Index)
	assert.Equal(t, uint16(77), second.At(1, 1))
	assert.Equal(t, 21, second.Timestamp.Hour())
	assert.Equal(t, 45, second.Timestamp.Minute())
	assert.Equal(t, 1, second.Timestamp.Second())
	assert.Equal(t, 250000, second.Timestamp.Nanosecond()/1000)

	_, err = src.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestOpenDir_Missing(t *testing.T) {
	t.Parallel()

	_, err := OpenDir(filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}
