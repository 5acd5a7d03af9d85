package findfile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocate(t *testing.T) {
	l, err := New("/data", nil)
	require.NoError(t, err)

	attrs := map[string]any{"night": int64(20200101), "expid": int64(42), "camera": "r3"}

	tests := []struct {
		filetype string
		want     string
	}{
		{"raw", "/data/raw/20200101/00000042/desi-00000042.fits.fz"},
		{"preproc", "/data/preproc/20200101/00000042/preproc-r3-00000042.fits"},
		{"fibermap", "/data/preproc/20200101/00000042/fibermap-00000042.fits"},
		{"psfnight", "/data/calibnight/20200101/psfnight-r3-20200101.fits"},
		{"frame", "/data/exposures/20200101/00000042/frame-r3-00000042.fits"},
	}
	for _, tt := range tests {
		t.Run(tt.filetype, func(t *testing.T) {
			got, err := l.Locate(tt.filetype, attrs)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLocateErrors(t *testing.T) {
	l, err := New("/data", nil)
	require.NoError(t, err)

	_, err = l.Locate("nope", nil)
	assert.ErrorIs(t, err, ErrUnknownFiletype)

	_, err = l.Locate("psfnight", map[string]any{"night": 20200101})
	assert.ErrorContains(t, err, "locating psfnight")

	_, err = l.Locate("psfnight", map[string]any{"night": 20200101, "camera": nil})
	assert.Error(t, err, "nil attributes count as missing")
}

func TestOverrides(t *testing.T) {
	l, err := New("data", map[string]string{
		"psfnight": `/scratch/{{ .camera | upper }}/{{ .night }}.fits`,
		"bias":     `/archive/{{ .root }}/bias/{{ .camera }}.fits`,
	})
	require.NoError(t, err)
	assert.Equal(t, "data", l.Root())
	assert.Equal(t, []string{"bias", "fibermap", "frame", "preproc", "psfnight", "raw"}, l.Filetypes())

	got, err := l.Locate("psfnight", map[string]any{"night": 20200101, "camera": "r3"})
	require.NoError(t, err)
	assert.Equal(t, "/scratch/R3/20200101.fits", got)

	got, err = l.Locate("bias", map[string]any{"camera": "b0"})
	require.NoError(t, err)
	assert.Equal(t, "/archive/data/bias/b0.fits", got)

	_, err = New("data", map[string]string{"broken": "{{ .night"})
	assert.ErrorContains(t, err, "parsing broken template")
}

func TestLocateCache(t *testing.T) {
	l, err := New("/data", nil)
	require.NoError(t, err)

	attrs := map[string]any{"night": int64(20200101), "camera": "r3"}
	first, err := l.Locate("psfnight", attrs)
	require.NoError(t, err)
	assert.Equal(t, 1, l.Cached())

	again, err := l.Locate("psfnight", map[string]any{"camera": "r3", "night": int64(20200101), "unused": nil})
	require.NoError(t, err)
	assert.Equal(t, first, again)
	assert.Equal(t, 1, l.Cached())

	_, err = l.Locate("psfnight", map[string]any{"night": "20200101", "camera": "r3"})
	require.NoError(t, err)
	assert.Equal(t, 2, l.Cached(), "values of different types are cached apart")

	_, err = l.Locate("psfnight", map[string]any{"night": 20200101})
	require.Error(t, err)
	assert.Equal(t, 2, l.Cached(), "failures are not cached")
}
