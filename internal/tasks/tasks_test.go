package tasks

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/pipetask/internal/findfile"
	"github.com/aristath/pipetask/internal/task"
)

const extractName = "20200101_r_3_00000042"

func newRegistry(t *testing.T) *task.Registry {
	t.Helper()
	layout, err := findfile.New("/data", nil)
	require.NoError(t, err)

	b := task.NewBuilder(layout, nil)
	require.NoError(t, Register(b))
	reg, err := b.Build()
	require.NoError(t, err)
	return reg
}

func TestRegister(t *testing.T) {
	reg := newRegistry(t)
	assert.Equal(t, []string{TypeExtract, TypeFibermap, TypePix, TypePSFNight}, reg.Types())

	layout, err := findfile.New("/data", nil)
	require.NoError(t, err)
	b := task.NewBuilder(layout, nil)
	require.NoError(t, Register(b))
	assert.ErrorIs(t, Register(b), task.ErrDuplicateType)
}

func TestExtractName(t *testing.T) {
	extract, err := newRegistry(t).Get(TypeExtract)
	require.NoError(t, err)

	name, err := extract.Join(task.Fields{"night": 20200101, "band": "r", "spec": 3, "expid": 42})
	require.NoError(t, err)
	assert.Equal(t, extractName, name)

	f, err := extract.Split(extractName)
	require.NoError(t, err)
	assert.Equal(t, task.Fields{"night": int64(20200101), "band": "r", "spec": int64(3), "expid": int64(42)}, f)
}

func TestExtractDeps(t *testing.T) {
	extract, err := newRegistry(t).Get(TypeExtract)
	require.NoError(t, err)

	deps, err := extract.Deps(extractName)
	require.NoError(t, err)
	assert.Equal(t, task.DepMap{
		{Role: "input", Type: TypePix, Name: "20200101_r_3_00000042"},
		{Role: "fibermap", Type: TypeFibermap, Name: "20200101_00000042"},
		{Role: "psf", Type: TypePSFNight, Name: "20200101_r_3"},
	}, deps)
}

func TestPaths(t *testing.T) {
	reg := newRegistry(t)

	tests := []struct {
		typ  string
		name string
		want string
	}{
		{TypePix, extractName, "/data/preproc/20200101/00000042/preproc-r3-00000042.fits"},
		{TypeFibermap, "20200101_00000042", "/data/preproc/20200101/00000042/fibermap-00000042.fits"},
		{TypePSFNight, "20200101_r_3", "/data/calibnight/20200101/psfnight-r3-20200101.fits"},
		{TypeExtract, extractName, "/data/exposures/20200101/00000042/frame-r3-00000042.fits"},
	}

	for _, tt := range tests {
		t.Run(tt.typ, func(t *testing.T) {
			inst, err := reg.Get(tt.typ)
			require.NoError(t, err)
			paths, err := inst.Paths(tt.name)
			require.NoError(t, err)
			assert.Equal(t, []string{tt.want}, paths)
		})
	}
}

func TestExtractOptions(t *testing.T) {
	extract, err := newRegistry(t).Get(TypeExtract)
	require.NoError(t, err)

	opts, err := extract.BuildOptions(extractName, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"input", "fibermap", "psf", task.OutputKey,
		"regularize", "nwavestep", "verbose", "wavelength",
	}, opts.Keys())

	wave, _ := opts.Get("wavelength")
	assert.Equal(t, "5635.0,7731.0,0.8", wave)
	for _, band := range Bands {
		assert.False(t, opts.Has(wavelengthPrefix+band))
	}

	psf, _ := opts.Get("psf")
	assert.Equal(t, "/data/calibnight/20200101/psfnight-r3-20200101.fits", psf)
	nstep, _ := opts.Get("nwavestep")
	assert.Equal(t, 50, nstep)
}

func TestExtractOptionsByBand(t *testing.T) {
	extract, err := newRegistry(t).Get(TypeExtract)
	require.NoError(t, err)

	tests := []struct {
		name string
		want string
	}{
		{"20200101_b_0_00000042", "3579.0,5939.0,0.8"},
		{"20200101_r_0_00000042", "5635.0,7731.0,0.8"},
		{"20200101_z_9_00000042", "7445.0,9824.0,0.8"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts, err := extract.BuildOptions(tt.name, nil)
			require.NoError(t, err)
			wave, _ := opts.Get("wavelength")
			assert.Equal(t, tt.want, wave)
		})
	}
}

func TestExtractOptionsOverrides(t *testing.T) {
	extract, err := newRegistry(t).Get(TypeExtract)
	require.NoError(t, err)

	opts, err := extract.BuildOptions(extractName, map[string]any{
		"wavelength": "5000,6000,1",
		"nwavestep":  "25",
		"verbose":    true,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"input", "fibermap", "psf", task.OutputKey,
		"regularize", "nwavestep", "verbose", "wavelength",
	}, opts.Keys())
	wave, _ := opts.Get("wavelength")
	assert.Equal(t, "5000,6000,1", wave)
	nstep, _ := opts.Get("nwavestep")
	assert.Equal(t, 25, nstep)

	// Only the per-band variants collapse; other wavelength_* keys stay.
	opts, err = extract.BuildOptions(extractName, map[string]any{
		"wavelength_step": "0.5",
		"wavelength_b":    "1,2,3",
		"psferr":          0.01,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{
		"input", "fibermap", "psf", task.OutputKey,
		"regularize", "nwavestep", "verbose", "wavelength",
		"psferr", "wavelength_step",
	}, opts.Keys())
	step, ok := opts.Get("wavelength_step")
	assert.True(t, ok)
	assert.Equal(t, "0.5", step)
	wave, _ = opts.Get("wavelength")
	assert.Equal(t, "5635.0,7731.0,0.8", wave)

	line, err := extract.RunCommandLine(extractName, map[string]any{"verbose": true}, 20)
	require.NoError(t, err)
	assert.Equal(t, "desi_extract_spectra"+
		" --input /data/preproc/20200101/00000042/preproc-r3-00000042.fits"+
		" --fibermap /data/preproc/20200101/00000042/fibermap-00000042.fits"+
		" --psf /data/calibnight/20200101/psfnight-r3-20200101.fits"+
		" --output /data/exposures/20200101/00000042/frame-r3-00000042.fits"+
		" --regularize 0.0 --nwavestep 50 --verbose"+
		" --wavelength 5635.0,7731.0,0.8", line)
}

func TestExtractUnknownBand(t *testing.T) {
	extract, err := newRegistry(t).Get(TypeExtract)
	require.NoError(t, err)

	_, err = extract.BuildOptions("20200101_q_3_00000042", nil)
	assert.ErrorContains(t, err, `no wavelength range for band "q"`)

	// An explicit range does not need a band default.
	opts, err := extract.BuildOptions("20200101_q_3_00000042", map[string]any{"wavelength": "1,2,3"})
	require.NoError(t, err)
	wave, _ := opts.Get("wavelength")
	assert.Equal(t, "1,2,3", wave)
}

func TestRunMetadata(t *testing.T) {
	reg := newRegistry(t)

	tests := []struct {
		typ      string
		maxProcs int
		runtime  float64
		entry    string
	}{
		{TypePix, 1, 2, "desi_preproc"},
		{TypeFibermap, 1, 2, "desi_assemble_fibermap"},
		{TypePSFNight, 1, 3, "desi_compute_psf_nightly"},
		{TypeExtract, 20, 15, "desi_extract_spectra"},
	}
	for _, tt := range tests {
		t.Run(tt.typ, func(t *testing.T) {
			inst, err := reg.Get(tt.typ)
			require.NoError(t, err)
			assert.Equal(t, tt.maxProcs, inst.RunMaxProcs(32))
			assert.Equal(t, tt.entry, inst.Entry())
			assert.Equal(t, tt.runtime, inst.RunTime(t.Context(), extractName, 1, nil))
		})
	}
}
