package task

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const frameName = "20200101_r_3_00000042"

func TestInstanceSplitJoin(t *testing.T) {
	inst, err := buildPipeline(t, nil).Get("frame")
	require.NoError(t, err)

	f, err := inst.Split(frameName)
	require.NoError(t, err)
	name, err := inst.Join(f)
	require.NoError(t, err)
	assert.Equal(t, frameName, name)
}

func TestInstanceDeps(t *testing.T) {
	reg := buildPipeline(t, nil)
	inst, err := reg.Get("frame")
	require.NoError(t, err)

	deps, err := inst.Deps(frameName)
	require.NoError(t, err)
	assert.Equal(t, DepMap{
		{Role: "input", Type: "raw", Name: "20200101_r_3_00000042"},
		{Role: "meta", Type: "meta", Name: "20200101_00000042"},
		{Role: "psf", Type: "calib", Name: "20200101_r_3"},
	}, deps)

	psf, ok := deps.Get("psf")
	assert.True(t, ok)
	assert.Equal(t, "calib", psf.Type)
	_, ok = deps.Get("nope")
	assert.False(t, ok)
	names := make(map[string]string, len(deps))
	for _, d := range deps {
		names[d.Role] = d.Name
	}
	assert.Equal(t, map[string]string{
		"input": "20200101_r_3_00000042",
		"meta":  "20200101_00000042",
		"psf":   "20200101_r_3",
	}, names)

	// Every dependency name decodes under its own type.
	for _, d := range deps {
		target, err := reg.Get(d.Type)
		require.NoError(t, err)
		_, err = target.Split(d.Name)
		assert.NoError(t, err, d.Name)
	}

	raw, _ := reg.Get("raw")
	none, err := raw.Deps(frameName)
	require.NoError(t, err)
	assert.Empty(t, none)

	_, err = inst.Deps("20200101_r_3")
	assert.ErrorIs(t, err, ErrParse)
}

func TestInstancePaths(t *testing.T) {
	inst, err := buildPipeline(t, nil).Get("calib")
	require.NoError(t, err)

	paths, err := inst.Paths("20200101_r_3")
	require.NoError(t, err)
	assert.Equal(t, []string{"calib/band=r,night=20200101,spec=3"}, paths)

	bad := buildPipelineWith(t, &fakeKind{desc: descriptor("raw", nil, tNight)})
	rawInst, _ := bad.Get("raw")
	_, err = rawInst.Paths("20200101")
	assert.ErrorContains(t, err, "locating outputs")
}

func buildPipelineWith(t *testing.T, kinds ...Kind) *Registry {
	t.Helper()
	b := NewBuilder(pathLocator{}, nil)
	for _, k := range kinds {
		require.NoError(t, b.Register(k))
	}
	reg, err := b.Build()
	require.NoError(t, err)
	return reg
}

func TestInstanceBuildOptions(t *testing.T) {
	inst, err := buildPipeline(t, nil).Get("frame")
	require.NoError(t, err)

	opts, err := inst.BuildOptions(frameName, map[string]any{"verbose": true, "psf": "/custom/psf"})
	require.NoError(t, err)
	assert.Equal(t, []string{"input", "meta", "psf", OutputKey, "nstep", "verbose"}, opts.Keys())

	v, _ := opts.Get("input")
	assert.Equal(t, "raw/band=r,expid=42,night=20200101,spec=3", v)
	v, _ = opts.Get("meta")
	assert.Equal(t, "meta/expid=42,night=20200101", v)
	v, _ = opts.Get("psf")
	assert.Equal(t, "/custom/psf", v)
	v, _ = opts.Get(OutputKey)
	assert.Equal(t, "frame/band=r,expid=42,night=20200101,spec=3", v)
	v, _ = opts.Get("verbose")
	assert.Equal(t, true, v)

	again, err := inst.BuildOptions(frameName, map[string]any{"verbose": true, "psf": "/custom/psf"})
	require.NoError(t, err)
	assert.Equal(t, opts, again)

	// Defaults stay untouched between calls.
	plain, err := inst.BuildOptions(frameName, nil)
	require.NoError(t, err)
	v, _ = plain.Get("verbose")
	assert.Equal(t, false, v)
}

func TestInstanceCollapseError(t *testing.T) {
	k := &fakeKind{
		desc:     descriptor("raw", nil, tNight),
		filetype: "raw",
		collapse: func(Fields, OptionList) (OptionList, error) { return nil, errors.New("no variant") },
	}
	inst, err := buildPipelineWith(t, k).Get("raw")
	require.NoError(t, err)

	_, err = inst.BuildOptions("20200101", nil)
	assert.ErrorContains(t, err, "raw 20200101: no variant")
}

func TestInstanceRunCommandLine(t *testing.T) {
	inst, err := buildPipeline(t, nil).Get("frame")
	require.NoError(t, err)

	line, err := inst.RunCommandLine(frameName, map[string]any{"verbose": true}, 4)
	require.NoError(t, err)
	assert.Equal(t, "run_frame"+
		" --input raw/band=r,expid=42,night=20200101,spec=3"+
		" --meta meta/expid=42,night=20200101"+
		" --psf calib/band=r,night=20200101,spec=3"+
		" --output frame/band=r,expid=42,night=20200101,spec=3"+
		" --nstep 50 --verbose", line)

	single, err := inst.RunCommandLine(frameName, map[string]any{"verbose": true}, 1)
	require.NoError(t, err)
	assert.Equal(t, line, single)
}

func TestInstanceRunMaxProcsAndRunTime(t *testing.T) {
	reg := buildPipeline(t, nil)
	ctx := context.Background()

	frame, _ := reg.Get("frame")
	calib, _ := reg.Get("calib")
	assert.Equal(t, 20, frame.RunMaxProcs(32))
	assert.Equal(t, 1, calib.RunMaxProcs(32))

	assert.Equal(t, 15.0, frame.RunTime(ctx, frameName, 1, nil))
	assert.Equal(t, 1.0, calib.RunTime(ctx, "20200101_r_3", 1, nil), "zero estimate falls back to 1")

	assert.Equal(t, 7.5, frame.RunTime(ctx, frameName, 1, fakeHistory{minutes: 7.5, ok: true}))
	assert.Equal(t, 15.0, frame.RunTime(ctx, frameName, 1, fakeHistory{ok: false}))
	assert.Equal(t, 15.0, frame.RunTime(ctx, frameName, 1, fakeHistory{minutes: 3, ok: true, err: errors.New("db down")}))
}

// recorder is a routine factory that records invocations.
type recorder struct {
	mu    sync.Mutex
	calls []string
	fail  error
}

func (r *recorder) factory(_, entry string) (Routine, error) {
	return RoutineFunc(func(ctx context.Context, args []string, rank, size int) error {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.calls = append(r.calls, fmt.Sprintf("%s %d/%d %s", entry, rank, size, strings.Join(args, " ")))
		return r.fail
	}), nil
}

// fixedGroup runs ranks sequentially.
type fixedGroup int

func (g fixedGroup) Size() int { return int(g) }

func (g fixedGroup) Run(ctx context.Context, fn func(ctx context.Context, rank int) error) error {
	var first error
	for rank := 0; rank < int(g); rank++ {
		if err := fn(ctx, rank); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func TestInstanceRun(t *testing.T) {
	rec := &recorder{}
	reg := buildPipeline(t, rec.factory)
	inst, err := reg.Get("meta")
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, inst.Run(ctx, "20200101_00000042", nil, Local{}))
	require.NoError(t, inst.Run(ctx, "20200101_00000042", nil, nil))
	require.NoError(t, inst.Run(ctx, "20200101_00000042", map[string]any{"x": 1}, Grouped{Comm: fixedGroup(2)}))

	assert.Equal(t, []string{
		"run_meta 0/1 --output meta/expid=42,night=20200101",
		"run_meta 0/1 --output meta/expid=42,night=20200101",
		"run_meta 0/2 --output meta/expid=42,night=20200101 --x 1",
		"run_meta 1/2 --output meta/expid=42,night=20200101 --x 1",
	}, rec.calls)

	rec.fail = errors.New("routine failed")
	assert.EqualError(t, inst.Run(ctx, "20200101_00000042", nil, Local{}), "routine failed")

	err = inst.Run(ctx, "20200101_00000042", nil, Grouped{})
	assert.ErrorContains(t, err, "without a worker group")

	noFactory, _ := buildPipeline(t, nil).Get("meta")
	assert.ErrorContains(t, noFactory.Run(ctx, "20200101_00000042", nil, Local{}), "no routine factory")
}
