package task

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptionListEdits(t *testing.T) {
	var l OptionList
	l = l.Set("a", 1).Set("b", 2).Set("a", 3)
	assert.Equal(t, []string{"a", "b"}, l.Keys())
	v, ok := l.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 3, v)

	c := l.Clone()
	c = c.Delete("a")
	assert.Equal(t, []string{"b"}, c.Keys())
	assert.True(t, l.Has("a"), "Delete on a clone must not touch the original")
	assert.Equal(t, map[string]any{"a": 3, "b": 2}, l.Map())
}

func TestArgs(t *testing.T) {
	l := OptionList{
		{Key: "input", Value: "/data/in.fits"},
		{Key: "verbose", Value: true},
		{Key: "debug", Value: false},
		{Key: "unset", Value: nil},
		{Key: "regularize", Value: 0.0},
		{Key: "nsig", Value: 6.5},
		{Key: "nstep", Value: 50},
		{Key: "fibers", Value: []int{0, 1, 2}},
		{Key: "names", Value: []any{"a", 2, 0.5}},
		{Key: "sigmas", Value: []float64{1, 2.5}},
		{Key: "scale", Value: float32(3)},
	}
	assert.Equal(t, []string{
		"--input", "/data/in.fits",
		"--verbose",
		"--regularize", "0.0",
		"--nsig", "6.5",
		"--nstep", "50",
		"--fibers", "0,1,2",
		"--names", "a,2,0.5",
		"--sigmas", "1.0,2.5",
		"--scale", "3.0",
	}, l.Args())
}

func TestFormatValueFloats(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{0.0, "0.0"},
		{-2.0, "-2.0"},
		{0.8, "0.8"},
		{5635.0, "5635.0"},
		{1e-5, "0.00001"},
		{math.Inf(1), "+Inf"},
		{math.NaN(), "NaN"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatValue(tt.in), "FormatValue(%v)", tt.in)
	}
}

func TestMerge(t *testing.T) {
	base := OptionList{{Key: "a", Value: 1}, {Key: "b", Value: 2}}
	top := OptionList{{Key: "c", Value: 3}, {Key: "a", Value: 10}}

	got := Merge(map[string]any{"z": 26, "b": 20, "y": 25}, base, top)
	assert.Equal(t, OptionList{
		{Key: "a", Value: 10},
		{Key: "b", Value: 20},
		{Key: "c", Value: 3},
		{Key: "y", Value: 25},
		{Key: "z", Value: 26},
	}, got)

	assert.Empty(t, Merge(nil))
}

func TestAssemble(t *testing.T) {
	defaults := OptionList{
		{Key: "nstep", Value: 50},
		{Key: "input", Value: "default-input"},
		{Key: "verbose", Value: false},
	}
	inputs := OptionList{{Key: "input", Value: "/in"}, {Key: "psf", Value: "/psf"}}

	t.Run("precedence and order", func(t *testing.T) {
		got := Assemble(defaults, inputs, "/out", map[string]any{"verbose": true, "extra": "x"})
		assert.Equal(t, OptionList{
			{Key: "input", Value: "/in"},
			{Key: "psf", Value: "/psf"},
			{Key: OutputKey, Value: "/out"},
			{Key: "nstep", Value: 50},
			{Key: "verbose", Value: true},
			{Key: "extra", Value: "x"},
		}, got)
	})

	t.Run("overrides beat inputs and output", func(t *testing.T) {
		got := Assemble(defaults, inputs, "/out", map[string]any{"input": "/mine", OutputKey: "/elsewhere"})
		v, _ := got.Get("input")
		assert.Equal(t, "/mine", v)
		v, _ = got.Get(OutputKey)
		assert.Equal(t, "/elsewhere", v)
		assert.Equal(t, []string{"input", "psf", OutputKey, "nstep", "verbose"}, got.Keys())
	})

	t.Run("defaults not mutated", func(t *testing.T) {
		Assemble(defaults, inputs, "/out", map[string]any{"nstep": 1})
		v, _ := defaults.Get("nstep")
		assert.Equal(t, 50, v)
	})

	t.Run("deterministic", func(t *testing.T) {
		ov := map[string]any{"q": 1, "p": 2, "r": 3, "nstep": 4}
		first := Assemble(defaults, inputs, "/out", ov)
		for i := 0; i < 20; i++ {
			assert.Equal(t, first, Assemble(defaults, inputs, "/out", ov))
		}
	})
}

func TestDecodeOptions(t *testing.T) {
	type settings struct {
		NStep   int     `opt:"nstep"`
		Sigma   float64 `opt:"sigma"`
		Verbose bool    `opt:"verbose"`
		Name    string  `opt:"name"`
	}

	var s settings
	rest, err := DecodeOptions(OptionList{
		{Key: "extra", Value: 1},
		{Key: "nstep", Value: "25"},
		{Key: "sigma", Value: 6},
		{Key: "verbose", Value: "true"},
		{Key: "name", Value: "x"},
		{Key: "another", Value: 2},
	}, &s)
	require.NoError(t, err)
	assert.Equal(t, settings{NStep: 25, Sigma: 6, Verbose: true, Name: "x"}, s)
	assert.Equal(t, []string{"extra", "another"}, rest)

	_, err = DecodeOptions(OptionList{{Key: "nstep", Value: "many"}}, &s)
	assert.Error(t, err)
}
