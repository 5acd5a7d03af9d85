package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/pipetask/internal/findfile"
	"github.com/aristath/pipetask/internal/task"
	"github.com/aristath/pipetask/internal/tasks"
)

func testRegistry(t *testing.T) *task.Registry {
	t.Helper()
	layout, err := findfile.New(t.TempDir(), nil)
	require.NoError(t, err)
	b := task.NewBuilder(layout, nil)
	require.NoError(t, tasks.Register(b))
	reg, err := b.Build()
	require.NoError(t, err)
	return reg
}

func TestExpand(t *testing.T) {
	reg := testRegistry(t)

	dag, err := Expand(reg, []Ref{{Type: tasks.TypeExtract, Name: "20200101_r_3_00000042"}})
	require.NoError(t, err)
	assert.Equal(t, 4, dag.Len())

	extract, ok := dag.Get("extract/20200101_r_3_00000042")
	require.True(t, ok)
	assert.Equal(t, []string{
		"pix/20200101_r_3_00000042",
		"fibermap/20200101_00000042",
		"psfnight/20200101_r_3",
	}, extract.DependsOn)
	assert.Equal(t, "r", extract.Fields["band"])

	order, err := dag.Order()
	require.NoError(t, err)
	assert.Equal(t, "extract/20200101_r_3_00000042", order[len(order)-1])
}

func TestExpandSharesDependencies(t *testing.T) {
	reg := testRegistry(t)

	// Two cameras of one exposure share the fibermap; two exposures of one
	// camera share the nightly PSF.
	dag, err := Expand(reg, []Ref{
		{Type: tasks.TypeExtract, Name: "20200101_r_3_00000042"},
		{Type: tasks.TypeExtract, Name: "20200101_b_3_00000042"},
		{Type: tasks.TypeExtract, Name: "20200101_r_3_00000043"},
		{Type: tasks.TypeExtract, Name: "20200101_r_3_00000042"},
	})
	require.NoError(t, err)

	counts := map[string]int{}
	for _, tk := range dag.Tasks() {
		counts[tk.Type]++
	}
	assert.Equal(t, map[string]int{
		tasks.TypeExtract:  3,
		tasks.TypePix:      3,
		tasks.TypeFibermap: 2,
		tasks.TypePSFNight: 2,
	}, counts)
}

func TestExpandErrors(t *testing.T) {
	reg := testRegistry(t)

	_, err := Expand(reg, []Ref{{Type: "nosuchtype", Name: "x"}})
	assert.ErrorIs(t, err, task.ErrUnknownType)

	_, err = Expand(reg, []Ref{{Type: tasks.TypeExtract, Name: "20200101_r_3"}})
	assert.ErrorIs(t, err, task.ErrParse)
}

func TestRefString(t *testing.T) {
	assert.Equal(t, "pix/20200101_r_3_00000042", Ref{Type: "pix", Name: "20200101_r_3_00000042"}.String())
}
