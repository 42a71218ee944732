package datagraph_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/datagraph"
)

func TestRecordValues(t *testing.T) {
	t.Parallel()

	rec := datagraph.NewRecord("Job", map[string]any{"id": int64(1)})
	rec.Set("name", "President")
	rec.Set("id", int64(2))

	v, ok := rec.Get("id")
	require.True(t, ok)
	assert.Equal(t, int64(2), v)
	assert.Equal(t, "President", rec.Value("name"))
	assert.Nil(t, rec.Value("missing"))
	assert.Equal(t, []string{"id", "name"}, rec.Columns())
}

func TestRecordEdges(t *testing.T) {
	t.Parallel()

	t.Run("not loaded", func(t *testing.T) {
		t.Parallel()
		rec := datagraph.NewRecord("Emp", nil)
		_, err := rec.One("job")
		assert.True(t, datagraph.IsNotLoaded(err))
		_, err = rec.Many("workers")
		assert.True(t, datagraph.IsNotLoaded(err))
		assert.False(t, rec.Loaded("job"))
		assert.Nil(t, rec.Edge("job"))
	})

	t.Run("to-one loaded without value", func(t *testing.T) {
		t.Parallel()
		rec := datagraph.NewRecord("Emp", nil)
		rec.InitEdge("job", false).MarkLoaded()
		target, err := rec.One("job")
		require.NoError(t, err)
		assert.Nil(t, target)
		assert.True(t, rec.Loaded("job"))
	})

	t.Run("to-many loaded without value", func(t *testing.T) {
		t.Parallel()
		rec := datagraph.NewRecord("Job", nil)
		rec.InitEdge("employees", true).MarkLoaded()
		items, err := rec.Many("employees")
		require.NoError(t, err)
		assert.NotNil(t, items)
		assert.Empty(t, items)
	})

	t.Run("append and target", func(t *testing.T) {
		t.Parallel()
		job := datagraph.NewRecord("Job", nil)
		a, b := datagraph.NewRecord("Emp", nil), datagraph.NewRecord("Emp", nil)
		e := job.InitEdge("employees", true)
		assert.Same(t, e, job.InitEdge("employees", true))
		e.Append(a, b)
		assert.Equal(t, []*datagraph.Record{a, b}, e.Records())

		a.InitEdge("job", false).SetTarget(job)
		assert.Equal(t, []*datagraph.Record{job}, a.Edge("job").Records())

		var missing *datagraph.Edge
		assert.Nil(t, missing.Records())
	})
}
