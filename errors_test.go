package datagraph_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/datagraph"
)

func TestConfigError(t *testing.T) {
	t.Run("Error", func(t *testing.T) {
		err := datagraph.NewConfigError("only and except are both specified for %s", "Job")
		assert.Equal(t, "datagraph: config: only and except are both specified for Job", err.Error())
	})

	t.Run("Is", func(t *testing.T) {
		err := datagraph.NewConfigError("no such subset: %q", "admin")
		assert.True(t, errors.Is(err, datagraph.ErrConfig))
		assert.True(t, datagraph.IsConfigError(fmt.Errorf("wrapper: %w", err)))
		assert.False(t, datagraph.IsConfigError(errors.New("other error")))
		assert.False(t, datagraph.IsConfigError(nil))
	})
}

func TestInaccessiblePathError(t *testing.T) {
	err := datagraph.NewInaccessiblePathError([]string{"salary", "employees.ssn"})
	assert.Equal(t, "datagraph: inaccessible: [salary, employees.ssn]", err.Error())
	assert.True(t, errors.Is(err, datagraph.ErrInaccessiblePath))

	wrapped := fmt.Errorf("validate: %w", err)
	assert.True(t, datagraph.IsInaccessiblePath(wrapped))

	var target *datagraph.InaccessiblePathError
	require.True(t, errors.As(wrapped, &target))
	assert.Equal(t, []string{"salary", "employees.ssn"}, target.Paths)
	assert.False(t, datagraph.IsInaccessiblePath(nil))
}

func TestInvalidKeyError(t *testing.T) {
	t.Run("TopLevel", func(t *testing.T) {
		err := &datagraph.InvalidKeyError{Key: "a.b"}
		assert.Equal(t, `datagraph: unexpected attribute key "a.b"`, err.Error())
	})

	t.Run("Nested", func(t *testing.T) {
		err := &datagraph.InvalidKeyError{Key: "1", Path: "job"}
		assert.Equal(t, `datagraph: unexpected attribute key "1" under "job"`, err.Error())
		assert.True(t, datagraph.IsInvalidKey(fmt.Errorf("wrapper: %w", err)))
		assert.False(t, datagraph.IsInvalidKey(errors.New("other")))
	})
}

func TestNotFoundError(t *testing.T) {
	t.Run("Error", func(t *testing.T) {
		assert.Equal(t, "datagraph: Job not found", datagraph.NewNotFoundError("Job").Error())
		assert.Equal(t, "datagraph: Job not found (key=[4])", datagraph.NewNotFoundError("Job", 4).Error())
	})

	t.Run("IsNotFound", func(t *testing.T) {
		err := datagraph.NewNotFoundError("Emp", 1, 2)
		assert.True(t, errors.Is(err, datagraph.ErrNotFound))
		assert.True(t, datagraph.IsNotFound(fmt.Errorf("wrapper: %w", err)))
		assert.True(t, datagraph.IsNotFound(datagraph.ErrNotFound))
		assert.False(t, datagraph.IsNotFound(errors.New("other error")))
		assert.False(t, datagraph.IsNotFound(nil))
		assert.Equal(t, "Emp", err.Label())
		assert.Equal(t, []any{1, 2}, err.Key())
	})
}

func TestNotLoadedError(t *testing.T) {
	err := datagraph.NewNotLoadedError("employees")
	assert.Equal(t, `datagraph: association "employees" was not loaded`, err.Error())
	assert.True(t, datagraph.IsNotLoaded(fmt.Errorf("wrapper: %w", err)))
	assert.False(t, datagraph.IsNotLoaded(nil))
}

func TestAggregateError(t *testing.T) {
	t.Run("Nil", func(t *testing.T) {
		assert.NoError(t, datagraph.NewAggregateError(nil, nil))
	})

	t.Run("Single", func(t *testing.T) {
		single := errors.New("single")
		assert.Equal(t, single, datagraph.NewAggregateError(nil, single))
	})

	t.Run("Multiple", func(t *testing.T) {
		cfg := datagraph.NewConfigError("bad")
		err := datagraph.NewAggregateError(errors.New("first"), cfg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "datagraph: multiple errors:")
		assert.Contains(t, err.Error(), "[1] first")
		assert.Contains(t, err.Error(), "[2] datagraph: config: bad")
		assert.True(t, datagraph.IsConfigError(err))
	})
}

func TestQueryError(t *testing.T) {
	inner := errors.New("connection reset")
	err := datagraph.NewQueryError("Emp", "link", inner)
	assert.Equal(t, "datagraph: querying Emp (link): connection reset", err.Error())
	assert.ErrorIs(t, err, inner)
	assert.True(t, datagraph.IsQueryError(err))

	noOp := datagraph.NewQueryError("Emp", "", inner)
	assert.Equal(t, "datagraph: querying Emp: connection reset", noOp.Error())
}

func TestPrivacyError(t *testing.T) {
	deny := errors.New("deny")
	err := datagraph.NewPrivacyError("names", "write", deny)
	assert.Equal(t, "datagraph: privacy denied write on names: deny", err.Error())
	assert.ErrorIs(t, err, deny)
	assert.True(t, datagraph.IsPrivacyError(err))
	assert.Equal(t, "datagraph: privacy denied read: deny", datagraph.NewPrivacyError("", "read", deny).Error())
}
