package workflow

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loomworks/loom/types"
)

func noopHandler(ctx context.Context, input any, upstream Outputs) (any, error) {
	return nil, nil
}

func TestValidateDefinition_Valid(t *testing.T) {
	t.Parallel()

	def := &WorkflowDefinition{
		ID: "wf",
		Steps: []WorkflowStep{
			{ID: "a", Handler: noopHandler},
			{ID: "b", Dependencies: []string{"a"}, Handler: noopHandler},
			{ID: "c", Dependencies: []string{"a", "b"}, Handler: noopHandler},
		},
	}
	require.NoError(t, validateDefinition(def))
}

func TestValidateDefinition_Rejections(t *testing.T) {
	tests := []struct {
		name string
		def  *WorkflowDefinition
	}{
		{
			name: "nil definition",
			def:  nil,
		},
		{
			name: "empty workflow id",
			def: &WorkflowDefinition{
				Steps: []WorkflowStep{{ID: "a", Handler: noopHandler}},
			},
		},
		{
			name: "no steps",
			def:  &WorkflowDefinition{ID: "wf"},
		},
		{
			name: "empty step id",
			def: &WorkflowDefinition{
				ID:    "wf",
				Steps: []WorkflowStep{{ID: "", Handler: noopHandler}},
			},
		},
		{
			name: "duplicate step id",
			def: &WorkflowDefinition{
				ID: "wf",
				Steps: []WorkflowStep{
					{ID: "a", Handler: noopHandler},
					{ID: "a", Handler: noopHandler},
				},
			},
		},
		{
			name: "nil handler",
			def: &WorkflowDefinition{
				ID:    "wf",
				Steps: []WorkflowStep{{ID: "a"}},
			},
		},
		{
			name: "dangling dependency",
			def: &WorkflowDefinition{
				ID: "wf",
				Steps: []WorkflowStep{
					{ID: "a", Dependencies: []string{"ghost"}, Handler: noopHandler},
				},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateDefinition(tt.def)
			require.Error(t, err)
			assert.True(t, types.IsCode(err, types.ErrValidation))
		})
	}
}

func TestValidateDefinition_DirectCycle(t *testing.T) {
	t.Parallel()

	def := &WorkflowDefinition{
		ID: "wf",
		Steps: []WorkflowStep{
			{ID: "a", Dependencies: []string{"b"}, Handler: noopHandler},
			{ID: "b", Dependencies: []string{"a"}, Handler: noopHandler},
		},
	}

	err := validateDefinition(def)
	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrValidation))
	// The error names the cycle so a user can fix the definition.
	assert.Contains(t, err.Error(), "cycle")
	assert.Contains(t, err.Error(), "a")
	assert.Contains(t, err.Error(), "b")
}

func TestValidateDefinition_SelfDependency(t *testing.T) {
	def := &WorkflowDefinition{
		ID: "wf",
		Steps: []WorkflowStep{
			{ID: "a", Dependencies: []string{"a"}, Handler: noopHandler},
		},
	}

	err := validateDefinition(def)
	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrValidation))
}

func TestValidateDefinition_TransitiveCycle(t *testing.T) {
	t.Parallel()

	def := &WorkflowDefinition{
		ID: "wf",
		Steps: []WorkflowStep{
			{ID: "a", Dependencies: []string{"c"}, Handler: noopHandler},
			{ID: "b", Dependencies: []string{"a"}, Handler: noopHandler},
			{ID: "c", Dependencies: []string{"b"}, Handler: noopHandler},
		},
	}

	err := validateDefinition(def)
	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrValidation))
	assert.Contains(t, err.Error(), "cycle")
}

func TestValidateDefinition_DiamondIsNotACycle(t *testing.T) {
	t.Parallel()

	def := &WorkflowDefinition{
		ID: "wf",
		Steps: []WorkflowStep{
			{ID: "a", Handler: noopHandler},
			{ID: "b", Dependencies: []string{"a"}, Handler: noopHandler},
			{ID: "c", Dependencies: []string{"a"}, Handler: noopHandler},
			{ID: "d", Dependencies: []string{"b", "c"}, Handler: noopHandler},
		},
	}
	require.NoError(t, validateDefinition(def))
}
