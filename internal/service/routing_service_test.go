package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stitchworks/api/internal/apperr"
	"github.com/stitchworks/api/internal/model"
)

func TestCustomizeReplacesPlannedSteps(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.seedOrder(t, model.MethodSilkscreen)
	f.seedStep(t, order.ID, "old-cutting", 1, model.StepStatusPlanned)
	f.seedStep(t, order.ID, "old-sewing", 2, model.StepStatusPlanned, "old-cutting")

	resp, err := f.routing.Customize(ctx, manager, order.ID, []model.RoutingStepRequest{
		stepReq("cutting", "wc-1", 1),
		stepReq("printing", "wc-2", 2, "cutting"),
		stepReq("sewing", "wc-3", 3, "printing"),
	})
	require.NoError(t, err)
	require.Len(t, resp.Steps, 3)
	require.NotNil(t, resp.Advisory)

	stored, err := f.steps.ListByOrder(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, stored, 3)
	for _, s := range stored {
		assert.Equal(t, model.StepStatusPlanned, s.Status)
		assert.NotContains(t, []string{"old-cutting", "old-sewing"}, s.Name)
	}

	// Every replaced and removed step leaves an audit entry.
	assert.GreaterOrEqual(t, len(f.recorder.Entries()), 3)
}

func TestCustomizeBlockedWhileStepsStarted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.seedOrder(t, model.MethodSilkscreen)
	f.seedStep(t, order.ID, "cutting", 1, model.StepStatusInProgress)
	f.seedStep(t, order.ID, "sewing", 2, model.StepStatusPlanned, "cutting")

	_, err := f.routing.Customize(ctx, manager, order.ID, []model.RoutingStepRequest{
		stepReq("new-cutting", "wc-1", 1),
	})
	require.Error(t, err)
	ae := apperr.As(err)
	require.NotNil(t, ae)
	assert.Equal(t, apperr.CodeStepsInProgress, ae.Code)

	// Steps untouched.
	stored, err := f.steps.ListByOrder(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, stored, 2)
	assert.Equal(t, "cutting", stored[0].Name)
}

func TestCustomizeRejectsCycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.seedOrder(t, model.MethodSilkscreen)
	existing := f.seedStep(t, order.ID, "cutting", 1, model.StepStatusPlanned)

	_, err := f.routing.Customize(ctx, manager, order.ID, []model.RoutingStepRequest{
		stepReq("a", "wc-1", 1, "b"),
		stepReq("b", "wc-2", 2, "a"),
	})
	require.Error(t, err)
	ae := apperr.As(err)
	require.NotNil(t, ae)
	assert.Equal(t, apperr.CodeCycleDetected, ae.Code)

	stored, err := f.steps.ListByOrder(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, existing.ID, stored[0].ID)
}

func TestCustomizeAdvisoryBlocked(t *testing.T) {
	f := newFixture(t)
	f.advisory.result = &model.AdvisoryResult{
		Blocked: true,
		Risk:    "high",
		Issues:  []string{"sewing before cutting is not feasible"},
	}
	order := f.seedOrder(t, model.MethodSilkscreen)

	_, err := f.routing.Customize(context.Background(), manager, order.ID, []model.RoutingStepRequest{
		stepReq("sewing", "wc-1", 1),
	})
	require.Error(t, err)
	ae := apperr.As(err)
	require.NotNil(t, ae)
	assert.Equal(t, apperr.CodeAdvisoryBlocked, ae.Code)
}

func TestCustomizeAdvisoryUnavailable(t *testing.T) {
	f := newFixture(t)
	f.advisory.err = errors.New("connection refused")
	order := f.seedOrder(t, model.MethodSilkscreen)

	_, err := f.routing.Customize(context.Background(), manager, order.ID, []model.RoutingStepRequest{
		stepReq("cutting", "wc-1", 1),
	})
	require.Error(t, err)
	ae := apperr.As(err)
	require.NotNil(t, ae)
	assert.Equal(t, apperr.CodeAdvisoryUnavailable, ae.Code)
}

func TestCustomizeForbiddenForOperator(t *testing.T) {
	f := newFixture(t)
	order := f.seedOrder(t, model.MethodSilkscreen)

	_, err := f.routing.Customize(context.Background(), operator, order.ID, []model.RoutingStepRequest{
		stepReq("cutting", "wc-1", 1),
	})
	require.Error(t, err)
	ae := apperr.As(err)
	require.NotNil(t, ae)
	assert.Equal(t, apperr.CodeForbidden, ae.Code)
}

func TestCustomizeUnknownOrder(t *testing.T) {
	f := newFixture(t)

	_, err := f.routing.Customize(context.Background(), manager, "missing", []model.RoutingStepRequest{
		stepReq("cutting", "wc-1", 1),
	})
	require.Error(t, err)
	ae := apperr.As(err)
	require.NotNil(t, ae)
	assert.Equal(t, apperr.CodeOrderNotFound, ae.Code)
}

func TestApplyTemplate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.seedOrder(t, model.MethodSilkscreen)

	resp, err := f.routing.ApplyTemplate(ctx, manager, order.ID, "silkscreen-standard")
	require.NoError(t, err)
	require.NotEmpty(t, resp.Steps)

	for i, s := range resp.Steps {
		assert.Equal(t, i+1, s.Sequence)
		require.NotNil(t, s.PlannedStart, s.Name)
		require.NotNil(t, s.PlannedEnd, s.Name)
		assert.True(t, s.PlannedStart.Before(order.DueDate), s.Name)
		assert.False(t, s.PlannedEnd.After(order.DueDate), s.Name)
	}

	// Applying again replaces the planned set wholesale.
	again, err := f.routing.ApplyTemplate(ctx, manager, order.ID, "silkscreen-standard")
	require.NoError(t, err)
	assert.Len(t, again.Steps, len(resp.Steps))

	stored, err := f.steps.ListByOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Len(t, stored, len(resp.Steps))
}

func TestApplyTemplateUnknownKey(t *testing.T) {
	f := newFixture(t)
	order := f.seedOrder(t, model.MethodSilkscreen)

	_, err := f.routing.ApplyTemplate(context.Background(), manager, order.ID, "no-such-template")
	require.Error(t, err)
	ae := apperr.As(err)
	require.NotNil(t, ae)
	assert.Equal(t, apperr.CodeTemplateNotFound, ae.Code)
}
