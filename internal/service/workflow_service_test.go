package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stitchworks/api/internal/apperr"
	"github.com/stitchworks/api/internal/model"
)

func act(action model.TaskAction) *model.TaskActionRequest {
	return &model.TaskActionRequest{Action: action}
}

func TestEnterProductionCreatesPipeline(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.seedOrder(t, model.MethodSilkscreen)
	order.Status = model.OrderStatusDesignApproval
	require.NoError(t, f.orders.Save(ctx, order))

	tasks, err := f.workflow.EnterProduction(ctx, manager, order.ID)
	require.NoError(t, err)
	require.Len(t, tasks, 5)
	for _, task := range tasks {
		assert.Equal(t, model.TaskStatusPending, task.Status)
		assert.Equal(t, order.TotalQty, task.Quantity)
	}

	stored, err := f.orders.Get(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusInProduction, stored.Status)

	// A second call must not duplicate the pipeline.
	_, err = f.workflow.EnterProduction(ctx, manager, order.ID)
	require.Error(t, err)
	ae := apperr.As(err)
	require.NotNil(t, ae)
	assert.Equal(t, apperr.CodeInvalidTransition, ae.Code)
}

func TestActStartCompleteFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.seedOrder(t, model.MethodSilkscreen)
	task := f.seedTask(t, order.ID, model.TaskTypeCutting, model.TaskStatusPending, "")

	resp, err := f.workflow.Act(ctx, manager, task.ID, act(model.TaskActionStart))
	require.NoError(t, err)
	assert.Equal(t, model.TaskStatusInProgress, resp.Task.Status)
	require.NotNil(t, resp.Task.StartedAt)

	resp, err = f.workflow.Act(ctx, manager, task.ID, act(model.TaskActionComplete))
	require.NoError(t, err)
	assert.Equal(t, model.TaskStatusCompleted, resp.Task.Status)
	require.NotNil(t, resp.Task.CompletedAt)
}

func TestActInvalidTransitions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.seedOrder(t, model.MethodSilkscreen)

	tests := []struct {
		name   string
		status model.TaskStatus
		action model.TaskAction
	}{
		{"complete from pending", model.TaskStatusPending, model.TaskActionComplete},
		{"start from in_progress", model.TaskStatusInProgress, model.TaskActionStart},
		{"start from completed", model.TaskStatusCompleted, model.TaskActionStart},
		{"reject from pending", model.TaskStatusPending, model.TaskActionReject},
		{"complete from rejected", model.TaskStatusRejected, model.TaskActionComplete},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			task := f.seedTask(t, order.ID, model.TaskTypeCutting, tt.status, "")
			req := act(tt.action)
			req.Reason = "defective fabric"

			_, err := f.workflow.Act(ctx, manager, task.ID, req)
			require.Error(t, err)
			ae := apperr.As(err)
			require.NotNil(t, ae)
			assert.Equal(t, apperr.CodeInvalidTransition, ae.Code)

			stored, getErr := f.tasks.Get(ctx, task.ID)
			require.NoError(t, getErr)
			assert.Equal(t, tt.status, stored.Status)
		})
	}
}

func TestActRejectRequiresReason(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.seedOrder(t, model.MethodSilkscreen)
	task := f.seedTask(t, order.ID, model.TaskTypeCutting, model.TaskStatusInProgress, "")

	_, err := f.workflow.Act(ctx, manager, task.ID, act(model.TaskActionReject))
	require.Error(t, err)
	ae := apperr.As(err)
	require.NotNil(t, ae)
	assert.Equal(t, apperr.CodeMissingReason, ae.Code)

	req := act(model.TaskActionReject)
	req.Reason = "stitch density out of tolerance"
	resp, err := f.workflow.Act(ctx, manager, task.ID, req)
	require.NoError(t, err)
	assert.Equal(t, model.TaskStatusRejected, resp.Task.Status)
	assert.Equal(t, req.Reason, resp.Task.RejectReason)
	require.NotNil(t, resp.Task.RejectedAt)
}

func TestActHoldFromAnyStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.seedOrder(t, model.MethodSilkscreen)

	for _, status := range []model.TaskStatus{
		model.TaskStatusPending, model.TaskStatusInProgress, model.TaskStatusCompleted,
	} {
		task := f.seedTask(t, order.ID, model.TaskTypeCutting, status, "")
		resp, err := f.workflow.Act(ctx, manager, task.ID, act(model.TaskActionHold))
		require.NoError(t, err, string(status))
		assert.Equal(t, model.TaskStatusOnHold, resp.Task.Status)
	}
}

func TestActReassignResetsTask(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.seedOrder(t, model.MethodSilkscreen)
	task := f.seedTask(t, order.ID, model.TaskTypeCutting, model.TaskStatusInProgress, "u-old")
	task.RejectReason = "was rejected once"
	require.NoError(t, f.tasks.Save(ctx, task))

	_, err := f.workflow.Act(ctx, manager, task.ID, act(model.TaskActionReassign))
	require.Error(t, err)
	ae := apperr.As(err)
	require.NotNil(t, ae)
	assert.Equal(t, apperr.CodeMissingAssignee, ae.Code)

	req := act(model.TaskActionReassign)
	req.AssigneeID = "u-new"
	resp, err := f.workflow.Act(ctx, manager, task.ID, req)
	require.NoError(t, err)
	assert.Equal(t, model.TaskStatusPending, resp.Task.Status)
	assert.Equal(t, "u-new", resp.Task.AssigneeID)
	assert.Nil(t, resp.Task.StartedAt)
	assert.Nil(t, resp.Task.CompletedAt)
	assert.Nil(t, resp.Task.ActivatedAt)
	assert.Empty(t, resp.Task.RejectReason)
}

func TestActAssigneeAuthorization(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.seedOrder(t, model.MethodSilkscreen)
	task := f.seedTask(t, order.ID, model.TaskTypeCutting, model.TaskStatusPending, operator.ID)

	// A different operator may not start someone else's task.
	other := operator
	other.ID = "u-other"
	_, err := f.workflow.Act(ctx, other, task.ID, act(model.TaskActionStart))
	require.Error(t, err)
	ae := apperr.As(err)
	require.NotNil(t, ae)
	assert.Equal(t, apperr.CodeForbidden, ae.Code)

	// The assignee may.
	_, err = f.workflow.Act(ctx, operator, task.ID, act(model.TaskActionStart))
	require.NoError(t, err)

	// An operator may not reassign, even their own task.
	req := act(model.TaskActionReassign)
	req.AssigneeID = "u-other"
	_, err = f.workflow.Act(ctx, operator, task.ID, req)
	require.Error(t, err)
}

func TestPipelineActivationOnComplete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.seedOrder(t, model.MethodSilkscreen)
	order.Status = model.OrderStatusDesignApproval
	require.NoError(t, f.orders.Save(ctx, order))
	_, err := f.workflow.EnterProduction(ctx, manager, order.ID)
	require.NoError(t, err)

	cutting := f.taskByType(t, order.ID, model.TaskTypeCutting)
	_, err = f.workflow.Act(ctx, manager, cutting.ID, act(model.TaskActionStart))
	require.NoError(t, err)
	resp, err := f.workflow.Act(ctx, manager, cutting.ID, act(model.TaskActionComplete))
	require.NoError(t, err)

	printing := f.taskByType(t, order.ID, model.TaskTypePrinting)
	require.NotNil(t, printing.ActivatedAt)
	assert.Equal(t, []string{printing.ID}, resp.ActivatedTasks)
	assert.Equal(t, model.TaskStatusPending, printing.Status)

	// Downstream stages stay dormant.
	sewing := f.taskByType(t, order.ID, model.TaskTypeSewing)
	assert.Nil(t, sewing.ActivatedAt)
}

func TestPipelineANDJoinActivation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.seedOrder(t, model.MethodDTF)
	order.Status = model.OrderStatusDesignApproval
	require.NoError(t, f.orders.Save(ctx, order))
	_, err := f.workflow.EnterProduction(ctx, manager, order.ID)
	require.NoError(t, err)

	complete := func(taskType model.TaskType) *model.TaskActionResponse {
		task := f.taskByType(t, order.ID, taskType)
		_, err := f.workflow.Act(ctx, manager, task.ID, act(model.TaskActionStart))
		require.NoError(t, err)
		resp, err := f.workflow.Act(ctx, manager, task.ID, act(model.TaskActionComplete))
		require.NoError(t, err)
		return resp
	}

	// Cutting alone does not release sewing: printing is also a prerequisite.
	resp := complete(model.TaskTypeCutting)
	assert.Empty(t, resp.ActivatedTasks)
	assert.Nil(t, f.taskByType(t, order.ID, model.TaskTypeSewing).ActivatedAt)

	resp = complete(model.TaskTypePrinting)
	sewing := f.taskByType(t, order.ID, model.TaskTypeSewing)
	require.NotNil(t, sewing.ActivatedAt)
	assert.Equal(t, []string{sewing.ID}, resp.ActivatedTasks)
}

func TestOrderStatusProjection(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.seedOrder(t, model.MethodSilkscreen)

	qc := f.seedTask(t, order.ID, model.TaskTypeQualityControl, model.TaskStatusInProgress, "")
	resp, err := f.workflow.Act(ctx, manager, qc.ID, act(model.TaskActionComplete))
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusQCPassed, resp.OrderStatus)

	finishing := f.seedTask(t, order.ID, model.TaskTypeFinishing, model.TaskStatusInProgress, "")
	resp, err = f.workflow.Act(ctx, manager, finishing.ID, act(model.TaskActionComplete))
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusReadyForDelivery, resp.OrderStatus)
}

func TestOrderStatusProjectionQCReject(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.seedOrder(t, model.MethodSilkscreen)
	qc := f.seedTask(t, order.ID, model.TaskTypeQualityControl, model.TaskStatusInProgress, "")

	req := act(model.TaskActionReject)
	req.Reason = "seam failure on sample"
	resp, err := f.workflow.Act(ctx, manager, qc.ID, req)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusQCFailed, resp.OrderStatus)

	stored, err := f.orders.Get(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusQCFailed, stored.Status)
}

func TestNonProjectingCompletionLeavesOrderStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.seedOrder(t, model.MethodSilkscreen)
	cutting := f.seedTask(t, order.ID, model.TaskTypeCutting, model.TaskStatusInProgress, "")

	resp, err := f.workflow.Act(ctx, manager, cutting.ID, act(model.TaskActionComplete))
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusInProduction, resp.OrderStatus)
}

func TestRecomputeOrderStatusDetectsDrift(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.seedOrder(t, model.MethodSilkscreen)
	f.seedTask(t, order.ID, model.TaskTypeFinishing, model.TaskStatusCompleted, "")

	// The stored status was never re-projected after the finishing task
	// completed, so stored and derived disagree.
	stored, derived, err := f.workflow.RecomputeOrderStatus(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusInProduction, stored)
	assert.Equal(t, model.OrderStatusReadyForDelivery, derived)
}

func TestRecomputeOrderStatusConsistent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.seedOrder(t, model.MethodSilkscreen)
	qc := f.seedTask(t, order.ID, model.TaskTypeQualityControl, model.TaskStatusInProgress, "")

	_, err := f.workflow.Act(ctx, manager, qc.ID, act(model.TaskActionComplete))
	require.NoError(t, err)

	stored, derived, err := f.workflow.RecomputeOrderStatus(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, stored, derived)
	assert.Equal(t, model.OrderStatusQCPassed, derived)
}
