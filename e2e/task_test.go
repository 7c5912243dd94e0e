package e2e

import (
	"net/http"
	"testing"

	"github.com/stitchworks/api/internal/model"
)

func TestTaskAction_StartAndComplete(t *testing.T) {
	ta := setupApp(t)
	order := ta.seedOrder(t, model.MethodSilkscreen)
	task := ta.seedTask(t, order.ID, model.TaskTypeCutting, model.TaskStatusPending)

	resp, err := doAuthRequest(t, ta.app, http.MethodPost, "/api/tasks/"+task.ID+"/action", `{"action": "start"}`)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusOK)

	result := parseJSON(t, resp)
	taskObj, ok := result["task"].(map[string]interface{})
	if !ok {
		t.Fatal("expected 'task' object")
	}
	if taskObj["status"] != string(model.TaskStatusInProgress) {
		t.Errorf("expected IN_PROGRESS, got %v", taskObj["status"])
	}

	resp, err = doAuthRequest(t, ta.app, http.MethodPost, "/api/tasks/"+task.ID+"/action", `{"action": "complete"}`)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusOK)
}

func TestTaskAction_InvalidTransition(t *testing.T) {
	ta := setupApp(t)
	order := ta.seedOrder(t, model.MethodSilkscreen)
	task := ta.seedTask(t, order.ID, model.TaskTypeCutting, model.TaskStatusPending)

	resp, err := doAuthRequest(t, ta.app, http.MethodPost, "/api/tasks/"+task.ID+"/action", `{"action": "complete"}`)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusConflict)
	if code := errorCode(t, resp); code != "INVALID_TRANSITION" {
		t.Errorf("expected INVALID_TRANSITION, got %s", code)
	}
}

func TestTaskAction_RejectNeedsReason(t *testing.T) {
	ta := setupApp(t)
	order := ta.seedOrder(t, model.MethodSilkscreen)
	task := ta.seedTask(t, order.ID, model.TaskTypeCutting, model.TaskStatusInProgress)

	resp, err := doAuthRequest(t, ta.app, http.MethodPost, "/api/tasks/"+task.ID+"/action", `{"action": "reject"}`)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusBadRequest)
	if code := errorCode(t, resp); code != "MISSING_REASON" {
		t.Errorf("expected MISSING_REASON, got %s", code)
	}

	resp, err = doAuthRequest(t, ta.app, http.MethodPost, "/api/tasks/"+task.ID+"/action",
		`{"action": "reject", "reason": "misprint on front panel"}`)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusOK)
}

func TestTaskAction_UnknownAction(t *testing.T) {
	ta := setupApp(t)
	order := ta.seedOrder(t, model.MethodSilkscreen)
	task := ta.seedTask(t, order.ID, model.TaskTypeCutting, model.TaskStatusPending)

	resp, err := doAuthRequest(t, ta.app, http.MethodPost, "/api/tasks/"+task.ID+"/action", `{"action": "teleport"}`)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusBadRequest)
}

func TestTaskAction_NotFound(t *testing.T) {
	ta := setupApp(t)

	resp, err := doAuthRequest(t, ta.app, http.MethodPost, "/api/tasks/missing/action", `{"action": "start"}`)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusNotFound)
}

func TestEnterProductionAndListTasks(t *testing.T) {
	ta := setupApp(t)
	order := ta.seedOrder(t, model.MethodDTF)

	resp, err := doAuthRequest(t, ta.app, http.MethodPost, "/api/orders/"+order.ID+"/enter-production", "")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusCreated)

	resp, err = doAuthRequest(t, ta.app, http.MethodGet, "/api/orders/"+order.ID+"/tasks", "")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusOK)

	result := parseJSON(t, resp)
	tasks, ok := result["tasks"].([]interface{})
	if !ok {
		t.Fatal("expected 'tasks' array")
	}
	if len(tasks) != 5 {
		t.Errorf("expected 5 pipeline tasks, got %d", len(tasks))
	}
}

func TestQCCompletionProjectsOrderStatus(t *testing.T) {
	ta := setupApp(t)
	order := ta.seedOrder(t, model.MethodSilkscreen)
	qc := ta.seedTask(t, order.ID, model.TaskTypeQualityControl, model.TaskStatusInProgress)

	resp, err := doAuthRequest(t, ta.app, http.MethodPost, "/api/tasks/"+qc.ID+"/action", `{"action": "complete"}`)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusOK)

	result := parseJSON(t, resp)
	if result["order_status"] != string(model.OrderStatusQCPassed) {
		t.Errorf("expected QC_PASSED, got %v", result["order_status"])
	}
}
