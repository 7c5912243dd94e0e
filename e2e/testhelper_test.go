package e2e

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/stitchworks/api/internal/audit"
	"github.com/stitchworks/api/internal/auth"
	"github.com/stitchworks/api/internal/client"
	"github.com/stitchworks/api/internal/config"
	"github.com/stitchworks/api/internal/handler"
	"github.com/stitchworks/api/internal/middleware"
	"github.com/stitchworks/api/internal/model"
	"github.com/stitchworks/api/internal/policy"
	"github.com/stitchworks/api/internal/repository"
	"github.com/stitchworks/api/internal/service"
)

const testJWTSecret = "test-secret-for-e2e"

// testApp holds the app plus the in-memory stores so tests can seed state
// directly.
type testApp struct {
	app    *fiber.App
	orders *repository.MemoryOrderRepository
	steps  *repository.MemoryRoutingStepRepository
	tasks  *repository.MemoryTaskRepository
}

// setupApp builds a Fiber app wired like main.go but over in-memory stores,
// an unconfigured advisory client and no rate limiting backend.
func setupApp(t *testing.T) *testApp {
	t.Helper()

	validate := validator.New()

	orders := repository.NewMemoryOrderRepository()
	steps := repository.NewMemoryRoutingStepRepository()
	tasks := repository.NewMemoryTaskRepository()
	conflicts := repository.NewMemoryConflictRepository()
	mutationLog := repository.NewMemoryMutationLogRepository()
	templates := repository.NewMemoryTemplateRepository()
	if err := repository.SeedTemplates(context.Background(), templates); err != nil {
		t.Fatalf("failed to seed templates: %v", err)
	}
	recorder := audit.NewMemoryRecorder()

	advisoryClient := client.NewAdvisoryClient(&config.AdvisoryConfig{}) // unconfigured → permissive

	pipeline := policy.NewMethodPipeline()
	routingService := service.NewRoutingService(orders, steps, templates, advisoryClient, recorder)
	workflowService := service.NewWorkflowService(orders, tasks, pipeline, mutationLog, recorder)
	taskApplier := service.NewTaskApplier(tasks, workflowService, mutationLog, recorder)
	stepApplier := service.NewStepApplier(steps, mutationLog, recorder)
	registry := service.NewApplierRegistry(taskApplier, stepApplier)
	conflictService := service.NewConflictService(conflicts, registry, recorder)
	syncService := service.NewSyncService(registry, conflicts, conflictService, mutationLog)
	consistencyService := service.NewConsistencyService(nil)

	routingHandler := handler.NewRoutingHandler(routingService, validate)
	taskHandler := handler.NewTaskHandler(workflowService, validate)
	syncHandler := handler.NewSyncHandler(syncService, validate)
	conflictHandler := handler.NewConflictHandler(conflictService, validate)
	adminHandler := handler.NewAdminHandler(consistencyService)

	authMiddleware := middleware.NewAuthMiddleware(testJWTSecret)
	rateLimiter := middleware.NewRateLimiter(nil) // nil backend → no limiting

	app := fiber.New()

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api", authMiddleware.Authenticate())

	ordersGroup := api.Group("/orders")
	ordersGroup.Get("/:orderId", routingHandler.GetOrder)
	ordersGroup.Get("/:orderId/routing", routingHandler.ListSteps)
	ordersGroup.Post("/:orderId/routing/customize", rateLimiter.RoutingEditLimit(10000), routingHandler.Customize)
	ordersGroup.Post("/:orderId/routing/template", rateLimiter.RoutingEditLimit(10000), routingHandler.ApplyTemplate)
	ordersGroup.Get("/:orderId/tasks", taskHandler.ListByOrder)
	ordersGroup.Post("/:orderId/enter-production", taskHandler.EnterProduction)

	api.Post("/tasks/:taskId/action", taskHandler.Act)

	sync := api.Group("/sync")
	sync.Post("/upload", rateLimiter.SyncUploadLimit(10000), syncHandler.Upload)
	sync.Get("/download", syncHandler.Download)

	conflictsGroup := api.Group("/conflicts")
	conflictsGroup.Get("/", conflictHandler.List)
	conflictsGroup.Post("/resolve-bulk", conflictHandler.ResolveBulk)
	conflictsGroup.Post("/:conflictId/resolve", conflictHandler.Resolve)

	admin := api.Group("/admin")
	admin.Post("/consistency-check/:orderId", adminHandler.EnqueueConsistencyCheck)

	return &testApp{app: app, orders: orders, steps: steps, tasks: tasks}
}

// seedOrder stores an order ready for production work.
func (ta *testApp) seedOrder(t *testing.T, method model.Method) *model.Order {
	t.Helper()
	now := time.Now().UTC()
	order := &model.Order{
		ID:        uuid.New().String(),
		PONumber:  "PO-2001",
		Status:    model.OrderStatusInProduction,
		Method:    method,
		TotalQty:  300,
		DueDate:   now.AddDate(0, 0, 30),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := ta.orders.Save(context.Background(), order); err != nil {
		t.Fatalf("failed to seed order: %v", err)
	}
	return order
}

func (ta *testApp) seedTask(t *testing.T, orderID string, taskType model.TaskType, status model.TaskStatus) *model.Task {
	t.Helper()
	now := time.Now().UTC()
	task := &model.Task{
		ID:        uuid.New().String(),
		OrderID:   orderID,
		Type:      taskType,
		Status:    status,
		Quantity:  300,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := ta.tasks.Save(context.Background(), task); err != nil {
		t.Fatalf("failed to seed task: %v", err)
	}
	return task
}

func (ta *testApp) seedStartedStep(t *testing.T, orderID string) *model.RoutingStep {
	t.Helper()
	now := time.Now().UTC()
	step := &model.RoutingStep{
		ID:         uuid.New().String(),
		OrderID:    orderID,
		Name:       "cutting",
		Workcenter: "wc-1",
		Sequence:   1,
		Status:     model.StepStatusInProgress,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := ta.steps.Save(context.Background(), step); err != nil {
		t.Fatalf("failed to seed step: %v", err)
	}
	return step
}

// generateToken creates an HMAC JWT for test requests with the given role.
func generateToken(t *testing.T, role model.Role) string {
	t.Helper()
	claims := auth.Claims{
		UserID: "test-user-123",
		Email:  "test@example.com",
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer: "stitchworks-auth",
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(testJWTSecret))
	if err != nil {
		t.Fatalf("failed to generate test token: %v", err)
	}
	return signed
}

// doRequest performs an HTTP request against the test app.
func doRequest(app *fiber.App, method, path string, body string, headers map[string]string) (*http.Response, error) {
	var bodyReader io.Reader
	if body != "" {
		bodyReader = strings.NewReader(body)
	}

	req, err := http.NewRequest(method, path, bodyReader)
	if err != nil {
		return nil, err
	}

	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return app.Test(req, -1)
}

// doAuthRequest performs an authenticated request as a manager.
func doAuthRequest(t *testing.T, app *fiber.App, method, path, body string) (*http.Response, error) {
	t.Helper()
	return doRoleRequest(t, app, method, path, body, model.RoleManager)
}

func doRoleRequest(t *testing.T, app *fiber.App, method, path, body string, role model.Role) (*http.Response, error) {
	t.Helper()
	token := generateToken(t, role)
	return doRequest(app, method, path, body, map[string]string{
		"Authorization": "Bearer " + token,
	})
}

// readBody reads and returns the response body as a string.
func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response body: %v", err)
	}
	return string(b)
}

// parseJSON parses the response body into a map.
func parseJSON(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	body := readBody(t, resp)
	var result map[string]interface{}
	if err := json.Unmarshal([]byte(body), &result); err != nil {
		t.Fatalf("failed to parse JSON: %v\nbody: %s", err, body)
	}
	return result
}

// assertStatus checks the HTTP status code.
func assertStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Errorf("expected status %d, got %d", expected, resp.StatusCode)
	}
}

// errorCode extracts the machine code from an error envelope.
func errorCode(t *testing.T, resp *http.Response) string {
	t.Helper()
	result := parseJSON(t, resp)
	errObj, ok := result["error"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected error envelope, got: %v", result)
	}
	code, _ := errObj["code"].(string)
	return code
}
