package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/google/uuid"

	"bobbin/internal/api"
	"bobbin/internal/logging"
	"bobbin/internal/queue"
	"bobbin/internal/services"
	"bobbin/internal/workflow"
)

// backend is the daemon surface the HTTP API drives.
type backend interface {
	Submit(ctx context.Context, locator string, opts workflow.SubmitOptions) (workflow.SubmitReport, error)
	Preprocess(ctx context.Context, locator string, opts workflow.SubmitOptions) (workflow.SubmitReport, error)
	StartRun() error
	Status(ctx context.Context) Status
}

type apiServer struct {
	bind     string
	logger   *slog.Logger
	backend  backend
	queueSvc *api.QueueService
	app      *fiber.App

	listener net.Listener
	stopOnce sync.Once
}

type retryRequest struct {
	IDs []int64 `json:"ids"`
}

func newAPIServer(bind, token string, b backend, queueSvc *api.QueueService, logger *slog.Logger) *apiServer {
	srv := &apiServer{
		bind:     strings.TrimSpace(bind),
		logger:   logging.NewComponentLogger(logger, "api-server"),
		backend:  b,
		queueSvc: queueSvc,
	}
	app := fiber.New(fiber.Config{
		AppName:               "bobbin",
		DisableStartupMessage: true,
		ReadTimeout:           15 * time.Second,
		WriteTimeout:          30 * time.Second,
		IdleTimeout:           60 * time.Second,
		ErrorHandler:          srv.handleError,
	})
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
	}))
	app.Use(srv.requestLogger)

	routes := app.Group("/api", authMiddleware(token))
	routes.Get("/status", srv.handleStatus)
	routes.Get("/queue", srv.handleQueue)
	routes.Post("/queue/retry", srv.handleRetry)
	routes.Post("/queue/clear", srv.handleClear)
	routes.Get("/queue/:id", srv.handleQueueItem)
	routes.Delete("/queue/:id", srv.handleRemove)
	routes.Post("/submit", srv.handleSubmit)
	routes.Post("/preprocess", srv.handlePreprocess)
	routes.Post("/run", srv.handleRun)

	srv.app = app
	return srv
}

func (s *apiServer) start(ctx context.Context) error {
	if s == nil || s.bind == "" {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.app.Listener(listener); err != nil {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		s.stop()
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s == nil || s.app == nil || s.listener == nil {
		return
	}
	s.stopOnce.Do(func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.app.ShutdownWithContext(shutdownCtx); err != nil {
			s.logger.Warn("api server shutdown failed", logging.Error(err))
		}
	})
}

func (s *apiServer) requestLogger(c *fiber.Ctx) error {
	requestID := c.Get(fiber.HeaderXRequestID)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Set(fiber.HeaderXRequestID, requestID)
	c.SetUserContext(services.WithRequestID(c.UserContext(), requestID))

	started := time.Now()
	err := c.Next()
	status := c.Response().StatusCode()
	if err != nil {
		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			status = fiberErr.Code
		}
	}
	s.logger.Debug("api request",
		logging.String("method", c.Method()),
		logging.String("path", c.Path()),
		logging.Int("status", status),
		logging.Duration("elapsed", time.Since(started)),
		logging.String(logging.FieldCorrelationID, requestID),
	)
	return err
}

func (s *apiServer) handleStatus(c *fiber.Ctx) error {
	status := s.backend.Status(c.UserContext())
	return c.JSON(api.DaemonStatus{
		Running:      status.Running,
		RunActive:    status.RunActive,
		PID:          status.PID,
		QueueDBPath:  status.QueueDBPath,
		LockFilePath: status.LockFilePath,
		Workflow:     api.FromStatusSummary(status.Workflow),
		Dependencies: api.FromDependencies(status.Dependencies),
	})
}

func (s *apiServer) handleQueue(c *fiber.Ctx) error {
	if s.queueSvc == nil {
		return c.JSON(api.QueueListResponse{Items: []api.QueueItem{}})
	}
	var statuses []queue.Status
	for _, value := range strings.Split(c.Query("status"), ",") {
		if strings.TrimSpace(value) == "" {
			continue
		}
		status, ok := queue.ParseStatus(value)
		if !ok {
			return s.writeError(c, fiber.StatusBadRequest, fmt.Sprintf("unknown status %q", value))
		}
		statuses = append(statuses, status)
	}
	items, err := s.queueSvc.List(c.UserContext(), statuses...)
	if err != nil {
		return err
	}
	if items == nil {
		items = []api.QueueItem{}
	}
	return c.JSON(api.QueueListResponse{Items: items})
}

func (s *apiServer) handleQueueItem(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return s.writeError(c, fiber.StatusBadRequest, "invalid queue item id")
	}
	item, err := s.queueSvc.Describe(c.UserContext(), id)
	if err != nil {
		return err
	}
	if item == nil {
		return s.writeError(c, fiber.StatusNotFound, "queue item not found")
	}
	return c.JSON(api.QueueItemResponse{Item: *item})
}

func (s *apiServer) handleRemove(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return s.writeError(c, fiber.StatusBadRequest, "invalid queue item id")
	}
	if s.queueSvc == nil {
		return s.writeError(c, fiber.StatusNotFound, "queue item not found")
	}
	result, err := api.RemoveItemsByID(c.UserContext(), s.queueSvc, []int64{id})
	if err != nil {
		return err
	}
	switch result.Items[0].Outcome {
	case api.OutcomeNotFound:
		return s.writeError(c, fiber.StatusNotFound, "queue item not found")
	case api.OutcomeActive:
		return s.writeError(c, fiber.StatusConflict, "queue item is being processed")
	}
	return c.JSON(result)
}

func (s *apiServer) handleRetry(c *fiber.Ctx) error {
	var req retryRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return s.writeError(c, fiber.StatusBadRequest, "invalid request body")
		}
	}
	if s.queueSvc == nil {
		return s.writeError(c, fiber.StatusServiceUnavailable, "queue store unavailable")
	}
	if len(req.IDs) == 0 {
		updated, err := s.queueSvc.Retry(c.UserContext(), nil)
		if err != nil {
			return err
		}
		return c.JSON(api.BatchResult{Changed: updated, Items: []api.ItemResult{}})
	}
	result, err := api.RetryFailedItemsByID(c.UserContext(), s.queueSvc, req.IDs)
	if err != nil {
		return err
	}
	return c.JSON(result)
}

func (s *apiServer) handleClear(c *fiber.Ctx) error {
	if s.queueSvc == nil {
		return s.writeError(c, fiber.StatusServiceUnavailable, "queue store unavailable")
	}
	removed, err := s.queueSvc.Clear(c.UserContext(), c.Query("scope", api.ClearAll))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"removedCount": removed})
}

func (s *apiServer) handleSubmit(c *fiber.Ctx) error {
	return s.submit(c, s.backend.Submit)
}

func (s *apiServer) handlePreprocess(c *fiber.Ctx) error {
	return s.submit(c, s.backend.Preprocess)
}

type submitFunc func(ctx context.Context, locator string, opts workflow.SubmitOptions) (workflow.SubmitReport, error)

func (s *apiServer) submit(c *fiber.Ctx, fn submitFunc) error {
	var req api.SubmitRequest
	if err := c.BodyParser(&req); err != nil {
		return s.writeError(c, fiber.StatusBadRequest, "invalid request body")
	}
	locator, opts, err := req.Options()
	if err != nil {
		return err
	}
	report, err := fn(c.UserContext(), locator, opts)
	if err != nil {
		return err
	}
	status := fiber.StatusOK
	if len(report.Added) > 0 {
		status = fiber.StatusCreated
	}
	return c.Status(status).JSON(api.FromSubmitReport(report))
}

func (s *apiServer) handleRun(c *fiber.Ctx) error {
	if err := s.backend.StartRun(); err != nil {
		return err
	}
	return c.Status(fiber.StatusAccepted).JSON(api.RunResponse{Started: true, Message: "run started"})
}

// handleError maps handler errors onto status codes by their marker.
func (s *apiServer) handleError(c *fiber.Ctx, err error) error {
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return s.writeError(c, fiberErr.Code, fiberErr.Message)
	}
	code := statusFor(err)
	if code >= fiber.StatusInternalServerError {
		attrs := append([]logging.Attr{logging.String("path", c.Path())}, logging.Err(err)...)
		logging.ErrorWithContext(logging.WithContext(c.UserContext(), s.logger), "api request failed", "api_request_failed", attrs...)
	}
	return c.Status(code).JSON(api.ErrorResponse{Error: err.Error(), Code: services.FailureKind(err)})
}

func statusFor(err error) int {
	var dup *queue.DuplicateSourceError
	switch {
	case errors.Is(err, workflow.ErrRunInProgress), errors.As(err, &dup):
		return fiber.StatusConflict
	case errors.Is(err, services.ErrValidation), errors.Is(err, services.ErrInvalidSource):
		return fiber.StatusBadRequest
	case errors.Is(err, services.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, services.ErrConfiguration), errors.Is(err, errDaemonStopped):
		return fiber.StatusServiceUnavailable
	case errors.Is(err, services.ErrTransient), errors.Is(err, services.ErrExternalTool), errors.Is(err, services.ErrTimeout):
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}

func (s *apiServer) writeError(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(api.ErrorResponse{Error: message})
}

func parseID(c *fiber.Ctx) (int64, error) {
	return strconv.ParseInt(c.Params("id"), 10, 64)
}
