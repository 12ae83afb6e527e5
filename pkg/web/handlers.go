package web

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-proctor/pkg/counter"
	"github.com/teslashibe/go-proctor/pkg/hub"
	"github.com/teslashibe/go-proctor/pkg/monitor"
	"github.com/teslashibe/go-proctor/pkg/proctor"
	"github.com/teslashibe/go-proctor/pkg/protocol"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

func (s *Server) fail(c *fiber.Ctx, status int, err error) error {
	return c.Status(status).JSON(ErrorResponse{
		Error: err.Error(),
		Kind:  string(monitor.KindOf(err)),
	})
}

// statusFor maps a lifecycle error to an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, monitor.ErrUnknownModality):
		return fiber.StatusNotFound
	case errors.Is(err, monitor.ErrDeviceUnavailable):
		return fiber.StatusServiceUnavailable
	}
	return fiber.StatusInternalServerError
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "ok",
		"clients": s.cfg.Hub.ClientCount(),
	})
}

// handleBeginAttempt starts monitoring for a fresh quiz attempt.
func (s *Server) handleBeginAttempt(c *fiber.Ctx) error {
	res, err := s.cfg.Proctor.BeginAttempt(c.UserContext())
	if err != nil {
		return s.fail(c, fiber.StatusInternalServerError, err)
	}
	return c.JSON(res)
}

// handleEndAttempt stops monitoring on quiz completion or logout.
func (s *Server) handleEndAttempt(c *fiber.Ctx) error {
	if err := s.cfg.Proctor.EndAttempt(); err != nil {
		return s.fail(c, fiber.StatusInternalServerError, err)
	}
	return s.handleStatus(c)
}

// handleMonitorAction starts, stops or restarts one monitor.
func (s *Server) handleMonitorAction(c *fiber.Ctx) error {
	modality, ok := proctor.ParseModality(c.Params("modality"))
	if !ok {
		return s.fail(c, fiber.StatusNotFound, monitor.ErrUnknownModality)
	}
	ctrl, err := s.cfg.Proctor.Controller(modality)
	if err != nil {
		return s.fail(c, statusFor(err), err)
	}

	switch c.Params("action") {
	case "start":
		err = ctrl.Start(c.UserContext())
	case "stop":
		err = ctrl.Stop()
	case "restart":
		err = ctrl.Restart(c.UserContext())
	default:
		return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{Error: "unknown action " + c.Params("action")})
	}
	if err != nil {
		return s.fail(c, statusFor(err), err)
	}

	return c.JSON(monitor.MonitorStatus{
		Modality: modality,
		State:    ctrl.State(),
		Running:  ctrl.IsRunning(),
		Session:  ctrl.Session(),
	})
}

func (s *Server) handleStatus(c *fiber.Ctx) error {
	st, err := s.cfg.Proctor.Status(c.UserContext())
	if err != nil {
		return s.fail(c, fiber.StatusInternalServerError, err)
	}
	return c.JSON(st)
}

// handleCounter reports the suspicion count and percent.
func (s *Server) handleCounter(c *fiber.Ctx) error {
	total := s.cfg.Total
	if q := c.Query("total"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil || n < 0 {
			return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "total must be a non-negative integer"})
		}
		total = n
	}

	n, err := s.cfg.Proctor.Counter().Read(c.UserContext())
	if err != nil {
		return s.fail(c, fiber.StatusInternalServerError, err)
	}
	return c.JSON(protocol.CounterData{
		Count:   n,
		Total:   total,
		Percent: counter.Percent(n, total),
	})
}

func (s *Server) handleResetCounter(c *fiber.Ctx) error {
	if err := s.cfg.Proctor.ResetCounter(c.UserContext()); err != nil {
		return s.fail(c, fiber.StatusInternalServerError, err)
	}
	return c.JSON(protocol.CounterData{Count: 0})
}

// handleEvents lists recent events from the hub's buffer, or from the
// ledger with ?source=ledger.
func (s *Server) handleEvents(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 100)

	if c.Query("source") == "ledger" {
		if s.cfg.Ledger == nil {
			return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{Error: "no event ledger configured"})
		}
		events, err := s.cfg.Ledger.Recent(c.UserContext(), limit)
		if err != nil {
			return s.fail(c, fiber.StatusInternalServerError, err)
		}
		return c.JSON(events)
	}

	events := s.cfg.Hub.Recent(limit)
	if events == nil {
		events = []proctor.Event{}
	}
	return c.JSON(events)
}

// handleEventsWS streams every recorded event.
func (s *Server) handleEventsWS(conn *websocket.Conn) {
	hub.NewClient(s.cfg.Hub, conn, nil).Run()
}
