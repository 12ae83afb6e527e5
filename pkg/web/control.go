package web

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	"github.com/teslashibe/go-proctor/pkg/counter"
	"github.com/teslashibe/go-proctor/pkg/hub"
	"github.com/teslashibe/go-proctor/pkg/monitor"
	"github.com/teslashibe/go-proctor/pkg/proctor"
	"github.com/teslashibe/go-proctor/pkg/protocol"
)

// controlTimeout bounds one control command, including device opens.
const controlTimeout = 30 * time.Second

// controlWS accepts protocol messages from the host and replies on the
// same socket. Control clients also receive the event broadcast.
func (s *Server) controlWS() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		hub.NewClient(s.cfg.Hub, conn, s.handleControl).Run()
	})
}

func (s *Server) handleControl(c *hub.Client, data []byte) {
	msg, err := protocol.ParseMessage(data)
	if err != nil {
		s.reply(c, protocol.NewErrorMessage("", "bad_request", err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), controlTimeout)
	defer cancel()

	reply, err := s.Apply(ctx, msg)
	if err != nil {
		s.logger.Warn("control command failed", "type", msg.Type, "error", err)
		s.reply(c, protocol.NewErrorMessage(msg.ID, string(monitor.KindOf(err)), err))
		return
	}
	s.reply(c, reply)
}

func (s *Server) reply(c *hub.Client, msg *protocol.Message) {
	out, err := hub.Encode(msg)
	if err != nil {
		s.logger.Warn("failed to encode reply", "error", err)
		return
	}
	if !c.Send(out) {
		s.logger.Warn("control client gone, reply dropped", "type", msg.Type)
	}
}

// Apply executes one control message and returns the reply addressed to
// its id.
func (s *Server) Apply(ctx context.Context, msg *protocol.Message) (*protocol.Message, error) {
	p := s.cfg.Proctor

	switch msg.Type {
	case protocol.TypePing:
		ping, err := msg.GetPingData()
		if err != nil {
			return nil, err
		}
		pong, err := protocol.NewPongMessage(ping.ID, msg.Timestamp, time.Now().UnixMilli())
		if err != nil {
			return nil, err
		}
		return pong.Reply(msg.ID), nil

	case protocol.TypeBegin:
		if _, err := p.BeginAttempt(ctx); err != nil {
			return nil, err
		}

	case protocol.TypeEnd:
		if err := p.EndAttempt(); err != nil {
			return nil, err
		}

	case protocol.TypeStart, protocol.TypeStop, protocol.TypeRestart:
		if err := s.applyMonitors(ctx, msg); err != nil {
			return nil, err
		}

	case protocol.TypeReset:
		if err := p.ResetCounter(ctx); err != nil {
			return nil, err
		}
		out, err := protocol.NewCounterMessage(0, s.cfg.Total, 0)
		if err != nil {
			return nil, err
		}
		return out.Reply(msg.ID), nil

	case protocol.TypeCounter:
		n, err := p.Counter().Read(ctx)
		if err != nil {
			return nil, err
		}
		out, err := protocol.NewCounterMessage(n, s.cfg.Total, counter.Percent(n, s.cfg.Total))
		if err != nil {
			return nil, err
		}
		return out.Reply(msg.ID), nil

	case protocol.TypeStatus:

	default:
		return nil, errors.New("unsupported message type " + string(msg.Type))
	}

	st, err := p.Status(ctx)
	if err != nil {
		return nil, err
	}
	out, err := protocol.NewMessage(protocol.TypeStatus, st)
	if err != nil {
		return nil, err
	}
	return out.Reply(msg.ID), nil
}

// applyMonitors runs start, stop or restart on the named monitor, or on
// both when no modality is given.
func (s *Server) applyMonitors(ctx context.Context, msg *protocol.Message) error {
	modality, err := msg.GetModality()
	if err != nil {
		return err
	}
	all := modality == ""
	targets := []proctor.Modality{modality}
	if all {
		targets = proctor.Modalities()
	}

	var errs []error
	for _, m := range targets {
		ctrl, err := s.cfg.Proctor.Controller(m)
		if err != nil {
			// Disabled monitors are skipped when none is named
			if !all {
				errs = append(errs, err)
			}
			continue
		}
		switch msg.Type {
		case protocol.TypeStart:
			err = ctrl.Start(ctx)
		case protocol.TypeStop:
			err = ctrl.Stop()
		case protocol.TypeRestart:
			err = ctrl.Restart(ctx)
		}
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
