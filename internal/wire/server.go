package wire

import (
	"bufio"
	"context"
	"errors"
	"net"

	"go.uber.org/zap"

	"github.com/arkeep-io/krra/internal/coordinator"
	"github.com/arkeep-io/krra/internal/membership"
	"github.com/arkeep-io/krra/internal/registry"
	"github.com/arkeep-io/krra/internal/router"
	"github.com/arkeep-io/krra/internal/version"
)

// Server accepts node connections on a plain TCP listener and dispatches
// each decoded frame into the coordinator. It is modeled on the reference
// service's gRPC server: a goroutine watches ctx.Done() and closes the
// listener to unblock Accept, exactly the same shutdown shape generalized
// from gRPC's GracefulStop to net.Listener.Close.
type Server struct {
	coord    *coordinator.Coordinator
	logger   *zap.Logger
	listener net.Listener
}

// NewServer returns a Server bound to coord.
func NewServer(coord *coordinator.Coordinator, logger *zap.Logger) *Server {
	return &Server{coord: coord, logger: logger.Named("wire")}
}

// ListenAndServe opens addr and serves connections until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.listener = ln

	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			s.logger.Warn("accept failed", zap.Error(err))
			continue
		}
		go s.handleConn(conn)
	}
}

func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()
	r := bufio.NewReader(conn)

	for {
		frame, err := ReadFrame(r)
		if err != nil {
			if !errors.Is(err, ErrBadMagic) && !errors.Is(err, ErrUnsupportedVersion) {
				return // connection closed or read error; nothing more to do
			}
			_ = WriteFrame(conn, Frame{Type: MsgError, Payload: encode(ErrorPayload{Message: err.Error()})})
			return
		}

		resp, ok := s.dispatch(frame)
		if ok {
			_ = WriteFrame(conn, resp)
		}
	}
}

// dispatch applies one frame to the coordinator and returns the response
// frame to write back, if any.
func (s *Server) dispatch(f Frame) (Frame, bool) {
	switch f.Type {
	case MsgHeartbeat:
		var p HeartbeatPayload
		if decode(f.Payload, &p) != nil {
			return errorFrame("malformed heartbeat payload"), true
		}
		s.coord.Membership.Heartbeat(p.NodeID)
		return Frame{}, false

	case MsgAgentRegister, MsgAgentUpdate:
		var p AgentRegisterPayload
		if decode(f.Payload, &p) != nil {
			return errorFrame("malformed agent payload"), true
		}
		v, err := version.Parse(p.Version)
		if err != nil {
			return errorFrame(err.Error()), true
		}
		agent := registry.Agent{
			ID:            p.AgentID,
			Name:          p.Name,
			Kind:          registry.Kind(p.Kind),
			Version:       v,
			Description:   p.Description,
			ModuleLocator: p.ModuleLocator,
			Metadata:      p.Metadata,
		}
		if f.Type == MsgAgentUpdate {
			s.coord.Registry.Update(agent)
		} else {
			s.coord.Registry.Register(agent)
		}
		return Frame{}, false

	case MsgJobSubmit:
		var p JobSubmitPayload
		if decode(f.Payload, &p) != nil {
			return errorFrame("malformed job submit payload"), true
		}
		jobID, failure := s.coord.Submit(router.Job{AgentID: p.AgentID, Input: p.Input, Metadata: p.Metadata})
		if failure != "" {
			return errorFrame(string(failure)), true
		}
		return Frame{Type: MsgJobResult, Payload: encode(JobResultPayload{JobID: jobID, Success: true})}, true

	case MsgJobResult:
		var p JobResultPayload
		if decode(f.Payload, &p) != nil {
			return errorFrame("malformed job result payload"), true
		}
		if p.Success {
			s.coord.NotifyCompleted(p.JobID, p.Output)
		} else {
			s.coord.NotifyFailed(p.JobID, p.ErrorMessage)
		}
		return Frame{}, false

	case MsgNodeInfo:
		var p NodeInfoPayload
		if decode(f.Payload, &p) != nil {
			return errorFrame("malformed node info payload"), true
		}
		s.coord.RegisterNode(membership.Node{
			ID:           p.NodeID,
			Hostname:     p.Hostname,
			Address:      p.Address,
			Port:         p.Port,
			Capabilities: p.Capabilities,
		})
		return Frame{}, false

	case MsgStateSync:
		return Frame{}, false

	default:
		return errorFrame("unknown message type"), true
	}
}

func errorFrame(msg string) Frame {
	return Frame{Type: MsgError, Payload: encode(ErrorPayload{Message: msg})}
}
