package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/DoyleJ11/auction-backend/internal/engine"
	"github.com/DoyleJ11/auction-backend/internal/lobby"
	"github.com/DoyleJ11/auction-backend/internal/metrics"
	"github.com/DoyleJ11/auction-backend/pkg/types"
	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	outboxSize   = 64
	writeTimeout = 3 * time.Second
	maxFrameSize = 4096
)

type Options struct {
	// OriginPatterns is handed to websocket.Accept; empty means same-origin only.
	OriginPatterns []string
	// Per-connection inbound frame budget.
	Rate  rate.Limit
	Burst int
}

func DefaultOptions() Options {
	return Options{Rate: 20, Burst: 40}
}

func Handler(lb *lobby.Lobby, opts Options, log *zap.Logger, m *metrics.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			OriginPatterns: opts.OriginPatterns,
		})
		if err != nil {
			log.Debug("websocket accept", zap.Error(err))
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")
		conn.SetReadLimit(maxFrameSize)

		out := make(chan types.ServerMessage, outboxSize)
		clientID := uuid.NewString()
		clog := log.With(zap.String("client", clientID))

		if !lb.Send(lobby.Join{ClientID: clientID, Outbox: out}) {
			conn.Close(websocket.StatusGoingAway, "server shutting down")
			return
		}
		defer lb.Send(lobby.Leave{ClientID: clientID})

		// Writer goroutine
		writeCtx, writeCancel := context.WithCancel(r.Context())
		defer writeCancel()
		go func() {
			for msg := range out {
				if err := writeJSON(writeCtx, conn, msg); err != nil {
					clog.Debug("write failed", zap.Error(err))
					conn.Close(websocket.StatusInternalError, "write failed")
					return
				}
			}
			// The lobby closed our outbox: dropped as slow or shutting down.
			conn.Close(websocket.StatusGoingAway, "disconnected")
		}()

		limiter := rate.NewLimiter(opts.Rate, opts.Burst)

		// Reader loop
		for {
			_, data, err := conn.Read(r.Context())
			if err != nil {
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				default:
					clog.Debug("read failed", zap.Error(err))
				}
				return
			}
			if !limiter.Allow() {
				m.RateLimitedMessages.Inc()
				continue
			}

			var cm types.ClientMessage
			if err := json.Unmarshal(data, &cm); err != nil {
				_ = writeJSON(r.Context(), conn, types.Envelope(types.SystemMessage{Text: "bad json"}))
				continue
			}

			msg, ok := toLobbyMsg(clientID, cm)
			if !ok {
				_ = writeJSON(r.Context(), conn, types.Envelope(types.SystemMessage{Text: "unknown type"}))
				continue
			}
			if !lb.Send(msg) {
				return
			}
		}
	}
}

func writeJSON(ctx context.Context, conn *websocket.Conn, msg types.ServerMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return conn.Write(ctx, websocket.MessageText, payload)
}

func toLobbyMsg(clientID string, m types.ClientMessage) (lobby.Msg, bool) {
	switch m.Type {
	case types.KindSetNickname:
		return lobby.SetNickname{ClientID: clientID, Nickname: m.Nickname}, true
	case types.KindRequestUserList:
		return lobby.RequestUserList{}, true
	}

	cmd, ok := toEngineCommand(m)
	if !ok {
		return nil, false
	}
	return lobby.FromClient{ClientID: clientID, Cmd: cmd}, true
}

func toEngineCommand(m types.ClientMessage) (engine.Command, bool) {
	switch m.Type {
	case types.KindAddTeam:
		return engine.Command{Type: engine.CmdAddTeam, TeamName: m.Name, Amount: m.Budget}, true
	case types.KindAssignCaptain:
		return engine.Command{Type: engine.CmdAssignCaptain, Nickname: m.Nickname, TeamName: m.TeamName}, true
	case types.KindShuffleAndPrepare:
		return engine.Command{Type: engine.CmdShuffleAndPrepare}, true
	case types.KindStartRaffleRound:
		return engine.Command{Type: engine.CmdStartRaffleRound}, true
	case types.KindStartNextAuction:
		return engine.Command{Type: engine.CmdStartNext}, true
	case types.KindEndAuction:
		return engine.Command{Type: engine.CmdEndAuction}, true
	case types.KindPlaceBid:
		return engine.Command{Type: engine.CmdPlaceBid, Amount: m.Amount}, true
	case types.KindAssignItemToTeam:
		return engine.Command{Type: engine.CmdForceAssign, TeamName: m.TeamName}, true
	case types.KindResetAuction:
		return engine.Command{Type: engine.CmdReset}, true
	default:
		return engine.Command{}, false
	}
}
