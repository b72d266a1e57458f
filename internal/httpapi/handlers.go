package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/DoyleJ11/auction-backend/internal/engine"
	"github.com/DoyleJ11/auction-backend/internal/lobby"
)

var errLobbyClosed = errors.New("auction loop is not running")

type newItemRequest struct {
	Nickname string `json:"nickname"`
	MainPos  string `json:"mainPos"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func Healthz(lb *lobby.Lobby) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		v, err := view(r.Context(), lb)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"ok":        true,
			"phase":     v.Phase,
			"observers": v.NumClients,
		})
	}
}

func ListItems(lb *lobby.Lobby) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		v, err := view(r.Context(), lb)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, v.Items)
	}
}

func CreateItem(lb *lobby.Lobby) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in newItemRequest
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		res, err := exec(r.Context(), lb, engine.Command{
			Type:     engine.CmdAddItem,
			Nickname: in.Nickname,
			MainPos:  in.MainPos,
		})
		if err != nil {
			writeDomainError(w, err)
			return
		}
		ev, ok := engine.FindEvent(res.Events, engine.EvtItemAdded)
		if !ok || ev.Item == nil {
			writeError(w, http.StatusInternalServerError, "item was not added")
			return
		}
		writeJSON(w, http.StatusCreated, ev.Item)
	}
}

func ClearItems(lb *lobby.Lobby) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, err := exec(r.Context(), lb, engine.Command{Type: engine.CmdClearItems}); err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, messageResponse{Message: "All players were removed."})
	}
}

func ListTeams(lb *lobby.Lobby) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		v, err := view(r.Context(), lb)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, v.Teams)
	}
}

func ClearTeams(lb *lobby.Lobby) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, err := exec(r.Context(), lb, engine.Command{Type: engine.CmdClearTeams}); err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, messageResponse{Message: "All teams were removed."})
	}
}

func view(ctx context.Context, lb *lobby.Lobby) (lobby.View, error) {
	reply := make(chan lobby.View, 1)
	if !lb.Send(lobby.GetState{Reply: reply}) {
		return lobby.View{}, errLobbyClosed
	}
	select {
	case v := <-reply:
		return v, nil
	case <-lb.Done():
		return lobby.View{}, errLobbyClosed
	case <-ctx.Done():
		return lobby.View{}, ctx.Err()
	}
}

// exec runs cmd on the lobby loop and returns the engine's verdict.
func exec(ctx context.Context, lb *lobby.Lobby, cmd engine.Command) (lobby.Result, error) {
	reply := make(chan lobby.Result, 1)
	if !lb.Send(lobby.Exec{Cmd: cmd, Reply: reply}) {
		return lobby.Result{}, errLobbyClosed
	}
	select {
	case res := <-reply:
		return res, res.Err
	case <-lb.Done():
		return lobby.Result{}, errLobbyClosed
	case <-ctx.Done():
		return lobby.Result{}, ctx.Err()
	}
}

func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case engine.IsValidation(err):
		writeError(w, http.StatusBadRequest, err.Error())
	case engine.IsRuleViolation(err):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, errLobbyClosed):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": strings.TrimSpace(message)})
}
