package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"go-snake/domain/room"
)

const maxBodyBytes = 4 << 10

var errUnknownAction = errors.New("unknown action")

type roomRequest struct {
	Action    string `json:"action"`
	PlayerID  string `json:"playerId"`
	Direction string `json:"direction"`
}

type joinResponse struct {
	Success  bool   `json:"success"`
	PlayerID string `json:"playerId"`
	Color    string `json:"color"`
	Waiting  bool   `json:"waiting"`
}

type ackResponse struct {
	OK      bool `json:"ok"`
	Success bool `json:"success"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// HandleRoom is the JSON binding: GET polls the snapshot, POST carries a
// join, move or leave intent. A poll naming its player through the
// X-Player-Id header or the playerId query parameter counts as activity.
func (s *Server) HandleRoom(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		if id := pollerID(r); id != "" {
			s.Room.Touch(r.Context(), id)
		}
		writeJSON(w, http.StatusOK, s.Room.Snapshot(r.Context()))
	case http.MethodPost:
		s.handleIntent(w, r)
	default:
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "Method not allowed"})
	}
}

func pollerID(r *http.Request) string {
	if id := r.Header.Get("X-Player-Id"); id != "" {
		return id
	}
	return r.URL.Query().Get("playerId")
}

func (s *Server) handleIntent(w http.ResponseWriter, r *http.Request) {
	var req roomRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		s.fail(w, r, fmt.Errorf("decode request: %w", err), http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	switch req.Action {
	case "join":
		res, err := s.Room.Join(ctx, req.PlayerID)
		if err != nil {
			s.fail(w, r, err, statusFor(err))
			return
		}
		writeJSON(w, http.StatusOK, joinResponse{
			Success:  true,
			PlayerID: req.PlayerID,
			Color:    res.Color,
			Waiting:  res.Waiting,
		})
	case "move":
		dir, err := room.ParseDirection(req.Direction)
		if err == nil {
			err = s.Room.Move(ctx, req.PlayerID, dir)
		}
		if err != nil {
			s.fail(w, r, err, statusFor(err))
			return
		}
		writeJSON(w, http.StatusOK, ackResponse{OK: true, Success: true})
	case "leave":
		if err := s.Room.Leave(ctx, req.PlayerID); err != nil {
			s.fail(w, r, err, statusFor(err))
			return
		}
		writeJSON(w, http.StatusOK, ackResponse{OK: true, Success: true})
	default:
		s.fail(w, r, fmt.Errorf("%w: %q", errUnknownAction, req.Action), http.StatusBadRequest)
	}
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error, status int) {
	level := slog.LevelWarn
	if status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable {
		level = slog.LevelError
	}
	s.log.LogAttrs(r.Context(), level, "room request rejected",
		slog.String("error", err.Error()),
		slog.Int("status", status),
	)
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
