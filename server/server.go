package server

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync"

	"connectrpc.com/connect"
	"github.com/gorilla/websocket"

	"go-snake/domain/room"
)

type Server struct {
	Room room.Service

	log       *slog.Logger
	upgrader  websocket.Upgrader
	quit      chan struct{}
	closeOnce sync.Once
}

func New(svc room.Service, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Server{
		Room: svc,
		log:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		quit: make(chan struct{}),
	}
}

// Close ends open snapshot streams. It is safe to call more than once.
func (s *Server) Close() {
	s.closeOnce.Do(func() { close(s.quit) })
}

// Register mounts every binding on mux. opts apply to the Connect handlers
// only. The RPC messages are well-known types with no protovalidate rules,
// so a validate interceptor passed here lets every request through and
// field checks happen in the room service, surfacing ErrMissingPlayerID and
// ErrInvalidDirection as CodeInvalidArgument.
func (s *Server) Register(mux *http.ServeMux, opts ...connect.HandlerOption) {
	roomServicePath, roomServiceHandler := NewRoomServiceHandler(s, opts...)
	roomBroadcastPath, roomBroadcastHandler := NewRoomBroadcastHandler(s, opts...)
	mux.Handle(roomServicePath, roomServiceHandler)
	mux.Handle(roomBroadcastPath, roomBroadcastHandler)

	mux.HandleFunc("/room", s.HandleRoom)
	mux.HandleFunc("/room/ws", s.HandleRoomWS)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte("ok")) })
}

// statusFor maps room errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, room.ErrMissingPlayerID), errors.Is(err, room.ErrInvalidDirection):
		return http.StatusBadRequest
	case errors.Is(err, room.ErrRoomFull):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func connectError(err error) error {
	switch {
	case errors.Is(err, room.ErrMissingPlayerID), errors.Is(err, room.ErrInvalidDirection):
		return connect.NewError(connect.CodeInvalidArgument, err)
	case errors.Is(err, room.ErrRoomFull):
		return connect.NewError(connect.CodeResourceExhausted, err)
	}
	return connect.NewError(connect.CodeInternal, err)
}
