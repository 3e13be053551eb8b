package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"connectrpc.com/connect"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"go-snake/domain/room"
)

// The RPC binding is built from well-known protobuf types so it needs no
// generated stubs. Clients may speak the Connect, gRPC or gRPC-Web protocols
// with either the binary or the JSON codec.
const (
	RoomServiceName   = "snake.v1.RoomService"
	RoomBroadcastName = "snake.v1.RoomBroadcast"
)

const (
	RoomServiceJoinProcedure              = "/snake.v1.RoomService/Join"
	RoomServiceMoveProcedure              = "/snake.v1.RoomService/Move"
	RoomServiceLeaveProcedure             = "/snake.v1.RoomService/Leave"
	RoomServiceSnapshotProcedure          = "/snake.v1.RoomService/Snapshot"
	RoomBroadcastStreamSnapshotsProcedure = "/snake.v1.RoomBroadcast/StreamSnapshots"
)

func NewRoomServiceHandler(s *Server, opts ...connect.HandlerOption) (string, http.Handler) {
	join := connect.NewUnaryHandler(RoomServiceJoinProcedure, s.Join, opts...)
	move := connect.NewUnaryHandler(RoomServiceMoveProcedure, s.Move, opts...)
	leave := connect.NewUnaryHandler(RoomServiceLeaveProcedure, s.Leave, opts...)
	snapshot := connect.NewUnaryHandler(RoomServiceSnapshotProcedure, s.Snapshot, opts...)
	return "/" + RoomServiceName + "/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case RoomServiceJoinProcedure:
			join.ServeHTTP(w, r)
		case RoomServiceMoveProcedure:
			move.ServeHTTP(w, r)
		case RoomServiceLeaveProcedure:
			leave.ServeHTTP(w, r)
		case RoomServiceSnapshotProcedure:
			snapshot.ServeHTTP(w, r)
		default:
			http.NotFound(w, r)
		}
	})
}

func NewRoomBroadcastHandler(s *Server, opts ...connect.HandlerOption) (string, http.Handler) {
	stream := connect.NewServerStreamHandler(RoomBroadcastStreamSnapshotsProcedure, s.StreamSnapshots, opts...)
	return "/" + RoomBroadcastName + "/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case RoomBroadcastStreamSnapshotsProcedure:
			stream.ServeHTTP(w, r)
		default:
			http.NotFound(w, r)
		}
	})
}

// Join takes the player id and answers {color, waiting}.
func (s *Server) Join(ctx context.Context, req *connect.Request[wrapperspb.StringValue]) (*connect.Response[structpb.Struct], error) {
	res, err := s.Room.Join(ctx, req.Msg.GetValue())
	if err != nil {
		return nil, connectError(err)
	}
	msg, err := structpb.NewStruct(map[string]any{
		"color":   res.Color,
		"waiting": res.Waiting,
	})
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(msg), nil
}

// Move takes {playerId, direction}.
func (s *Server) Move(ctx context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	fields := req.Msg.GetFields()
	dir, err := room.ParseDirection(fields["direction"].GetStringValue())
	if err == nil {
		err = s.Room.Move(ctx, fields["playerId"].GetStringValue(), dir)
	}
	if err != nil {
		return nil, connectError(err)
	}
	return connect.NewResponse(okStruct()), nil
}

func (s *Server) Leave(ctx context.Context, req *connect.Request[wrapperspb.StringValue]) (*connect.Response[structpb.Struct], error) {
	if err := s.Room.Leave(ctx, req.Msg.GetValue()); err != nil {
		return nil, connectError(err)
	}
	return connect.NewResponse(okStruct()), nil
}

func (s *Server) Snapshot(ctx context.Context, req *connect.Request[emptypb.Empty]) (*connect.Response[structpb.Struct], error) {
	if id := req.Header().Get("X-Player-Id"); id != "" {
		s.Room.Touch(ctx, id)
	}
	msg, err := snapshotStruct(s.Room.Snapshot(ctx))
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(msg), nil
}

// StreamSnapshots pushes every published snapshot until the client goes away
// or the server closes.
func (s *Server) StreamSnapshots(ctx context.Context, req *connect.Request[emptypb.Empty], stream *connect.ServerStream[structpb.Struct]) error {
	updates, cancel := s.Room.Subscribe()
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-s.quit:
			return nil
		case snap, ok := <-updates:
			if !ok {
				return nil
			}
			msg, err := snapshotStruct(snap)
			if err != nil {
				return connect.NewError(connect.CodeInternal, err)
			}
			if err := stream.Send(msg); err != nil {
				return err
			}
		}
	}
}

func okStruct() *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{"ok": structpb.NewBoolValue(true)}}
}

// snapshotStruct reuses the JSON shape of the REST binding.
func snapshotStruct(snap *room.Snapshot) (*structpb.Struct, error) {
	b, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	msg := &structpb.Struct{}
	if err := protojson.Unmarshal(b, msg); err != nil {
		return nil, fmt.Errorf("convert snapshot: %w", err)
	}
	return msg, nil
}
