package server

import (
	"context"

	"platform-fighter/server/internal/net/proto"
	"platform-fighter/server/internal/rooms"
)

// Handle processes one inbound message from playerID on the loop. Requests
// are answered on conn; input is staged silently.
func (h *Hub) Handle(ctx context.Context, playerID string, conn Conn, msg proto.ClientMessage) error {
	var unknown bool
	err := h.rt.Do(ctx, func() {
		if current, ok := h.conns[playerID]; !ok || current != conn {
			unknown = true
			return
		}
		if msg.Type == proto.TypeInput {
			p, _ := h.store.Participant(playerID)
			if h.gateway.Accept(ctx, playerID, p, msg.Payload) {
				if room, ok := h.store.RoomOf(playerID); ok {
					room.Touch(h.rt.Now())
				}
			}
			return
		}
		if !proto.IsRequest(msg.Type) {
			h.logger.Printf("unknown message type %q from %s", msg.Type, playerID)
			return
		}
		result, err := h.request(playerID, msg)
		var resp proto.Response
		if err != nil {
			resp = proto.ErrorResponse(msg.RequestID, msg.Type, rooms.WireCode(err), err.Error())
		} else {
			resp = proto.OKResponse(msg.RequestID, msg.Type, result)
		}
		h.send(playerID, conn, resp)
	})
	if err != nil {
		return err
	}
	if unknown {
		return ErrUnknownPlayer
	}
	return nil
}

func (h *Hub) request(playerID string, msg proto.ClientMessage) (any, error) {
	switch msg.Type {
	case proto.TypeCreateRoom:
		room, err := h.registry.Create(playerID)
		if err != nil {
			return nil, err
		}
		return proto.CreateRoomResult{Code: room.Code}, nil
	case proto.TypeJoinRoom:
		payload, err := proto.DecodeJoinRoom(msg.Payload)
		if err != nil {
			return nil, rooms.ErrMalformedCode
		}
		res, err := h.registry.Join(payload.Code, playerID, payload.DisplayName)
		if err != nil {
			return nil, err
		}
		return proto.JoinRoomResult{
			Code:        res.Room.Code,
			IsHost:      res.Room.HostID == playerID,
			MemberCount: len(res.Room.Members),
			MaxMembers:  h.registry.Settings().MaxMembers,
			HostID:      res.Room.HostID,
			Rejoined:    res.Rejoined,
		}, nil
	case proto.TypeLeaveRoom:
		return ack(h.registry.Leave(playerID))
	case proto.TypeGetRoomInfo:
		return h.registry.InfoFor(playerID)
	case proto.TypeStartGame:
		return ack(h.registry.StartGame(playerID))
	case proto.TypeRematch:
		return ack(h.registry.Rematch(playerID))
	case proto.TypeReturnToLobby:
		return ack(h.registry.ReturnToLobby(playerID))
	}
	return nil, rooms.ErrWrongPhase
}

func ack(err error) (any, error) {
	if err != nil {
		return nil, err
	}
	return proto.AckResult{OK: true}, nil
}
