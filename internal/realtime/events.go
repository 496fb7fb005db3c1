package realtime

import (
	"encoding/json"
	"fmt"
)

// Inbound event names. These are part of the client contract; do not rename.
const (
	EventAuthenticate  = "authenticate"
	EventJoinRoom      = "join_room"
	EventLeaveRoom     = "leave_room"
	EventSendMessage   = "send_message"
	EventTypingStart   = "typing_start"
	EventTypingStop    = "typing_stop"
	EventCallInitiated = "call_initiated"
	EventDisconnect    = "disconnect"
)

// Outbound event names.
const (
	EventAuthenticated     = "authenticated"
	EventMessageReceived   = "message_received"
	EventMessageSent       = "message_sent"
	EventUserTyping        = "user_typing"
	EventCallStatusChanged = "call_status_changed"
	EventNotification      = "notification"
	EventError             = "error"
)

// AuthenticatePayload is the documented authenticate shape. Either a bare
// identity or an access token; when Token is set it wins and the identity is
// taken from the verified claims.
type AuthenticatePayload struct {
	UserID string `json:"userId"`
	Role   string `json:"role"`
	Token  string `json:"token,omitempty"`
}

// RoomPayload addresses a conversation room for join/leave.
type RoomPayload struct {
	ConversationID string `json:"conversationId"`
}

type SendMessagePayload struct {
	ToUserID       string `json:"toUserId"`
	Body           string `json:"body"`
	Kind           string `json:"kind,omitempty"`
	ConversationID string `json:"conversationId,omitempty"`
}

type TypingPayload struct {
	ConversationID string `json:"conversationId"`
}

type CallInitiatedPayload struct {
	ProviderID       string `json:"providerId"`
	ServiceRequestID string `json:"serviceRequestId,omitempty"`
}

// InboundEvent is the tagged union the router dispatches on. Exactly one
// payload pointer is non-nil, matching Name; the transport's loosely-typed
// JSON is validated here, once, before it reaches any handler.
type InboundEvent struct {
	Name string

	Authenticate  *AuthenticatePayload
	JoinRoom      *RoomPayload
	LeaveRoom     *RoomPayload
	SendMessage   *SendMessagePayload
	Typing        *TypingPayload
	CallInitiated *CallInitiatedPayload
}

// DecodeInbound parses and validates one inbound event. Malformed payloads
// return ErrValidation; the sender is informed, nobody else.
func DecodeInbound(name string, data []byte) (InboundEvent, error) {
	ev := InboundEvent{Name: name}

	switch name {
	case EventAuthenticate:
		var p AuthenticatePayload
		if err := unmarshalPayload(data, &p); err != nil {
			return ev, err
		}
		if p.Token == "" {
			if p.UserID == "" {
				return ev, fmt.Errorf("%w: authenticate requires userId or token", ErrValidation)
			}
			if p.Role == "" {
				return ev, fmt.Errorf("%w: authenticate requires role", ErrValidation)
			}
		}
		ev.Authenticate = &p

	case EventJoinRoom, EventLeaveRoom:
		var p RoomPayload
		if err := unmarshalPayload(data, &p); err != nil {
			return ev, err
		}
		if p.ConversationID == "" {
			return ev, fmt.Errorf("%w: %s requires conversationId", ErrValidation, name)
		}
		if name == EventJoinRoom {
			ev.JoinRoom = &p
		} else {
			ev.LeaveRoom = &p
		}

	case EventSendMessage:
		var p SendMessagePayload
		if err := unmarshalPayload(data, &p); err != nil {
			return ev, err
		}
		if p.ToUserID == "" {
			return ev, fmt.Errorf("%w: send_message requires toUserId", ErrValidation)
		}
		if p.Body == "" {
			return ev, fmt.Errorf("%w: send_message requires body", ErrValidation)
		}
		ev.SendMessage = &p

	case EventTypingStart, EventTypingStop:
		var p TypingPayload
		if err := unmarshalPayload(data, &p); err != nil {
			return ev, err
		}
		if p.ConversationID == "" {
			return ev, fmt.Errorf("%w: %s requires conversationId", ErrValidation, name)
		}
		ev.Typing = &p

	case EventCallInitiated:
		var p CallInitiatedPayload
		if err := unmarshalPayload(data, &p); err != nil {
			return ev, err
		}
		if p.ProviderID == "" {
			return ev, fmt.Errorf("%w: call_initiated requires providerId", ErrValidation)
		}
		ev.CallInitiated = &p

	case EventDisconnect:
		// No payload.

	default:
		return ev, fmt.Errorf("%w: unknown event %q", ErrValidation, name)
	}

	return ev, nil
}

func unmarshalPayload(data []byte, v any) error {
	if len(data) == 0 {
		return fmt.Errorf("%w: missing payload", ErrValidation)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return nil
}
