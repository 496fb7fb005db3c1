package realtime

import "context"

// dispatch routes a decoded event to its handler. Unauthenticated sessions
// may only authenticate or disconnect; everything else is rejected before it
// can touch shared state.
func (sess *Session) dispatch(ctx context.Context, ev InboundEvent) error {
	switch ev.Name {
	case EventAuthenticate:
		return sess.handleAuthenticate(ctx, ev.Authenticate)
	case EventDisconnect:
		sess.Close()
		return nil
	}

	if !sess.Authenticated() {
		return ErrUnauthenticated
	}

	switch ev.Name {
	case EventJoinRoom:
		connID, _, _ := sess.identity()
		sess.svc.rooms.Join(connID, ConversationRoom(ev.JoinRoom.ConversationID))
		return nil
	case EventLeaveRoom:
		connID, _, _ := sess.identity()
		sess.svc.rooms.Leave(connID, ConversationRoom(ev.LeaveRoom.ConversationID))
		return nil
	case EventSendMessage:
		return sess.handleSendMessage(ctx, ev.SendMessage)
	case EventTypingStart:
		return sess.handleTyping(ev.Typing, true)
	case EventTypingStop:
		return sess.handleTyping(ev.Typing, false)
	case EventCallInitiated:
		return sess.handleCallInitiated(ctx, ev.CallInitiated)
	}
	// DecodeInbound already rejected unknown names.
	return nil
}
