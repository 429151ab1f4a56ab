package ingest

// Action is the collision-rule verdict for one inbound message.
type Action int

const (
	// ActionReply lets the assistant answer the message.
	ActionReply Action = iota
	// ActionPause pauses the session because a human operator wrote.
	ActionPause
	// ActionIgnore drops the message silently while the session is paused.
	ActionIgnore
)

func (a Action) String() string {
	switch a {
	case ActionReply:
		return "reply"
	case ActionPause:
		return "pause"
	case ActionIgnore:
		return "ignore"
	}
	return "unknown"
}

// Evaluate applies the human-takeover rule. A self-originated message means
// an operator typed in the conversation from the business side, which always
// pauses the assistant, even when already paused (the pause timestamp must
// refresh). Counterpart messages are answered only while unpaused.
func Evaluate(selfOriginated, paused bool) Action {
	if selfOriginated {
		return ActionPause
	}
	if paused {
		return ActionIgnore
	}
	return ActionReply
}
