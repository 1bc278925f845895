package service

import "errors"

var (
	ErrConversationNotFound = errors.New("conversation not found")
	ErrNotParticipant       = errors.New("you are not a participant of this conversation")
	ErrInvalidParticipants  = errors.New("a conversation needs at least 2 participants and a direct chat exactly 2")
	ErrUserNotFound         = errors.New("user not found")
	ErrEmptyMessage         = errors.New("message needs content or media")
	ErrInvalidMessageKind   = errors.New("unknown message type")
)
