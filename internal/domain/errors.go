package domain

import "errors"

var (
	ErrBoardNotFound    = errors.New("board not found")
	ErrStoreUnavailable = errors.New("board store unavailable")
	ErrPublishFailed    = errors.New("board update publish failed")

	ErrSubscriptionLost  = errors.New("broker subscription lost")
	ErrProtocolViolation = errors.New("websocket protocol violation")
	ErrGracefulClose     = errors.New("websocket closed by client")
	ErrBridgeUsed        = errors.New("bridge already used")
)
