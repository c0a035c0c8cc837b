package domain

import "errors"

var (
	ErrInvalidRoomID    = errors.New("invalid room id")
	ErrRoomNotFound     = errors.New("room not found")
	ErrRoomFull         = errors.New("room is full")
	ErrAlreadyJoined    = errors.New("connection already joined a room")
	ErrMalformedMessage = errors.New("malformed message")
	ErrPeerUnreachable  = errors.New("peer unreachable")
	ErrRateLimited      = errors.New("rate limit exceeded")
)
