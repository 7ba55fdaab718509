package service

import (
	"errors"

	"github.com/wricardo/mcp-training/memorymatch/game/engine"
)

var (
	ErrSessionNotFound  = errors.New("session not found")
	ErrIllegalFlip      = errors.New("illegal flip")
	ErrCardSetExists    = errors.New("name taken")
	ErrCardSetNotFound  = errors.New("sorry, we couldn't find any such game")
	ErrInvalidCardSet   = engine.ErrInvalidCardSet
	ErrUploadFailed     = errors.New("image upload failed")
	ErrCardSetsDisabled = errors.New("card set store not configured")
)
