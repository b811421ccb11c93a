package service

import (
	"errors"

	"github.com/reelforge/api/internal/ledger"
	"github.com/reelforge/api/internal/store"
)

var (
	ErrJobNotFound         = store.ErrJobNotFound
	ErrInsufficientCredits = ledger.ErrInsufficientCredits
	ErrUnknownTier         = errors.New("unknown tier")
	ErrForbidden           = errors.New("job belongs to another user")
	ErrJobFinished         = errors.New("job already finished")
	ErrJobBusy             = errors.New("job is being advanced, retry shortly")
	ErrJobNotCompleted     = errors.New("job not completed")
	ErrScriptGeneration    = errors.New("script generation failed")
	ErrFanOut              = errors.New("not enough scenes could be started")
	ErrPersistence         = errors.New("persistence error")
	ErrEmptyScript         = errors.New("script generator returned no scenes")
)
