package services

import "errors"

// Общие ошибки сервисного слоя; маппинг в HTTP-статусы в handlers/helpers.go.
var (
	ErrValidationFailed     = errors.New("validation failed")
	ErrForbiddenOperation   = errors.New("operation not allowed for the current user")
	ErrAuthenticationFailed = errors.New("authentication failed")
	ErrUserIDTaken          = errors.New("user id is already taken")

	// Состояние турнира
	ErrTournamentNotRunning = errors.New("no active tournament")
	ErrTournamentRunning    = errors.New("tournament is already running")
	ErrInvalidPoolSize      = errors.New("tournament requires exactly 32 items")
	ErrNoRoundsLeft         = errors.New("no more rounds left, end the tournament to announce the winner")
	ErrNoChampion           = errors.New("no winner recorded yet, advance the final match first")

	// Матчи
	ErrNoActiveMatch    = errors.New("no active match")
	ErrMatchAlreadyOpen = errors.New("a match is already open")
	ErrStaleMatch       = errors.New("match is no longer the current match")

	// Пул элементов
	ErrItemLimitReached = errors.New("you can only add one item to the tournament")
	ErrPoolFull         = errors.New("item pool is full")
	ErrHistoryNotFound  = errors.New("history entry not found")
)
