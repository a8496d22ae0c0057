package service

import "errors"

var (
	// ErrUserIDRequired is returned when a mutation would be enqueued without
	// an owning user. Queue items without a user can never be replayed, so
	// this is a hard validation failure rather than a silent default.
	ErrUserIDRequired = errors.New("userId is required")

	// ErrRecordNotRetrievable is returned when a row that was just written
	// cannot be read back from the mirror store.
	ErrRecordNotRetrievable = errors.New("record not retrievable after write")

	// ErrDrainInProgress is returned when a drain pass is requested while one
	// is already running. Drain passes run to completion once started.
	ErrDrainInProgress = errors.New("sync drain already in progress")

	// ErrAuthTokenExpired is returned by the remote client when its bearer
	// token has expired; replaying would only burn retries.
	ErrAuthTokenExpired = errors.New("remote API token expired")
)
