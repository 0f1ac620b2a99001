package repository

import "errors"

// Common repository errors
var (
	// ErrNotFound is returned when a record is not found
	ErrNotFound = errors.New("record not found")

	// ErrDuplicateEmail is returned when trying to create a user with an existing email
	ErrDuplicateEmail = errors.New("user with this email already exists")

	// ErrCodeAlreadyUsed is returned when a conditional redemption finds the
	// code missing or already consumed. Race losers receive this too, so a
	// caller cannot distinguish "never existed" from "someone else just took it".
	ErrCodeAlreadyUsed = errors.New("redemption code invalid or already used")

	// ErrAlreadyRedeemed is returned when a user claims a code they already claimed
	ErrAlreadyRedeemed = errors.New("code already redeemed by this user")

	// ErrDuplicateSession is returned when a session token collides
	ErrDuplicateSession = errors.New("session with this token already exists")
)
