// services/draw_errors.go
package services

import "errors"

// Draw error kinds. Handlers map these to HTTP statuses; everything up
// to the commit aborts before any write, so all of them except
// ErrCommitFailed leave the store untouched. ErrCommitFailed means the
// transaction rolled back — the close operation is safe to retry whole.
var (
	ErrDrawInProgress         = errors.New("draw is already being processed")
	ErrGiveawayNotFound       = errors.New("giveaway not found")
	ErrNotGiveawayOwner       = errors.New("only the giver can close the draw")
	ErrGiveawayNotOpen        = errors.New("giveaway is not open for participation")
	ErrNoEligibleParticipants = errors.New("no eligible participants")
	ErrCommitFailed           = errors.New("draw commit failed")
)
