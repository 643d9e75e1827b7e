package domain

import "errors"

var (
	// ErrFeedDecode marks a malformed inbound feed message. Logged and
	// dropped; never fatal and never surfaced to the user.
	ErrFeedDecode = errors.New("feed message decode failed")

	// ErrFeedConnection marks a feed transport failure. Triggers reconnect
	// backoff; surfaced only as connection status.
	ErrFeedConnection = errors.New("feed connection failed")

	// ErrLedgerRead marks a failed figure fetch. The cached figure is
	// retained and goes stale; the fetch is retried next interval.
	ErrLedgerRead = errors.New("ledger read failed")

	// ErrLedgerWrite marks a write call that failed before producing a
	// transaction reference. Nothing on the ledger can have changed.
	ErrLedgerWrite = errors.New("ledger write failed")

	// ErrConfirmationTimeout marks a submitted write whose confirmation did
	// not arrive in time. The outcome is unknown, not known-failed.
	ErrConfirmationTimeout = errors.New("confirmation timed out")

	// ErrInvalidAmount rejects intent construction with a non-positive or
	// unrepresentable amount.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrIntentInFlight rejects a submission while another intent is still
	// in flight. Intents are serialized, never queued.
	ErrIntentInFlight = errors.New("another intent is in flight")

	// ErrNotFound is returned for missing records and unknown figures.
	ErrNotFound = errors.New("not found")
)
