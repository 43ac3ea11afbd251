package chaterr

import (
	"errors"
	"fmt"

	"vehicle_marketplace_chat/pkg/logger"
)

// Conversation layer error taxonomy. Every sentinel here is retriable or
// degradable; nothing in this package should bubble up as a screen crash.
var (
	// ErrTransportUnavailable no network path to the realtime channel
	ErrTransportUnavailable = errors.New("transport unavailable")
	// ErrHistoryFetchFailed persisted history could not be fetched
	ErrHistoryFetchFailed = errors.New("history fetch failed")
	// ErrSendFailed message could not be delivered on any path
	ErrSendFailed = errors.New("send failed")
	// ErrEnrichmentFailed one inbox row could not be enriched
	ErrEnrichmentFailed = errors.New("enrichment failed")
)

// Set log err info and return it
func Set(errMsg string) error {
	logger.Log.Error(errMsg)
	return errors.New(errMsg)
}

// Wrap log cause and return it wrapped under the given sentinel
func Wrap(sentinel error, cause error) error {
	if cause == nil {
		return sentinel
	}
	logger.Log.Errorf(sentinel.Error(), cause)
	return fmt.Errorf("%w: %v", sentinel, cause)
}
