package services

import "errors"

var (
	// ErrEmptyWatchlist is returned when a scheduler has nothing to search
	ErrEmptyWatchlist = errors.New("watchlist is empty")

	// ErrPublisherClosed is returned by Publish after Close
	ErrPublisherClosed = errors.New("publisher closed")
)
