package model

import "time"

// Journal operations.
const (
	OpOpen    = "open"
	OpClose   = "close"
	OpHarvest = "harvest"
)

// JournalRecord is one line of the lifecycle audit journal.
type JournalRecord struct {
	Time      time.Time `json:"ts"`
	UserID    int64     `json:"user_id"`
	Operation string    `json:"op"`
	PoolID    string    `json:"pool_id,omitempty"`
	Handle    string    `json:"handle,omitempty"`
	TxIDs     []string  `json:"tx_ids,omitempty"`
	TickLower int32     `json:"tick_lower,omitempty"`
	TickUpper int32     `json:"tick_upper,omitempty"`
	Amount    string    `json:"amount,omitempty"`
	Error     string    `json:"error,omitempty"`
}
