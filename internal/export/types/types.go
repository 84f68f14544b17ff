package types

import "time"

// EventRecord is one exported ledger event. User ids are replaced by salted hashes.
type EventRecord struct {
	GuildID    uint64
	UserHash   string
	Kind       string
	Index      int // 1-based position within the user's list of this kind
	Timestamp  time.Time
	IssuerHash string
	Reason     string
}
