package userlog

import (
	"fmt"
	"strconv"
	"time"

	"github.com/bytedance/sonic"
	"github.com/disgoorg/snowflake/v2"
)

// codec sorts map keys so documents serialize deterministically.
var codec = sonic.ConfigStd

type eventRecord struct {
	Timestamp  string `json:"timestamp"`
	IssuerID   uint64 `json:"issuer_id"`
	IssuerName string `json:"issuer_name"`
	Reason     string `json:"reason"`
}

type watchRecord struct {
	State bool `json:"state"`
}

type userRecord struct {
	Bans   []eventRecord `json:"bans"`
	Kicks  []eventRecord `json:"kicks"`
	Warns  []eventRecord `json:"warns"`
	Notes  []eventRecord `json:"notes"`
	Tosses []eventRecord `json:"tosses"`
	Watch  watchRecord   `json:"watch"`
}

// ledger is the decoded "userlog" document, keyed by decimal user id.
type ledger map[string]*userRecord

func newUserRecord() *userRecord {
	return &userRecord{
		Bans:   []eventRecord{},
		Kicks:  []eventRecord{},
		Warns:  []eventRecord{},
		Notes:  []eventRecord{},
		Tosses: []eventRecord{},
	}
}

// list returns a pointer to the slice holding the given kind.
func (r *userRecord) list(kind EventKind) *[]eventRecord {
	switch kind {
	case KindBan:
		return &r.Bans
	case KindKick:
		return &r.Kicks
	case KindWarn:
		return &r.Warns
	case KindNote:
		return &r.Notes
	case KindToss:
		return &r.Tosses
	default:
		panic(fmt.Sprintf("userlog: unhandled kind %d", int(kind)))
	}
}

func decodeLedger(data []byte) (ledger, error) {
	doc := make(ledger)
	if len(data) == 0 {
		return doc, nil
	}
	if err := codec.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode userlog document: %w", err)
	}

	// A null entry is the same as no entry
	for key, rec := range doc {
		if rec == nil {
			delete(doc, key)
			continue
		}
		rec.normalize()
	}
	return doc, nil
}

// normalize replaces kinds missing from older records with empty lists.
func (r *userRecord) normalize() {
	for _, kind := range AllKinds {
		if list := r.list(kind); *list == nil {
			*list = []eventRecord{}
		}
	}
}

func encodeLedger(doc ledger) ([]byte, error) {
	data, err := codec.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to encode userlog document: %w", err)
	}
	return data, nil
}

func userKey(userID snowflake.ID) string {
	return strconv.FormatUint(uint64(userID), 10)
}

func toRecord(event Event) eventRecord {
	return eventRecord{
		Timestamp:  event.Timestamp.UTC().Format(TimestampLayout),
		IssuerID:   uint64(event.Issuer.ID),
		IssuerName: event.Issuer.Name,
		Reason:     event.Reason,
	}
}

func fromRecord(rec eventRecord) Event {
	// Unparseable timestamps surface as the zero time rather than failing the
	// whole log read.
	ts, _ := time.ParseInLocation(TimestampLayout, rec.Timestamp, time.UTC)

	return Event{
		Timestamp: ts,
		Issuer:    Issuer{ID: snowflake.ID(rec.IssuerID), Name: rec.IssuerName},
		Reason:    rec.Reason,
	}
}

func fromRecords(recs []eventRecord) []Event {
	events := make([]Event, len(recs))
	for i, rec := range recs {
		events[i] = fromRecord(rec)
	}
	return events
}
