package common

import "time"

// Direction distinguishes the two letter doctypes. Every corpus query and
// every relation target is scoped by a direction value.
type Direction string

const (
	Incoming Direction = "incoming"
	Outgoing Direction = "outgoing"
)

// Opposite returns the other letter direction.
func (d Direction) Opposite() Direction {
	if d == Incoming {
		return Outgoing
	}
	return Incoming
}

// Valid reports whether d is one of the two known directions.
func (d Direction) Valid() bool {
	return d == Incoming || d == Outgoing
}

// Letter is a correspondence record. A letter's identity (Direction, ID) is
// immutable once created; all other fields are mutated only through the
// corpus update API.
//
// The direction decides which fields carry signal: an incoming letter has a
// sender and a summary keyed by the received date, an outgoing letter has a
// recipient and a body keyed by the sent date.
type Letter struct {
	ID            string     `json:"id"`
	Direction     Direction  `json:"direction"`
	Subject       string     `json:"subject"`
	Correspondent string     `json:"correspondent"`
	Summary       string     `json:"summary"`
	Body          string     `json:"body"`
	OCRText       string     `json:"ocr_text"`
	Date          *time.Time `json:"date"`

	Topics    []string       `json:"topics"`
	Relations []RelationLink `json:"relations"`
}

// Ref identifies a letter across directions.
type Ref struct {
	Direction Direction `json:"direction"`
	ID        string    `json:"id"`
}

// Origin marks how a relation link came to exist. Manual links are entered
// by users and survive recomputation; Auto links are replaced wholesale on
// every refresh.
type Origin string

const (
	OriginManual Origin = "Manual"
	OriginAuto   Origin = "Auto"
)

// RelationLink is a persisted relation between two letters. A letter holds
// at most one link per (target direction, target id) pair.
type RelationLink struct {
	Target Ref     `json:"target"`
	Score  float64 `json:"score"`
	Reason string  `json:"reason"`
	Origin Origin  `json:"origin"`
}

// Candidate is an ephemeral scored relation proposal produced by a single
// matcher. Candidates are never persisted; the aggregator merges them into
// Auto relation links.
type Candidate struct {
	Target Ref     `json:"target"`
	Score  float64 `json:"score"`
	Reason string  `json:"reason"`
}
