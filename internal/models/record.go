package models

import "time"

// QueueRecord is one walk-up party on the tasting-room waitlist. The record
// store assigns ID; everything else is written through staff or guest
// operations.
type QueueRecord struct {
	ID                 string     `json:"id"`
	GuestName          string     `json:"guestName"`
	PhoneNumber        string     `json:"phoneNumber"`
	PartySize          int        `json:"partySize"`
	Status             string     `json:"status"`
	SortOrder          int        `json:"sortOrder"`
	CheckInTime        time.Time  `json:"checkInTimestamp"`
	ServedTime         *time.Time `json:"servedTimestamp,omitempty"`
	LastNotifiedAt     *time.Time `json:"lastNotifiedAt,omitempty"`
	ClaimedAt          *time.Time `json:"claimedAt,omitempty"`
	ClaimedBy          string     `json:"claimedBy,omitempty"`
	AttemptCounter     int        `json:"attemptCounter"`
	CallTextLog        string     `json:"callTextLog,omitempty"`
	PriorityFlagVIP    bool       `json:"priorityFlagVip"`
	ReAddedToQueue     bool       `json:"reAddedToQueue"`
	SkipReason         string     `json:"skipReason,omitempty"`
	NoShowReason       string     `json:"noShowReason,omitempty"`
	Notes              string     `json:"notes,omitempty"`
	SpecialRequests    string     `json:"specialRequests,omitempty"`
	TextCallPreference string     `json:"textCallPreference,omitempty"`
}

const (
	StatusWaiting   = "waiting"
	StatusNotified  = "notified"
	StatusInService = "in_service"
	StatusServed    = "served"
	StatusSkipped   = "skipped"
	StatusNoShow    = "no_show"
	StatusRemoved   = "removed"
	StatusError     = "error"
)

const (
	PreferenceText = "text"
	PreferenceCall = "call"
)

const (
	MinPartySize = 1
	MaxPartySize = 12
)

func ValidStatus(status string) bool {
	switch status {
	case StatusWaiting, StatusNotified, StatusInService, StatusServed,
		StatusSkipped, StatusNoShow, StatusRemoved, StatusError:
		return true
	}
	return false
}

// TerminalStatus reports whether no further transitions leave the status.
func TerminalStatus(status string) bool {
	return status == StatusServed || status == StatusRemoved
}

func ValidPreference(pref string) bool {
	return pref == PreferenceText || pref == PreferenceCall
}
