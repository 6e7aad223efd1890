// Package record derives synthetic user records from a sequence number.
// Every field is a pure function of the id and the base instant: no
// randomness, no wall clock.
package record

import (
	"strconv"
	"time"
)

const (
	usernamePrefix = "user_"
	emailDomain    = "example.com"

	// createdAt renders without an offset and appends a literal Z.
	secondLayout = "2006-01-02T15:04:05"
	microLayout  = "2006-01-02T15:04:05.000000"
)

// Record is one line of the fixture file. Field order is the key order on
// the wire.
type Record struct {
	ID        int    `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	IsActive  bool   `json:"isActive"`
	CreatedAt string `json:"createdAt"`
}

// New builds the record with the given id. The base instant is read in UTC.
func New(id int, base time.Time) Record {
	username := Username(id)
	return Record{
		ID:        id,
		Username:  username,
		Email:     username + "@" + emailDomain,
		IsActive:  id%2 == 0,
		CreatedAt: FormatTime(offset(base, id)),
	}
}

// offset adds id seconds to base. Whole days go through AddDate so ids past
// the range of time.Duration do not overflow.
func offset(base time.Time, id int) time.Time {
	const day = 24 * 60 * 60
	return base.UTC().AddDate(0, 0, id/day).Add(time.Duration(id%day) * time.Second)
}

// Username returns "user_<id>".
func Username(id int) string {
	return usernamePrefix + strconv.Itoa(id)
}

// FormatTime renders t in UTC as YYYY-MM-DDTHH:MM:SS followed by Z.
// Microseconds are included only when non-zero.
func FormatTime(t time.Time) string {
	t = t.UTC()
	if t.Nanosecond()/int(time.Microsecond) != 0 {
		return t.Format(microLayout) + "Z"
	}
	return t.Format(secondLayout) + "Z"
}
