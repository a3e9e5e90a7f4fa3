package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

type ID = uint

const DayLayout = "2006-01-02"

// Day is a calendar date in DayLayout form. It partitions the gate log:
// every session belongs to the day its entry was recorded on.
type Day string

func DayOf(t time.Time) Day {
	return Day(t.Format(DayLayout))
}

func ParseDay(s string) (Day, error) {
	t, err := time.Parse(DayLayout, s)
	if err != nil {
		return "", fmt.Errorf("invalid day %q: %w", s, err)
	}
	return DayOf(t), nil
}

func (d Day) String() string {
	return string(d)
}

type SubjectStatus string

const (
	SubjectStatusActive   SubjectStatus = "Active"
	SubjectStatusInactive SubjectStatus = "Inactive"
)

// Attributes is an opaque key-value bag attached to a subject
// (department, cohort, contact info). Stored as jsonb.
type Attributes map[string]string

func (a Attributes) Value() (driver.Value, error) {
	if a == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(a)
}

func (a *Attributes) Scan(src any) error {
	switch src := src.(type) {
	case nil:
		*a = Attributes{}
		return nil
	case []byte:
		return json.Unmarshal(src, a)
	case string:
		return json.Unmarshal([]byte(src), a)
	default:
		return fmt.Errorf("attributes: cannot scan %T", src)
	}
}

type Subject struct {
	ID           string        `json:"id" db:"id"`
	DisplayName  string        `json:"displayName" db:"display_name"`
	Attributes   Attributes    `json:"attributes" db:"attributes"`
	Status       SubjectStatus `json:"status" db:"status"`
	RegisteredAt time.Time     `json:"registeredAt" db:"registered_at"`
	UpdatedAt    time.Time     `json:"updatedAt" db:"updated_at"`
}

type ScanMethod string

const (
	ScanMethodManual  ScanMethod = "manual"
	ScanMethodScanned ScanMethod = "scanned-source"
	ScanMethodOther   ScanMethod = "other"
)

type SessionRecord struct {
	ID        ID         `json:"id" db:"id"`
	SubjectID string     `json:"subjectId" db:"subject_id"`
	Day       Day        `json:"day" db:"log_day"`
	EntryTime time.Time  `json:"entryTime" db:"entry_time"`
	ExitTime  *time.Time `json:"exitTime" db:"exit_time"`
	Method    ScanMethod `json:"method" db:"method"`
	Notes     *string    `json:"notes,omitempty" db:"notes"`
}

// Open reports whether the subject is still inside.
func (r SessionRecord) Open() bool {
	return r.ExitTime == nil
}

type DayStats struct {
	Day             Day `json:"day"`
	TotalEntries    int `json:"totalEntries"`
	TotalExits      int `json:"totalExits"`
	CurrentlyInside int `json:"currentlyInside"`
}
