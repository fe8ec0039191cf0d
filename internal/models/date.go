package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"
)

const DateLayout = "2006-01-02"

// Date is a calendar date stored in a DATE column and serialized as "YYYY-MM-DD".
type Date datatypes.Date

func NewDate(year int, month time.Month, day int) Date {
	return Date(time.Date(year, month, day, 0, 0, 0, 0, time.UTC))
}

// InvalidDateError is returned for input that is not a "YYYY-MM-DD" string.
type InvalidDateError struct {
	Value string
}

func (e *InvalidDateError) Error() string {
	return "Date has wrong format. Use one of these formats instead: YYYY-MM-DD."
}

func ParseDate(raw string) (Date, error) {
	t, err := time.Parse(DateLayout, raw)
	if err != nil {
		return Date{}, &InvalidDateError{Value: raw}
	}
	return Date(t), nil
}

func (d Date) String() string { return time.Time(d).Format(DateLayout) }

func (d Date) Equal(other Date) bool { return d.String() == other.String() }

func (d *Date) Scan(value any) error {
	var text string
	switch v := value.(type) {
	case string:
		text = v
	case []byte:
		text = string(v)
	default:
		return (*datatypes.Date)(d).Scan(value)
	}
	parsed, err := parseStoredDate(text)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (d Date) Value() (driver.Value, error) {
	return datatypes.Date(d).Value()
}

func (Date) GormDataType() string { return "date" }

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return &InvalidDateError{Value: string(data)}
	}
	parsed, err := ParseDate(raw)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// some drivers hand DATE columns back as text
func parseStoredDate(s string) (Date, error) {
	if len(s) >= len(DateLayout) {
		if t, err := time.Parse(DateLayout, s[:len(DateLayout)]); err == nil {
			return Date(t), nil
		}
	}
	return Date{}, fmt.Errorf("unrecognized stored date %q", s)
}
