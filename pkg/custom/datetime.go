package custom

import (
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
)

// Datetime represents a datetime that round-trips through both JSON and BSON
// as an RFC3339 string.
type Datetime time.Time

// Now returns the current UTC time as a *Datetime. Used for optional
// timestamp fields such as the inactivity warning stamp.
func Now() *Datetime {
	d := Datetime(time.Now().UTC())
	return &d
}

// At wraps a time.Time as a *Datetime.
func At(t time.Time) *Datetime {
	d := Datetime(t.UTC())
	return &d
}

// Time returns the underlying time.Time. Safe on a nil receiver, in which
// case the zero time is returned.
func (d *Datetime) Time() time.Time {
	if d == nil {
		return time.Time{}
	}
	return time.Time(*d)
}

// MarshalJSON implements the json.Marshaler interface.
func (d *Datetime) MarshalJSON() ([]byte, error) {
	if d == nil || time.Time(*d).IsZero() {
		return nil, nil
	}
	return []byte(fmt.Sprintf(`%q`, time.Time(*d).UTC().Format(time.RFC3339))), nil
}

func (d *Datetime) MarshalBSONValue() (bsontype.Type, []byte, error) {
	if d == nil || time.Time(*d).IsZero() {
		return bson.TypeNull, nil, nil
	}
	return bson.MarshalValue(time.Time(*d).UTC().Format(time.RFC3339))
}

// UnmarshalJSON implements the json.Unmarshaler interface.
func (d *Datetime) UnmarshalJSON(text []byte) error {
	// Strip the surrounding quotes if present.
	reg := regexp.MustCompile(`"(.*)"`)
	text = reg.ReplaceAll(text, []byte("$1"))

	t, err := time.Parse(time.RFC3339, string(text))
	if err != nil {
		return err
	}
	*d = Datetime(t)
	return nil
}

func (d *Datetime) UnmarshalBSON(bytes []byte) error {
	if len(bytes) == 0 {
		return nil
	}

	// The BSON string value carries framing bytes around the RFC3339 text.
	got := regexp.MustCompile(`[^a-zA-Z0-9-:+.]`).ReplaceAllString(string(bytes), "")

	t, err := time.Parse(time.RFC3339, got)
	if err != nil {
		return fmt.Errorf("invalid datetime: %s", got)
	}

	*d = Datetime(t)
	return nil
}

// String implements the fmt.Stringer interface.
func (d Datetime) String() string {
	return time.Time(d).Format(time.RFC3339)
}
