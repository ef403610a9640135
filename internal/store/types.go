package store

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// StringArray is a JSON-encoded []string column, used for Offer.Tags.
// Postgres stores it in a jsonb column; the in-memory sqlite test
// driver stores the same bytes in a text column, so no dialect-specific
// array type is required.
type StringArray []string

// Value implements driver.Valuer.
func (a StringArray) Value() (driver.Value, error) {
	if a == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(a)
}

// Scan implements sql.Scanner.
func (a *StringArray) Scan(src any) error {
	if src == nil {
		*a = nil
		return nil
	}
	var raw []byte
	switch v := src.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("store: unsupported Scan source %T for StringArray", src)
	}
	if len(raw) == 0 {
		*a = nil
		return nil
	}
	return json.Unmarshal(raw, a)
}

// Contains reports whether every element of want is present in a
// (AND-match array containment, used by the offer catalog's tags filter).
func (a StringArray) Contains(want []string) bool {
	have := make(map[string]struct{}, len(a))
	for _, t := range a {
		have[t] = struct{}{}
	}
	for _, w := range want {
		if _, ok := have[w]; !ok {
			return false
		}
	}
	return true
}
