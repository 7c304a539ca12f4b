package models

import (
	"bytes"
	"encoding/json"
)

// NullableString is an optional JSON string field. Set is true when the key was
// present in the payload; Valid is false when it was present as null.
type NullableString struct {
	Set   bool
	Valid bool
	Value string
}

func (n *NullableString) UnmarshalJSON(b []byte) error {
	n.Set = true
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		n.Valid = false
		n.Value = ""
		return nil
	}
	if err := json.Unmarshal(b, &n.Value); err != nil {
		return err
	}
	n.Valid = true
	return nil
}

func (n NullableString) MarshalJSON() ([]byte, error) {
	if !n.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(n.Value)
}

// Ptr returns the value as a nullable column, nil for null.
func (n NullableString) Ptr() *string {
	if !n.Valid {
		return nil
	}
	v := n.Value
	return &v
}

// SetString returns a NullableString holding v.
func SetString(v string) NullableString {
	return NullableString{Set: true, Valid: true, Value: v}
}

// SetNull returns a NullableString that clears the field.
func SetNull() NullableString {
	return NullableString{Set: true}
}
