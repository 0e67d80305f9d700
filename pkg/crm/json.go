package crm

import (
	"bytes"
	"strconv"
)

// The pipelines endpoint serializes stage metadata values as strings
// ("true", "0.5") in some API versions and as native JSON types in others.
// These wrappers accept both.

type flexibleBool bool

func (b *flexibleBool) UnmarshalJSON(data []byte) error {
	data = bytes.Trim(data, `"`)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*b = false
		return nil
	}
	v, err := strconv.ParseBool(string(data))
	if err != nil {
		return err
	}
	*b = flexibleBool(v)
	return nil
}

type flexibleNumber float64

func (n *flexibleNumber) UnmarshalJSON(data []byte) error {
	data = bytes.Trim(data, `"`)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*n = 0
		return nil
	}
	v, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return err
	}
	*n = flexibleNumber(v)
	return nil
}
