package goqsw

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// decodeResult unpacks the result container of a response into out. A
// missing container is a structural failure of the whole operation; it is
// never default-filled.
func decodeResult(resp *Response, out any) error {
	if resp == nil || len(resp.Result) == 0 || bytes.Equal(resp.Result, []byte("null")) {
		return fmt.Errorf("%w: missing result", ErrAPI)
	}
	if err := json.Unmarshal(resp.Result, out); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	return nil
}

// resultIsNone reports whether the result container holds the literal "None"
// that command-style endpoints return on success.
func resultIsNone(resp *Response) bool {
	if resp == nil || resp.Result == nil {
		return false
	}
	var s string
	return json.Unmarshal(resp.Result, &s) == nil && s == resultNone
}

// flexString decodes a JSON string or number. The firmware endpoints are
// inconsistent about which one they send for version-like fields.
type flexString string

func (s *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*s = flexString(v)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*s = flexString(n.String())
	return nil
}

func strVal(v *flexString) *string {
	if v == nil {
		return nil
	}
	s := string(*v)
	return &s
}

func putStr(data map[string]any, key string, v *string) {
	if v != nil {
		data[key] = *v
	}
}

func putBool(data map[string]any, key string, v *bool) {
	if v != nil {
		data[key] = *v
	}
}

func putInt(data map[string]any, key string, v *int) {
	if v != nil {
		data[key] = *v
	}
}

func putInt64(data map[string]any, key string, v *int64) {
	if v != nil {
		data[key] = *v
	}
}
