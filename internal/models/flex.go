package models

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// Провайдер отдаёт числа то как number, то как строку ("12.5", "1"),
// иногда null или "". Flex-типы принимают любой из вариантов.

type FlexFloat float64

func (f *FlexFloat) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*f = 0
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		if s == "" {
			*f = 0
			return nil
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			*f = 0
			return nil
		}
		*f = FlexFloat(v)
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*f = FlexFloat(v)
	return nil
}

type FlexInt int

func (f *FlexInt) UnmarshalJSON(b []byte) error {
	var ff FlexFloat
	if err := ff.UnmarshalJSON(b); err != nil {
		return err
	}
	*f = FlexInt(ff)
	return nil
}
