package iot

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var ErrDecode = errors.New("message decode error")

type Kind string

const (
	KindSmoke        Kind = "smoke"
	KindTempHumidity Kind = "temp_humidity"
	KindButton       Kind = "button"
)

// Message is one uplink event as published by the network server.
type Message struct {
	DevEUI            string          `json:"devEUI"`
	DeviceProfileID   string          `json:"deviceProfileID"`
	DeviceProfileName string          `json:"deviceProfileName"`
	DeviceName        string          `json:"deviceName"`
	FCnt              *uint32         `json:"fCnt,omitempty"`
	Object            json.RawMessage `json:"object"`
}

// DecodeMessage parses a raw broker payload into a Message.
func DecodeMessage(payload []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if strings.TrimSpace(msg.DevEUI) == "" {
		return nil, fmt.Errorf("%w: devEUI is missing", ErrDecode)
	}
	return &msg, nil
}

// SmokePayload is either SmokeLegacy or SmokeStructured.
type SmokePayload interface {
	isSmokePayload()
}

type SmokeLegacy struct {
	WarningFlag float64
	Battery     float64
	Temperature float64
}

type SmokeStructured struct {
	SmokeAlarm    string
	HeatAlarm     string
	BatteryStatus string
	Temperature   float64
}

func (SmokeLegacy) isSmokePayload()     {}
func (SmokeStructured) isSmokePayload() {}

// ButtonPayload is either ButtonLegacy or ButtonStructured.
type ButtonPayload interface {
	isButtonPayload()
}

type ButtonLegacy struct {
	Value float64
}

type ButtonStructured struct {
	SOSEvent   string
	AntiTamper string
}

func (ButtonLegacy) isButtonPayload()     {}
func (ButtonStructured) isButtonPayload() {}

type TempHumidityPayload struct {
	Battery     float64
	Temperature float64
	Humidity    float64
}

// number accepts JSON numbers, numeric strings and booleans, which is what
// device codecs emit for the same field across firmware versions.
type number float64

func (n *number) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		*n = 0
	case bytes.Equal(b, []byte("true")):
		*n = 1
	case bytes.Equal(b, []byte("false")):
		*n = 0
	case len(b) > 0 && b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		if strings.TrimSpace(s) == "" {
			*n = 0
			return nil
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return fmt.Errorf("not a number: %q", s)
		}
		*n = number(f)
	default:
		var f float64
		if err := json.Unmarshal(b, &f); err != nil {
			return err
		}
		*n = number(f)
	}
	return nil
}

type envelopeObject struct {
	Data json.RawMessage `json:"data"`
}

type smokeLegacyFields struct {
	SmokeWarning number `json:"smoke_warning"`
	Battery      number `json:"battery"`
	Temperature  number `json:"temperature"`
}

type smokeStructuredFields struct {
	SmokeAlarm    string `json:"smoke_alarm"`
	HeatAlarm     string `json:"heat_alarm"`
	BatteryStatus string `json:"batteryStatus"`
	Temperature   number `json:"temperature"`
}

type buttonLegacyFields struct {
	Value number `json:"value"`
}

type buttonStructuredFields struct {
	SOSEvent   string `json:"sos_event"`
	AntiTamper string `json:"anti_tamper"`
}

type tempHumidityFields struct {
	Battery     number `json:"battery"`
	Temperature number `json:"temperature"`
	Humidity    number `json:"humidity"`
}

func isAbsent(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) == 0 || bytes.Equal(raw, []byte("null"))
}

// splitObject returns the object body and, when object.data is present, the
// nested categorical body. Exactly one of the two is non-nil.
func splitObject(raw json.RawMessage) (flat, nested json.RawMessage, err error) {
	if isAbsent(raw) {
		return nil, nil, fmt.Errorf("%w: object is missing", ErrDecode)
	}
	var obj envelopeObject
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, nil, fmt.Errorf("%w: object: %v", ErrDecode, err)
	}
	if isAbsent(obj.Data) {
		return raw, nil, nil
	}
	return nil, obj.Data, nil
}

func unmarshalFields(raw json.RawMessage, into any, where string) error {
	if err := json.Unmarshal(raw, into); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrDecode, where, err)
	}
	return nil
}

func decodeSmoke(raw json.RawMessage) (SmokePayload, error) {
	flat, nested, err := splitObject(raw)
	if err != nil {
		return nil, err
	}
	if nested != nil {
		var f smokeStructuredFields
		if err := unmarshalFields(nested, &f, "object.data"); err != nil {
			return nil, err
		}
		return SmokeStructured{
			SmokeAlarm:    f.SmokeAlarm,
			HeatAlarm:     f.HeatAlarm,
			BatteryStatus: f.BatteryStatus,
			Temperature:   float64(f.Temperature),
		}, nil
	}

	var f smokeLegacyFields
	if err := unmarshalFields(flat, &f, "object"); err != nil {
		return nil, err
	}
	return SmokeLegacy{
		WarningFlag: float64(f.SmokeWarning),
		Battery:     float64(f.Battery),
		Temperature: float64(f.Temperature),
	}, nil
}

func decodeButton(raw json.RawMessage) (ButtonPayload, error) {
	flat, nested, err := splitObject(raw)
	if err != nil {
		return nil, err
	}
	if nested != nil {
		var f buttonStructuredFields
		if err := unmarshalFields(nested, &f, "object.data"); err != nil {
			return nil, err
		}
		return ButtonStructured{SOSEvent: f.SOSEvent, AntiTamper: f.AntiTamper}, nil
	}

	var f buttonLegacyFields
	if err := unmarshalFields(flat, &f, "object"); err != nil {
		return nil, err
	}
	return ButtonLegacy{Value: float64(f.Value)}, nil
}

func decodeTempHumidity(raw json.RawMessage) (TempHumidityPayload, error) {
	flat, nested, err := splitObject(raw)
	if err != nil {
		return TempHumidityPayload{}, err
	}
	body, where := flat, "object"
	if nested != nil {
		body, where = nested, "object.data"
	}

	var f tempHumidityFields
	if err := unmarshalFields(body, &f, where); err != nil {
		return TempHumidityPayload{}, err
	}
	return TempHumidityPayload{
		Battery:     float64(f.Battery),
		Temperature: float64(f.Temperature),
		Humidity:    float64(f.Humidity),
	}, nil
}
