package iot

import (
	"fmt"

	"go.uber.org/multierr"
)

// Profiles maps configured device profile IDs to sensor kinds.
type Profiles struct {
	Smoke        string
	TempHumidity string
	Button       string
}

// Match is one kind a message was classified as, with its payload decoded.
// Exactly one of the payload fields is set, according to Kind.
type Match struct {
	Kind         Kind
	Smoke        SmokePayload
	Button       ButtonPayload
	TempHumidity *TempHumidityPayload
}

// Classify evaluates msg against every profile in turn. A message may match
// more than one kind when profile IDs are misconfigured; each match is kept.
// No matches means the profile is unrecognized. A branch whose payload cannot
// be decoded is left out and reported in the returned error, the others are
// still returned.
func (p Profiles) Classify(msg *Message) ([]Match, error) {
	var matches []Match
	var errs error

	if matchesProfile(p.Smoke, msg.DeviceProfileID) {
		payload, err := decodeSmoke(msg.Object)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("smoke: %w", err))
		} else {
			matches = append(matches, Match{Kind: KindSmoke, Smoke: payload})
		}
	}

	if matchesProfile(p.TempHumidity, msg.DeviceProfileID) {
		payload, err := decodeTempHumidity(msg.Object)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("temp_humidity: %w", err))
		} else {
			matches = append(matches, Match{Kind: KindTempHumidity, TempHumidity: &payload})
		}
	}

	if matchesProfile(p.Button, msg.DeviceProfileID) {
		payload, err := decodeButton(msg.Object)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("button: %w", err))
		} else {
			matches = append(matches, Match{Kind: KindButton, Button: payload})
		}
	}

	return matches, errs
}

func matchesProfile(configured, profileID string) bool {
	return configured != "" && configured == profileID
}
