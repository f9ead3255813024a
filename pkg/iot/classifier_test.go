package iot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, payload string) *Message {
	t.Helper()
	msg, err := DecodeMessage([]byte(payload))
	require.NoError(t, err)
	return msg
}

func TestDecodeMessageRejectsMalformedPayloads(t *testing.T) {
	for _, payload := range []string{
		`not json`,
		`{"devEUI": "E1"`,
		`[1,2,3]`,
		`{"deviceProfileID": "p-smoke", "object": {}}`,
		`{"devEUI": "   "}`,
	} {
		_, err := DecodeMessage([]byte(payload))
		assert.ErrorIs(t, err, ErrDecode, payload)
	}
}

func TestDecodeMessageKeepsFrameCounter(t *testing.T) {
	msg := decode(t, `{"devEUI":"E1","fCnt":42,"object":{}}`)
	require.NotNil(t, msg.FCnt)
	assert.Equal(t, uint32(42), *msg.FCnt)

	msg = decode(t, `{"devEUI":"E1","object":{}}`)
	assert.Nil(t, msg.FCnt)
}

func TestClassifySmokeSchemas(t *testing.T) {
	profiles := Profiles{Smoke: "s", TempHumidity: "th", Button: "b"}

	legacy := decode(t, `{"devEUI":"E1","deviceProfileID":"s","object":{"smoke_warning":1,"battery":87,"temperature":31.5}}`)
	matches, err := profiles.Classify(legacy)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, KindSmoke, matches[0].Kind)
	assert.Equal(t, SmokeLegacy{WarningFlag: 1, Battery: 87, Temperature: 31.5}, matches[0].Smoke)

	structured := decode(t, `{"devEUI":"E1","deviceProfileID":"s","object":{"data":{"smoke_alarm":"Danger","heat_alarm":"Normal","batteryStatus":"Normal","temperature":45}}}`)
	matches, err = profiles.Classify(structured)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, SmokeStructured{SmokeAlarm: "Danger", HeatAlarm: "Normal", BatteryStatus: "Normal", Temperature: 45}, matches[0].Smoke)
}

func TestClassifyButtonSchemas(t *testing.T) {
	profiles := Profiles{Smoke: "s", TempHumidity: "th", Button: "b"}

	matches, err := profiles.Classify(decode(t, `{"devEUI":"B1","deviceProfileID":"b","object":{"value":"1"}}`))
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, ButtonLegacy{Value: 1}, matches[0].Button)

	matches, err = profiles.Classify(decode(t, `{"devEUI":"B1","deviceProfileID":"b","object":{"data":{"sos_event":"Danger","anti_tamper":"Open"}}}`))
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, ButtonStructured{SOSEvent: "Danger", AntiTamper: "Open"}, matches[0].Button)
}

func TestClassifyTempHumidity(t *testing.T) {
	profiles := Profiles{Smoke: "s", TempHumidity: "th", Button: "b"}

	matches, err := profiles.Classify(decode(t, `{"devEUI":"T1","deviceProfileID":"th","object":{"battery":90,"temperature":22.5,"humidity":61}}`))
	require.NoError(t, err)
	require.Len(t, matches, 1)
	require.NotNil(t, matches[0].TempHumidity)
	assert.Equal(t, TempHumidityPayload{Battery: 90, Temperature: 22.5, Humidity: 61}, *matches[0].TempHumidity)
}

func TestClassifyUnrecognized(t *testing.T) {
	profiles := Profiles{Smoke: "s", TempHumidity: "th", Button: "b"}

	matches, err := profiles.Classify(decode(t, `{"devEUI":"X1","deviceProfileID":"other","object":{"value":1}}`))
	assert.NoError(t, err)
	assert.Empty(t, matches)
}

func TestClassifyEmptyProfileNeverMatches(t *testing.T) {
	profiles := Profiles{Smoke: "s", TempHumidity: "th"}

	matches, err := profiles.Classify(decode(t, `{"devEUI":"X1","object":{"value":1}}`))
	assert.NoError(t, err)
	assert.Empty(t, matches)
}

func TestClassifyEvaluatesEveryProfile(t *testing.T) {
	// misconfigured: the same ID for two kinds
	profiles := Profiles{Smoke: "shared", TempHumidity: "th", Button: "shared"}

	matches, err := profiles.Classify(decode(t, `{"devEUI":"X1","deviceProfileID":"shared","object":{"smoke_warning":0,"value":1}}`))
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, KindSmoke, matches[0].Kind)
	assert.Equal(t, KindButton, matches[1].Kind)
}

func TestClassifyBadObjectDropsOnlyThatBranch(t *testing.T) {
	profiles := Profiles{Smoke: "shared", Button: "shared"}

	matches, err := profiles.Classify(decode(t, `{"devEUI":"X1","deviceProfileID":"shared","object":{"smoke_warning":"high","value":1}}`))
	assert.ErrorIs(t, err, ErrDecode)
	require.Len(t, matches, 1)
	assert.Equal(t, KindButton, matches[0].Kind)

	matches, err = profiles.Classify(decode(t, `{"devEUI":"X1","deviceProfileID":"shared"}`))
	assert.ErrorIs(t, err, ErrDecode)
	assert.Empty(t, matches)
}

func TestNumberAcceptsCodecVariants(t *testing.T) {
	profiles := Profiles{Smoke: "s"}

	for payload, want := range map[string]float64{
		`{"devEUI":"E1","deviceProfileID":"s","object":{"smoke_warning":true}}`:  1,
		`{"devEUI":"E1","deviceProfileID":"s","object":{"smoke_warning":false}}`: 0,
		`{"devEUI":"E1","deviceProfileID":"s","object":{"smoke_warning":"2"}}`:   2,
		`{"devEUI":"E1","deviceProfileID":"s","object":{"smoke_warning":null}}`:  0,
		`{"devEUI":"E1","deviceProfileID":"s","object":{}}`:                      0,
	} {
		matches, err := profiles.Classify(decode(t, payload))
		require.NoError(t, err, payload)
		require.Len(t, matches, 1)
		assert.Equal(t, want, matches[0].Smoke.(SmokeLegacy).WarningFlag, payload)
	}
}
