package iot

import (
	"liyu1981.xyz/iot-fire-alarm-service/pkg/common"
	"liyu1981.xyz/iot-fire-alarm-service/pkg/models"
)

const (
	alarmDanger  = "Danger"
	statusNormal = "Normal"
)

// Reading is the normalized state derived from one classified message.
type Reading struct {
	DevEUI      string
	Kind        Kind
	Name        string
	Type        string
	Status      models.Status
	Battery     float64
	Temperature float64
	Humidity    float64
	Value       float64
	AntiTamper  string
}

// IsFire reports whether the reading should raise an alert. Only smoke and
// button kinds can.
func (r Reading) IsFire() bool {
	return r.Status == models.StatusFire && (r.Kind == KindSmoke || r.Kind == KindButton)
}

func Derive(msg *Message, m Match) Reading {
	r := Reading{
		DevEUI: msg.DevEUI,
		Kind:   m.Kind,
		Name:   common.FirstSegment(msg.DeviceName, "_"),
		Type:   msg.DeviceProfileName,
	}

	switch m.Kind {
	case KindSmoke:
		r.Status, r.Battery, r.Temperature = DeriveSmoke(m.Smoke)
		r.Value = r.Temperature
	case KindTempHumidity:
		if m.TempHumidity != nil {
			r.Status = models.StatusOn
			r.Battery = m.TempHumidity.Battery
			r.Temperature = m.TempHumidity.Temperature
			r.Humidity = m.TempHumidity.Humidity
			r.Value = m.TempHumidity.Temperature
		}
	case KindButton:
		r.Status = DeriveButton(m.Button)
		if structured, ok := m.Button.(ButtonStructured); ok {
			r.AntiTamper = structured.AntiTamper
		}
	}

	return r
}

// DeriveSmoke returns status, battery and temperature for a smoke payload.
func DeriveSmoke(p SmokePayload) (models.Status, float64, float64) {
	switch v := p.(type) {
	case SmokeStructured:
		status := models.StatusOn
		if v.SmokeAlarm == alarmDanger || v.HeatAlarm == alarmDanger {
			status = models.StatusFire
		}
		battery := 0.0
		if v.BatteryStatus == statusNormal {
			battery = 100
		}
		return status, battery, v.Temperature
	case SmokeLegacy:
		status := models.StatusOn
		if v.WarningFlag != 0 {
			status = models.StatusFire
		}
		return status, v.Battery, v.Temperature
	}
	return models.StatusOn, 0, 0
}

func DeriveButton(p ButtonPayload) models.Status {
	switch v := p.(type) {
	case ButtonStructured:
		if v.SOSEvent == alarmDanger {
			return models.StatusFire
		}
	case ButtonLegacy:
		if v.Value != 0 {
			return models.StatusFire
		}
	}
	return models.StatusOn
}
