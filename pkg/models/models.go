package models

import "time"

type Status string

const (
	StatusOn      Status = "on"
	StatusOff     Status = "off"
	StatusWarning Status = "warning"
	StatusFire    Status = "fire"
)

// Sensor is the persisted state of one device, keyed by its EUI.
type Sensor struct {
	DevEUI           string `gorm:"primaryKey;column:dev_eui"`
	Name             string
	Time             time.Time
	TimeTurnOn       string
	Battery          float64
	Type             string `gorm:"index"`
	Value            float64
	Humidity         float64
	Smoke            float64
	Temperature      float64
	Status           Status `gorm:"type:varchar(10);check:status IN ('on','off','warning','fire')"`
	LastNotification *time.Time
}

type User struct {
	ID          string `gorm:"primaryKey"`
	Name        string
	DeviceToken *string
}

type Notification struct {
	ID          string `gorm:"primaryKey"`
	SensorID    string `gorm:"index"`
	Title       string
	Description string
	Time        time.Time `gorm:"index"`
}

type SessionLog struct {
	ID   uint `gorm:"primaryKey"`
	Log  string
	Time time.Time
	Type string
}
