package http

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"liyu1981.xyz/iot-fire-alarm-service/pkg/actuator"
	"liyu1981.xyz/iot-fire-alarm-service/pkg/common"
	"liyu1981.xyz/iot-fire-alarm-service/pkg/db"
	"liyu1981.xyz/iot-fire-alarm-service/pkg/models"
	"liyu1981.xyz/iot-fire-alarm-service/pkg/mqtt"

	z "github.com/Oudwins/zog"
	"github.com/Oudwins/zog/zhttp"
)

const defaultPageSize = 50

type SensorResponse struct {
	DevEUI           string        `json:"devEUI"`
	Name             string        `json:"name"`
	Time             time.Time     `json:"time"`
	TimeTurnOn       string        `json:"timeTurnOn"`
	Battery          float64       `json:"battery"`
	Type             string        `json:"type"`
	Value            float64       `json:"value"`
	Humidity         float64       `json:"humidity"`
	Smoke            float64       `json:"smoke"`
	Temperature      float64       `json:"temperature"`
	Status           models.Status `json:"status"`
	LastNotification *time.Time    `json:"lastNotification,omitempty"`
}

func toSensorResponse(s models.Sensor) SensorResponse {
	return SensorResponse{
		DevEUI:           s.DevEUI,
		Name:             s.Name,
		Time:             s.Time,
		TimeTurnOn:       s.TimeTurnOn,
		Battery:          s.Battery,
		Type:             s.Type,
		Value:            s.Value,
		Humidity:         s.Humidity,
		Smoke:            s.Smoke,
		Temperature:      s.Temperature,
		Status:           s.Status,
		LastNotification: s.LastNotification,
	}
}

type NotificationResponse struct {
	ID          string    `json:"id"`
	SensorID    string    `json:"sensorId"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Time        time.Time `json:"time"`
}

type SensorQuery struct {
	Type   string `form:"type"`
	Limit  int    `form:"limit" binding:"omitempty,min=1,max=1000"`
	Offset int    `form:"offset" binding:"omitempty,min=0"`
}

type NotificationQuery struct {
	SensorID string `form:"sensor_id"`
	Limit    int    `form:"limit" binding:"omitempty,min=1,max=1000"`
}

type DownlinkRequest struct {
	Data      string `json:"data" zog:"data"`
	FPort     int    `json:"fPort" zog:"fPort"`
	Confirmed bool   `json:"confirmed" zog:"confirmed"`
}

// LoRaWAN application ports are 1..223
var downlinkRequestSchema = z.Struct(z.Shape{
	"data":      z.String().Required(),
	"fPort":     z.Int().Required().GTE(1).LTE(223),
	"confirmed": z.Bool(),
})

type DownlinkResult struct {
	DevEUI string `json:"devEUI"`
	OK     bool   `json:"ok"`
	Error  string `json:"error,omitempty"`
}

type DownlinkResponse struct {
	Devices int              `json:"devices"`
	Failed  int              `json:"failed"`
	Results []DownlinkResult `json:"results"`
}

func (rs *RestfulServer) HealthCheck(c *gin.Context) {
	if rs.Session == nil {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
		return
	}

	state := rs.Session.State()
	if state != mqtt.Connected {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "mqtt": state.String()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "mqtt": state.String()})
}

func (rs *RestfulServer) ListSensors(c *gin.Context) {
	var q SensorQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if q.Limit == 0 {
		q.Limit = defaultPageSize
	}

	sensors, err := db.NewSensorRepository(rs.Iot.Db).List(c.Request.Context(), q.Type, q.Limit, q.Offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, common.Mapper(sensors, toSensorResponse))
}

func (rs *RestfulServer) GetSensor(c *gin.Context) {
	devEUI := c.Param("dev_eui")

	sensor, err := db.NewSensorRepository(rs.Iot.Db).FindByDevEUI(c.Request.Context(), devEUI)
	if errors.Is(err, db.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "sensor not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, toSensorResponse(*sensor))
}

func (rs *RestfulServer) ListNotifications(c *gin.Context) {
	var q NotificationQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if q.Limit == 0 {
		q.Limit = defaultPageSize
	}

	notifications, err := db.NewNotificationRepository(rs.Iot.Db).List(c.Request.Context(), q.SensorID, q.Limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, common.Mapper(notifications, func(n models.Notification) NotificationResponse {
		return NotificationResponse{
			ID:          n.ID,
			SensorID:    n.SensorID,
			Title:       n.Title,
			Description: n.Description,
			Time:        n.Time,
		}
	}))
}

// PostDownlink enqueues a command on every actuator, the same broadcast a
// fire alert triggers.
func (rs *RestfulServer) PostDownlink(c *gin.Context) {
	logger := common.GetLoggerWith(
		common.LoggerNameRestfulServer,
		zap.String(common.LoggerFieldCategory, common.LoggerCategoryDownlink),
	)

	if !rs.CheckClientLimiter(c.ClientIP()) {
		c.Status(http.StatusTooManyRequests)
		return
	}

	var req DownlinkRequest
	if errs := downlinkRequestSchema.Parse(zhttp.Request(c.Request), &req); errs != nil {
		issues := map[string][]string{}
		for path, list := range errs {
			for _, issue := range list {
				issues[path] = append(issues[path], fmt.Sprint(issue))
			}
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": issues})
		return
	}
	if _, err := base64.StdEncoding.DecodeString(req.Data); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "data must be base64"})
		return
	}

	results, err := rs.Iot.Alert.Broadcast(c.Request.Context(), actuator.QueueItem{
		Data:      req.Data,
		FPort:     req.FPort,
		Confirmed: req.Confirmed,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := DownlinkResponse{Devices: len(results), Results: make([]DownlinkResult, 0, len(results))}
	for _, r := range results {
		item := DownlinkResult{DevEUI: r.DevEUI, OK: r.Err == nil}
		if r.Err != nil {
			item.Error = r.Err.Error()
			resp.Failed++
		}
		resp.Results = append(resp.Results, item)
	}
	logger.Info("Manual downlink sent",
		zap.String("client", c.ClientIP()),
		zap.Int("devices", resp.Devices),
		zap.Int("failed", resp.Failed),
	)

	c.JSON(http.StatusOK, resp)
}
