package iot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"liyu1981.xyz/iot-fire-alarm-service/pkg/actuator"
	"liyu1981.xyz/iot-fire-alarm-service/pkg/common"
	"liyu1981.xyz/iot-fire-alarm-service/pkg/db"
	"liyu1981.xyz/iot-fire-alarm-service/pkg/models"
	"liyu1981.xyz/iot-fire-alarm-service/pkg/push"
)

var (
	ErrPush           = errors.New("push notification failed")
	ErrActuatorLookup = errors.New("actuator lookup failed")
)

const AlertTitle = "Cảnh báo cháy"

func AlertBody(name string) string {
	return fmt.Sprintf("Thiết bị %s đang ở mức độ cảnh báo cháy", name)
}

type Pusher interface {
	SendMulticast(ctx context.Context, msg push.Message) error
}

type Downlinker interface {
	Enqueue(ctx context.Context, devEUI string, item actuator.QueueItem) error
}

type DownlinkResult struct {
	DevEUI string
	Err    error
}

// AlertReport collects the outcome of every step of one alert.
type AlertReport struct {
	DevEUI    string
	Tokens    int
	PushErr   error
	RecordErr error
	LookupErr error
	Downlinks []DownlinkResult
}

func (r *AlertReport) FailedDownlinks() []DownlinkResult {
	return common.Filter(r.Downlinks, func(d DownlinkResult) bool { return d.Err != nil })
}

func (r *AlertReport) Err() error {
	err := multierr.Combine(r.PushErr, r.RecordErr, r.LookupErr)
	for _, d := range r.Downlinks {
		err = multierr.Append(err, d.Err)
	}
	return err
}

func deviceTokens(users []models.User) []string {
	withToken := common.Filter(users, func(u models.User) bool {
		return u.DeviceToken != nil && strings.TrimSpace(*u.DeviceToken) != ""
	})
	return common.Mapper(withToken, func(u models.User) string { return *u.DeviceToken })
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func alertData(r Reading, now time.Time) map[string]string {
	return map[string]string{
		"title":      AlertTitle,
		"body":       AlertBody(r.Name),
		"$id":        r.DevEUI,
		"name":       r.Name,
		"time":       now.UTC().Format(time.RFC3339),
		"timeTurnOn": "",
		"battery":    formatNumber(r.Battery),
		"type":       r.Type,
		"value":      formatNumber(r.Value),
		"status":     string(r.Status),
	}
}

// dispatch runs the push and the downlink broadcast concurrently. Neither
// step can abort the other; the report carries every outcome.
func (i *IOT) dispatch(ctx context.Context, r Reading, now time.Time) *AlertReport {
	logger := common.GetLoggerWith(
		common.LoggerNameIOTCore,
		zap.String(common.LoggerFieldCategory, common.LoggerCategoryAlert),
	)

	report := &AlertReport{DevEUI: r.DevEUI}

	var g errgroup.Group
	g.Go(func() error {
		defer recoverInto(&report.PushErr)
		i.notifyUsers(ctx, r, now, report)
		return nil
	})
	g.Go(func() error {
		defer recoverInto(&report.LookupErr)
		report.Downlinks, report.LookupErr = i.broadcast(ctx, i.Options.Actuator.Downlink)
		return nil
	})
	_ = g.Wait()

	if err := report.Err(); err != nil {
		logger.Warn("Alert dispatched with failures",
			zap.String("dev_eui", r.DevEUI),
			zap.Int("tokens", report.Tokens),
			zap.Int("actuators", len(report.Downlinks)),
			zap.Int("failed_downlinks", len(report.FailedDownlinks())),
			zap.Error(err),
		)
	} else {
		logger.Info("Alert dispatched",
			zap.String("dev_eui", r.DevEUI),
			zap.Int("tokens", report.Tokens),
			zap.Int("actuators", len(report.Downlinks)),
		)
	}
	return report
}

// notifyUsers fills the push fields of report.
func (i *IOT) notifyUsers(ctx context.Context, r Reading, now time.Time, report *AlertReport) {
	users, err := db.NewUserRepository(i.Db).List(ctx, i.Options.UserListLimit, 0)
	if err != nil {
		report.PushErr = fmt.Errorf("%w: %w", ErrPush, err)
		return
	}

	tokens := deviceTokens(users)
	report.Tokens = len(tokens)

	body := AlertBody(r.Name)
	msg := push.Message{
		Title:  AlertTitle,
		Body:   body,
		Data:   alertData(r, now),
		Tokens: tokens,
	}
	if err := i.Pusher.SendMulticast(ctx, msg); err != nil {
		report.PushErr = fmt.Errorf("%w: %w", ErrPush, err)
		return
	}

	report.RecordErr = db.NewNotificationRepository(i.Db).Create(ctx, &models.Notification{
		ID:          uuid.NewString(),
		SensorID:    r.DevEUI,
		Title:       AlertTitle,
		Description: body,
		Time:        now,
	})
}

// broadcast enqueues item on every actuator. Sends are independent: a failed
// one never cancels the others, and every outcome is returned.
func (i *IOT) broadcast(ctx context.Context, item actuator.QueueItem) ([]DownlinkResult, error) {
	logger := common.GetLoggerWith(
		common.LoggerNameIOTCore,
		zap.String(common.LoggerFieldCategory, common.LoggerCategoryDownlink),
	)

	actuators, err := db.NewSensorRepository(i.Db).List(ctx, i.Options.Actuator.Type, i.Options.Actuator.ListLimit, 0)
	if err != nil {
		logger.Error("Actuator lookup failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrActuatorLookup, err)
	}

	results := make([]DownlinkResult, len(actuators))
	var g errgroup.Group
	if i.Options.Actuator.MaxInFlight > 0 {
		g.SetLimit(i.Options.Actuator.MaxInFlight)
	}
	for idx, a := range actuators {
		results[idx].DevEUI = a.DevEUI
		g.Go(func() error {
			defer recoverInto(&results[idx].Err)
			results[idx].Err = i.Downlinker.Enqueue(ctx, a.DevEUI, item)
			return nil
		})
	}
	_ = g.Wait()

	for _, res := range results {
		if res.Err != nil {
			logger.Warn("Downlink failed", zap.String("dev_eui", res.DevEUI), zap.Error(res.Err))
		}
	}
	return results, nil
}

func recoverInto(errp *error) {
	if p := recover(); p != nil {
		*errp = multierr.Append(*errp, fmt.Errorf("panic: %v", p))
	}
}

type IAlertImpl struct {
	iot *IOT
}

func (ia *IAlertImpl) Dispatch(ctx context.Context, r Reading, now time.Time) *AlertReport {
	return ia.iot.dispatch(ctx, r, now)
}

func (ia *IAlertImpl) Broadcast(ctx context.Context, item actuator.QueueItem) ([]DownlinkResult, error) {
	return ia.iot.broadcast(ctx, item)
}

func (i *IOT) GetIAlert() IAlert {
	return &IAlertImpl{iot: i}
}
