package iot

import (
	"context"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"liyu1981.xyz/iot-fire-alarm-service/pkg/actuator"
	"liyu1981.xyz/iot-fire-alarm-service/pkg/common"
	"liyu1981.xyz/iot-fire-alarm-service/pkg/db"
)

type IState interface {
	Write(ctx context.Context, r Reading, now time.Time) error
}

type IAlert interface {
	Dispatch(ctx context.Context, r Reading, now time.Time) *AlertReport
	Broadcast(ctx context.Context, item actuator.QueueItem) ([]DownlinkResult, error)
}

type ActuatorOptions struct {
	Type        string
	ListLimit   int
	MaxInFlight int
	Downlink    actuator.QueueItem
}

type Options struct {
	Profiles      Profiles
	Actuator      ActuatorOptions
	UserListLimit int
	Reset         ResetPolicy
}

type IOT struct {
	Db         *db.DB
	Options    Options
	Pusher     Pusher
	Downlinker Downlinker

	State    IState
	Alert    IAlert
	Cooldown Cooldown
	Dedup    *DuplicateFilter

	now func() time.Time
}

type ServiceOpts struct {
	State    IState
	Alert    IAlert
	Cooldown Cooldown
	Dedup    *DuplicateFilter
}

func New(d *db.DB, opts Options, pusher Pusher, downlinker Downlinker) *IOT {
	if opts.Actuator.Type == "" {
		opts.Actuator.Type = "Speaker"
	}
	if opts.Actuator.ListLimit <= 0 {
		opts.Actuator.ListLimit = 100000
	}
	if opts.UserListLimit <= 0 {
		opts.UserListLimit = 100000
	}

	i := &IOT{
		Db:         d,
		Options:    opts,
		Pusher:     pusher,
		Downlinker: downlinker,
		Cooldown:   NoCooldown{},
		now:        time.Now,
	}
	i.State = i.GetIState()
	i.Alert = i.GetIAlert()
	return i
}

func (i *IOT) WithServices(opts ServiceOpts) *IOT {
	if opts.State != nil {
		i.State = opts.State
	}
	if opts.Alert != nil {
		i.Alert = opts.Alert
	}
	if opts.Cooldown != nil {
		i.Cooldown = opts.Cooldown
	}
	if opts.Dedup != nil {
		i.Dedup = opts.Dedup
	}
	return i
}

// Outcome describes what one message led to.
type Outcome struct {
	DevEUI    string
	Duplicate bool
	Readings  []Reading
	Alerts    []*AlertReport
	// Throttled counts fire readings the cooldown held back.
	Throttled int
	Errors    error
}

func (o *Outcome) Unrecognized() bool {
	return !o.Duplicate && len(o.Readings) == 0 && o.Errors == nil
}

// HandleMessage runs the whole pipeline for one broker message. It returns an
// error only when the payload cannot be decoded at all; failures of single
// steps are collected in Outcome.Errors and never stop the other steps.
func (i *IOT) HandleMessage(ctx context.Context, topic string, payload []byte) (*Outcome, error) {
	logger := common.GetLoggerWith(
		common.LoggerNameIOTCore,
		zap.String(common.LoggerFieldCategory, common.LoggerCategoryClassify),
	)

	msg, err := DecodeMessage(payload)
	if err != nil {
		logger.Warn("Message dropped", zap.String("topic", topic), zap.Error(err))
		return nil, err
	}

	outcome := &Outcome{DevEUI: msg.DevEUI}

	if i.Dedup != nil && i.Dedup.Seen(msg.DevEUI, msg.FCnt) {
		common.GetLoggerWith(
			common.LoggerNameIOTCore,
			zap.String(common.LoggerFieldCategory, common.LoggerCategoryDedup),
		).Info("Duplicate uplink dropped", zap.String("dev_eui", msg.DevEUI), zap.Uint32p("f_cnt", msg.FCnt))
		outcome.Duplicate = true
		return outcome, nil
	}

	matches, err := i.Options.Profiles.Classify(msg)
	if err != nil {
		logger.Warn("Payload branch dropped", zap.String("dev_eui", msg.DevEUI), zap.Error(err))
		outcome.Errors = multierr.Append(outcome.Errors, err)
	}
	if len(matches) == 0 && err == nil {
		logger.Debug("Unrecognized device profile",
			zap.String("dev_eui", msg.DevEUI),
			zap.String("device_profile_id", msg.DeviceProfileID),
		)
		return outcome, nil
	}

	now := i.now()
	for _, m := range matches {
		r := Derive(msg, m)
		outcome.Readings = append(outcome.Readings, r)
		if r.AntiTamper != "" {
			logger.Debug("Anti tamper reported", zap.String("dev_eui", r.DevEUI), zap.String("anti_tamper", r.AntiTamper))
		}

		if err := i.State.Write(ctx, r, now); err != nil {
			outcome.Errors = multierr.Append(outcome.Errors, err)
		}

		if !r.IsFire() {
			continue
		}
		if !i.allowAlert(ctx, r, now) {
			outcome.Throttled++
			continue
		}
		report := i.Alert.Dispatch(ctx, r, now)
		outcome.Alerts = append(outcome.Alerts, report)
		outcome.Errors = multierr.Append(outcome.Errors, report.Err())
	}

	return outcome, nil
}

// allowAlert consults the cooldown; a failing cooldown store lets the alert through.
func (i *IOT) allowAlert(ctx context.Context, r Reading, now time.Time) bool {
	logger := common.GetLoggerWith(
		common.LoggerNameIOTCore,
		zap.String(common.LoggerFieldCategory, common.LoggerCategoryCooldown),
	)

	ok, err := i.Cooldown.Allow(ctx, r.DevEUI, now)
	if err != nil {
		logger.Error("Cooldown check failed", zap.String("dev_eui", r.DevEUI), zap.Error(err))
		return true
	}
	if !ok {
		logger.Info("Alert suppressed by cooldown", zap.String("dev_eui", r.DevEUI))
	}
	return ok
}
