package main

import (
	"context"
	"errors"
	"log"
	"net"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"liyu1981.xyz/iot-fire-alarm-service/pkg/actuator"
	"liyu1981.xyz/iot-fire-alarm-service/pkg/common"
	"liyu1981.xyz/iot-fire-alarm-service/pkg/config"
	"liyu1981.xyz/iot-fire-alarm-service/pkg/db"
	iotGrpc "liyu1981.xyz/iot-fire-alarm-service/pkg/grpc"
	iotHttp "liyu1981.xyz/iot-fire-alarm-service/pkg/http"
	"liyu1981.xyz/iot-fire-alarm-service/pkg/iot"
	"liyu1981.xyz/iot-fire-alarm-service/pkg/mqtt"
	"liyu1981.xyz/iot-fire-alarm-service/pkg/push"
)

const shutdownTimeout = 15 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration, copy .env.example to .env first if in development: %v", err)
	}

	logger := common.GetLogger()
	defer func() { _ = logger.Sync() }()

	dbInstance, err := db.New(dialector(cfg.DB))
	if err != nil {
		logger.Fatal("Database unavailable", zap.Error(err))
	}
	defer func() { _ = dbInstance.Close() }()

	fcmClient, err := push.NewFCMClient(ctx, push.Credentials{
		ProjectID:   cfg.Push.ProjectID,
		File:        cfg.Push.CredentialsFile,
		ClientEmail: cfg.Push.ClientEmail,
		PrivateKey:  cfg.Push.PrivateKey,
	})
	if err != nil {
		logger.Fatal("Push gateway unavailable", zap.Error(err))
	}

	actuatorClient := actuator.NewClient(cfg.Actuator.APIURL, cfg.Actuator.APIToken, cfg.Actuator.HTTPTimeout)

	iotCore := iot.New(dbInstance, iot.Options{
		Profiles: iot.Profiles{
			Smoke:        cfg.Profiles.SmokeID,
			TempHumidity: cfg.Profiles.TempHumidityID,
			Button:       cfg.Profiles.ButtonID,
		},
		Actuator: iot.ActuatorOptions{
			Type:        cfg.Actuator.Type,
			ListLimit:   cfg.Actuator.ListLimit,
			MaxInFlight: cfg.Actuator.MaxInFlight,
			Downlink: actuator.QueueItem{
				Data:      cfg.Actuator.DownlinkData,
				FPort:     cfg.Actuator.FPort,
				Confirmed: cfg.Actuator.Confirmed,
			},
		},
		UserListLimit: cfg.Push.UserListLimit,
		Reset: iot.ResetPolicy{
			ClearTurnOnTime:       cfg.State.ClearTurnOnTime,
			ClearLastNotification: cfg.State.ClearLastNotification,
		},
	}, fcmClient, actuatorClient)

	services := iot.ServiceOpts{}
	switch cfg.Cooldown.Policy {
	case config.CooldownMemory:
		services.Cooldown = iot.NewMemoryCooldown(cfg.Cooldown.Window)
	case config.CooldownRecord:
		services.Cooldown = iot.NewRecordCooldown(dbInstance, cfg.Cooldown.Window)
	case config.CooldownRedis:
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Cooldown.RedisAddr, Password: cfg.Cooldown.RedisPassword})
		defer func() { _ = rdb.Close() }()
		if err := rdb.Ping(ctx).Err(); err != nil {
			// alerts still go out while redis is down, the cooldown fails open
			logger.Warn("Redis unreachable", zap.String("addr", cfg.Cooldown.RedisAddr), zap.Error(err))
		}
		services.Cooldown = iot.NewRedisCooldown(rdb, cfg.Cooldown.Window)
	}
	if cfg.Dedup.Enabled {
		services.Dedup = iot.NewDuplicateFilter(
			cfg.Dedup.FilterCapacity,
			cfg.Dedup.DuplicationProbability,
			cfg.Dedup.ResetUsagePercentage,
		)
	}
	iotCore.WithServices(services)

	logger.Info("IOT core created with:",
		zap.String("cooldown", cfg.Cooldown.Policy),
		zap.Duration("cooldown_window", cfg.Cooldown.Window),
		zap.Bool("dedup", cfg.Dedup.Enabled),
		zap.String("actuator_type", cfg.Actuator.Type),
	)

	session := mqtt.NewSession(
		mqtt.Options{Topic: cfg.MQTT.Topic(), QoS: cfg.MQTT.QoS},
		mqtt.NewPahoDialer(mqtt.PahoOptions{
			URL:      cfg.MQTT.URL,
			ClientID: cfg.MQTT.ClientID,
			Username: cfg.MQTT.Username,
			Password: cfg.MQTT.Password,
		}),
		func(ctx context.Context, topic string, payload []byte) {
			outcome, err := iotCore.HandleMessage(ctx, topic, payload)
			if err == nil && outcome.Errors != nil {
				logger.Warn("Message processed with errors", zap.String("dev_eui", outcome.DevEUI), zap.Error(outcome.Errors))
			}
		},
		db.NewSessionLogRepository(dbInstance),
	)

	var grpcServer *iotGrpc.IOTServer
	if cfg.Server.GRPCHostPort != "" {
		listener, err := net.Listen("tcp", cfg.Server.GRPCHostPort)
		if err != nil {
			logger.Fatal("failed to listen", zap.String("addr", cfg.Server.GRPCHostPort), zap.Error(err))
		}
		grpcServer = iotGrpc.NewIOTServer()
		session.OnStateChange(grpcServer.SetSessionState)
		go func() {
			if err := grpcServer.Serve(listener); err != nil {
				logger.Error("grpc server failed to serve", zap.Error(err))
			}
		}()
	}

	if common.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	rs := &iotHttp.RestfulServer{
		Server:           gin.Default(),
		Iot:              iotCore,
		Session:          session,
		RateLimiterStore: iot.NewLimiterStore(10*time.Second, 1),
	}
	rs.Setup()
	go func() {
		if err := rs.ListenAndServe(cfg.Server.HTTPHostPort); err != nil {
			logger.Error("http server failed to serve", zap.Error(err))
			stop()
		}
	}()

	if err := session.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("MQTT session failed to start", zap.Error(err))
		stop()
	}

	<-ctx.Done()
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := session.Stop(shutdownCtx); err != nil {
		logger.Warn("Message handlers still running at shutdown", zap.Error(err))
	}
	if err := rs.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP server shutdown", zap.Error(err))
	}
	if grpcServer != nil {
		grpcServer.GracefulStop()
	}
}

func dialector(cfg config.DBConfig) gorm.Dialector {
	switch cfg.Type {
	case config.DBTypeMemory:
		return db.UseMemorySqliteDialector("sensors")
	case config.DBTypePostgres:
		return db.UsePostgresDialector(cfg.DSN)
	default:
		return db.UseSqliteDialector(cfg.Path)
	}
}
