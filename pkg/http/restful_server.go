package http

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"liyu1981.xyz/iot-fire-alarm-service/pkg/common"
	"liyu1981.xyz/iot-fire-alarm-service/pkg/iot"
	"liyu1981.xyz/iot-fire-alarm-service/pkg/mqtt"
)

// SessionState reports the broker session state for health checks.
type SessionState interface {
	State() mqtt.State
}

type RestfulServer struct {
	Server  *gin.Engine
	Iot     *iot.IOT
	Session SessionState
	// RateLimiterStore throttles manual downlinks per client; nil disables it.
	RateLimiterStore *iot.LimiterStore

	mu         sync.Mutex
	httpServer *http.Server
}

func (rs *RestfulServer) CheckClientLimiter(clientID string) bool {
	if rs.RateLimiterStore == nil {
		return true
	}
	return rs.RateLimiterStore.AllowAt(clientID, time.Now())
}

func (rs *RestfulServer) Setup() {
	rs.Server.GET("/healthz", rs.HealthCheck)

	sensors := rs.Server.Group("/sensors")
	{
		sensors.GET("", rs.ListSensors)
		sensors.GET("/:dev_eui", rs.GetSensor)
	}

	rs.Server.GET("/notifications", rs.ListNotifications)
	rs.Server.POST("/actuators/downlink", rs.PostDownlink)
}

// ListenAndServe blocks until the server stops; Shutdown makes it return nil.
func (rs *RestfulServer) ListenAndServe(addr string) error {
	logger := common.GetLoggerWith(common.LoggerNameRestfulServer)

	srv := &http.Server{
		Addr:              addr,
		Handler:           rs.Server,
		ReadHeaderTimeout: 10 * time.Second,
	}
	rs.mu.Lock()
	rs.httpServer = srv
	rs.mu.Unlock()

	logger.Info("Starting HTTP server on: " + addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (rs *RestfulServer) Shutdown(ctx context.Context) error {
	rs.mu.Lock()
	srv := rs.httpServer
	rs.mu.Unlock()
	if srv == nil {
		return nil
	}
	common.GetLoggerWith(common.LoggerNameRestfulServer).Info("Stopping HTTP server", zap.String("addr", srv.Addr))
	return srv.Shutdown(ctx)
}
