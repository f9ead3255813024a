package mqtt

import (
	"context"
	"errors"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap/zapcore"
	"liyu1981.xyz/iot-fire-alarm-service/pkg/common"
)

var ErrSubscribeTimeout = errors.New("subscribe timed out")

type PahoOptions struct {
	URL            string
	ClientID       string
	Username       string
	Password       string
	ConnectTimeout time.Duration
}

var bridgeLogs sync.Once

// NewPahoDialer builds paho clients with automatic reconnect; the session
// hooks are wired to the client's lifecycle callbacks.
func NewPahoDialer(o PahoOptions) Dialer {
	bridgeLogs.Do(func() {
		paho.ERROR = common.GetStdLogger(common.LoggerNameMQTTSession, zapcore.ErrorLevel)
		paho.CRITICAL = common.GetStdLogger(common.LoggerNameMQTTSession, zapcore.ErrorLevel)
		paho.WARN = common.GetStdLogger(common.LoggerNameMQTTSession, zapcore.WarnLevel)
	})

	if o.ConnectTimeout == 0 {
		o.ConnectTimeout = 30 * time.Second
	}

	return func(hooks Hooks) Conn {
		opts := paho.NewClientOptions().
			AddBroker(o.URL).
			SetClientID(o.ClientID).
			SetCleanSession(true).
			SetAutoReconnect(true).
			SetConnectRetry(false).
			SetMaxReconnectInterval(time.Minute).
			SetConnectTimeout(o.ConnectTimeout).
			SetOnConnectHandler(func(paho.Client) { hooks.OnConnect() }).
			SetConnectionLostHandler(func(_ paho.Client, err error) { hooks.OnConnectionLost(err) }).
			SetReconnectingHandler(func(paho.Client, *paho.ClientOptions) { hooks.OnReconnecting() })
		if o.Username != "" {
			opts.SetUsername(o.Username).SetPassword(o.Password)
		}
		return &pahoConn{client: paho.NewClient(opts), timeout: o.ConnectTimeout}
	}
}

type pahoConn struct {
	client  paho.Client
	timeout time.Duration
}

func (c *pahoConn) Connect(ctx context.Context) error {
	token := c.client.Connect()
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *pahoConn) Subscribe(topic string, qos byte, cb MessageCallback) error {
	token := c.client.Subscribe(topic, qos, func(_ paho.Client, m paho.Message) {
		cb(m.Topic(), m.Payload())
	})
	if !token.WaitTimeout(c.timeout) {
		return ErrSubscribeTimeout
	}
	return token.Error()
}

func (c *pahoConn) Disconnect(quiesce time.Duration) {
	c.client.Disconnect(uint(quiesce.Milliseconds()))
}
