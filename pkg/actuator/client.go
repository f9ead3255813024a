package actuator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"liyu1981.xyz/iot-fire-alarm-service/pkg/common"
)

var (
	ErrRequest = errors.New("downlink request failed")
	ErrStatus  = errors.New("downlink rejected")
)

// QueueItem is the downlink enqueued for one device.
type QueueItem struct {
	Data      string
	FPort     int
	Confirmed bool
}

type queueItemBody struct {
	Confirmed bool   `json:"confirmed"`
	Data      string `json:"data"`
	DevEUI    string `json:"devEUI"`
	FPort     int    `json:"fPort"`
}

type queueRequest struct {
	DeviceQueueItem queueItemBody `json:"deviceQueueItem"`
}

// Client pushes downlinks onto the network server device queue
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *zap.Logger
}

func NewClient(baseURL, token string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
		logger: common.GetLoggerWith(
			common.LoggerNameActuator,
			zap.String(common.LoggerFieldCategory, common.LoggerCategoryDownlink),
		),
	}
}

func (c *Client) Enqueue(ctx context.Context, devEUI string, item QueueItem) error {
	body, err := json.Marshal(queueRequest{DeviceQueueItem: queueItemBody{
		Confirmed: item.Confirmed,
		Data:      item.Data,
		DevEUI:    devEUI,
		FPort:     item.FPort,
	}})
	if err != nil {
		return fmt.Errorf("%w: encode body: %v", ErrRequest, err)
	}

	endpoint := fmt.Sprintf("%s/devices/%s/queue", c.baseURL, url.PathEscape(devEUI))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRequest, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Grpc-Metadata-Authorization", "Bearer "+c.token)
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("Downlink request failed", zap.String("dev_eui", devEUI), zap.Error(err))
		return fmt.Errorf("%w: %s: %v", ErrRequest, devEUI, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.logger.Warn("Downlink rejected",
			zap.String("dev_eui", devEUI),
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", detail),
		)
		return fmt.Errorf("%w: %s: status %d", ErrStatus, devEUI, resp.StatusCode)
	}
	_, _ = io.Copy(io.Discard, resp.Body)

	c.logger.Info("Downlink queued", zap.String("dev_eui", devEUI), zap.Int("f_port", item.FPort))
	return nil
}
