package push

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"google.golang.org/api/option"
	"liyu1981.xyz/iot-fire-alarm-service/pkg/common"
)

var ErrCredentials = errors.New("fcm credentials are not configured")

// maxMulticastTokens is the FCM limit of tokens per multicast request.
const maxMulticastTokens = 500

// Message is one multicast push addressed to every token at once.
type Message struct {
	Title  string
	Body   string
	Data   map[string]string
	Tokens []string
}

// Credentials selects a service account file, or inline service account
// fields when File is empty.
type Credentials struct {
	ProjectID   string
	File        string
	ClientEmail string
	PrivateKey  string
}

type multicastSender interface {
	SendEachForMulticast(ctx context.Context, message *messaging.MulticastMessage) (*messaging.BatchResponse, error)
}

// FCMClient sends multicast pushes through Firebase Cloud Messaging
type FCMClient struct {
	sender multicastSender
	logger *zap.Logger
}

func NewFCMClient(ctx context.Context, creds Credentials) (*FCMClient, error) {
	opt, err := clientOption(creds)
	if err != nil {
		return nil, err
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: creds.ProjectID}, opt)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize firebase app: %w", err)
	}

	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get messaging client: %w", err)
	}

	c := newFCMClient(client)
	c.logger.Info("Firebase FCM initialized", zap.String("project_id", creds.ProjectID))
	return c, nil
}

func newFCMClient(sender multicastSender) *FCMClient {
	return &FCMClient{
		sender: sender,
		logger: common.GetLoggerWith(common.LoggerNamePush),
	}
}

func clientOption(creds Credentials) (option.ClientOption, error) {
	if creds.File != "" {
		return option.WithCredentialsFile(creds.File), nil
	}
	if creds.ClientEmail == "" || creds.PrivateKey == "" {
		return nil, ErrCredentials
	}

	serviceAccount, err := json.Marshal(map[string]string{
		"type":         "service_account",
		"project_id":   creds.ProjectID,
		"client_email": creds.ClientEmail,
		"private_key":  creds.PrivateKey,
		"token_uri":    "https://oauth2.googleapis.com/token",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode service account: %w", err)
	}
	return option.WithCredentialsJSON(serviceAccount), nil
}

// SendMulticast sends msg to all its tokens, in batches of at most
// maxMulticastTokens. Per-token failures are logged and not retried; a failed
// batch does not stop the next ones. FCM rejects an empty token list, so that
// case returns without calling the gateway.
func (c *FCMClient) SendMulticast(ctx context.Context, msg Message) error {
	if len(msg.Tokens) == 0 {
		c.logger.Info("No device tokens, push skipped", zap.String("title", msg.Title))
		return nil
	}

	var errs error
	success, failure := 0, 0
	for start := 0; start < len(msg.Tokens); start += maxMulticastTokens {
		tokens := msg.Tokens[start:min(start+maxMulticastTokens, len(msg.Tokens))]
		br, err := c.sender.SendEachForMulticast(ctx, multicastMessage(msg, tokens))
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("error sending multicast message to tokens %d-%d: %w", start, start+len(tokens)-1, err))
			continue
		}

		for idx, resp := range br.Responses {
			if !resp.Success && idx < len(tokens) {
				c.logger.Warn("FCM delivery failed", zap.String("token", tokens[idx]), zap.Error(resp.Error))
			}
		}
		success += br.SuccessCount
		failure += br.FailureCount
	}

	c.logger.Info("Multicast sent",
		zap.Int("tokens", len(msg.Tokens)),
		zap.Int("success", success),
		zap.Int("failure", failure),
	)
	return errs
}

func multicastMessage(msg Message, tokens []string) *messaging.MulticastMessage {
	return &messaging.MulticastMessage{
		Tokens: tokens,
		Data:   msg.Data,
		Notification: &messaging.Notification{
			Title: msg.Title,
			Body:  msg.Body,
		},
		Android: &messaging.AndroidConfig{
			Priority: "high",
		},
		APNS: &messaging.APNSConfig{
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{Sound: "default"},
			},
		},
	}
}
