package lark

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	larkIm "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
	"go.uber.org/zap"

	"github.com/garyjia/oa-approval/internal/application/port"
)

const (
	receiveIDTypeOpenID = "open_id"
	msgTypeText         = "text"
)

// createMessageFunc sends one IM message; the SDK request is built from its arguments
type createMessageFunc func(ctx context.Context, receiveIDType string, body *larkIm.CreateMessageReqBody) (*larkIm.CreateMessageResp, error)

// Messenger implements port.MessageSender over Lark IM
type Messenger struct {
	create createMessageFunc
	logger *zap.Logger
}

// NewMessenger creates a new Lark message sender adapter
func NewMessenger(client *SDKClient, logger *zap.Logger) *Messenger {
	return &Messenger{
		create: func(ctx context.Context, receiveIDType string, body *larkIm.CreateMessageReqBody) (*larkIm.CreateMessageResp, error) {
			req := larkIm.NewCreateMessageReqBuilder().
				ReceiveIdType(receiveIDType).
				Body(body).
				Build()
			return client.GetClient().Im.Message.Create(ctx, req)
		},
		logger: logger,
	}
}

// SendText sends a plain text message to a user identified by open_id
func (m *Messenger) SendText(ctx context.Context, openID string, content string) error {
	if openID == "" {
		return errors.New("openID cannot be empty")
	}
	if content == "" {
		return errors.New("content cannot be empty")
	}

	body, err := json.Marshal(map[string]string{"text": content})
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}

	msg := larkIm.NewCreateMessageReqBodyBuilder().
		ReceiveId(openID).
		MsgType(msgTypeText).
		Content(string(body)).
		Build()

	resp, err := m.create(ctx, receiveIDTypeOpenID, msg)
	if err != nil {
		m.logger.Error("Failed to send message",
			zap.String("receive_id", openID),
			zap.Error(err))
		return fmt.Errorf("failed to send message: %w", err)
	}

	if !resp.Success() {
		m.logger.Error("API returned failure",
			zap.String("receive_id", openID),
			zap.Int("code", resp.Code),
			zap.String("msg", resp.Msg))
		return fmt.Errorf("API error: code=%d, msg=%s", resp.Code, resp.Msg)
	}

	messageID := ""
	if resp.Data != nil && resp.Data.MessageId != nil {
		messageID = *resp.Data.MessageId
	}
	m.logger.Debug("Message sent",
		zap.String("message_id", messageID),
		zap.String("receive_id", openID))
	return nil
}

// Verify interface compliance
var _ port.MessageSender = (*Messenger)(nil)
