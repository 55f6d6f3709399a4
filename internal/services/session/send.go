package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"cipherchat/internal/domain"
)

// ErrMissingFileName is returned when a file payload has no name.
var ErrMissingFileName = errors.New("file message needs a file name")

// Send encrypts msg for conv and hands it to the relay. The conversation
// must be open. Group messages always use the newest key the controller
// holds.
//
// Steps:
//  1. Stamp the envelope: id, sender, payload type and timestamp.
//  2. Seal the body with a fresh nonce under the conversation key.
//  3. Post it as a direct or group message.
func (c *Controller) Send(
	ctx context.Context,
	conv domain.Conversation,
	msg domain.OutgoingMessage,
) (domain.WireEnvelope, error) {
	me, err := c.identity()
	if err != nil {
		return domain.WireEnvelope{}, err
	}
	if msg.Type == "" {
		msg.Type = domain.PayloadText
	}
	if msg.Type == domain.PayloadFile && msg.FileName == "" {
		return domain.WireEnvelope{}, ErrMissingFileName
	}

	env := domain.WireEnvelope{
		ID:        domain.MessageID(uuid.NewString()),
		Kind:      conv.Kind,
		From:      me.Label,
		Type:      msg.Type,
		FileName:  msg.FileName,
		FileType:  msg.FileType,
		Timestamp: time.Now().UnixMilli(),
	}

	switch conv.Kind {
	case domain.KindDirect:
		key, ok := c.directKey(conv.Peer)
		if !ok {
			return domain.WireEnvelope{}, fmt.Errorf("%w: %s", ErrConversationClosed, conv)
		}
		denv, err := c.suite.EncryptDirect(key, msg.Body)
		if err != nil {
			return domain.WireEnvelope{}, err
		}
		env.To = conv.Peer
		env.EncodeDirect(denv)
		if err := c.tr.SendMessage(ctx, env); err != nil {
			return domain.WireEnvelope{}, fmt.Errorf("send to %s: %w", conv.Peer, err)
		}

	case domain.KindGroup:
		key, version, ok := c.groupKey(conv.Group, 0)
		if !ok {
			return domain.WireEnvelope{}, fmt.Errorf("%w: %s", ErrConversationClosed, conv)
		}
		genv, err := c.keys.EncryptGroup(key, version, msg.Body)
		if err != nil {
			return domain.WireEnvelope{}, err
		}
		env.GroupID = conv.Group
		env.EncodeGroup(genv)
		if err := c.tr.SendGroupMessage(ctx, env); err != nil {
			return domain.WireEnvelope{}, fmt.Errorf("send to group %s: %w", conv.Group, err)
		}

	default:
		return domain.WireEnvelope{}, fmt.Errorf("unknown conversation kind %q", conv.Kind)
	}

	c.log.WithFields(logrus.Fields{
		"conversation": conv.String(),
		"message_id":   env.ID,
		"type":         env.Type,
		"bytes":        len(msg.Body),
	}).Debug("message sent")
	return env, nil
}
