package session

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"

	"cipherchat/internal/domain"
)

var (
	// ErrSubscriptionClosed is returned by Listen when the relay ends the
	// stream before ctx is done.
	ErrSubscriptionClosed = errors.New("relay subscription closed")
	// ErrMessagesPending is returned by ReceiveDirect when envelopes stay
	// queued because their sender's key could not be fetched. A later call
	// delivers them.
	ErrMessagesPending = errors.New("direct messages left queued")
)

// Decrypt opens each envelope of conv independently. An envelope that
// fails is reported with StatusUndecryptable, or StatusAwaitingKey when its
// group key version is not held; it never stops the others. The result is
// ordered by timestamp.
func (c *Controller) Decrypt(conv domain.Conversation, envelopes []domain.WireEnvelope) []domain.DecryptedMessage {
	out := make([]domain.DecryptedMessage, 0, len(envelopes))
	for _, env := range envelopes {
		out = append(out, c.decryptOne(conv, env))
	}
	sortByTimestamp(out)
	return out
}

func (c *Controller) decryptOne(conv domain.Conversation, env domain.WireEnvelope) domain.DecryptedMessage {
	msg := domain.DecryptedMessage{
		ID:           env.ID,
		Conversation: conv,
		From:         env.From,
		Type:         env.Type,
		FileName:     env.FileName,
		FileType:     env.FileType,
		Timestamp:    env.Timestamp,
	}
	if msg.Type == "" {
		msg.Type = domain.PayloadText
	}

	var (
		pt  []byte
		err error
	)
	switch conv.Kind {
	case domain.KindDirect:
		key, ok := c.directKey(conv.Peer)
		if !ok {
			return c.fail(msg, domain.StatusUndecryptable, ErrConversationClosed)
		}
		var denv domain.DirectEnvelope
		if denv, err = env.Direct(); err != nil {
			return c.fail(msg, domain.StatusUndecryptable, err)
		}
		pt, err = c.suite.DecryptDirect(key, denv)
	case domain.KindGroup:
		if env.KeyVersion == 0 {
			return c.fail(msg, domain.StatusUndecryptable,
				fmt.Errorf("%w: group message carries no key version", domain.ErrAuthentication))
		}
		key, _, ok := c.groupKey(conv.Group, env.KeyVersion)
		if !ok {
			return c.fail(msg, domain.StatusAwaitingKey,
				fmt.Errorf("%w: version %d", domain.ErrKeyPackageNotFound, env.KeyVersion))
		}
		var genv domain.GroupEnvelope
		if genv, err = env.Group(); err != nil {
			return c.fail(msg, domain.StatusUndecryptable, err)
		}
		pt, err = c.keys.DecryptGroup(key, genv)
	default:
		return c.fail(msg, domain.StatusUndecryptable, fmt.Errorf("unknown conversation kind %q", conv.Kind))
	}
	if err != nil {
		return c.fail(msg, domain.StatusUndecryptable, err)
	}
	msg.Plaintext = pt
	msg.Status = domain.StatusDecrypted
	return msg
}

func (c *Controller) fail(msg domain.DecryptedMessage, status domain.MessageStatus, err error) domain.DecryptedMessage {
	msg.Status = status
	msg.Err = err
	c.log.WithError(err).WithFields(logrus.Fields{
		"conversation": msg.Conversation.String(),
		"message_id":   msg.ID,
		"from":         msg.From,
	}).Warn(status.String())
	return msg
}

func sortByTimestamp(msgs []domain.DecryptedMessage) {
	sort.SliceStable(msgs, func(i, j int) bool { return msgs[i].Timestamp < msgs[j].Timestamp })
}

// ReceiveDirect drains up to limit envelopes from the caller's mailbox,
// opening a conversation for each new sender, and acknowledges them.
// limit <= 0 fetches everything queued.
//
// Steps:
//  1. Fetch the queued envelopes.
//  2. Open the conversation of each sender in arrival order. A sender the
//     directory does not know, or whose key is unusable, yields
//     undecryptable messages. Any other failure stops at that envelope.
//  3. Decrypt the envelopes before the stop.
//  4. Ack exactly those; the rest stay queued and ErrMessagesPending is
//     returned with the messages that were handled.
func (c *Controller) ReceiveDirect(ctx context.Context, limit int) ([]domain.DecryptedMessage, error) {
	me, err := c.identity()
	if err != nil {
		return nil, err
	}
	envs, err := c.tr.FetchMessages(ctx, me.Label, limit)
	if err != nil {
		return nil, fmt.Errorf("fetch messages: %w", err)
	}
	if len(envs) == 0 {
		return []domain.DecryptedMessage{}, nil
	}

	opened := make(map[domain.Username]error)
	handled := len(envs)
	var pending error
	for i, env := range envs {
		peer := env.Conversation(me.Label).Peer
		openErr, tried := opened[peer]
		if !tried {
			_, openErr = c.OpenDirect(ctx, peer)
			opened[peer] = openErr
		}
		if openErr != nil && !permanent(openErr) {
			handled = i
			pending = fmt.Errorf("%w: %d from %s on: %w", ErrMessagesPending, len(envs)-i, peer, openErr)
			break
		}
	}

	out := make([]domain.DecryptedMessage, 0, handled)
	for _, env := range envs[:handled] {
		conv := env.Conversation(me.Label)
		msg := c.decryptOne(conv, env)
		if openErr := opened[conv.Peer]; openErr != nil {
			msg.Err = openErr
		}
		out = append(out, msg)
	}
	sortByTimestamp(out)

	// Acks drop a prefix, so nothing past the first pending envelope goes.
	if handled > 0 {
		if err := c.tr.AckMessages(ctx, me.Label, handled); err != nil {
			return out, fmt.Errorf("ack messages: %w", err)
		}
	}
	if pending != nil {
		c.log.WithError(pending).WithField("user", me.Label).Warn("direct messages left queued")
	}
	return out, pending
}

// permanent reports whether opening a conversation failed in a way a retry
// cannot fix.
func permanent(err error) bool {
	return errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrInvalidKey)
}

// ReceiveGroup fetches the group's messages newer than since and decrypts
// them. A group that is not open is opened first. When a message carries a
// key version the controller does not hold, the key packages are fetched
// again once before giving up on it.
func (c *Controller) ReceiveGroup(
	ctx context.Context,
	conv domain.Conversation,
	since int64,
) ([]domain.DecryptedMessage, error) {
	if conv.Kind != domain.KindGroup {
		return nil, fmt.Errorf("%s is not a group conversation", conv)
	}
	me, err := c.identity()
	if err != nil {
		return nil, err
	}
	if !c.groupOpen(conv.Group) {
		if _, err := c.OpenGroup(ctx, conv.Group); err != nil {
			return nil, err
		}
	}
	envs, err := c.tr.FetchGroupMessages(ctx, conv.Group, since)
	if err != nil {
		return nil, fmt.Errorf("fetch group messages: %w", err)
	}
	c.refreshIfMissing(ctx, me, conv.Group, envs)
	return c.Decrypt(conv, envs), nil
}

// refreshIfMissing reloads the group's keys when any envelope needs a
// version not held yet.
func (c *Controller) refreshIfMissing(ctx context.Context, me domain.Identity, id domain.GroupID, envs []domain.WireEnvelope) {
	for _, env := range envs {
		if env.KeyVersion == 0 {
			continue
		}
		if _, _, ok := c.groupKey(id, env.KeyVersion); ok {
			continue
		}
		g, err := c.dir.FetchGroup(ctx, id)
		if err == nil {
			err = c.loadGroupKeys(ctx, me, g)
		}
		if err != nil {
			c.log.WithError(err).WithField("group", id).Warn("refresh group keys")
		}
		return
	}
}

// Listen subscribes to the relay and hands every message addressed to the
// caller to handle, decrypted, until ctx is done. A pushed direct message
// drains the mailbox so it is acknowledged once.
func (c *Controller) Listen(ctx context.Context, handle func(domain.DecryptedMessage)) error {
	me, err := c.identity()
	if err != nil {
		return err
	}
	stream, err := c.tr.Subscribe(ctx, me.Label)
	if err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	c.log.WithField("user", me.Label).Info("listening")

	for env := range stream {
		switch env.Kind {
		case domain.KindGroup:
			conv := domain.GroupConversation(env.GroupID)
			if !c.groupOpen(env.GroupID) {
				if _, err := c.OpenGroup(ctx, env.GroupID); err != nil {
					c.log.WithError(err).WithField("group", env.GroupID).Warn("open group")
				}
			}
			c.refreshIfMissing(ctx, me, env.GroupID, []domain.WireEnvelope{env})
			for _, msg := range c.Decrypt(conv, []domain.WireEnvelope{env}) {
				handle(msg)
			}
		default:
			msgs, err := c.ReceiveDirect(ctx, 0)
			if err != nil {
				c.log.WithError(err).Warn("receive direct messages")
			}
			for _, msg := range msgs {
				handle(msg)
			}
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return ErrSubscriptionClosed
}
