package identity

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"cipherchat/internal/crypto"
	"cipherchat/internal/domain"
	"cipherchat/internal/util/logx"
)

// ErrEmptyLabel is returned when no identity label (username) is given.
var ErrEmptyLabel = errors.New("identity label is empty")

// Service derives identities with a crypto suite.
type Service struct {
	suite *crypto.Suite
	log   logrus.FieldLogger
}

// New returns an identity service. A nil logger discards output.
func New(suite *crypto.Suite, log logrus.FieldLogger) *Service {
	return &Service{suite: suite, log: logx.OrDiscard(log)}
}

type derivation struct {
	id  domain.Identity
	err error
}

// DeriveIdentity runs the password hash off the caller's goroutine. If ctx
// ends first the result is discarded and ctx.Err() is returned; the
// computation has no side effects to undo.
func (s *Service) DeriveIdentity(
	ctx context.Context,
	password string,
	label domain.Username,
) (domain.Identity, error) {
	if label == "" {
		return domain.Identity{}, ErrEmptyLabel
	}
	if err := ctx.Err(); err != nil {
		return domain.Identity{}, err
	}
	log := s.log.WithField("user", label)
	log.Debug("deriving identity")
	start := time.Now()

	done := make(chan derivation, 1)
	go func() {
		id, err := s.suite.DeriveIdentity(password, label)
		done <- derivation{id: id, err: err}
	}()

	select {
	case <-ctx.Done():
		log.WithError(ctx.Err()).Debug("identity derivation abandoned")
		return domain.Identity{}, ctx.Err()
	case r := <-done:
		if r.err != nil {
			log.WithError(r.err).Error("identity derivation failed")
			return domain.Identity{}, r.err
		}
		log.WithFields(logrus.Fields{
			"fingerprint": crypto.Fingerprint(r.id.Public.Slice()),
			"took":        time.Since(start).Round(time.Millisecond),
		}).Debug("identity derived")
		return r.id, nil
	}
}

// FingerprintIdentity returns a short fingerprint of the derived public key.
func (s *Service) FingerprintIdentity(
	ctx context.Context,
	password string,
	label domain.Username,
) (domain.Fingerprint, error) {
	id, err := s.DeriveIdentity(ctx, password, label)
	if err != nil {
		return "", err
	}
	return crypto.Fingerprint(id.Public.Slice()), nil
}

// Compile-time assertion that Service implements domain.IdentityService.
var _ domain.IdentityService = (*Service)(nil)
