package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"cipherchat/internal/crypto"
	"cipherchat/internal/domain"
)

// ErrNoUsername is returned when neither flags nor config name a user.
var ErrNoUsername = errors.New("no username: pass --username or set username in config.yaml")

// App is the wired client for one configured user.
type App struct {
	Config Config
	*Wire
}

// New builds the dependency graph for cfg.
func New(cfg Config, log logrus.FieldLogger, opts ...crypto.Option) (*App, error) {
	w, err := NewWire(cfg, log, opts...)
	if err != nil {
		return nil, err
	}
	return &App{Config: cfg, Wire: w}, nil
}

// User returns the configured username.
func (a *App) User() (domain.Username, error) {
	if a.Config.Username == "" {
		return "", ErrNoUsername
	}
	return domain.Username(a.Config.Username), nil
}

// DeriveIdentity derives the configured user's identity from password.
func (a *App) DeriveIdentity(ctx context.Context, password string) (domain.Identity, error) {
	user, err := a.User()
	if err != nil {
		return domain.Identity{}, err
	}
	return a.Wire.Identity.DeriveIdentity(ctx, password, user)
}

// Unlock opens the session controller as the configured user.
func (a *App) Unlock(ctx context.Context, password string) error {
	user, err := a.User()
	if err != nil {
		return err
	}
	return a.Session.Unlock(ctx, password, user)
}

// Register publishes the user's public key to the relay and records the
// registration locally.
//
// Steps:
//  1. Derive the identity from password.
//  2. Publish the public key.
//  3. Save the profile for this relay.
func (a *App) Register(ctx context.Context, password string) (domain.Profile, error) {
	id, err := a.DeriveIdentity(ctx, password)
	if err != nil {
		return domain.Profile{}, err
	}
	defer crypto.Wipe(id.Private[:])

	if err := a.Relay.PublishPublicKey(ctx, id.Label, id.Public); err != nil {
		return domain.Profile{}, fmt.Errorf("publish public key: %w", err)
	}
	p := domain.Profile{
		ServerURL:  a.Config.RelayURL,
		Username:   id.Label,
		PublicKey:  id.Public.Hex(),
		Registered: time.Now().UTC().Unix(),
	}
	if err := a.Profiles.SaveProfile(p); err != nil {
		return p, fmt.Errorf("save profile: %w", err)
	}
	a.Log.WithFields(logrus.Fields{
		"user":        id.Label,
		"fingerprint": crypto.Fingerprint(id.Public.Slice()),
		"relay":       a.Config.RelayURL,
	}).Info("registered")
	return p, nil
}
