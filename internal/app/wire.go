package app

import (
	"github.com/sirupsen/logrus"

	"cipherchat/internal/crypto"
	"cipherchat/internal/protocol/groupkey"
	"cipherchat/internal/relay"
	groupsvc "cipherchat/internal/services/group"
	identitysvc "cipherchat/internal/services/identity"
	sessionsvc "cipherchat/internal/services/session"
	"cipherchat/internal/store"
	"cipherchat/internal/util/logx"
)

// Wire bundles all stores, services, and clients for the CLI.
type Wire struct {
	Log      logrus.FieldLogger
	Suite    *crypto.Suite
	Identity *identitysvc.Service
	Relay    *relay.HTTP
	Groups   *groupsvc.Service
	Session  *sessionsvc.Controller
	Profiles *store.ProfileFileStore
}

// NewWire constructs the dependency graph from cfg. Extra suite options
// are for tests; production wiring keeps the fixed KDF costs.
func NewWire(cfg Config, log logrus.FieldLogger, opts ...crypto.Option) (*Wire, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	log = logx.OrDiscard(log)

	suite := crypto.New(opts...)
	rc := relay.NewHTTP(cfg.RelayURL, cfg.httpClient(), log)
	ids := identitysvc.New(suite, log)

	return &Wire{
		Log:      log,
		Suite:    suite,
		Identity: ids,
		Relay:    rc,
		Groups:   groupsvc.New(groupkey.New(suite), rc, log),
		Session:  sessionsvc.New(suite, ids, rc, rc, log),
		Profiles: store.NewProfileFileStore(cfg.Home),
	}, nil
}
