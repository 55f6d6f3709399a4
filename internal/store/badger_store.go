package store

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"

	"cipherchat/internal/domain"
	"cipherchat/internal/util/logx"
)

// ErrNotFound is returned when an update targets a record that does not exist.
var ErrNotFound = errors.New("not found")

// Key layout. Every component is validated by the relay before it gets
// here, so ':' never appears inside one.
const (
	prefixPublicKey  = "pk:"
	prefixGroup      = "grp:"
	prefixPackage    = "kp:"
	prefixDirect     = "dm:"
	prefixGroupMsg   = "gm:"
	sequenceKey      = "seq:messages"
	sequenceLease    = 1000
	maxUpdateRetries = 16
)

func publicKeyKey(u domain.Username) []byte { return []byte(prefixPublicKey + string(u)) }
func groupKey(id domain.GroupID) []byte      { return []byte(prefixGroup + string(id)) }

func packagePrefix(id domain.GroupID, member domain.Username) []byte {
	return []byte(fmt.Sprintf("%s%s:%s:", prefixPackage, id, member))
}

func packageKey(p domain.WireKeyPackage) []byte {
	return append(packagePrefix(p.GroupID, p.MemberID), fmt.Sprintf("%010d", p.KeyVersion)...)
}

func directPrefix(u domain.Username) []byte { return []byte(prefixDirect + string(u) + ":") }

func groupMsgPrefix(id domain.GroupID) []byte { return []byte(prefixGroupMsg + string(id) + ":") }

func groupMsgKey(id domain.GroupID, ts int64, seq uint64) []byte {
	return append(groupMsgPrefix(id), fmt.Sprintf("%020d:%020d", ts, seq)...)
}

// BadgerStore is the relay's RelayStore on top of BadgerDB.
type BadgerStore struct {
	db  *badger.DB
	seq *badger.Sequence
	log logrus.FieldLogger
}

// OpenBadger opens (or creates) the store in dir. An empty dir keeps
// everything in memory, which is what tests and throwaway relays use.
func OpenBadger(dir string, log logrus.FieldLogger) (*BadgerStore, error) {
	log = logx.OrDiscard(log)

	opts := badger.DefaultOptions(dir)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	opts.Logger = nil
	opts.SyncWrites = true

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %q: %w", dir, err)
	}
	seq, err := db.GetSequence([]byte(sequenceKey), sequenceLease)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("message sequence: %w", err)
	}
	log.WithFields(logrus.Fields{"dir": dir, "in_memory": dir == ""}).Info("relay store opened")
	return &BadgerStore{db: db, seq: seq, log: log}, nil
}

// Close releases the sequence lease and closes the database.
func (s *BadgerStore) Close() error {
	if err := s.seq.Release(); err != nil {
		s.log.WithError(err).Warn("release message sequence")
	}
	return s.db.Close()
}

func (s *BadgerStore) setJSON(key []byte, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, b)
	})
}

// getJSON loads key into out. Missing keys report ok=false.
func (s *BadgerStore) getJSON(key []byte, out any) (ok bool, err error) {
	err = s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		ok = true
		return item.Value(func(v []byte) error { return json.Unmarshal(v, out) })
	})
	return ok, err
}

// scan decodes every value under prefix, starting at from, into fn. It
// stops early when fn returns false.
func (s *BadgerStore) scan(prefix, from []byte, fn func(key, val []byte) (bool, error)) error {
	return s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		if from == nil {
			from = prefix
		}
		for it.Seek(from); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			v, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			more, err := fn(item.KeyCopy(nil), v)
			if err != nil {
				return err
			}
			if !more {
				return nil
			}
		}
		return nil
	})
}

// ---------- Public keys ----------

// PutPublicKey stores or replaces user's public key.
func (s *BadgerStore) PutPublicKey(user domain.Username, pub domain.X25519Public) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(publicKeyKey(user), pub.Slice())
	})
}

// GetPublicKey returns user's public key, if registered.
func (s *BadgerStore) GetPublicKey(user domain.Username) (domain.X25519Public, bool, error) {
	var pub domain.X25519Public
	var ok bool
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(publicKeyKey(user))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(v []byte) error {
			if len(v) != len(pub) {
				return fmt.Errorf("stored key for %s is %d bytes", user, len(v))
			}
			copy(pub[:], v)
			ok = true
			return nil
		})
	})
	return pub, ok, err
}

// ---------- Groups ----------

// PutGroup stores or replaces a group record.
func (s *BadgerStore) PutGroup(group domain.Group) error {
	return s.setJSON(groupKey(group.ID), group)
}

// GetGroup returns the group record for id.
func (s *BadgerStore) GetGroup(id domain.GroupID) (domain.Group, bool, error) {
	var g domain.Group
	ok, err := s.getJSON(groupKey(id), &g)
	return g, ok, err
}

// UpdateGroup reads, modifies and writes the group in one transaction,
// retrying when a concurrent writer wins.
func (s *BadgerStore) UpdateGroup(id domain.GroupID, fn func(*domain.Group) error) (domain.Group, error) {
	var out domain.Group
	for attempt := 0; attempt < maxUpdateRetries; attempt++ {
		err := s.db.Update(func(txn *badger.Txn) error {
			item, err := txn.Get(groupKey(id))
			if errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("group %s: %w", id, ErrNotFound)
			}
			if err != nil {
				return err
			}
			var g domain.Group
			if err := item.Value(func(v []byte) error { return json.Unmarshal(v, &g) }); err != nil {
				return err
			}
			if err := fn(&g); err != nil {
				return err
			}
			b, err := json.Marshal(g)
			if err != nil {
				return err
			}
			out = g
			return txn.Set(groupKey(id), b)
		})
		if errors.Is(err, badger.ErrConflict) {
			continue
		}
		return out, err
	}
	return domain.Group{}, fmt.Errorf("update group %s: %w", id, badger.ErrConflict)
}

// ---------- Key packages ----------

// PutKeyPackages stores packages, one row per (group, member, version).
func (s *BadgerStore) PutKeyPackages(packages []domain.WireKeyPackage) error {
	wb := s.db.NewWriteBatch()
	defer wb.Cancel()
	for _, p := range packages {
		b, err := json.Marshal(p)
		if err != nil {
			return err
		}
		if err := wb.Set(packageKey(p), b); err != nil {
			return err
		}
	}
	return wb.Flush()
}

// GetKeyPackages returns member's packages for group id, oldest version first.
func (s *BadgerStore) GetKeyPackages(id domain.GroupID, member domain.Username) ([]domain.WireKeyPackage, error) {
	var out []domain.WireKeyPackage
	err := s.scan(packagePrefix(id, member), nil, func(_, v []byte) (bool, error) {
		var p domain.WireKeyPackage
		if err := json.Unmarshal(v, &p); err != nil {
			return false, err
		}
		out = append(out, p)
		return true, nil
	})
	return out, err
}

// DeleteKeyPackages drops every package of member in group id.
func (s *BadgerStore) DeleteKeyPackages(id domain.GroupID, member domain.Username) error {
	return s.deletePrefix(packagePrefix(id, member), 0)
}

// deletePrefix removes up to limit keys under prefix in key order; limit
// <= 0 removes all of them.
func (s *BadgerStore) deletePrefix(prefix []byte, limit int) error {
	var keys [][]byte
	err := s.scan(prefix, nil, func(k, _ []byte) (bool, error) {
		keys = append(keys, k)
		return limit <= 0 || len(keys) < limit, nil
	})
	if err != nil {
		return err
	}
	wb := s.db.NewWriteBatch()
	defer wb.Cancel()
	for _, k := range keys {
		if err := wb.Delete(k); err != nil {
			return err
		}
	}
	return wb.Flush()
}

// ---------- Direct mailboxes ----------

// EnqueueDirect appends envelope to the recipient's mailbox.
func (s *BadgerStore) EnqueueDirect(envelope domain.WireEnvelope) error {
	n, err := s.seq.Next()
	if err != nil {
		return err
	}
	key := append(directPrefix(envelope.To), fmt.Sprintf("%020d", n)...)
	return s.setJSON(key, envelope)
}

// PeekDirect returns up to limit queued envelopes for user in arrival
// order without removing them. limit <= 0 returns all.
func (s *BadgerStore) PeekDirect(user domain.Username, limit int) ([]domain.WireEnvelope, error) {
	out := []domain.WireEnvelope{}
	err := s.scan(directPrefix(user), nil, func(_, v []byte) (bool, error) {
		var env domain.WireEnvelope
		if err := json.Unmarshal(v, &env); err != nil {
			return false, err
		}
		out = append(out, env)
		return limit <= 0 || len(out) < limit, nil
	})
	return out, err
}

// AckDirect drops the first count envelopes of user's mailbox. A count
// beyond the queue length empties it.
func (s *BadgerStore) AckDirect(user domain.Username, count int) error {
	if count <= 0 {
		return nil
	}
	return s.deletePrefix(directPrefix(user), count)
}

// ---------- Group logs ----------

// AppendGroupMessage appends envelope to its group's log.
func (s *BadgerStore) AppendGroupMessage(envelope domain.WireEnvelope) error {
	n, err := s.seq.Next()
	if err != nil {
		return err
	}
	return s.setJSON(groupMsgKey(envelope.GroupID, envelope.Timestamp, n), envelope)
}

// GroupMessagesSince returns the group's messages with a timestamp after
// since, oldest first.
func (s *BadgerStore) GroupMessagesSince(id domain.GroupID, since int64) ([]domain.WireEnvelope, error) {
	out := []domain.WireEnvelope{}
	var from []byte
	if since >= 0 {
		from = groupMsgKey(id, since+1, 0)
	}
	err := s.scan(groupMsgPrefix(id), from, func(_, v []byte) (bool, error) {
		var env domain.WireEnvelope
		if err := json.Unmarshal(v, &env); err != nil {
			return false, err
		}
		out = append(out, env)
		return true, nil
	})
	return out, err
}

// Compile-time assertion that BadgerStore implements domain.RelayStore.
var _ domain.RelayStore = (*BadgerStore)(nil)
