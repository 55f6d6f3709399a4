package server

import (
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"cipherchat/internal/crypto"
	"cipherchat/internal/domain"
	"cipherchat/internal/store"
)

// ---------- Public keys ----------

type publicKeyBody struct {
	Username  domain.Username `json:"username,omitempty"`
	PublicKey string          `json:"public_key"`
}

func (s *Server) putPublicKey(w http.ResponseWriter, r *http.Request) {
	user, ok := pathName(w, r, "user")
	if !ok {
		return
	}
	var body publicKeyBody
	if !s.decode(w, r, &body) {
		return
	}
	pub, err := crypto.ParsePublicKeyHex(body.PublicKey)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.store.PutPublicKey(domain.Username(user), pub); err != nil {
		s.internal(w, r, err)
		return
	}
	s.log.WithFields(logrus.Fields{
		"user":        user,
		"fingerprint": crypto.Fingerprint(pub.Slice()),
	}).Info("public key published")
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) getPublicKey(w http.ResponseWriter, r *http.Request) {
	user, ok := pathName(w, r, "user")
	if !ok {
		return
	}
	pub, found, err := s.store.GetPublicKey(domain.Username(user))
	if err != nil {
		s.internal(w, r, err)
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "unknown user")
		return
	}
	writeJSON(w, http.StatusOK, publicKeyBody{Username: domain.Username(user), PublicKey: pub.Hex()})
}

// ---------- Groups ----------

func (s *Server) createGroup(w http.ResponseWriter, r *http.Request) {
	var g domain.Group
	if !s.decode(w, r, &g) {
		return
	}
	if g.ID == "" {
		g.ID = domain.GroupID(uuid.NewString())
	}
	if err := validateGroup(g); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if _, exists, err := s.store.GetGroup(g.ID); err != nil {
		s.internal(w, r, err)
		return
	} else if exists {
		writeError(w, http.StatusConflict, "group already exists")
		return
	}
	if g.KeyVersion == 0 {
		g.KeyVersion = 1
	}
	if g.CreatedUTC == 0 {
		g.CreatedUTC = time.Now().Unix()
	}
	if err := s.store.PutGroup(g); err != nil {
		s.internal(w, r, err)
		return
	}
	s.log.WithFields(logrus.Fields{"group": g.ID, "user": g.Admin, "members": len(g.Members)}).Info("group created")
	writeJSON(w, http.StatusCreated, g)
}

func validateGroup(g domain.Group) error {
	if !namePattern.MatchString(string(g.ID)) {
		return errors.New("invalid group id")
	}
	if !namePattern.MatchString(string(g.Admin)) {
		return errors.New("invalid admin")
	}
	if !g.HasMember(g.Admin) {
		return errors.New("admin must be a member")
	}
	for _, m := range g.Members {
		if !namePattern.MatchString(string(m)) {
			return fmt.Errorf("invalid member %q", m)
		}
	}
	return nil
}

func (s *Server) getGroup(w http.ResponseWriter, r *http.Request) {
	id, ok := pathName(w, r, "group")
	if !ok {
		return
	}
	g, found, err := s.store.GetGroup(domain.GroupID(id))
	if err != nil {
		s.internal(w, r, err)
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "unknown group")
		return
	}
	writeJSON(w, http.StatusOK, g)
}

// updateGroup applies fn and writes the result, mapping store errors. It
// reports whether the update went through.
func (s *Server) updateGroup(w http.ResponseWriter, r *http.Request, id string, fn func(*domain.Group) error) bool {
	g, err := s.store.UpdateGroup(domain.GroupID(id), fn)
	var reject rejection
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "unknown group")
	case errors.As(err, &reject):
		writeError(w, reject.status, reject.msg)
	case err != nil:
		s.internal(w, r, err)
	default:
		writeJSON(w, http.StatusOK, g)
		return true
	}
	return false
}

// rejection aborts a group update with a client error.
type rejection struct {
	status int
	msg    string
}

func (e rejection) Error() string { return e.msg }

func (s *Server) addMember(w http.ResponseWriter, r *http.Request) {
	id, ok := pathName(w, r, "group")
	if !ok {
		return
	}
	var body struct {
		Member domain.Username `json:"member"`
	}
	if !s.decode(w, r, &body) {
		return
	}
	if !namePattern.MatchString(string(body.Member)) {
		writeError(w, http.StatusBadRequest, "invalid member")
		return
	}
	added := s.updateGroup(w, r, id, func(g *domain.Group) error {
		if !g.HasMember(body.Member) {
			g.Members = append(g.Members, body.Member)
		}
		return nil
	})
	if added {
		s.log.WithFields(logrus.Fields{"group": id, "member": body.Member}).Info("member added")
	}
}

func (s *Server) removeMember(w http.ResponseWriter, r *http.Request) {
	id, ok := pathName(w, r, "group")
	if !ok {
		return
	}
	member, ok := pathName(w, r, "member")
	if !ok {
		return
	}
	removed := s.updateGroup(w, r, id, func(g *domain.Group) error {
		if member == string(g.Admin) {
			return rejection{http.StatusConflict, "the admin cannot be removed"}
		}
		kept := g.Members[:0]
		for _, m := range g.Members {
			if m != domain.Username(member) {
				kept = append(kept, m)
			}
		}
		g.Members = kept
		return nil
	})
	if removed {
		s.log.WithFields(logrus.Fields{"group": id, "member": member}).Info("member removed")
	}
}

func (s *Server) updateGroupKey(w http.ResponseWriter, r *http.Request) {
	id, ok := pathName(w, r, "group")
	if !ok {
		return
	}
	var body struct {
		KeyVersion domain.KeyVersion `json:"key_version"`
		KeyLink    string            `json:"key_link"`
	}
	if !s.decode(w, r, &body) {
		return
	}
	if _, err := hex.DecodeString(body.KeyLink); err != nil {
		writeError(w, http.StatusBadRequest, "key_link must be hex")
		return
	}
	rotated := s.updateGroup(w, r, id, func(g *domain.Group) error {
		if body.KeyVersion <= g.KeyVersion {
			return rejection{http.StatusConflict, fmt.Sprintf("key version %d is not newer than %d", body.KeyVersion, g.KeyVersion)}
		}
		g.KeyVersion = body.KeyVersion
		g.KeyLink = body.KeyLink
		return nil
	})
	if rotated {
		s.log.WithFields(logrus.Fields{"group": id, "key_version": body.KeyVersion}).Info("group key version advanced")
	}
}

// ---------- Key packages ----------

func (s *Server) putPackages(w http.ResponseWriter, r *http.Request) {
	id, ok := pathName(w, r, "group")
	if !ok {
		return
	}
	var pkgs []domain.WireKeyPackage
	if !s.decode(w, r, &pkgs) {
		return
	}
	for i := range pkgs {
		p := &pkgs[i]
		if p.GroupID == "" {
			p.GroupID = domain.GroupID(id)
		}
		if string(p.GroupID) != id || !namePattern.MatchString(string(p.MemberID)) || p.KeyVersion == 0 {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("package %d is misaddressed", i))
			return
		}
	}
	if err := s.store.PutKeyPackages(pkgs); err != nil {
		s.internal(w, r, err)
		return
	}
	s.log.WithFields(logrus.Fields{"group": id, "count": len(pkgs)}).Info("key packages stored")
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) getPackages(w http.ResponseWriter, r *http.Request) {
	id, ok := pathName(w, r, "group")
	if !ok {
		return
	}
	member, ok := pathName(w, r, "member")
	if !ok {
		return
	}
	pkgs, err := s.store.GetKeyPackages(domain.GroupID(id), domain.Username(member))
	if err != nil {
		s.internal(w, r, err)
		return
	}
	if pkgs == nil {
		pkgs = []domain.WireKeyPackage{}
	}
	writeJSON(w, http.StatusOK, pkgs)
}

func (s *Server) deletePackages(w http.ResponseWriter, r *http.Request) {
	id, ok := pathName(w, r, "group")
	if !ok {
		return
	}
	member, ok := pathName(w, r, "member")
	if !ok {
		return
	}
	if err := s.store.DeleteKeyPackages(domain.GroupID(id), domain.Username(member)); err != nil {
		s.internal(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ---------- Group messages ----------

func (s *Server) postGroupMessage(w http.ResponseWriter, r *http.Request) {
	id, ok := pathName(w, r, "group")
	if !ok {
		return
	}
	var env domain.WireEnvelope
	if !s.decode(w, r, &env) {
		return
	}
	g, found, err := s.store.GetGroup(domain.GroupID(id))
	if err != nil {
		s.internal(w, r, err)
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "unknown group")
		return
	}
	if !g.HasMember(env.From) {
		writeError(w, http.StatusForbidden, "sender is not a group member")
		return
	}
	env.Kind = domain.KindGroup
	env.GroupID = g.ID
	env.To = ""
	stamp(&env)
	if err := s.store.AppendGroupMessage(env); err != nil {
		s.internal(w, r, err)
		return
	}
	for _, m := range g.Members {
		if m != env.From {
			s.hub.publish(m, env)
		}
	}
	writeJSON(w, http.StatusCreated, env)
}

func (s *Server) getGroupMessages(w http.ResponseWriter, r *http.Request) {
	id, ok := pathName(w, r, "group")
	if !ok {
		return
	}
	since, err := queryInt(r, "since")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	envs, err := s.store.GroupMessagesSince(domain.GroupID(id), since)
	if err != nil {
		s.internal(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envs)
}

// ---------- Direct messages ----------

func (s *Server) postDirect(w http.ResponseWriter, r *http.Request) {
	user, ok := pathName(w, r, "user")
	if !ok {
		return
	}
	var env domain.WireEnvelope
	if !s.decode(w, r, &env) {
		return
	}
	if !namePattern.MatchString(string(env.From)) {
		writeError(w, http.StatusBadRequest, "invalid sender")
		return
	}
	env.Kind = domain.KindDirect
	env.To = domain.Username(user)
	env.GroupID = ""
	env.KeyVersion = 0
	stamp(&env)
	if err := s.store.EnqueueDirect(env); err != nil {
		s.internal(w, r, err)
		return
	}
	s.hub.publish(env.To, env)
	writeJSON(w, http.StatusCreated, env)
}

func (s *Server) getDirect(w http.ResponseWriter, r *http.Request) {
	user, ok := pathName(w, r, "user")
	if !ok {
		return
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	envs, err := s.store.PeekDirect(domain.Username(user), int(limit))
	if err != nil {
		s.internal(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envs)
}

func (s *Server) ackDirect(w http.ResponseWriter, r *http.Request) {
	user, ok := pathName(w, r, "user")
	if !ok {
		return
	}
	var body struct {
		Count int `json:"count"`
	}
	if !s.decode(w, r, &body) {
		return
	}
	if err := s.store.AckDirect(domain.Username(user), body.Count); err != nil {
		s.internal(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func queryInt(r *http.Request, key string) (int64, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer", key)
	}
	return n, nil
}
