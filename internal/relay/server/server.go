package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"cipherchat/internal/domain"
	"cipherchat/internal/util/logx"
)

// DefaultMaxBodyBytes bounds request bodies; file messages are hex encoded
// so this allows attachments of a few MiB.
const DefaultMaxBodyBytes = 16 << 20

var namePattern = regexp.MustCompile(`^[A-Za-z0-9_.@-]{1,64}$`)

// Server routes relay requests to a RelayStore and a push hub.
type Server struct {
	store   domain.RelayStore
	hub     *hub
	log     logrus.FieldLogger
	maxBody int64
	router  *mux.Router
}

// Option configures a Server.
type Option func(*Server)

// WithMaxBodyBytes overrides DefaultMaxBodyBytes.
func WithMaxBodyBytes(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxBody = n
		}
	}
}

// New builds the relay around store. A nil logger discards output.
func New(store domain.RelayStore, log logrus.FieldLogger, opts ...Option) *Server {
	log = logx.OrDiscard(log)
	s := &Server{
		store:   store,
		hub:     newHub(log),
		log:     log,
		maxBody: DefaultMaxBodyBytes,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.router = s.routes()
	return s
}

// Handler returns the relay's HTTP handler with access logging.
func (s *Server) Handler() http.Handler {
	return accessLog(s.log, s.router)
}

// Close disconnects every websocket subscriber.
func (s *Server) Close() {
	s.hub.closeAll()
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/keys/{user}", s.putPublicKey).Methods(http.MethodPut)
	r.HandleFunc("/keys/{user}", s.getPublicKey).Methods(http.MethodGet)

	r.HandleFunc("/groups", s.createGroup).Methods(http.MethodPost)
	r.HandleFunc("/groups/{group}", s.getGroup).Methods(http.MethodGet)
	r.HandleFunc("/groups/{group}/members", s.addMember).Methods(http.MethodPost)
	r.HandleFunc("/groups/{group}/members/{member}", s.removeMember).Methods(http.MethodDelete)
	r.HandleFunc("/groups/{group}/key", s.updateGroupKey).Methods(http.MethodPut)
	r.HandleFunc("/groups/{group}/packages", s.putPackages).Methods(http.MethodPost)
	r.HandleFunc("/groups/{group}/packages/{member}", s.getPackages).Methods(http.MethodGet)
	r.HandleFunc("/groups/{group}/packages/{member}", s.deletePackages).Methods(http.MethodDelete)
	r.HandleFunc("/groups/{group}/messages", s.postGroupMessage).Methods(http.MethodPost)
	r.HandleFunc("/groups/{group}/messages", s.getGroupMessages).Methods(http.MethodGet)

	r.HandleFunc("/msg/{user}", s.postDirect).Methods(http.MethodPost)
	r.HandleFunc("/msg/{user}", s.getDirect).Methods(http.MethodGet)
	r.HandleFunc("/msg/{user}/ack", s.ackDirect).Methods(http.MethodPost)

	r.HandleFunc("/ws/{user}", s.subscribe).Methods(http.MethodGet)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "no such endpoint")
	})
	return r
}

// pathName extracts and validates a path variable. On failure it has
// already written the response.
func pathName(w http.ResponseWriter, r *http.Request, key string) (string, bool) {
	v := mux.Vars(r)[key]
	if !namePattern.MatchString(v) {
		writeError(w, http.StatusBadRequest, "invalid "+key)
		return "", false
	}
	return v, true
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, out any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxBody)
	if err := json.NewDecoder(r.Body).Decode(out); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		writeError(w, http.StatusBadRequest, "malformed JSON: "+err.Error())
		return false
	}
	return true
}

func (s *Server) internal(w http.ResponseWriter, r *http.Request, err error) {
	s.log.WithError(err).WithField("path", r.URL.Path).Error("relay store failure")
	writeError(w, http.StatusInternalServerError, "internal error")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// stamp fills server-side envelope fields.
func stamp(env *domain.WireEnvelope) {
	if env.ID == "" {
		env.ID = domain.MessageID(uuid.NewString())
	}
	if env.Timestamp == 0 {
		env.Timestamp = time.Now().UnixMilli()
	}
}
