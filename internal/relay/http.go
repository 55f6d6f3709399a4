package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"cipherchat/internal/crypto"
	"cipherchat/internal/domain"
	"cipherchat/internal/util/logx"
)

// ErrNotFound is returned when the relay answers 404. It is
// domain.ErrNotFound, so callers need not import this package to match it.
var ErrNotFound = domain.ErrNotFound

// HTTP talks to a relay at Base.
type HTTP struct {
	Base   string
	HTTP   *http.Client
	Dialer *websocket.Dialer
	log    logrus.FieldLogger
}

// NewHTTP returns a client for the relay at base. A nil httpClient uses
// http.DefaultClient and a nil logger discards output.
func NewHTTP(base string, httpClient *http.Client, log logrus.FieldLogger) *HTTP {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &HTTP{
		Base:   strings.TrimRight(base, "/"),
		HTTP:   httpClient,
		Dialer: websocket.DefaultDialer,
		log:    logx.OrDiscard(log),
	}
}

func esc(s fmt.Stringer) string { return url.PathEscape(s.String()) }

// ---------- Directory ----------

type publicKeyBody struct {
	PublicKey string `json:"public_key"`
}

// PublishPublicKey registers pub for user.
func (c *HTTP) PublishPublicKey(ctx context.Context, user domain.Username, pub domain.X25519Public) error {
	return c.do(ctx, http.MethodPut, "/keys/"+esc(user), publicKeyBody{PublicKey: pub.Hex()}, nil)
}

// FetchPublicKey returns user's public key. A malformed directory entry is
// ErrInvalidKey.
func (c *HTTP) FetchPublicKey(ctx context.Context, user domain.Username) (domain.X25519Public, error) {
	var body publicKeyBody
	if err := c.do(ctx, http.MethodGet, "/keys/"+esc(user), nil, &body); err != nil {
		return domain.X25519Public{}, err
	}
	return crypto.ParsePublicKeyHex(body.PublicKey)
}

// CreateGroup stores a new group record.
func (c *HTTP) CreateGroup(ctx context.Context, group domain.Group) error {
	return c.do(ctx, http.MethodPost, "/groups", group, nil)
}

// FetchGroup returns the group record for id.
func (c *HTTP) FetchGroup(ctx context.Context, id domain.GroupID) (domain.Group, error) {
	var g domain.Group
	err := c.do(ctx, http.MethodGet, "/groups/"+esc(id), nil, &g)
	return g, err
}

// AddGroupMember adds member to group id.
func (c *HTTP) AddGroupMember(ctx context.Context, id domain.GroupID, member domain.Username) error {
	body := struct {
		Member domain.Username `json:"member"`
	}{member}
	return c.do(ctx, http.MethodPost, "/groups/"+esc(id)+"/members", body, nil)
}

// RemoveGroupMember removes member from group id.
func (c *HTTP) RemoveGroupMember(ctx context.Context, id domain.GroupID, member domain.Username) error {
	return c.do(ctx, http.MethodDelete, "/groups/"+esc(id)+"/members/"+esc(member), nil, nil)
}

// UpdateGroupKey advances the group's key version and records its link.
func (c *HTTP) UpdateGroupKey(
	ctx context.Context,
	id domain.GroupID,
	version domain.KeyVersion,
	keyLink string,
) error {
	body := struct {
		KeyVersion domain.KeyVersion `json:"key_version"`
		KeyLink    string            `json:"key_link"`
	}{version, keyLink}
	return c.do(ctx, http.MethodPut, "/groups/"+esc(id)+"/key", body, nil)
}

// PublishKeyPackages uploads packages. They must all belong to one group.
func (c *HTTP) PublishKeyPackages(ctx context.Context, packages []domain.WireKeyPackage) error {
	if len(packages) == 0 {
		return nil
	}
	id := packages[0].GroupID
	for _, p := range packages[1:] {
		if p.GroupID != id {
			return fmt.Errorf("key packages span groups %s and %s", id, p.GroupID)
		}
	}
	return c.do(ctx, http.MethodPost, "/groups/"+esc(id)+"/packages", packages, nil)
}

// FetchKeyPackages returns member's packages in group id.
func (c *HTTP) FetchKeyPackages(
	ctx context.Context,
	id domain.GroupID,
	member domain.Username,
) ([]domain.WireKeyPackage, error) {
	var out []domain.WireKeyPackage
	err := c.do(ctx, http.MethodGet, "/groups/"+esc(id)+"/packages/"+esc(member), nil, &out)
	return out, err
}

// DeleteKeyPackages drops member's packages in group id.
func (c *HTTP) DeleteKeyPackages(ctx context.Context, id domain.GroupID, member domain.Username) error {
	return c.do(ctx, http.MethodDelete, "/groups/"+esc(id)+"/packages/"+esc(member), nil, nil)
}

// ---------- Transport ----------

// SendMessage queues a direct envelope for env.To.
func (c *HTTP) SendMessage(ctx context.Context, env domain.WireEnvelope) error {
	return c.do(ctx, http.MethodPost, "/msg/"+esc(env.To), env, nil)
}

// FetchMessages returns up to limit queued envelopes for username without
// removing them; limit <= 0 returns all.
func (c *HTTP) FetchMessages(ctx context.Context, username domain.Username, limit int) ([]domain.WireEnvelope, error) {
	path := "/msg/" + esc(username)
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var envs []domain.WireEnvelope
	err := c.do(ctx, http.MethodGet, path, nil, &envs)
	return envs, err
}

// AckMessages drops the first count queued envelopes for username.
func (c *HTTP) AckMessages(ctx context.Context, username domain.Username, count int) error {
	body := struct {
		Count int `json:"count"`
	}{count}
	return c.do(ctx, http.MethodPost, "/msg/"+esc(username)+"/ack", body, nil)
}

// SendGroupMessage appends env to its group's log.
func (c *HTTP) SendGroupMessage(ctx context.Context, env domain.WireEnvelope) error {
	return c.do(ctx, http.MethodPost, "/groups/"+esc(env.GroupID)+"/messages", env, nil)
}

// FetchGroupMessages returns group messages newer than since (Unix ms).
func (c *HTTP) FetchGroupMessages(ctx context.Context, id domain.GroupID, since int64) ([]domain.WireEnvelope, error) {
	path := "/groups/" + esc(id) + "/messages"
	if since > 0 {
		path += "?since=" + strconv.FormatInt(since, 10)
	}
	var envs []domain.WireEnvelope
	err := c.do(ctx, http.MethodGet, path, nil, &envs)
	return envs, err
}

// Subscribe opens the relay's websocket for username. The channel closes
// when ctx ends or the connection drops.
func (c *HTTP) Subscribe(ctx context.Context, username domain.Username) (<-chan domain.WireEnvelope, error) {
	u, err := url.Parse(c.Base + "/ws/" + esc(username))
	if err != nil {
		return nil, err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	conn, resp, err := c.Dialer.DialContext(ctx, u.String(), nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("relay subscribe %s: %w", username, err)
	}
	// The relay confirms registration before pushing anything.
	var hello struct {
		User domain.Username `json:"subscribed"`
	}
	if err := conn.ReadJSON(&hello); err != nil || hello.User != username {
		_ = conn.Close()
		return nil, fmt.Errorf("relay subscribe %s: no confirmation", username)
	}

	out := make(chan domain.WireEnvelope)
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
		case <-done:
		}
		_ = conn.Close()
	}()
	go func() {
		defer close(out)
		defer close(done)
		for {
			var env domain.WireEnvelope
			if err := conn.ReadJSON(&env); err != nil {
				if ctx.Err() == nil {
					c.log.WithError(err).WithField("user", username).Warn("relay subscription ended")
				}
				return
			}
			select {
			case out <- env:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// ---------- plumbing ----------

func (c *HTTP) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		buf := new(bytes.Buffer)
		if err := json.NewEncoder(buf).Encode(in); err != nil {
			return err
		}
		body = buf
	}
	req, err := http.NewRequestWithContext(ctx, method, c.Base+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %s %s", ErrNotFound, method, path)
	}
	if resp.StatusCode/100 != 2 {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&e)
		return fmt.Errorf("relay %s %s: %s: %s", method, path, resp.Status, e.Error)
	}
	if out != nil && resp.StatusCode != http.StatusNoContent {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

var _ domain.RelayClient = (*HTTP)(nil)
