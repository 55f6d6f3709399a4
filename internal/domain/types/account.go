package types

// Profile records which username a client registered on a specific relay
// and the public key it published. It never holds secrets.
type Profile struct {
	ServerURL  string   `json:"server_url"`
	Username   Username `json:"username"`
	PublicKey  string   `json:"public_key"`
	Registered int64    `json:"registered_utc"`
}
