package types

// Account records the username registered on a relay.
type Account struct {
	RelayURL     string   `json:"relay_url"`
	Username     Username `json:"username"`
	RegisteredAt int64    `json:"registered_at"`
}
