package types

// NonceSize is the size of the per-message AEAD nonce.
const NonceSize = 24

// RatchetHeader is sent alongside every ciphertext.
type RatchetHeader struct {
	DHPub           X25519Public `json:"dh_pub"`
	MessageIndex    uint32       `json:"n"`
	PrevChainLength uint32       `json:"pn"` // always 0
}

// EncryptedMessage is the ratchet output for one plaintext.
type EncryptedMessage struct {
	Header     RatchetHeader `json:"header"`
	Ciphertext []byte        `json:"ciphertext"`
	Nonce      []byte        `json:"nonce"`
}

// Envelope is the wire-format message you post/get from the relay.
type Envelope struct {
	ID        string           `json:"id,omitempty"`
	From      Username         `json:"from"`
	To        Username         `json:"to"`
	Message   EncryptedMessage `json:"message"`
	PreKey    *PreKeyMessage   `json:"pre_key,omitempty"`
	Timestamp int64            `json:"timestamp"`
}

// DecryptedMessage is what MessageService.ReceiveMessages returns.
type DecryptedMessage struct {
	From      Username `json:"from"`
	To        Username `json:"to"`
	Plaintext []byte   `json:"plaintext"`
	Timestamp int64    `json:"timestamp"`
}
