package types

// Session is the handshake record kept by the initiator. While Pending, every
// outbound envelope to the peer repeats the PreKeyMessage so the responder can
// bootstrap even if earlier envelopes were lost.
type Session struct {
	PeerUsername     Username         `json:"peer_username"`
	PeerIdentityKey  X25519Public     `json:"peer_identity_key"`
	PeerSignedPreKey X25519Public     `json:"peer_signed_pre_key"`
	CreatedUTC       int64            `json:"created_utc"`
	SignedPreKeyID   SignedPreKeyID   `json:"signed_pre_key_id"`
	OneTimePreKeyID  *OneTimePreKeyID `json:"one_time_pre_key_id,omitempty"`
	EphemeralKey     X25519Public     `json:"ephemeral_key"`
	InitiatorKey     X25519Public     `json:"initiator_key"`
	Pending          bool             `json:"pending"`
}

// PreKeyMessage returns the handshake parameters to attach to outbound
// envelopes.
func (s Session) PreKeyMessage() *PreKeyMessage {
	return &PreKeyMessage{
		InitiatorIdentityKey: s.InitiatorKey,
		EphemeralKey:         s.EphemeralKey,
		SignedPreKeyID:       s.SignedPreKeyID,
		OneTimePreKeyID:      s.OneTimePreKeyID,
	}
}
