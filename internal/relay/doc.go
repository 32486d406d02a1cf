// Package relay is the store-and-forward service between contacts.
//
// HTTP is the client side: it implements domain.KeyDirectory and
// domain.TransportChannel over the relay's JSON API. Server is the relay
// itself, an in-memory key directory plus per-user mailboxes.
//
// HTTP API
//
//	POST /register                  publish a PreKeyBundle (signature checked)
//	GET  /prekey/{user}             bundle with at most one one-time pre-key, which is removed
//	POST /prekey/{user}/consume     {"id": N} retires a one-time pre-key; idempotent
//	POST /msg/{user}                queue an Envelope; id and timestamp filled if absent
//	GET  /msg/{user}?limit=N        up to N queued envelopes, oldest first
//	POST /msg/{user}/ack            {"count": N} drops the first N envelopes
//	GET  /health                    liveness
//	GET  /metrics                   Prometheus counters
//
// Non-2xx responses carry {"error": "..."}; the client returns them as errors
// naming the method, URL and status. The relay never sees plaintext or
// private keys.
package relay
