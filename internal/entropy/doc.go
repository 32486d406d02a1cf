// Package entropy supplies the randomness used for ratchet keys and nonces.
//
// Source always draws from crypto/rand. An optional enhancer service can
// contribute a seed that is expanded and XORed over the local bytes; the
// request is bounded by a deadline of at most two seconds and any failure
// falls back to local randomness alone. Security never depends on the
// enhancer being reachable.
package entropy
