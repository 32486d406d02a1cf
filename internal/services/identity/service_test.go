package identity_test

import (
	"errors"
	"testing"

	"silent/internal/services/identity"
	"silent/internal/store"
)

func TestGenerateIdentity_WeakPassphrase(t *testing.T) {
	svc := identity.New(store.NewIdentityFileStore(t.TempDir()))
	for _, p := range []string{"", "short1!A", "alllowercase-123", "NoDigitsHere!!", "NoSymbols1234a"} {
		if _, _, err := svc.GenerateIdentity(p); !errors.Is(err, identity.ErrWeakPassphrase) {
			t.Fatalf("%q: got %v, want ErrWeakPassphrase", p, err)
		}
	}
}

func TestGenerateIdentity_RoundTrip(t *testing.T) {
	const pass = "Tr0ub4dor&3-horse"
	home := t.TempDir()
	svc := identity.New(store.NewIdentityFileStore(home))

	id, fp, err := svc.GenerateIdentity(pass)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if fp == "" || fp != identity.Fingerprint(id.XPub) {
		t.Fatalf("fingerprint mismatch: %q", fp)
	}

	// A fresh service over the same directory sees the same identity.
	again := identity.New(store.NewIdentityFileStore(home))
	got, err := again.LoadIdentity(pass)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got != id {
		t.Fatalf("identity changed across reload")
	}
	fp2, err := again.FingerprintIdentity(pass)
	if err != nil {
		t.Fatalf("fingerprint: %v", err)
	}
	if fp2 != fp {
		t.Fatalf("fingerprint changed: %q vs %q", fp2, fp)
	}

	if _, err := again.LoadIdentity("Wr0ng-passphrase!"); !errors.Is(err, store.ErrWrongPassphrase) {
		t.Fatalf("wrong passphrase: got %v", err)
	}
}

func TestLoadIdentity_Missing(t *testing.T) {
	svc := identity.New(store.NewIdentityFileStore(t.TempDir()))
	if _, err := svc.LoadIdentity("Tr0ub4dor&3-horse"); !errors.Is(err, store.ErrNoIdentity) {
		t.Fatalf("got %v, want ErrNoIdentity", err)
	}
}
