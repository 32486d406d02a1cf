package interfaces

import domaintypes "silent/internal/domain/types"

// AccountStore remembers which username we registered on each relay.
type AccountStore interface {
	SaveAccount(account domaintypes.Account) error
	LoadAccount(relayURL string) (domaintypes.Account, bool, error)
}
