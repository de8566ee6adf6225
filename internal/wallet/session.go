// Package wallet manages the client's wallet session: connecting to a wallet
// provider, persisting the active account and revalidating it before every
// protected operation.
package wallet

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"github.com/medledger/medledger/internal/ledger"
	"github.com/medledger/medledger/pkg/apperr"
)

// Session is the active wallet account.
type Session struct {
	Account string `json:"account"`
}

func (s Session) Address() common.Address {
	return common.HexToAddress(s.Account)
}

type Manager struct {
	provider Provider
	store    Store
	logger   zerolog.Logger
}

// NewManager builds a session manager. provider may be nil when no wallet is
// present; every operation that needs it then fails with KindNoProvider.
func NewManager(provider Provider, store Store, logger zerolog.Logger) *Manager {
	return &Manager{
		provider: provider,
		store:    store,
		logger:   logger.With().Str("component", "wallet_session").Logger(),
	}
}

// Connect requests account access and stores the primary account as the
// active session. When expected is non-empty the primary account must match
// it case-insensitively, otherwise nothing is stored.
func (m *Manager) Connect(ctx context.Context, expected string) (Session, error) {
	if m.provider == nil {
		return Session{}, apperr.New(apperr.KindNoProvider, "no wallet provider is installed")
	}

	accounts, err := m.provider.RequestAccounts(ctx)
	if err != nil {
		m.logger.Error().Err(err).Msg("wallet connection failed")
		return Session{}, &apperr.Error{
			Kind:    apperr.KindNoProvider,
			Message: fmt.Sprintf("failed to connect to wallet: %v", err),
			Err:     err,
		}
	}
	if len(accounts) == 0 {
		return Session{}, apperr.New(apperr.KindNoProvider, "wallet did not authorize any account")
	}

	primary := accounts[0]
	if expected != "" && !ledger.SameAccount(expected, primary) {
		m.logger.Warn().Str("expected", expected).Str("connected", primary).Msg("wallet address mismatch")
		return Session{}, apperr.New(apperr.KindAddressMismatch, "the entered wallet address does not match the connected account")
	}

	if err := m.store.Save(primary); err != nil {
		return Session{}, apperr.Wrap(apperr.KindInternal, err)
	}
	m.logger.Info().Str("account", primary).Msg("wallet connected")
	return Session{Account: primary}, nil
}

// Restore revalidates the stored session against the wallet. Callers must
// send the user back to login on any error, and clear the session on
// KindAccountDrift.
func (m *Manager) Restore(ctx context.Context) (Session, error) {
	stored, err := m.store.Load()
	if errors.Is(err, ErrNotFound) || (err == nil && stored == "") {
		return Session{}, apperr.New(apperr.KindNoSession, "not logged in")
	}
	if err != nil {
		return Session{}, apperr.Wrap(apperr.KindInternal, err)
	}

	if m.provider == nil {
		return Session{}, apperr.New(apperr.KindNoProvider, "no wallet provider is installed")
	}

	accounts, err := m.provider.Accounts(ctx)
	if err != nil {
		m.logger.Error().Err(err).Msg("wallet account query failed")
		return Session{}, &apperr.Error{
			Kind:    apperr.KindNoProvider,
			Message: fmt.Sprintf("failed to query wallet accounts: %v", err),
			Err:     err,
		}
	}
	if len(accounts) == 0 || !ledger.SameAccount(accounts[0], stored) {
		m.logger.Warn().Str("stored", stored).Strs("authorized", accounts).Msg("wallet account drift")
		return Session{}, apperr.New(apperr.KindAccountDrift, "the connected wallet account does not match the logged-in account")
	}

	return Session{Account: stored}, nil
}

// Logout clears the stored session. It never fails; storage errors are logged.
// When the entry cannot be deleted it is blanked, which Restore reads as no
// session.
func (m *Manager) Logout() {
	if err := m.store.Delete(); err != nil {
		m.logger.Warn().Err(err).Msg("failed to delete session, blanking it")
		if err := m.store.Save(""); err != nil {
			m.logger.Error().Err(err).Msg("failed to clear session")
			return
		}
	}
	m.logger.Info().Msg("logged out")
}
