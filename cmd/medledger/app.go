package main

import (
	"context"
	"errors"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/medledger/medledger/internal/config"
	"github.com/medledger/medledger/internal/ledger"
	"github.com/medledger/medledger/internal/wallet"
	"github.com/medledger/medledger/pkg/apperr"
)

// app carries what every command needs once flags have been parsed.
type app struct {
	v      *viper.Viper
	cfg    *config.ClientConfig
	logger zerolog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{v: viper.New()}

	root := &cobra.Command{
		Use:           "medledger",
		Short:         "Wallet client for the patient record registry",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.String("wallet-url", "", "wallet provider endpoint")
	flags.String("node-url", "", "node endpoint for read-only calls (defaults to the wallet)")
	flags.String("session-path", "", "directory of the local session store")
	flags.String("relay-url", "", "relay service base URL")
	flags.String("registry-address", "", "record registry contract address")
	flags.String("custody-address", "", "funds custody contract address")
	flags.BoolP("verbose", "v", false, "log debug output to stderr")

	for key, flag := range map[string]string{
		"WALLET_URL":       "wallet-url",
		"NODE_URL":         "node-url",
		"SESSION_PATH":     "session-path",
		"RELAY_URL":        "relay-url",
		"REGISTRY_ADDRESS": "registry-address",
		"CUSTODY_ADDRESS":  "custody-address",
	} {
		_ = a.v.BindPFlag(key, flags.Lookup(flag))
	}

	root.AddCommand(
		a.loginCmd(),
		a.logoutCmd(),
		a.whoamiCmd(),
		a.registerCmd(),
		a.patientCmd(),
		a.depositCmd(),
		a.withdrawCmd(),
		a.balanceCmd(),
		a.payCmd(),
		a.insightCmd(),
	)
	return root
}

func (a *app) init(cmd *cobra.Command) error {
	level := zerolog.WarnLevel
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		level = zerolog.DebugLevel
	}
	a.logger = zerolog.New(zerolog.ConsoleWriter{Out: cmd.ErrOrStderr()}).
		With().Timestamp().Logger().Level(level)

	cfg, err := config.LoadClient(a.v)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger.Debug().
		Str("wallet_url", cfg.WalletURL).
		Str("read_url", cfg.ReadURL()).
		Str("session_path", cfg.SessionPath).
		Msg("client configured")
	return nil
}

// clientEnv holds the resources opened for one command.
type clientEnv struct {
	cfg      *config.ClientConfig
	logger   zerolog.Logger
	manager  *wallet.Manager
	provider *wallet.RPCProvider
	closers  []func()
}

// open connects the session store and, if configured, the wallet provider.
// A missing provider is not an error here; the operations that need one
// report it.
func (a *app) open(ctx context.Context) (*clientEnv, error) {
	store, err := wallet.OpenLevelDBStore(a.cfg.SessionPath)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, err)
	}
	env := &clientEnv{
		cfg:     a.cfg,
		logger:  a.logger,
		closers: []func(){func() { _ = store.Close() }},
	}

	var provider wallet.Provider
	p, err := wallet.DialProvider(ctx, a.cfg.WalletURL)
	if err != nil {
		a.logger.Debug().Err(err).Msg("wallet provider unavailable")
	} else {
		env.provider = p
		env.closers = append(env.closers, p.Close)
		provider = p
	}

	env.manager = wallet.NewManager(provider, store, a.logger)
	return env, nil
}

func (e *clientEnv) Close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		e.closers[i]()
	}
}

// session revalidates the stored account. Drift ends the session.
func (e *clientEnv) session(ctx context.Context) (wallet.Session, error) {
	s, err := e.manager.Restore(ctx)
	if err != nil {
		if errors.Is(err, apperr.ErrAccountDrift) {
			e.manager.Logout()
		}
		return wallet.Session{}, err
	}
	return s, nil
}

// facade builds the contract client. Reads go to NODE_URL when set,
// otherwise through the wallet connection; writes are signed by the wallet.
func (e *clientEnv) facade(ctx context.Context) (*ledger.Client, error) {
	addrs, err := e.cfg.Addresses()
	if err != nil {
		return nil, apperr.Validation(err.Error())
	}

	var caller ledger.Caller
	switch {
	case e.cfg.NodeURL != "":
		ec, err := ethclient.DialContext(ctx, e.cfg.NodeURL)
		if err != nil {
			return nil, apperr.Wrap(apperr.KindNoProvider, err)
		}
		e.closers = append(e.closers, ec.Close)
		caller = ec
	case e.provider != nil:
		caller = ethclient.NewClient(e.provider.Client())
	default:
		return nil, apperr.New(apperr.KindNoProvider, "no wallet provider or node configured")
	}

	var signer ledger.Wallet
	if e.provider != nil {
		signer = e.provider
	}
	return ledger.NewClient(caller, signer, addrs), nil
}
