package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"github.com/medledger/medledger/internal/ledger"
	"github.com/medledger/medledger/internal/relay"
	"github.com/medledger/medledger/internal/wallet"
	"github.com/medledger/medledger/pkg/apperr"
	"github.com/medledger/medledger/pkg/units"
)

// withEnv runs fn with the command's resources open.
func (a *app) withEnv(cmd *cobra.Command, fn func(ctx context.Context, env *clientEnv) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	env, err := a.open(ctx)
	if err != nil {
		return err
	}
	defer env.Close()
	return fn(ctx, env)
}

// withSession is withEnv for commands that need a revalidated login.
func (a *app) withSession(cmd *cobra.Command, fn func(ctx context.Context, env *clientEnv, s wallet.Session) error) error {
	return a.withEnv(cmd, func(ctx context.Context, env *clientEnv) error {
		s, err := env.session(ctx)
		if err != nil {
			return err
		}
		return fn(ctx, env, s)
	})
}

func (a *app) loginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Connect the wallet and start a session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			address, _ := cmd.Flags().GetString("address")
			address = strings.TrimSpace(address)
			if cmd.Flags().Changed("address") && address == "" {
				return apperr.Validation("wallet address is required")
			}
			return a.withEnv(cmd, func(ctx context.Context, env *clientEnv) error {
				s, err := env.manager.Connect(ctx, address)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s\n", s.Account)
				return nil
			})
		},
	}
	cmd.Flags().String("address", "", "expected wallet address; login fails if the wallet's account differs")
	return cmd
}

func (a *app) logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the current session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withEnv(cmd, func(ctx context.Context, env *clientEnv) error {
				env.manager.Logout()
				fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
				return nil
			})
		},
	}
}

func (a *app) whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged-in account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSession(cmd, func(ctx context.Context, env *clientEnv, s wallet.Session) error {
				fmt.Fprintln(cmd.OutOrStdout(), s.Account)
				return nil
			})
		},
	}
}

func (a *app) registerCmd() *cobra.Command {
	var name, age, history string
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Store a patient record signed by the logged-in account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(name) == "" || strings.TrimSpace(age) == "" || strings.TrimSpace(history) == "" {
				return apperr.Validation("name, age and medical history are required")
			}
			parsedAge, err := ledger.ParseAge(age)
			if err != nil {
				return err
			}
			return a.withSession(cmd, func(ctx context.Context, env *clientEnv, s wallet.Session) error {
				client, err := env.facade(ctx)
				if err != nil {
					return err
				}
				hash, err := client.Register(ctx, s.Address(), name, parsedAge, history)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Patient registered. Transaction: %s\n", hash.Hex())
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "patient name")
	cmd.Flags().StringVar(&age, "age", "", "patient age in years")
	cmd.Flags().StringVar(&history, "history", "", "medical history")
	return cmd
}

func (a *app) patientCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "patient [address]",
		Short: "Show a patient record (defaults to the logged-in account)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSession(cmd, func(ctx context.Context, env *clientEnv, s wallet.Session) error {
				patient, err := addressArg(args, s)
				if err != nil {
					return err
				}
				client, err := env.facade(ctx)
				if err != nil {
					return err
				}
				// Read as the patient, the way the record owner's browser does.
				rec, err := client.GetDetails(ctx, patient, patient)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fields := rec.Tuple()
				fmt.Fprintf(out, "Name:            %s\n", fields[0])
				fmt.Fprintf(out, "Age:             %s\n", fields[1])
				fmt.Fprintf(out, "Medical history: %s\n", fields[2])
				return nil
			})
		},
	}
}

func (a *app) depositCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "deposit <amount>",
		Short: "Deposit ETH into the custody contract",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := units.ParseEther(args[0])
			if err != nil {
				return err
			}
			return a.withSession(cmd, func(ctx context.Context, env *clientEnv, s wallet.Session) error {
				client, err := env.facade(ctx)
				if err != nil {
					return err
				}
				hash, err := client.Deposit(ctx, s.Address(), amount)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deposit submitted. Transaction: %s\n", hash.Hex())
				return nil
			})
		},
	}
}

func (a *app) withdrawCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "withdraw <recipient> <amount>",
		Short: "Withdraw ETH from the custody contract to recipient",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			recipient, err := ledger.ParseAddress(args[0])
			if err != nil {
				return err
			}
			amount, err := units.ParseEther(args[1])
			if err != nil {
				return err
			}
			return a.withSession(cmd, func(ctx context.Context, env *clientEnv, s wallet.Session) error {
				client, err := env.facade(ctx)
				if err != nil {
					return err
				}
				hash, err := client.Withdraw(ctx, s.Address(), recipient, amount)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Withdrawal submitted. Transaction: %s\n", hash.Hex())
				return nil
			})
		},
	}
}

func (a *app) balanceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "balance",
		Short: "Show the custody contract balance",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSession(cmd, func(ctx context.Context, env *clientEnv, s wallet.Session) error {
				client, err := env.facade(ctx)
				if err != nil {
					return err
				}
				wei, err := client.GetBalance(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Balance: %s ETH\n", units.FormatEther(wei))
				return nil
			})
		},
	}
}

func (a *app) payCmd() *cobra.Command {
	var address, walletID, amount string
	cmd := &cobra.Command{
		Use:   "pay",
		Short: "Pay the administrator from the logged-in account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(amount) == "" {
				return apperr.Validation("ethereum address, wallet id and amount are required")
			}
			wei, err := units.ParseEther(amount)
			if err != nil {
				return err
			}
			return a.withSession(cmd, func(ctx context.Context, env *clientEnv, s wallet.Session) error {
				client, err := env.facade(ctx)
				if err != nil {
					return err
				}
				hash, err := client.PayAdmin(ctx, s.Address(), address, walletID, wei)
				if err != nil {
					return err
				}
				env.logger.Info().Str("wallet_id", walletID).Str("tx", hash.Hex()).Msg("payment submitted")
				fmt.Fprintf(cmd.OutOrStdout(), "Payment submitted. Transaction: %s\n", hash.Hex())
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&address, "address", "", "your ethereum address")
	cmd.Flags().StringVar(&walletID, "wallet-id", "", "wallet identifier, kept for reference")
	cmd.Flags().StringVar(&amount, "amount", "", "amount in ETH")
	return cmd
}

func (a *app) insightCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "insight [address]",
		Short: "Ask the relay for advice on a patient record",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSession(cmd, func(ctx context.Context, env *clientEnv, s wallet.Session) error {
				patient, err := addressArg(args, s)
				if err != nil {
					return err
				}
				text, err := relay.NewClient(env.cfg.RelayURL).GenerateInsight(ctx, patient.Hex())
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), text)
				return nil
			})
		},
	}
}

// addressArg returns the optional address argument, or the session account.
func addressArg(args []string, s wallet.Session) (common.Address, error) {
	if len(args) == 0 {
		return s.Address(), nil
	}
	return ledger.ParseAddress(args[0])
}
