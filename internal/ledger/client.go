// Package ledger wraps the record registry and funds custody contracts behind
// typed calls. Reads go through a Caller (any eth_call capable backend);
// writes are handed to a Wallet, which signs them with the active account.
// Chain failures are returned verbatim as apperr.KindChainCall and are never
// retried here.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/medledger/medledger/pkg/apperr"
)

// Caller performs read-only contract calls. *ethclient.Client satisfies it.
type Caller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// Wallet submits a transaction signed by the account in req.From.
type Wallet interface {
	SendTransaction(ctx context.Context, req TxRequest) (common.Hash, error)
}

// Addresses locates the deployed contracts.
type Addresses struct {
	Registry common.Address
	Custody  common.Address
	Admin    common.Address
}

// DefaultAddresses returns the compiled-in deployment.
func DefaultAddresses() Addresses {
	return Addresses{
		Registry: DefaultRegistryAddress,
		Custody:  DefaultCustodyAddress,
		Admin:    AdminAddress,
	}
}

type Client struct {
	caller Caller
	wallet Wallet
	addrs  Addresses
}

// NewClient builds a facade. wallet may be nil for read-only use, in which
// case every write fails with apperr.KindNoProvider.
func NewClient(caller Caller, wallet Wallet, addrs Addresses) *Client {
	return &Client{caller: caller, wallet: wallet, addrs: addrs}
}

func (c *Client) Addresses() Addresses {
	return c.addrs
}

// -- Record registry --

// Register stores a patient record signed by from.
func (c *Client) Register(ctx context.Context, from common.Address, name string, age *big.Int, medicalHistory string) (common.Hash, error) {
	if name == "" || age == nil || medicalHistory == "" {
		return common.Hash{}, apperr.Validation("name, age and medical history are required")
	}
	data, err := RegistryABI.Pack(MethodRegisterPatient, name, age, medicalHistory)
	if err != nil {
		return common.Hash{}, apperr.Wrap(apperr.KindValidation, err)
	}
	return c.send(ctx, TxRequest{
		From: from,
		To:   c.addrs.Registry,
		Data: data,
		Gas:  RegisterGasLimit,
	})
}

// GetDetails reads the record of patient, attributing the call to caller.
// A contract-side rejection is reported as apperr.KindUnauthorized.
func (c *Client) GetDetails(ctx context.Context, caller, patient common.Address) (*PatientRecord, error) {
	data, err := RegistryABI.Pack(MethodGetPatientDetails, patient)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, err)
	}
	out, err := c.call(ctx, caller, c.addrs.Registry, data)
	if err != nil {
		return nil, err
	}
	values, err := RegistryABI.Unpack(MethodGetPatientDetails, out)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindChainCall, fmt.Errorf("decode patient details: %w", err))
	}
	if len(values) != 3 {
		return nil, apperr.Newf(apperr.KindChainCall, "decode patient details: expected 3 values, got %d", len(values))
	}
	name, _ := values[0].(string)
	age, _ := values[1].(*big.Int)
	history, _ := values[2].(string)
	return &PatientRecord{Name: name, Age: age, MedicalHistory: history}, nil
}

// -- Funds custody --

// Deposit sends amount wei into the custody contract.
func (c *Client) Deposit(ctx context.Context, from common.Address, amount *big.Int) (common.Hash, error) {
	if amount == nil || amount.Sign() <= 0 {
		return common.Hash{}, apperr.Validation("deposit amount must be positive")
	}
	data, err := CustodyABI.Pack(MethodDeposit)
	if err != nil {
		return common.Hash{}, apperr.Wrap(apperr.KindInternal, err)
	}
	return c.send(ctx, TxRequest{
		From:  from,
		To:    c.addrs.Custody,
		Data:  data,
		Value: new(big.Int).Set(amount),
	})
}

// Withdraw asks the custody contract to pay amount wei to recipient.
func (c *Client) Withdraw(ctx context.Context, from, recipient common.Address, amount *big.Int) (common.Hash, error) {
	if amount == nil || amount.Sign() <= 0 {
		return common.Hash{}, apperr.Validation("withdraw amount must be positive")
	}
	data, err := CustodyABI.Pack(MethodWithdraw, recipient, amount)
	if err != nil {
		return common.Hash{}, apperr.Wrap(apperr.KindValidation, err)
	}
	return c.send(ctx, TxRequest{
		From: from,
		To:   c.addrs.Custody,
		Data: data,
	})
}

// GetBalance returns the custody contract's balance in wei.
func (c *Client) GetBalance(ctx context.Context) (*big.Int, error) {
	data, err := CustodyABI.Pack(MethodGetBalance)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, err)
	}
	out, err := c.call(ctx, common.Address{}, c.addrs.Custody, data)
	if err != nil {
		if errors.Is(err, apperr.ErrUnauthorized) {
			// getBalance has no caller restriction; a revert is just a failed call.
			return nil, apperr.Wrap(apperr.KindChainCall, errors.Unwrap(err))
		}
		return nil, err
	}
	values, err := CustodyABI.Unpack(MethodGetBalance, out)
	if err != nil || len(values) != 1 {
		return nil, apperr.Newf(apperr.KindChainCall, "decode balance: %v", err)
	}
	balance, ok := values[0].(*big.Int)
	if !ok {
		return nil, apperr.Newf(apperr.KindChainCall, "decode balance: unexpected type %T", values[0])
	}
	return balance, nil
}

// PayAdmin transfers amount wei from the active account to the admin wallet.
// enteredAddress is what the patient typed as their own address and must
// match from; walletID is only kept for reference by the caller.
func (c *Client) PayAdmin(ctx context.Context, from common.Address, enteredAddress, walletID string, amount *big.Int) (common.Hash, error) {
	if strings.TrimSpace(enteredAddress) == "" || strings.TrimSpace(walletID) == "" || amount == nil {
		return common.Hash{}, apperr.Validation("ethereum address, wallet id and amount are required")
	}
	if amount.Sign() <= 0 {
		return common.Hash{}, apperr.Validation("payment amount must be positive")
	}
	if !SameAccount(enteredAddress, from.Hex()) {
		return common.Hash{}, apperr.New(apperr.KindAddressMismatch, "the entered address does not match the connected wallet")
	}
	return c.send(ctx, TxRequest{
		From:  from,
		To:    c.addrs.Admin,
		Value: new(big.Int).Set(amount),
	})
}

func (c *Client) send(ctx context.Context, req TxRequest) (common.Hash, error) {
	if c.wallet == nil {
		return common.Hash{}, apperr.New(apperr.KindNoProvider, "no wallet provider available to sign the transaction")
	}
	hash, err := c.wallet.SendTransaction(ctx, req)
	if err != nil {
		var classified *apperr.Error
		if errors.As(err, &classified) {
			return common.Hash{}, err
		}
		return common.Hash{}, apperr.Wrap(apperr.KindChainCall, err)
	}
	return hash, nil
}

func (c *Client) call(ctx context.Context, from, to common.Address, data []byte) ([]byte, error) {
	msg := ethereum.CallMsg{From: from, To: &to, Data: data}
	out, err := c.caller.CallContract(ctx, msg, nil)
	if err != nil {
		if IsRevert(err) {
			return nil, apperr.Wrap(apperr.KindUnauthorized, err)
		}
		return nil, apperr.Wrap(apperr.KindChainCall, err)
	}
	return out, nil
}

// revertErrorCode is the JSON-RPC error code nodes use for execution reverts.
const revertErrorCode = 3

// IsRevert reports whether err is a contract-side rejection rather than a
// transport or node failure.
func IsRevert(err error) bool {
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) && rpcErr.ErrorCode() == revertErrorCode {
		return true
	}
	return strings.Contains(err.Error(), "execution reverted")
}
