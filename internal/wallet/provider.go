package wallet

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/medledger/medledger/internal/ledger"
	"github.com/medledger/medledger/pkg/apperr"
)

// Provider is the account-access side of an EIP-1193 wallet.
type Provider interface {
	// RequestAccounts asks the wallet to authorize this client and returns
	// the authorized accounts, primary first.
	RequestAccounts(ctx context.Context) ([]string, error)
	// Accounts returns the currently authorized accounts without prompting.
	Accounts(ctx context.Context) ([]string, error)
}

// RPCProvider talks to a wallet or signer over JSON-RPC. It also signs and
// submits transactions for the ledger facade via eth_sendTransaction, so the
// private key never leaves the wallet.
type RPCProvider struct {
	client *rpc.Client
}

// DialProvider connects to the wallet endpoint at url. An empty url means no
// wallet is installed.
func DialProvider(ctx context.Context, url string) (*RPCProvider, error) {
	if url == "" {
		return nil, apperr.New(apperr.KindNoProvider, "no wallet provider configured")
	}
	c, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, &apperr.Error{
			Kind:    apperr.KindNoProvider,
			Message: fmt.Sprintf("wallet provider unavailable: %v", err),
			Err:     err,
		}
	}
	return NewRPCProvider(c), nil
}

func NewRPCProvider(c *rpc.Client) *RPCProvider {
	return &RPCProvider{client: c}
}

// Client exposes the underlying connection, e.g. to build an ethclient for
// reads against the same endpoint.
func (p *RPCProvider) Client() *rpc.Client {
	return p.client
}

func (p *RPCProvider) RequestAccounts(ctx context.Context) ([]string, error) {
	var accounts []string
	if err := p.client.CallContext(ctx, &accounts, "eth_requestAccounts"); err != nil {
		return nil, err
	}
	return accounts, nil
}

func (p *RPCProvider) Accounts(ctx context.Context) ([]string, error) {
	var accounts []string
	if err := p.client.CallContext(ctx, &accounts, "eth_accounts"); err != nil {
		return nil, err
	}
	return accounts, nil
}

// SendTransaction implements ledger.Wallet.
func (p *RPCProvider) SendTransaction(ctx context.Context, req ledger.TxRequest) (common.Hash, error) {
	args := map[string]interface{}{
		"from": req.From,
		"to":   req.To,
	}
	if len(req.Data) > 0 {
		args["data"] = hexutil.Bytes(req.Data)
	}
	if req.Value != nil {
		args["value"] = (*hexutil.Big)(req.Value)
	}
	if req.Gas > 0 {
		args["gas"] = hexutil.Uint64(req.Gas)
	}

	var hash common.Hash
	if err := p.client.CallContext(ctx, &hash, "eth_sendTransaction", args); err != nil {
		return common.Hash{}, err
	}
	return hash, nil
}

func (p *RPCProvider) Close() {
	p.client.Close()
}
