package ledger

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"

	"github.com/medledger/medledger/pkg/apperr"
	"github.com/medledger/medledger/pkg/units"
)

type fakeCaller struct {
	out  []byte
	err  error
	msgs []ethereum.CallMsg
}

func (f *fakeCaller) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	f.msgs = append(f.msgs, msg)
	return f.out, f.err
}

type fakeWallet struct {
	hash common.Hash
	err  error
	reqs []TxRequest
}

func (f *fakeWallet) SendTransaction(_ context.Context, req TxRequest) (common.Hash, error) {
	f.reqs = append(f.reqs, req)
	return f.hash, f.err
}

type revertErr struct{}

func (revertErr) Error() string  { return "execution reverted: Not authorized" }
func (revertErr) ErrorCode() int { return 3 }

var (
	alice   = common.HexToAddress("0x1111111111111111111111111111111111111111")
	bob     = common.HexToAddress("0x2222222222222222222222222222222222222222")
	txHash  = common.HexToHash("0xabc0000000000000000000000000000000000000000000000000000000000def")
	testCtx = context.Background()
)

func newTestClient(caller *fakeCaller, wallet *fakeWallet) *Client {
	if wallet == nil {
		return NewClient(caller, nil, DefaultAddresses())
	}
	return NewClient(caller, wallet, DefaultAddresses())
}

func packDetails(t *testing.T, name string, age int64, history string) []byte {
	t.Helper()
	out, err := RegistryABI.Methods[MethodGetPatientDetails].Outputs.Pack(name, big.NewInt(age), history)
	if err != nil {
		t.Fatalf("pack outputs: %v", err)
	}
	return out
}

func TestClient_Register(t *testing.T) {
	w := &fakeWallet{hash: txHash}
	c := newTestClient(&fakeCaller{}, w)

	hash, err := c.Register(testCtx, alice, "Alice", big.NewInt(34), "no known allergies")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if hash != txHash {
		t.Errorf("expected %s, got %s", txHash.Hex(), hash.Hex())
	}
	if len(w.reqs) != 1 {
		t.Fatalf("expected 1 request, got %d", len(w.reqs))
	}
	req := w.reqs[0]
	if req.From != alice || req.To != DefaultRegistryAddress {
		t.Errorf("unexpected from/to: %s -> %s", req.From.Hex(), req.To.Hex())
	}
	if req.Gas != RegisterGasLimit {
		t.Errorf("expected gas %d, got %d", RegisterGasLimit, req.Gas)
	}

	method, err := RegistryABI.MethodById(req.Data[:4])
	if err != nil || method.Name != MethodRegisterPatient {
		t.Fatalf("expected registerPatient selector, got %v (%v)", method, err)
	}
	args, err := method.Inputs.Unpack(req.Data[4:])
	if err != nil {
		t.Fatalf("unpack inputs: %v", err)
	}
	if args[0].(string) != "Alice" || args[1].(*big.Int).Int64() != 34 || args[2].(string) != "no known allergies" {
		t.Errorf("unexpected encoded args: %v", args)
	}
}

func TestClient_Register_MissingFields(t *testing.T) {
	w := &fakeWallet{}
	c := newTestClient(&fakeCaller{}, w)

	_, err := c.Register(testCtx, alice, "", big.NewInt(1), "x")
	if !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
	if len(w.reqs) != 0 {
		t.Error("expected no submission")
	}
}

func TestClient_Register_ProviderErrorVerbatim(t *testing.T) {
	w := &fakeWallet{err: errors.New("User denied transaction signature.")}
	c := newTestClient(&fakeCaller{}, w)

	_, err := c.Register(testCtx, alice, "Alice", big.NewInt(34), "none")
	if !errors.Is(err, apperr.ErrChainCall) {
		t.Fatalf("expected chain call error, got %v", err)
	}
	if err.Error() != "User denied transaction signature." {
		t.Errorf("expected provider message verbatim, got %q", err.Error())
	}
}

func TestClient_Register_NoWallet(t *testing.T) {
	c := newTestClient(&fakeCaller{}, nil)
	_, err := c.Register(testCtx, alice, "Alice", big.NewInt(34), "none")
	if !errors.Is(err, apperr.ErrNoProvider) {
		t.Errorf("expected no provider error, got %v", err)
	}
}

func TestClient_GetDetails(t *testing.T) {
	caller := &fakeCaller{out: packDetails(t, "Alice", 34, "no known allergies")}
	c := newTestClient(caller, nil)

	rec, err := c.GetDetails(testCtx, alice, alice)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Name != "Alice" || rec.Age.Int64() != 34 || rec.MedicalHistory != "no known allergies" {
		t.Errorf("unexpected record: %+v", rec)
	}
	got := rec.Tuple()
	if got[0] != "Alice" || got[1] != "34" || got[2] != "no known allergies" {
		t.Errorf("unexpected tuple: %v", got)
	}
	if caller.msgs[0].From != alice {
		t.Errorf("expected call attributed to %s, got %s", alice.Hex(), caller.msgs[0].From.Hex())
	}
	if *caller.msgs[0].To != DefaultRegistryAddress {
		t.Errorf("expected call to registry, got %s", caller.msgs[0].To.Hex())
	}
}

func TestClient_GetDetails_CallerAttribution(t *testing.T) {
	caller := &fakeCaller{out: packDetails(t, "Alice", 34, "x")}
	c := newTestClient(caller, nil)

	if _, err := c.GetDetails(testCtx, bob, alice); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if caller.msgs[0].From != bob {
		t.Errorf("expected call attributed to %s, got %s", bob.Hex(), caller.msgs[0].From.Hex())
	}
}

func TestClient_GetDetails_Unauthorized(t *testing.T) {
	c := newTestClient(&fakeCaller{err: revertErr{}}, nil)

	_, err := c.GetDetails(testCtx, alice, bob)
	if !errors.Is(err, apperr.ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	if err.Error() != "execution reverted: Not authorized" {
		t.Errorf("expected message verbatim, got %q", err.Error())
	}
}

func TestClient_GetDetails_TransportFailure(t *testing.T) {
	c := newTestClient(&fakeCaller{err: errors.New("dial tcp: connection refused")}, nil)

	_, err := c.GetDetails(testCtx, alice, bob)
	if !errors.Is(err, apperr.ErrChainCall) {
		t.Errorf("expected chain call error, got %v", err)
	}
}

func TestClient_GetDetails_EmptyOutput(t *testing.T) {
	c := newTestClient(&fakeCaller{out: []byte{}}, nil)

	_, err := c.GetDetails(testCtx, alice, bob)
	if !errors.Is(err, apperr.ErrChainCall) {
		t.Errorf("expected chain call error for empty output, got %v", err)
	}
}

func TestClient_Deposit(t *testing.T) {
	w := &fakeWallet{hash: txHash}
	c := newTestClient(&fakeCaller{}, w)

	amount := units.MustParseEther("1.5")
	if _, err := c.Deposit(testCtx, alice, amount); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	req := w.reqs[0]
	if req.To != DefaultCustodyAddress {
		t.Errorf("expected custody address, got %s", req.To.Hex())
	}
	if req.Value.String() != "1500000000000000000" {
		t.Errorf("expected value 1.5 ether in wei, got %s", req.Value)
	}
	if method, err := CustodyABI.MethodById(req.Data); err != nil || method.Name != MethodDeposit {
		t.Errorf("expected deposit selector, got %v (%v)", method, err)
	}
}

func TestClient_Deposit_RejectsNonPositive(t *testing.T) {
	c := newTestClient(&fakeCaller{}, &fakeWallet{})
	for _, amt := range []*big.Int{nil, big.NewInt(0), big.NewInt(-1)} {
		if _, err := c.Deposit(testCtx, alice, amt); !errors.Is(err, apperr.ErrValidation) {
			t.Errorf("expected validation error for %v, got %v", amt, err)
		}
	}
}

func TestClient_Withdraw(t *testing.T) {
	w := &fakeWallet{hash: txHash}
	c := newTestClient(&fakeCaller{}, w)

	if _, err := c.Withdraw(testCtx, alice, bob, big.NewInt(42)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	req := w.reqs[0]
	method, err := CustodyABI.MethodById(req.Data[:4])
	if err != nil || method.Name != MethodWithdraw {
		t.Fatalf("expected withdraw selector, got %v (%v)", method, err)
	}
	args, err := method.Inputs.Unpack(req.Data[4:])
	if err != nil {
		t.Fatalf("unpack inputs: %v", err)
	}
	if args[0].(common.Address) != bob || args[1].(*big.Int).Int64() != 42 {
		t.Errorf("unexpected args: %v", args)
	}
	if req.Value != nil {
		t.Errorf("expected no value on withdraw, got %s", req.Value)
	}
}

func TestClient_GetBalance(t *testing.T) {
	out, _ := CustodyABI.Methods[MethodGetBalance].Outputs.Pack(big.NewInt(2500))
	caller := &fakeCaller{out: out}
	c := newTestClient(caller, nil)

	bal, err := c.GetBalance(testCtx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if bal.Int64() != 2500 {
		t.Errorf("expected 2500, got %s", bal)
	}
	if *caller.msgs[0].To != DefaultCustodyAddress {
		t.Errorf("expected call to custody, got %s", caller.msgs[0].To.Hex())
	}
}

func TestClient_GetBalance_RevertIsChainFailure(t *testing.T) {
	c := newTestClient(&fakeCaller{err: revertErr{}}, nil)
	_, err := c.GetBalance(testCtx)
	if !errors.Is(err, apperr.ErrChainCall) {
		t.Errorf("expected chain call error, got %v", err)
	}
}

func TestClient_PayAdmin(t *testing.T) {
	w := &fakeWallet{hash: txHash}
	c := newTestClient(&fakeCaller{}, w)

	_, err := c.PayAdmin(testCtx, alice, "0x1111111111111111111111111111111111111111", "wallet-7", big.NewInt(10))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if w.reqs[0].To != AdminAddress || w.reqs[0].Value.Int64() != 10 {
		t.Errorf("unexpected request: %+v", w.reqs[0])
	}
	if len(w.reqs[0].Data) != 0 {
		t.Error("expected a plain value transfer without call data")
	}
}

func TestClient_PayAdmin_AddressMismatch(t *testing.T) {
	w := &fakeWallet{}
	c := newTestClient(&fakeCaller{}, w)

	_, err := c.PayAdmin(testCtx, alice, bob.Hex(), "wallet-7", big.NewInt(10))
	if !errors.Is(err, apperr.ErrAddressMismatch) {
		t.Errorf("expected address mismatch, got %v", err)
	}
	if len(w.reqs) != 0 {
		t.Error("expected no submission")
	}
}

func TestClient_PayAdmin_MissingFields(t *testing.T) {
	c := newTestClient(&fakeCaller{}, &fakeWallet{})
	_, err := c.PayAdmin(testCtx, alice, alice.Hex(), " ", big.NewInt(10))
	if !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestParseAge(t *testing.T) {
	if age, err := ParseAge(" 34 "); err != nil || age.Int64() != 34 {
		t.Errorf("expected 34, got %v (%v)", age, err)
	}
	for _, in := range []string{"", "-1", "3.5", "abc"} {
		if _, err := ParseAge(in); !errors.Is(err, apperr.ErrValidation) {
			t.Errorf("expected validation error for %q, got %v", in, err)
		}
	}
}

func TestIsRevert(t *testing.T) {
	if !IsRevert(revertErr{}) {
		t.Error("expected coded revert to be detected")
	}
	if !IsRevert(errors.New("execution reverted")) {
		t.Error("expected message revert to be detected")
	}
	if IsRevert(errors.New("i/o timeout")) {
		t.Error("did not expect transport error to be a revert")
	}
}
