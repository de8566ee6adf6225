package ledger

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/medledger/medledger/pkg/apperr"
)

// PatientRecord is the registry's view of one patient, keyed by address.
type PatientRecord struct {
	Name           string   `json:"name"`
	Age            *big.Int `json:"age"`
	MedicalHistory string   `json:"medical_history"`
}

// Tuple returns the record in contract output order. Age is rendered in
// decimal since uint256 does not fit a JSON number.
func (r *PatientRecord) Tuple() []string {
	age := "0"
	if r.Age != nil {
		age = r.Age.String()
	}
	return []string{r.Name, age, r.MedicalHistory}
}

// TxRequest is a state-changing call handed to a wallet for signing. A zero
// Gas lets the wallet estimate.
type TxRequest struct {
	From  common.Address
	To    common.Address
	Data  []byte
	Value *big.Int
	Gas   uint64
}

// ParseAge converts a user-supplied age to the contract's uint256.
func ParseAge(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, apperr.Validation("age is required")
	}
	age, ok := new(big.Int).SetString(s, 10)
	if !ok || age.Sign() < 0 {
		return nil, apperr.Newf(apperr.KindValidation, "age must be a non-negative integer, got %q", s)
	}
	return age, nil
}

// ParseAddress validates a hex account address.
func ParseAddress(s string) (common.Address, error) {
	s = strings.TrimSpace(s)
	if !common.IsHexAddress(s) {
		return common.Address{}, apperr.Newf(apperr.KindValidation, "invalid address %q", s)
	}
	return common.HexToAddress(s), nil
}

// SameAccount compares two address strings case-insensitively.
func SameAccount(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
