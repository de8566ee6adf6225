// Package relay is the HTTP service that submits and reads registry calls
// with the operator's key and forwards patient data to the insight
// generator.
package relay

import (
	"context"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/rs/zerolog"

	"github.com/medledger/medledger/internal/insight"
	"github.com/medledger/medledger/internal/ledger"
	"github.com/medledger/medledger/internal/platform/metrics"
	"github.com/medledger/medledger/pkg/apperr"
	"github.com/medledger/medledger/pkg/units"
)

// Insights generates advice from a stored record.
type Insights interface {
	Generate(ctx context.Context, patientAddress string) (*insight.Result, error)
}

// Service runs the operator-signed and operator-attributed chain operations.
// All fields are set once in NewService and shared read-only by requests.
type Service struct {
	backend  ChainBackend
	operator *Operator
	contract common.Address
	records  *ledger.Client
	logger   zerolog.Logger
}

// NewService wires the relay against the registry deployed at contract.
func NewService(backend ChainBackend, operator *Operator, contract common.Address, logger zerolog.Logger) *Service {
	addrs := ledger.DefaultAddresses()
	addrs.Registry = contract
	return &Service{
		backend:  backend,
		operator: operator,
		contract: contract,
		records:  ledger.NewClient(backend, nil, addrs),
		logger:   logger.With().Str("component", "relay").Logger(),
	}
}

// Records exposes the read facade so the insight generator shares it.
func (s *Service) Records() *ledger.Client {
	return s.records
}

func (s *Service) Operator() *Operator {
	return s.operator
}

// Balance returns the native balance held at the registry contract address,
// formatted as "<decimal> ETH".
func (s *Service) Balance(ctx context.Context) (string, error) {
	wei, err := s.backend.BalanceAt(ctx, s.contract, nil)
	metrics.ChainCalls.WithLabelValues("balance", metrics.Outcome(err)).Inc()
	if err != nil {
		return "", apperr.Wrap(apperr.KindChainCall, err)
	}
	return units.FormatEther(wei) + " ETH", nil
}

// Register signs registerPatient with the operator key, submits it and
// waits for the receipt. A reverted receipt is a chain failure.
func (s *Service) Register(ctx context.Context, name string, age *big.Int, medicalHistory string) (common.Hash, error) {
	hash, err := s.register(ctx, name, age, medicalHistory)
	metrics.ChainCalls.WithLabelValues("register_patient", metrics.Outcome(err)).Inc()
	if err != nil {
		s.logger.Error().Err(err).Msg("register patient failed")
	}
	return hash, err
}

func (s *Service) register(ctx context.Context, name string, age *big.Int, medicalHistory string) (common.Hash, error) {
	data, err := ledger.RegistryABI.Pack(ledger.MethodRegisterPatient, name, age, medicalHistory)
	if err != nil {
		return common.Hash{}, apperr.Wrap(apperr.KindValidation, err)
	}

	from := s.operator.Address()
	to := s.contract
	gas, err := s.backend.EstimateGas(ctx, ethereum.CallMsg{From: from, To: &to, Data: data})
	if err != nil {
		return common.Hash{}, apperr.Wrap(apperr.KindChainCall, err)
	}
	gasPrice, err := s.backend.SuggestGasPrice(ctx)
	if err != nil {
		return common.Hash{}, apperr.Wrap(apperr.KindChainCall, err)
	}
	nonce, err := s.backend.PendingNonceAt(ctx, from)
	if err != nil {
		return common.Hash{}, apperr.Wrap(apperr.KindChainCall, err)
	}
	chainID, err := s.backend.ChainID(ctx)
	if err != nil {
		return common.Hash{}, apperr.Wrap(apperr.KindChainCall, err)
	}

	signed, err := s.operator.Sign(types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &to,
		Gas:      gas,
		GasPrice: gasPrice,
		Data:     data,
	}), chainID)
	if err != nil {
		return common.Hash{}, apperr.Wrap(apperr.KindInternal, err)
	}

	if err := s.backend.SendTransaction(ctx, signed); err != nil {
		return common.Hash{}, apperr.Wrap(apperr.KindChainCall, err)
	}
	s.logger.Info().Str("tx", signed.Hash().Hex()).Uint64("nonce", nonce).Msg("registration submitted")

	receipt, err := bind.WaitMined(ctx, s.backend, signed)
	if err != nil {
		return common.Hash{}, apperr.Wrap(apperr.KindChainCall, err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return common.Hash{}, apperr.New(apperr.KindChainCall, "transaction reverted")
	}
	return signed.Hash(), nil
}

// PatientDetails reads a record attributed to the operator.
func (s *Service) PatientDetails(ctx context.Context, patientAddress string) (*ledger.PatientRecord, error) {
	patient, err := ledger.ParseAddress(patientAddress)
	if err != nil {
		return nil, err
	}
	rec, err := s.records.GetDetails(ctx, s.operator.Address(), patient)
	metrics.ChainCalls.WithLabelValues("get_patient_details", metrics.Outcome(err)).Inc()
	if err != nil {
		evt := s.logger.Error()
		if errors.Is(err, apperr.ErrUnauthorized) {
			evt = s.logger.Warn()
		}
		evt.Err(err).Str("patient", patient.Hex()).Msg("patient details lookup failed")
		return nil, err
	}
	return rec, nil
}
