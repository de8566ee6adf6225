package ledger

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// Contract method names.
const (
	MethodRegisterPatient   = "registerPatient"
	MethodGetPatientDetails = "getPatientDetails"
	MethodDeposit           = "deposit"
	MethodWithdraw          = "withdraw"
	MethodGetBalance        = "getBalance"
)

// RegisterGasLimit is the gas ceiling attached to wallet-signed registrations.
const RegisterGasLimit uint64 = 300000

// Deployed contract addresses compiled into the client.
var (
	DefaultRegistryAddress = common.HexToAddress("0xc589794a729e6c75943de3e86f231aeab10f9a63")
	DefaultCustodyAddress  = common.HexToAddress("0xa06c3453d444551513ea83c4c1ac032f57b5dd6f")
	AdminAddress           = common.HexToAddress("0xe9A57EabCB19a7d59AbfAA0a19ECa27f3f540EFe")
)

// RegistryABIJSON describes the patient record registry. Both the wallet client
// and the relay encode calls from this single definition.
const RegistryABIJSON = `[
	{
		"inputs": [
			{ "internalType": "string", "name": "_name", "type": "string" },
			{ "internalType": "uint256", "name": "_age", "type": "uint256" },
			{ "internalType": "string", "name": "_medicalHistory", "type": "string" }
		],
		"name": "registerPatient",
		"outputs": [],
		"stateMutability": "nonpayable",
		"type": "function"
	},
	{
		"inputs": [
			{ "internalType": "address", "name": "_patient", "type": "address" }
		],
		"name": "getPatientDetails",
		"outputs": [
			{ "internalType": "string", "name": "", "type": "string" },
			{ "internalType": "uint256", "name": "", "type": "uint256" },
			{ "internalType": "string", "name": "", "type": "string" }
		],
		"stateMutability": "view",
		"type": "function"
	}
]`

// CustodyABIJSON describes the funds custody contract.
const CustodyABIJSON = `[
	{
		"inputs": [],
		"name": "deposit",
		"outputs": [],
		"stateMutability": "payable",
		"type": "function"
	},
	{
		"inputs": [
			{ "internalType": "address payable", "name": "_to", "type": "address" },
			{ "internalType": "uint256", "name": "_amount", "type": "uint256" }
		],
		"name": "withdraw",
		"outputs": [],
		"stateMutability": "nonpayable",
		"type": "function"
	},
	{
		"inputs": [],
		"name": "getBalance",
		"outputs": [{ "internalType": "uint256", "name": "", "type": "uint256" }],
		"stateMutability": "view",
		"type": "function"
	}
]`

// Parsed ABIs. The JSON above is constant, so a parse failure is a programming
// error and panics at init.
var (
	RegistryABI = mustParseABI(RegistryABIJSON)
	CustodyABI  = mustParseABI(CustodyABIJSON)
)

func mustParseABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic("ledger: invalid contract ABI: " + err.Error())
	}
	return parsed
}
