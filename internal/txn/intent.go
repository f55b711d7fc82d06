package txn

import (
	"fmt"
	"strings"

	"github.com/Ribbit-Nova/ribbit-wallet-connect-demo/internal/protocol/bcs"
)

// Transfer entry point used by the demo dapp.
const (
	DefaultTransferModuleAddress = "0x4feceed8187cde99299ba0ad418412a7d84e54b70bdc4efe756067ca0c3f9c9a"
	DefaultTransferModuleName    = "token"
	DefaultTransferFunction      = "send"
	DefaultTokenType             = "0x1::supra_coin::SupraCoin"
)

// TransferIntent is a request to move Amount of TokenType to Recipient.
type TransferIntent struct {
	Recipient     string
	Amount        uint64
	TokenType     string
	ModuleAddress string
	ModuleName    string
	FunctionName  string
	ChainID       int64
}

// WithDefaults fills the entry point and token type of the demo transfer.
func (i TransferIntent) WithDefaults() TransferIntent {
	if strings.TrimSpace(i.TokenType) == "" {
		i.TokenType = DefaultTokenType
	}
	if strings.TrimSpace(i.ModuleAddress) == "" {
		i.ModuleAddress = DefaultTransferModuleAddress
	}
	if strings.TrimSpace(i.ModuleName) == "" {
		i.ModuleName = DefaultTransferModuleName
	}
	if strings.TrimSpace(i.FunctionName) == "" {
		i.FunctionName = DefaultTransferFunction
	}
	return i
}

// Request encodes the intent's arguments as (recipient address, amount u64)
// with the token type as the single generic parameter.
func (i TransferIntent) Request(sender string) (RawTxnRequest, error) {
	i = i.WithDefaults()
	recipient, err := SerializeAddress(i.Recipient)
	if err != nil {
		return RawTxnRequest{}, fmt.Errorf("txn: recipient: %w", err)
	}
	token, err := StructTypeTag(i.TokenType)
	if err != nil {
		return RawTxnRequest{}, err
	}
	return RawTxnRequest{
		Sender:        sender,
		ModuleAddress: i.ModuleAddress,
		ModuleName:    i.ModuleName,
		FunctionName:  i.FunctionName,
		TypeArgs:      []TypeTag{token},
		Args:          [][]byte{recipient, bcs.SerializeU64(i.Amount)},
		ChainID:       i.ChainID,
	}, nil
}

// RawTxnRequest describes one entry-function call before the sequence number
// and expiration are known. Zero gas fields and expiration take the builder
// defaults.
type RawTxnRequest struct {
	Sender                  string
	ModuleAddress           string
	ModuleName              string
	FunctionName            string
	TypeArgs                []TypeTag
	Args                    [][]byte
	MaxGasAmount            uint64
	GasUnitPrice            uint64
	ExpirationTimestampSecs uint64
	ChainID                 int64
}
