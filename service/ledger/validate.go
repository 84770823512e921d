package ledger

import (
	"errors"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

var (
	// ErrNotFound is returned when the ledger has no such address or transaction.
	ErrNotFound = errors.New("not found")

	// ErrInvalidTxID is returned for strings that are not 64 hex characters.
	ErrInvalidTxID = errors.New("invalid transaction id")

	// ErrInvalidAddress is returned for addresses that do not decode for the
	// configured network.
	ErrInvalidAddress = errors.New("invalid address")

	// ErrUnknownNetwork is returned by NetworkParams for unsupported names.
	ErrUnknownNetwork = errors.New("unknown network")
)

var zeroTxID = strings.Repeat("0", chainhash.MaxHashStringSize)

// ParseTxID validates a transaction id and returns its canonical lowercase form.
func ParseTxID(s string) (string, error) {
	s = strings.TrimSpace(s)
	if len(s) != chainhash.MaxHashStringSize {
		return "", fmt.Errorf("%w: %q must be %d hex characters",
			ErrInvalidTxID, s, chainhash.MaxHashStringSize)
	}
	hash, err := chainhash.NewHashFromStr(s)
	if err != nil {
		return "", fmt.Errorf("%w: %q: %v", ErrInvalidTxID, s, err)
	}
	return hash.String(), nil
}

// IsTxID reports whether s looks like a transaction id.
func IsTxID(s string) bool {
	_, err := ParseTxID(s)
	return err == nil
}

// ValidateAddress checks that address decodes and belongs to the network.
func ValidateAddress(address string, params *chaincfg.Params) error {
	addr, err := btcutil.DecodeAddress(strings.TrimSpace(address), params)
	if err != nil {
		return fmt.Errorf("%w: %q: %v", ErrInvalidAddress, address, err)
	}
	if !addr.IsForNet(params) {
		return fmt.Errorf("%w: %q is not a %s address", ErrInvalidAddress, address, params.Name)
	}
	return nil
}

// NetworkParams maps a network name to its chain parameters.
func NetworkParams(name string) (*chaincfg.Params, error) {
	switch strings.ToLower(name) {
	case "mainnet", "main", "bitcoin":
		return &chaincfg.MainNetParams, nil
	case "testnet", "testnet3":
		return &chaincfg.TestNet3Params, nil
	case "signet":
		return &chaincfg.SigNetParams, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownNetwork, name)
	}
}

// DefaultEsploraURL returns the public Blockstream endpoint for a network.
func DefaultEsploraURL(network string) string {
	switch strings.ToLower(network) {
	case "testnet", "testnet3":
		return "https://blockstream.info/testnet/api"
	case "signet":
		return "https://mempool.space/signet/api"
	default:
		return "https://blockstream.info/api"
	}
}
