package types

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
)

// KappaFromTxHash derives the OUT-side correlation key, per spec.md §3:
// "For OUT records it is derived locally as keccak256(hex(tx_hash)) of
// the source-chain transaction." The input is the transaction hash's
// lowercase hex string representation (with "0x" prefix), matching
// original_source/indexer/rpc.py's `w3.keccak(text=tx_hash.hex())`.
func KappaFromTxHash(txHash string) string {
	sum := crypto.Keccak256([]byte(strings.ToLower(txHash)))
	return "0x" + hexEncode(sum)
}

func hexEncode(b []byte) string {
	const hextable = "0123456789abcdef"
	out := make([]byte, len(b)*2)
	for i, v := range b {
		out[i*2] = hextable[v>>4]
		out[i*2+1] = hextable[v&0x0f]
	}
	return string(out)
}

// OutHalf is the source-chain half of a bridge transaction, per spec.md §3.
type OutHalf struct {
	FromTxHash  string
	FromAddress string
	ToAddress   string
	SentValue   *big.Int
	SentToken   string
	FromChainID int64
	ToChainID   int64
	SentTime    int64
	Kappa       string
}

// InHalf is the destination-chain half of a bridge transaction, per
// spec.md §3. SwapSuccess is nil when the originating event carries no
// swap outcome (plain TokenMint/TokenWithdraw).
type InHalf struct {
	ToTxHash      string
	ToAddress     string
	ReceivedValue *big.Int
	ReceivedToken string
	ToChainID     int64
	ReceivedTime  int64
	SwapSuccess   *bool
	Kappa         string
}

// Transaction is the merged record stored by the Correlation Store,
// per spec.md §3. Pending is true until both halves are present.
// Formatted/symbol fields are derived at serialisation time (see
// FormatValue below) and are never persisted as truth, per spec.md §3 and
// §9 ("Post-init derived fields... computed on demand at serialisation,
// not stored as part of the core entity").
type Transaction struct {
	Kappa   string
	Pending bool

	FromTxHash  string
	FromAddress string
	ToAddress   string
	SentValue   *big.Int
	SentToken   string
	FromChainID int64
	ToChainID   int64
	SentTime    int64

	ToTxHash      string
	ReceivedValue *big.Int
	ReceivedToken string
	ReceivedTime  int64
	SwapSuccess   *bool
}

// HasOutHalf reports whether the OUT side of the transaction has arrived.
func (t *Transaction) HasOutHalf() bool {
	return t.FromTxHash != ""
}

// HasInHalf reports whether the IN side of the transaction has arrived.
func (t *Transaction) HasInHalf() bool {
	return t.ToTxHash != ""
}

// ApplyOutHalf merges an OutHalf into the transaction, preserving any
// existing IN-side fields (spec.md §4.D: "existing fields of the stored
// half are preserved; new fields of the incoming half are written").
func (t *Transaction) ApplyOutHalf(h *OutHalf) {
	t.Kappa = h.Kappa
	t.FromTxHash = h.FromTxHash
	t.FromAddress = h.FromAddress
	t.ToAddress = h.ToAddress
	t.SentValue = h.SentValue
	t.SentToken = h.SentToken
	t.FromChainID = h.FromChainID
	if t.ToChainID == 0 {
		t.ToChainID = h.ToChainID
	}
	t.SentTime = h.SentTime
	t.Pending = !t.HasInHalf()
}

// ApplyInHalf merges an InHalf into the transaction, preserving any
// existing OUT-side fields.
func (t *Transaction) ApplyInHalf(h *InHalf) {
	t.Kappa = h.Kappa
	t.ToTxHash = h.ToTxHash
	if t.ToAddress == "" {
		t.ToAddress = h.ToAddress
	}
	t.ReceivedValue = h.ReceivedValue
	t.ReceivedToken = h.ReceivedToken
	t.ToChainID = h.ToChainID
	t.ReceivedTime = h.ReceivedTime
	t.SwapSuccess = h.SwapSuccess
	t.Pending = !t.HasOutHalf()
}

// FormatValue computes raw / 10^decimals as a decimal string, the
// "formatted" field described in spec.md §3 and exercised by testable
// property 4 in spec.md §8. It is computed on demand, never stored.
func FormatValue(raw *big.Int, decimals uint8) string {
	if raw == nil {
		return ""
	}
	neg := raw.Sign() < 0
	abs := new(big.Int).Abs(raw)
	s := abs.String()

	if decimals == 0 {
		if neg {
			return "-" + s
		}
		return s
	}

	for len(s) <= int(decimals) {
		s = "0" + s
	}
	intPart := s[:len(s)-int(decimals)]
	fracPart := strings.TrimRight(s[len(s)-int(decimals):], "0")

	result := intPart
	if fracPart != "" {
		result += "." + fracPart
	}
	if neg {
		result = "-" + result
	}
	return result
}
