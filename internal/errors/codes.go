package errors

import "fmt"

// RPC Adapter error codes (spec.md §4.B)
const (
	ErrCodeNodeUnavailable = "node_unavailable"
	ErrCodeRateLimited     = "rate_limited"
	ErrCodeLogicError      = "logic_error"
	ErrCodeBadResponse     = "bad_response"
	ErrCodeTimeout         = "timeout"
)

// Event Decoder error codes (spec.md §4.C, §7)
const (
	ErrCodeUnknownTopic          = "unknown_topic"
	ErrCodeSentTokenNotFound     = "sent_token_not_found"
	ErrCodeDecoderNotConverged   = "decoder_not_converged"
	ErrCodeDecoderMalformed      = "decoder_malformed_log"
	ErrCodePoolTokenNotFound     = "pool_token_not_found"
	ErrCodeBridgeTokenNotFound   = "bridge_token_not_found"
)

// Correlation Store / Checkpoint Store error codes (spec.md §4.D, §4.A, §7)
const (
	ErrCodeStoreConflict       = "store_conflict"
	ErrCodeCheckpointWrite     = "checkpoint_write_failed"
	ErrCodeRecordNotFound      = "record_not_found"
	ErrCodeInvalidRecord       = "invalid_record"
)

// Config and startup error codes
const (
	ErrCodeInvalidConfig    = "invalid_config"
	ErrCodeMissingRPCURL    = "missing_rpc_url"
	ErrCodeChainNotFound    = "chain_not_found"
	ErrCodeStartupFailed    = "startup_failed"
	ErrCodeDatabaseError    = "database_error"
	ErrCodeInvalidAddress   = "invalid_address"
)

// RetryableCodes narrows the source's "retry everything" behavior to the
// transient RPC classes named in spec.md §7: decoder and logic errors are
// never retried, regardless of what the underlying client reports.
var RetryableCodes = map[string]bool{
	ErrCodeNodeUnavailable: true,
	ErrCodeRateLimited:     true,
	ErrCodeTimeout:         true,
}

// IsRetryable reports whether err should be retried by the Retry/Scheduler.
// A non-AppError is treated as non-retryable: only classified RPC failures
// are eligible, per spec.md §4.B/§7.
func IsRetryable(err error) bool {
	appErr, ok := err.(*AppError)
	if !ok {
		return false
	}
	return RetryableCodes[appErr.Code]
}

// IsNotFound reports whether err is a record-not-found AppError.
func IsNotFound(err error) bool {
	appErr, ok := err.(*AppError)
	if !ok {
		return false
	}
	return appErr.Code == ErrCodeRecordNotFound
}

func NewNodeUnavailableError(chain string, err error) *AppError {
	return &AppError{
		Code:    ErrCodeNodeUnavailable,
		Message: fmt.Sprintf("RPC node unavailable for chain %s", chain),
		Details: map[string]any{"chain": chain},
		Err:     err,
	}
}

func NewRateLimitedError(chain string, err error) *AppError {
	return &AppError{
		Code:    ErrCodeRateLimited,
		Message: fmt.Sprintf("RPC node rate-limited us on chain %s", chain),
		Details: map[string]any{"chain": chain},
		Err:     err,
	}
}

func NewLogicError(chain string, err error) *AppError {
	return &AppError{
		Code:    ErrCodeLogicError,
		Message: fmt.Sprintf("contract call reverted on chain %s", chain),
		Details: map[string]any{"chain": chain},
		Err:     err,
	}
}

func NewBadResponseError(chain string, err error) *AppError {
	return &AppError{
		Code:    ErrCodeBadResponse,
		Message: fmt.Sprintf("malformed RPC response from chain %s", chain),
		Details: map[string]any{"chain": chain},
		Err:     err,
	}
}

func NewTimeoutError(chain string, op string, err error) *AppError {
	return &AppError{
		Code:    ErrCodeTimeout,
		Message: fmt.Sprintf("%s timed out on chain %s", op, chain),
		Details: map[string]any{"chain": chain, "op": op},
		Err:     err,
	}
}

func NewUnknownTopicError(chain string, txHash string, topic string) *AppError {
	return &AppError{
		Code:    ErrCodeUnknownTopic,
		Message: "log topic not recognised as a bridge event",
		Details: map[string]any{"chain": chain, "tx_hash": txHash, "topic": topic},
	}
}

func NewSentTokenNotFoundError(chain string, txHash string) *AppError {
	return &AppError{
		Code:    ErrCodeSentTokenNotFound,
		Message: "no known token found in receipt logs for OUT event",
		Details: map[string]any{"chain": chain, "tx_hash": txHash},
	}
}

func NewDecoderNotConvergedError(chain string, txHash string, reason string) *AppError {
	return &AppError{
		Code:    ErrCodeDecoderNotConverged,
		Message: "decoder could not determine received token/value: " + reason,
		Details: map[string]any{"chain": chain, "tx_hash": txHash},
	}
}

func NewDecoderMalformedLogError(chain string, txHash string, reason string) *AppError {
	return &AppError{
		Code:    ErrCodeDecoderMalformed,
		Message: "malformed bridge log: " + reason,
		Details: map[string]any{"chain": chain, "tx_hash": txHash},
	}
}

func NewPoolTokenNotFoundError(chain string, pool string, index int) *AppError {
	return &AppError{
		Code:    ErrCodePoolTokenNotFound,
		Message: "pool has no token at index",
		Details: map[string]any{"chain": chain, "pool": pool, "index": index},
	}
}

func NewBridgeTokenNotFoundError(symbol string, chainID int64) *AppError {
	return &AppError{
		Code:    ErrCodeBridgeTokenNotFound,
		Message: "bridge config returned the not-found sentinel",
		Details: map[string]any{"symbol": symbol, "chain_id": chainID},
	}
}

func NewStoreConflictError(kappa string, err error) *AppError {
	return &AppError{
		Code:    ErrCodeStoreConflict,
		Message: "concurrent update conflict on kappa",
		Details: map[string]any{"kappa": kappa},
		Err:     err,
	}
}

func NewCheckpointWriteError(chain, address string, err error) *AppError {
	return &AppError{
		Code:    ErrCodeCheckpointWrite,
		Message: "failed to persist checkpoint",
		Details: map[string]any{"chain": chain, "address": address},
		Err:     err,
	}
}

func NewRecordNotFoundError(entity string) *AppError {
	return &AppError{
		Code:    ErrCodeRecordNotFound,
		Message: entity + " not found",
	}
}

func NewInvalidRecordError(reason string) *AppError {
	return &AppError{
		Code:    ErrCodeInvalidRecord,
		Message: "invalid record: " + reason,
	}
}

func NewInvalidConfigError(field string, reason string) *AppError {
	return &AppError{
		Code:    ErrCodeInvalidConfig,
		Message: fmt.Sprintf("invalid configuration for %s: %s", field, reason),
		Details: map[string]any{"field": field},
	}
}

func NewMissingRPCURLError(chain string) *AppError {
	return &AppError{
		Code:    ErrCodeMissingRPCURL,
		Message: "missing RPC URL",
		Details: map[string]any{"chain": chain},
	}
}

func NewChainNotFoundError(chain string) *AppError {
	return &AppError{
		Code:    ErrCodeChainNotFound,
		Message: "chain not configured: " + chain,
		Details: map[string]any{"chain": chain},
	}
}

func NewStartupFailedError(reason string, err error) *AppError {
	return &AppError{
		Code:    ErrCodeStartupFailed,
		Message: "startup failed: " + reason,
		Err:     err,
	}
}

func NewDatabaseError(err error) *AppError {
	return &AppError{
		Code:    ErrCodeDatabaseError,
		Message: "database operation failed",
		Err:     err,
	}
}

func NewInvalidAddressError(address string) *AppError {
	return &AppError{
		Code:    ErrCodeInvalidAddress,
		Message: "invalid address",
		Details: map[string]any{"address": address},
	}
}
