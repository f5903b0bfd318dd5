package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

func sum(data string) string {
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}

// ComputeTradeID computes a deterministic trade_id using SHA256.
// Formula: SHA256(chain|token|timeframe|entry_time_ms)
// Returns hex-encoded hash (64 characters).
func ComputeTradeID(
	chain string,
	token string,
	timeframe string,
	entryTimeMs int64,
) string {
	return sum(fmt.Sprintf("%s|%s|%s|%d",
		chain,
		token,
		timeframe,
		entryTimeMs,
	))
}
