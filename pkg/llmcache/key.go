package llmcache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/codeready-toolchain/logforensics/pkg/canonjson"
)

// fingerprint computes the hex-encoded SHA-256 of the canonical-JSON
// tuple (gateway_version, prompt_version, namespace, cache_type, model,
// messages, options), per spec.md §3.
func fingerprint(gatewayVersion, promptVersion, namespace, cacheType, model string, messages []Message, options map[string]interface{}) (string, error) {
	tuple := map[string]interface{}{
		"gateway_version": gatewayVersion,
		"prompt_version":  promptVersion,
		"namespace":       namespace,
		"cache_type":      cacheType,
		"model":           model,
		"messages":        messages,
		"options":         options,
	}
	b, err := canonjson.Marshal(tuple)
	if err != nil {
		return "", fmt.Errorf("llmcache: canonicalize key tuple: %w", err)
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}

// buildKey returns the human-readable cache key "llm:<cache_type>:<fingerprint>".
func buildKey(cacheType, fp string) string {
	return "llm:" + cacheType + ":" + fp
}
