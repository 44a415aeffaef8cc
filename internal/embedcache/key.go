package embedcache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Cache identity is (model, task type, content digest). The task type is
// part of the key because retrieval-query and retrieval-document vectors
// for the same text differ.

func contentDigest(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

func normalizeModel(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "unknown"
	}
	return name
}

func memoryKey(modelName, taskType, digest string) string {
	return modelName + "\x00" + taskType + "\x00" + digest
}
