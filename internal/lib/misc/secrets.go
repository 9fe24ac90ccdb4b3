/*
 * Copyright (c) 2024. InvArch Association.
 * All Rights reserved.
 */

package misc

import (
	"os"
	"strings"
)

var secretsMap = map[string]string{}

// SetSecret registers a secret that isn't available in the environment (ie: read from a mounted file).
func SetSecret(key, value string) {
	secretsMap[key] = value
}

// SecretKeys returns the unique set of keys starting with prefix from both the environment and the
// registered secrets.
func SecretKeys(prefix string) []string {
	var uniqKeys = map[string]bool{}
	for _, envVal := range os.Environ() {
		idx := strings.IndexByte(envVal, '=')
		if idx == -1 {
			continue
		}
		if key := envVal[0:idx]; strings.HasPrefix(key, prefix) {
			uniqKeys[key] = true
		}
	}
	for k := range secretsMap {
		if strings.HasPrefix(k, prefix) {
			uniqKeys[k] = true
		}
	}
	var retStrings []string
	for k := range uniqKeys {
		retStrings = append(retStrings, k)
	}
	return retStrings
}

func GetSecret(key string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return secretsMap[key]
}
