/*
 * Copyright (c) 2024. InvArch Association.
 * All Rights reserved.
 */

package misc

import (
	"fmt"
	"log/slog"

	"github.com/joho/godotenv"
)

// LoadEnvSettings loads .env.local then .env - earlier files win as godotenv never overwrites
// variables that are already set.
func LoadEnvSettings(log *slog.Logger) {
	for _, name := range []string{".env.local", ".env"} {
		if err := godotenv.Load(name); err == nil {
			Debugf(log, "loaded env file:%s", name)
		}
	}
}

// LoadEnvForNetwork loads the network specific overrides, ie: .env.tinkernet
func LoadEnvForNetwork(log *slog.Logger, network string) {
	name := fmt.Sprintf(".env.%s", network)
	if err := godotenv.Load(name); err == nil {
		Infof(log, "loaded network env file:%s", name)
	}
}
