package config

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
)

const (
	PlayerNameEnv  = "PEERTACTOE_NAME"
	STUNServersEnv = "PEERTACTOE_STUN_SERVERS"
	LogLevelEnv    = "PEERTACTOE_LOG_LEVEL"
)

const defaultSTUNServer = "stun:stun.l.google.com:19302"

type Config struct {
	PlayerName  string
	STUNServers []string
	LogLevel    string
}

// Load reads configuration from the environment, with an optional .env
// file filling in anything unset. A missing .env is not an error.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		PlayerName:  getStringOrDefault(PlayerNameEnv, "Player"),
		STUNServers: getListOrDefault(STUNServersEnv, []string{defaultSTUNServer}),
		LogLevel:    getStringOrDefault(LogLevelEnv, "info"),
	}
}

func getStringOrDefault(key, defaultVal string) string {
	if val, found := os.LookupEnv(key); found && val != "" {
		return val
	}
	return defaultVal
}

func getListOrDefault(key string, defaultVal []string) []string {
	val, found := os.LookupEnv(key)
	if !found || strings.TrimSpace(val) == "" {
		return defaultVal
	}
	parts := strings.Split(val, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return defaultVal
	}
	return out
}
