package config

import (
	"os"
	"strconv"
	"strings"
)

type Config struct {
	Port           string
	Environment    string
	AllowedOrigins []string
	JWTSecret      string
	Redis          RedisConfig
	Relay          RelayConfig
	ICEServers     []ICEServer
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// RelayConfig controls how strictly the signaling endpoint validates
// incoming connections.
type RelayConfig struct {
	// AllowDefaultSession admits connections with a blank sessionId into a
	// shared "lobby" session instead of rejecting them.
	AllowDefaultSession bool
	// RequireSession rejects connections whose sessionId has no registered
	// session record.
	RequireSession bool
	// RequireAuth rejects connections without a valid bearer token.
	RequireAuth bool
}

// ICEServer is a STUN/TURN endpoint handed to clients; the relay itself
// never contacts these.
type ICEServer struct {
	URL        string
	Username   string
	Credential string
}

func Load() *Config {
	// Parse allowed origins (comma-separated)
	originsStr := getEnv("ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:5173")
	origins := strings.Split(originsStr, ",")

	return &Config{
		Port:           getEnv("PORT", "8080"),
		Environment:    getEnv("ENVIRONMENT", "development"),
		AllowedOrigins: origins,
		JWTSecret:      getEnv("JWT_SECRET", "change-me-in-production"),
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       0,
		},
		Relay: RelayConfig{
			AllowDefaultSession: getEnvBool("RELAY_ALLOW_DEFAULT_SESSION", true),
			RequireSession:      getEnvBool("RELAY_REQUIRE_SESSION", false),
			RequireAuth:         getEnvBool("RELAY_REQUIRE_AUTH", false),
		},
		ICEServers: parseICEServers(getEnv("ICE_SERVERS", "stun:stun.l.google.com:19302")),
	}
}

// parseICEServers reads a comma-separated list of entries of the form
// "url" or "url|username|credential".
func parseICEServers(raw string) []ICEServer {
	var servers []ICEServer
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.SplitN(entry, "|", 3)
		server := ICEServer{URL: parts[0]}
		if len(parts) > 1 {
			server.Username = parts[1]
		}
		if len(parts) > 2 {
			server.Credential = parts[2]
		}
		servers = append(servers, server)
	}
	return servers
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}
