package env

import (
	"os"

	"github.com/joho/godotenv"
)

// Env holds the key/value pairs read from the .env file at startup. Process
// environment variables still win as a fallback so container deployments can
// run without a file.
var Env map[string]string

func GetEnv(key, def string) string {
	if val, ok := Env[key]; ok {
		return val
	}
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

// SetupEnvFile loads the first .env found relative to the working directory.
// The relative candidates cover the repo root plus the cmd/saaskit and
// cmd/migrate entrypoints, which run two levels below it.
func SetupEnvFile() {
	envFiles := []string{
		".env",
		"../../.env",
		"../../../.env",
	}

	var err error
	for _, envFile := range envFiles {
		Env, err = godotenv.Read(envFile)
		if err == nil {
			return
		}
	}

	panic("no .env file found; copy .env.example to .env first")
}

// IsDev reports whether APP_ENV is set to dev. Cookie security and similar
// hardening relax only in that mode; an unset APP_ENV means production.
func IsDev() bool {
	return GetEnv("APP_ENV", "prod") == "dev"
}
