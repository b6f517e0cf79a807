package config

import "github.com/joho/godotenv"

// LoadDotEnv reads a .env file into the process environment.
// Variables that are already set are NOT overridden (env takes precedence).
func LoadDotEnv(paths ...string) error {
	return godotenv.Load(paths...)
}
