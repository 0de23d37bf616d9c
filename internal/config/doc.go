// Package config loads application settings from a .env file, an optional
// config file and ORDERFLOW_-prefixed environment variables, then validates
// them. Redis, task runtime and email settings all live here so the rest of
// the application receives plain structs.
package config
