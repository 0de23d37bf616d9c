// Package testutils provides shared test helpers: an in-process Redis
// environment and a slog handler that records entries for assertions.
// It is imported only from _test.go files.
package testutils
