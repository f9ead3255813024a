package common

import (
	"os"
	"strings"
)

func IsDevelopment() bool {
	return os.Getenv(EnvKeyGoEnv) == "development"
}

func IsProduction() bool {
	return os.Getenv(EnvKeyGoEnv) == "production"
}

func Mapper[T any, R any](items []T, mapFn func(T) R) []R {
	mapped := make([]R, len(items))
	for i := range len(items) {
		mapped[i] = mapFn(items[i])
	}
	return mapped
}

func Filter[T any](items []T, keepFn func(T) bool) []T {
	kept := make([]T, 0, len(items))
	for i := range len(items) {
		if keepFn(items[i]) {
			kept = append(kept, items[i])
		}
	}
	return kept
}

// FirstSegment returns s up to the first sep, or s itself when sep is absent.
func FirstSegment(s, sep string) string {
	head, _, _ := strings.Cut(s, sep)
	return head
}
