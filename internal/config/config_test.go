package config

import "testing"

func TestGetEnv(t *testing.T) {
	t.Setenv("ASSESSLY_TEST_KEY", "set")

	if got := getEnv("ASSESSLY_TEST_KEY", "fallback"); got != "set" {
		t.Errorf("getEnv() = %q, want %q", got, "set")
	}
	if got := getEnv("ASSESSLY_TEST_MISSING", "fallback"); got != "fallback" {
		t.Errorf("getEnv() = %q, want fallback", got)
	}
}

func TestGetEnvInt(t *testing.T) {
	t.Setenv("ASSESSLY_TEST_INT", "42")
	t.Setenv("ASSESSLY_TEST_BAD_INT", "not-a-number")

	if got := getEnvInt("ASSESSLY_TEST_INT", 7); got != 42 {
		t.Errorf("getEnvInt() = %d, want 42", got)
	}
	if got := getEnvInt("ASSESSLY_TEST_BAD_INT", 7); got != 7 {
		t.Errorf("getEnvInt() on malformed value = %d, want fallback 7", got)
	}
	if got := getEnvInt("ASSESSLY_TEST_MISSING", 7); got != 7 {
		t.Errorf("getEnvInt() on missing value = %d, want fallback 7", got)
	}
}

func TestCacheKeys(t *testing.T) {
	if got := CacheKey.UserSessionKey(42); got != "login:42" {
		t.Errorf("UserSessionKey() = %q", got)
	}
	if got := CacheKey.AttemptDraftKey("abc-123"); got != "attempt:abc-123:draft" {
		t.Errorf("AttemptDraftKey() = %q", got)
	}
	if got := CacheKey.RateLimitKey("auth", "10.0.0.1"); got != "ratelimit:auth:10.0.0.1" {
		t.Errorf("RateLimitKey() = %q", got)
	}
}
