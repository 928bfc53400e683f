package password

import (
	"strings"
	"testing"
)

func secureConfig() Config {
	return Config{
		Memory:      65536,
		Time:        3,
		Parallelism: 2,
		SaltLength:  16,
		KeyLength:   32,
	}
}

func TestHashAndVerify(t *testing.T) {
	hasher, err := New(secureConfig())
	if err != nil {
		t.Fatalf("New error: %v", err)
	}

	hash, err := hasher.Hash("P@ssw0rd-Ascii")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}

	if !strings.HasPrefix(hash, "$argon2id$v=19$m=65536,t=3,p=2$") {
		t.Fatalf("unexpected PHC prefix: %s", hash)
	}

	ok, err := hasher.Verify("P@ssw0rd-Ascii", hash)
	if err != nil {
		t.Fatalf("Verify error: %v", err)
	}
	if !ok {
		t.Fatal("expected password verification to succeed")
	}
}

func TestVerifyWrongPassword(t *testing.T) {
	hasher, err := New(secureConfig())
	if err != nil {
		t.Fatalf("New error: %v", err)
	}

	hash, err := hasher.Hash("correct-password")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}

	ok, err := hasher.Verify("wrong-password", hash)
	if err != nil {
		t.Fatalf("Verify error: %v", err)
	}
	if ok {
		t.Fatal("expected wrong password verification to fail")
	}
}

func TestHashRejectsShortPassword(t *testing.T) {
	hasher, err := New(secureConfig())
	if err != nil {
		t.Fatalf("New error: %v", err)
	}

	if _, err := hasher.Hash("short"); err == nil {
		t.Fatal("expected short password to be rejected")
	}
}

func TestHashSaltsAreUnique(t *testing.T) {
	hasher, err := New(secureConfig())
	if err != nil {
		t.Fatalf("New error: %v", err)
	}

	h1, err := hasher.Hash("same-password")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	h2, err := hasher.Hash("same-password")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	if h1 == h2 {
		t.Fatal("expected distinct salts to produce distinct hashes")
	}
}

func TestNeedsUpgrade(t *testing.T) {
	oldHasher, err := New(Config{
		Memory:      32768,
		Time:        2,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	})
	if err != nil {
		t.Fatalf("New(old) error: %v", err)
	}

	hash, err := oldHasher.Hash("test-password")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}

	newHasher, err := New(secureConfig())
	if err != nil {
		t.Fatalf("New error: %v", err)
	}

	upgrade, err := newHasher.NeedsUpgrade(hash)
	if err != nil {
		t.Fatalf("NeedsUpgrade error: %v", err)
	}
	if !upgrade {
		t.Fatal("expected weaker hash to need upgrade")
	}

	current, err := newHasher.Hash("test-password")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	upgrade, err = newHasher.NeedsUpgrade(current)
	if err != nil {
		t.Fatalf("NeedsUpgrade error: %v", err)
	}
	if upgrade {
		t.Fatal("expected current hash to not need upgrade")
	}
}

func TestVerifyUsesEmbeddedCosts(t *testing.T) {
	oldHasher, err := New(Config{
		Memory:      32768,
		Time:        2,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	})
	if err != nil {
		t.Fatalf("New(old) error: %v", err)
	}

	hash, err := oldHasher.Hash("legacy-password")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}

	// A hasher with different costs must still verify a legacy hash using
	// the parameters embedded in the PHC string.
	newHasher, err := New(secureConfig())
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	ok, err := newHasher.Verify("legacy-password", hash)
	if err != nil {
		t.Fatalf("Verify error: %v", err)
	}
	if !ok {
		t.Fatal("expected legacy hash to verify under embedded costs")
	}
}

func TestVerifyMalformedHash(t *testing.T) {
	hasher, err := New(secureConfig())
	if err != nil {
		t.Fatalf("New error: %v", err)
	}

	tests := []struct {
		name string
		hash string
	}{
		{name: "empty", hash: ""},
		{name: "not phc", hash: "plainly-not-a-hash"},
		{name: "wrong algorithm", hash: "$bcrypt$v=19$m=65536,t=3,p=2$c2FsdHNhbHRzYWx0c2FsdA$aGFzaA"},
		{name: "bad version", hash: "$argon2id$v=18$m=65536,t=3,p=2$c2FsdHNhbHRzYWx0c2FsdA$aGFzaA"},
		{name: "missing params", hash: "$argon2id$v=19$m=65536,t=3$c2FsdHNhbHRzYWx0c2FsdA$aGFzaA"},
		{name: "bad salt encoding", hash: "$argon2id$v=19$m=65536,t=3,p=2$!!!$aGFzaA"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := hasher.Verify("whatever-password", tt.hash); err == nil {
				t.Fatalf("expected error for %q", tt.hash)
			}
		})
	}
}

func TestNewRejectsWeakConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "memory too low", mutate: func(c *Config) { c.Memory = 1024 }},
		{name: "time zero", mutate: func(c *Config) { c.Time = 0 }},
		{name: "parallelism zero", mutate: func(c *Config) { c.Parallelism = 0 }},
		{name: "salt too short", mutate: func(c *Config) { c.SaltLength = 8 }},
		{name: "key too short", mutate: func(c *Config) { c.KeyLength = 8 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := secureConfig()
			tt.mutate(&cfg)
			if _, err := New(cfg); err == nil {
				t.Fatal("expected weak config to be rejected")
			}
		})
	}
}
