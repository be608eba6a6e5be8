package application

import (
	"context"
	"errors"
	"testing"
)

var testArgon2idParams = Argon2idParams{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 8, KeyLength: 16}

func TestPasswordHashRoundTrip(t *testing.T) {
	t.Parallel()

	encoded, err := CreatePasswordHash("correct horse", testArgon2idParams)
	if err != nil {
		t.Fatalf("create hash: %v", err)
	}

	hash, err := ParsePasswordHash(encoded)
	if err != nil {
		t.Fatalf("parse hash: %v", err)
	}
	if hash.String() != encoded {
		t.Fatalf("expected re-encoded hash to match, got %q want %q", hash.String(), encoded)
	}
	if hash.Params.Memory != 1024 || hash.Params.KeyLength != 16 || hash.Params.SaltLength != 8 {
		t.Fatalf("unexpected params: %+v", hash.Params)
	}

	if err := VerifyPassword(encoded, "correct horse"); err != nil {
		t.Fatalf("expected password to verify, got %v", err)
	}
	if err := VerifyPassword(encoded, "battery staple"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestParsePasswordHashRejectsMalformedInput(t *testing.T) {
	t.Parallel()

	cases := map[string]error{
		"":                                      ErrInvalidPasswordHash,
		"plain-text":                            ErrInvalidPasswordHash,
		"$bcrypt$v=19$m=1,t=1,p=1$c2FsdA$a2V5":  ErrInvalidPasswordHash,
		"$argon2id$v=16$m=1,t=1,p=1$c2FsdA$a2V5": ErrIncompatiblePasswordVersion,
		"$argon2id$v=19$m=x,t=1,p=1$c2FsdA$a2V5": ErrInvalidPasswordHash,
		"$argon2id$v=19$m=1,t=1,p=1$!!!$a2V5":    ErrInvalidPasswordHash,
		"$argon2id$v=19$m=1,t=1,p=1$c2FsdA$":     ErrInvalidPasswordHash,
	}
	for input, want := range cases {
		if _, err := ParsePasswordHash(input); !errors.Is(err, want) {
			t.Errorf("ParsePasswordHash(%q) = %v, want %v", input, err, want)
		}
	}
}

func TestAuthService_Authenticate(t *testing.T) {
	t.Parallel()

	encoded, err := CreatePasswordHash("s3cret", testArgon2idParams)
	if err != nil {
		t.Fatalf("create hash: %v", err)
	}
	svc, err := NewAuthService("alice", encoded, nil)
	if err != nil {
		t.Fatalf("new auth service: %v", err)
	}

	ctx := context.Background()
	if err := svc.Authenticate(ctx, "alice", "s3cret"); err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if err := svc.Authenticate(ctx, "alice", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for wrong password, got %v", err)
	}
	if err := svc.Authenticate(ctx, "bob", "s3cret"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for wrong user, got %v", err)
	}
}

func TestNewAuthServiceValidatesConfiguration(t *testing.T) {
	t.Parallel()

	if _, err := NewAuthService(" ", "$argon2id$v=19$m=1,t=1,p=1$c2FsdA$a2V5", nil); err == nil {
		t.Fatalf("expected error for blank username")
	}
	if _, err := NewAuthService("alice", "not-a-hash", nil); !errors.Is(err, ErrInvalidPasswordHash) {
		t.Fatalf("expected ErrInvalidPasswordHash, got %v", err)
	}
}
