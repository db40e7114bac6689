package crypto

import (
	"path/filepath"
	"testing"
)

func TestSignVerifyRoundTrip(t *testing.T) {
	seed, err := GenerateSeed()
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	priv, pub, err := KeyPairFromSeed(seed)
	if err != nil {
		t.Fatalf("keypair: %v", err)
	}

	digest := DigestBytes([]byte("payload"))
	sig, err := SignEd25519(priv, digest)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	ok, err := VerifyEd25519(pub, digest, sig)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !ok {
		t.Fatalf("expected valid signature")
	}

	tampered := DigestBytes([]byte("payload2"))
	ok, err = VerifyEd25519(pub, tampered, sig)
	if err != nil {
		t.Fatalf("verify tampered: %v", err)
	}
	if ok {
		t.Fatalf("expected invalid signature for tampered digest")
	}
}

func TestSignRejectsBadDigestLength(t *testing.T) {
	seed, _ := GenerateSeed()
	priv, _, _ := KeyPairFromSeed(seed)
	if _, err := SignEd25519(priv, []byte("short")); err != ErrInvalidDigestLen {
		t.Fatalf("expected ErrInvalidDigestLen, got %v", err)
	}
}

func TestSeedFileRoundTrip(t *testing.T) {
	dir := t.TempDir()
	seedPath := filepath.Join(dir, "ed25519.seed")
	pubPath := filepath.Join(dir, "ed25519.pub")

	seed, err := GenerateSeed()
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	priv, pub, err := KeyPairFromSeed(seed)
	if err != nil {
		t.Fatalf("keypair: %v", err)
	}

	if err := WriteEd25519Seed(seedPath, seed); err != nil {
		t.Fatalf("write seed: %v", err)
	}
	if err := WriteEd25519PublicKey(pubPath, pub); err != nil {
		t.Fatalf("write pub: %v", err)
	}

	loadedPriv, loadedPub, err := LoadEd25519PrivateKey(seedPath)
	if err != nil {
		t.Fatalf("load private: %v", err)
	}
	if !loadedPriv.Equal(priv) {
		t.Fatalf("private key mismatch after round trip")
	}
	if !loadedPub.Equal(pub) {
		t.Fatalf("public key mismatch after round trip")
	}

	filePub, err := LoadEd25519PublicKey(pubPath)
	if err != nil {
		t.Fatalf("load public: %v", err)
	}
	if !filePub.Equal(pub) {
		t.Fatalf("public key file mismatch")
	}
}

func TestDigestPrefix(t *testing.T) {
	digest := DigestWithPrefix([]byte("abc"))
	if digest != "sha256:"+DigestHex([]byte("abc")) {
		t.Fatalf("unexpected digest %s", digest)
	}
	if len(digest) != len("sha256:")+64 {
		t.Fatalf("unexpected digest length %d", len(digest))
	}
}
