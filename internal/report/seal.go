package report

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"

	gocose "github.com/veraison/go-cose"
)

// ContentType labels the payload of a sealed report.
const ContentType = "application/vnd.primlab.report+cbor"

// ErrBadSeal means a sealed report does not verify under the given key.
var ErrBadSeal = errors.New("report seal does not verify")

// KeyID returns the COSE key identifier of pub: the first eight bytes of
// its SHA-256 digest.
func KeyID(pub ed25519.PublicKey) []byte {
	sum := sha256.Sum256(pub)
	return sum[:8]
}

// Seal signs the canonical CBOR encoding of r as a COSE_Sign1 message
// (alg EdDSA).
func Seal(r *Report, key ed25519.PrivateKey) ([]byte, error) {
	payload, err := canonical.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("failed to encode report: %w", err)
	}

	signer, err := gocose.NewSigner(gocose.AlgorithmEdDSA, key)
	if err != nil {
		return nil, fmt.Errorf("failed to create COSE signer: %w", err)
	}

	msg := gocose.NewSign1Message()
	msg.Headers.Protected.SetAlgorithm(gocose.AlgorithmEdDSA)
	msg.Headers.Protected[gocose.HeaderLabelContentType] = ContentType
	msg.Headers.Protected[gocose.HeaderLabelKeyID] = KeyID(key.Public().(ed25519.PublicKey))
	msg.Payload = payload

	if err := msg.Sign(rand.Reader, nil, signer); err != nil {
		return nil, fmt.Errorf("failed to sign report: %w", err)
	}
	return msg.MarshalCBOR()
}

// Open verifies a sealed report under pub and returns the report.
func Open(sealed []byte, pub ed25519.PublicKey) (*Report, error) {
	var msg gocose.Sign1Message
	if err := msg.UnmarshalCBOR(sealed); err != nil {
		return nil, fmt.Errorf("failed to parse COSE_Sign1 message: %w", err)
	}

	alg, err := msg.Headers.Protected.Algorithm()
	if err != nil || alg != gocose.AlgorithmEdDSA {
		return nil, fmt.Errorf("%w: unexpected algorithm %v", ErrBadSeal, alg)
	}

	verifier, err := gocose.NewVerifier(gocose.AlgorithmEdDSA, pub)
	if err != nil {
		return nil, fmt.Errorf("failed to create COSE verifier: %w", err)
	}
	if err := msg.Verify(nil, verifier); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadSeal, err)
	}
	return Unmarshal(msg.Payload, FormatCBOR)
}

// GenerateKey returns a new sealing key pair.
func GenerateKey() (ed25519.PublicKey, ed25519.PrivateKey, error) {
	return ed25519.GenerateKey(rand.Reader)
}

// EncodePrivateKeyPEM encodes key as a PKCS#8 "PRIVATE KEY" block.
func EncodePrivateKeyPEM(key ed25519.PrivateKey) ([]byte, error) {
	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal private key: %w", err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der}), nil
}

// EncodePublicKeyPEM encodes pub as a PKIX "PUBLIC KEY" block.
func EncodePublicKeyPEM(pub ed25519.PublicKey) ([]byte, error) {
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal public key: %w", err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}), nil
}

// LoadPrivateKey reads a PEM encoded Ed25519 private key.
func LoadPrivateKey(path string) (ed25519.PrivateKey, error) {
	block, err := readPEM(path, "PRIVATE KEY")
	if err != nil {
		return nil, err
	}
	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}
	priv, ok := key.(ed25519.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("%s: expected an Ed25519 key, got %T", path, key)
	}
	return priv, nil
}

// LoadPublicKey reads a PEM encoded Ed25519 public key.
func LoadPublicKey(path string) (ed25519.PublicKey, error) {
	block, err := readPEM(path, "PUBLIC KEY")
	if err != nil {
		return nil, err
	}
	key, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse public key: %w", err)
	}
	pub, ok := key.(ed25519.PublicKey)
	if !ok {
		return nil, fmt.Errorf("%s: expected an Ed25519 key, got %T", path, key)
	}
	return pub, nil
}

func readPEM(path, typ string) (*pem.Block, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read key file: %w", err)
	}
	block, _ := pem.Decode(data)
	if block == nil || block.Type != typ {
		return nil, fmt.Errorf("%s: no %s PEM block found", path, typ)
	}
	return block, nil
}
