package service

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"hash"
	"strings"

	"marketplace-payments/internal/core/ports"
)

// HMACSignatureService implements ports.SignatureService.
type HMACSignatureService struct{}

// NewHMACSignatureService creates a new HMAC signature service.
func NewHMACSignatureService() *HMACSignatureService {
	return &HMACSignatureService{}
}

func hashFor(algorithm string) func() hash.Hash {
	if algorithm == "sha512" {
		return sha512.New
	}
	return sha256.New
}

// Sign computes an HMAC of payload using secret.
// Returns lowercase hex-encoded signature.
func (s *HMACSignatureService) Sign(secret string, payload string, algorithm string) string {
	mac := hmac.New(hashFor(algorithm), []byte(secret))
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify checks if signature matches HMAC(secret, payload).
// An optional "sha256="/"sha512=" prefix on the received signature is
// stripped before the constant-time comparison.
func (s *HMACSignatureService) Verify(secret string, payload string, signature string, algorithm string) bool {
	signature = stripAlgorithmPrefix(signature)
	expected := s.Sign(secret, payload, algorithm)
	return hmac.Equal([]byte(expected), []byte(signature))
}

// VerifyRequest validates an inbound webhook against its raw body bytes.
// The HMAC is computed over the exact bytes presented, never a re-serialised
// JSON object: re-serialisation can reorder keys and break the signature.
// With no secret configured verification is disabled and every payload passes.
func (s *HMACSignatureService) VerifyRequest(rawBody []byte, headers map[string]string, cfg ports.SignatureConfig) bool {
	if cfg.Secret == "" {
		return true
	}

	headerName := cfg.HeaderName
	if headerName == "" {
		headerName = "x-signature"
	}

	signature := headerValue(headers, headerName)
	if signature == "" {
		return false
	}

	return s.Verify(cfg.Secret, string(rawBody), signature, cfg.Algorithm)
}

func stripAlgorithmPrefix(signature string) string {
	for _, prefix := range []string{"sha256=", "sha512="} {
		if strings.HasPrefix(signature, prefix) {
			return signature[len(prefix):]
		}
	}
	return signature
}
