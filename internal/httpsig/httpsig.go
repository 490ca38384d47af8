// Package httpsig wraps github.com/superseriousbusiness/httpsig to
// sign outbound POSTs and verify inbound ones per §4.8: RSA/PEM keys,
// SHA-256, a bounded clock skew, and a Digest header requirement.
package httpsig

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/federatedforum/fedcore/internal/gtserror"
	"github.com/superseriousbusiness/httpsig"
)

var signedHeaders = []string{
	httpsig.RequestTarget,
	"host",
	"date",
	"digest",
	"content-type",
}

// Signer signs outbound requests with an actor's RSA private key.
type Signer struct {
	keyID   string
	privKey *rsa.PrivateKey
}

// NewSigner parses privKeyPEM (PKCS#1 or PKCS#8) and returns a Signer
// that signs with the actor identified by keyID (conventionally
// "<actor ap_id>#main-key").
func NewSigner(keyID, privKeyPEM string) (*Signer, error) {
	key, err := parseRSAPrivateKey(privKeyPEM)
	if err != nil {
		return nil, fmt.Errorf("httpsig: parse private key: %w", err)
	}
	return &Signer{keyID: keyID, privKey: key}, nil
}

// Sign computes the Digest header from body and signs req in place.
func (s *Signer) Sign(req *http.Request, body []byte) error {
	digest := sha256.Sum256(body)
	req.Header.Set("Digest", "SHA-256="+base64.StdEncoding.EncodeToString(digest[:]))
	if req.Header.Get("Date") == "" {
		req.Header.Set("Date", time.Now().UTC().Format(http.TimeFormat))
	}

	signer, _, err := httpsig.NewSigner(
		[]httpsig.Algorithm{httpsig.RSA_SHA256},
		httpsig.DigestSha256,
		signedHeaders,
		httpsig.Signature,
		0,
	)
	if err != nil {
		return fmt.Errorf("httpsig: build signer: %w", err)
	}
	return signer.SignRequest(s.privKey, s.keyID, req, body)
}

// KeyOwnerResolver resolves a keyId URL (the actor's public key ID) to
// the actor's PEM-encoded public key, so Verify never has to know
// about the actor store directly.
type KeyOwnerResolver func(ctx context.Context, keyID string) (pubKeyPEM string, ownerActorURI string, err error)

// Verify checks req's HTTP Signature, clock skew, and Digest header
// per §4.8. It returns the resolved owner actor URI on success.
func Verify(ctx context.Context, req *http.Request, body []byte, maxSkew time.Duration, resolve KeyOwnerResolver) (ownerActorURI string, err error) {
	verifier, err := httpsig.NewVerifier(req)
	if err != nil {
		return "", fmt.Errorf("%w: %w", gtserror.ErrSignatureInvalid, err)
	}

	keyID := verifier.KeyId()
	pubKeyPEM, owner, err := resolve(ctx, keyID)
	if err != nil {
		return "", fmt.Errorf("httpsig: resolve key owner: %w", err)
	}

	if dateStr := req.Header.Get("Date"); dateStr != "" {
		reqDate, perr := http.ParseTime(dateStr)
		if perr != nil {
			return "", fmt.Errorf("%w: malformed date header", gtserror.ErrSignatureInvalid)
		}
		skew := time.Since(reqDate)
		if skew < 0 {
			skew = -skew
		}
		if skew > maxSkew {
			return "", fmt.Errorf("%w: clock skew %s exceeds %s", gtserror.ErrSignatureInvalid, skew, maxSkew)
		}
	}

	if err := verifyDigest(req, body); err != nil {
		return "", err
	}

	pubKey, err := parseRSAPublicKey(pubKeyPEM)
	if err != nil {
		return "", fmt.Errorf("httpsig: parse owner public key: %w", err)
	}

	if err := verifier.Verify(pubKey, httpsig.RSA_SHA256); err != nil {
		return "", fmt.Errorf("%w: %w", gtserror.ErrSignatureInvalid, err)
	}

	return owner, nil
}

func verifyDigest(req *http.Request, body []byte) error {
	got := req.Header.Get("Digest")
	if got == "" {
		return fmt.Errorf("%w: missing digest header", gtserror.ErrSignatureInvalid)
	}
	want := "SHA-256=" + base64ofSHA256(body)
	if got != want {
		return fmt.Errorf("%w: digest mismatch", gtserror.ErrSignatureInvalid)
	}
	return nil
}

func base64ofSHA256(body []byte) string {
	sum := sha256.Sum256(body)
	return base64.StdEncoding.EncodeToString(sum[:])
}

func parseRSAPrivateKey(pemStr string) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode([]byte(pemStr))
	if block == nil {
		return nil, errors.New("no PEM block found")
	}
	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}
	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	rsaKey, ok := key.(*rsa.PrivateKey)
	if !ok {
		return nil, errors.New("key is not RSA")
	}
	return rsaKey, nil
}

func parseRSAPublicKey(pemStr string) (*rsa.PublicKey, error) {
	block, _ := pem.Decode([]byte(pemStr))
	if block == nil {
		return nil, errors.New("no PEM block found")
	}
	if key, err := x509.ParsePKIXPublicKey(block.Bytes); err == nil {
		if rsaKey, ok := key.(*rsa.PublicKey); ok {
			return rsaKey, nil
		}
		return nil, errors.New("key is not RSA")
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return nil, err
	}
	rsaKey, ok := cert.PublicKey.(*rsa.PublicKey)
	if !ok {
		return nil, errors.New("certificate key is not RSA")
	}
	return rsaKey, nil
}

// GenerateKeyPair creates a fresh RSA-2048 key pair for a newly
// registered local actor, PEM-encoded in PKCS#1/PKIX form.
func GenerateKeyPair() (privPEM, pubPEM string, err error) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return "", "", err
	}
	privPEM = string(pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	}))
	pubBytes, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		return "", "", err
	}
	pubPEM = string(pem.EncodeToMemory(&pem.Block{
		Type:  "PUBLIC KEY",
		Bytes: pubBytes,
	}))
	return privPEM, pubPEM, nil
}
