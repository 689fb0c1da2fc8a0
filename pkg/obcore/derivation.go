package obcore

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	secpecdsa "github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
)

var (
	// ErrInvalidXPub is returned when an extended public key cannot be parsed.
	ErrInvalidXPub = errors.New("invalid extended public key")
	// ErrInvalidDerivationPath ...
	ErrInvalidDerivationPath = errors.New("invalid derivation path")
)

// DerivePubKey derives the compressed public key at m/change/index below the
// given extended public key and returns it base64-encoded, the encoding used
// inside definitions and signing paths.
func DerivePubKey(xpub string, change, index uint32) (string, error) {
	key, err := hdkeychain.NewKeyFromString(xpub)
	if err != nil {
		return "", ErrInvalidXPub
	}
	changeKey, err := key.Derive(change)
	if err != nil {
		return "", err
	}
	indexKey, err := changeKey.Derive(index)
	if err != nil {
		return "", err
	}
	pub, err := indexKey.ECPubKey()
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(pub.SerializeCompressed()), nil
}

// RequestKeyAuthPath is the derivation below an xpub whose key authorises
// rotating the copayer's request public key.
var RequestKeyAuthPath = [2]uint32{1, 0}

// DerivePubKeyHex derives like DerivePubKey but returns the compressed key
// hex-encoded, the encoding used for request public keys.
func DerivePubKeyHex(xpub string, change, index uint32) (string, error) {
	b64, err := DerivePubKey(xpub, change, index)
	if err != nil {
		return "", err
	}
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(raw), nil
}

// DerivePubKeyForPath derives along a path of the form "m/change/index".
func DerivePubKeyForPath(xpub, path string) (string, error) {
	change, index, err := ParsePath(path)
	if err != nil {
		return "", err
	}
	return DerivePubKey(xpub, change, index)
}

// ParsePath splits a "m/change/index" derivation path.
func ParsePath(path string) (change, index uint32, err error) {
	parts := strings.Split(path, "/")
	if len(parts) != 3 || parts[0] != "m" {
		return 0, 0, ErrInvalidDerivationPath
	}
	c, err := strconv.ParseUint(parts[1], 10, 32)
	if err != nil {
		return 0, 0, ErrInvalidDerivationPath
	}
	i, err := strconv.ParseUint(parts[2], 10, 32)
	if err != nil {
		return 0, 0, ErrInvalidDerivationPath
	}
	return uint32(c), uint32(i), nil
}

// Path formats a "m/change/index" derivation path.
func Path(change, index uint32) string {
	return fmt.Sprintf("m/%d/%d", change, index)
}

// CopayerID returns the identifier of a copayer, the hex sha256 of its
// extended public key.
func CopayerID(xpub string) string {
	sum := sha256.Sum256([]byte(xpub))
	return hex.EncodeToString(sum[:])
}

// DoubleSha256 returns sha256(sha256(data)).
func DoubleSha256(data []byte) []byte {
	first := sha256.Sum256(data)
	second := sha256.Sum256(first[:])
	return second[:]
}

// VerifyMessageSignature checks a DER-encoded hex signature over the double
// sha256 of message against a hex compressed public key. This is the scheme
// used to authenticate copayer requests and joining signatures.
func VerifyMessageSignature(message, hexSig, hexPubKey string) bool {
	sigBytes, err := hex.DecodeString(hexSig)
	if err != nil {
		return false
	}
	pubBytes, err := hex.DecodeString(hexPubKey)
	if err != nil {
		return false
	}
	pub, err := secp256k1.ParsePubKey(pubBytes)
	if err != nil {
		return false
	}
	sig, err := secpecdsa.ParseDERSignature(sigBytes)
	if err != nil {
		return false
	}
	return sig.Verify(DoubleSha256([]byte(message)), pub)
}

// VerifyUnitSignature checks a base64 r||s signature over a 32-byte unit
// hash against a base64 compressed public key, the scheme used for unit
// authentifiers.
func VerifyUnitSignature(hashToSign []byte, b64Sig, b64PubKey string) bool {
	sigBytes, err := base64.StdEncoding.DecodeString(b64Sig)
	if err != nil || len(sigBytes) != 64 {
		return false
	}
	pubBytes, err := base64.StdEncoding.DecodeString(b64PubKey)
	if err != nil {
		return false
	}
	pub, err := secp256k1.ParsePubKey(pubBytes)
	if err != nil {
		return false
	}
	var r, s secp256k1.ModNScalar
	if overflow := r.SetByteSlice(sigBytes[:32]); overflow {
		return false
	}
	if overflow := s.SetByteSlice(sigBytes[32:]); overflow {
		return false
	}
	return secpecdsa.NewSignature(&r, &s).Verify(hashToSign, pub)
}
