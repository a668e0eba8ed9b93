package musig2agg

import (
	"bytes"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/btcec/v2/schnorr/musig2"

	"github.com/taptrade/coordinatord/pkg/hexid"
)

// ParsePubkeyHex decodes a compressed, hex-encoded secp256k1 public key as
// submitted on the wire in musig_pubkey_hex.
func ParsePubkeyHex(s string) (*btcec.PublicKey, error) {
	b, err := hexid.Decode(s)
	if err != nil {
		return nil, fmt.Errorf("musig2agg: pubkey hex: %w", err)
	}
	pk, err := btcec.ParsePubKey(b)
	if err != nil {
		return nil, fmt.Errorf("musig2agg: parsing pubkey: %w", err)
	}
	return pk, nil
}

// ParseNonceHex decodes a hex-encoded 66-byte MuSig2 public nonce, as
// submitted in musig_pub_nonce_hex.
func ParseNonceHex(s string) ([musig2.PubNonceSize]byte, error) {
	var nonce [musig2.PubNonceSize]byte
	b, err := hexid.DecodeFixed(s, musig2.PubNonceSize)
	if err != nil {
		return nonce, fmt.Errorf("musig2agg: nonce hex: %w", err)
	}
	copy(nonce[:], b)
	return nonce, nil
}

// EncodeNonceHex hex-encodes a public nonce for the wire.
func EncodeNonceHex(nonce [musig2.PubNonceSize]byte) string {
	return hexid.Encode(nonce[:])
}

// ParsePartialSigHex decodes a hex-encoded 32-byte MuSig2 partial
// signature scalar, as submitted in partial_sig_hex.
func ParsePartialSigHex(s string) (*musig2.PartialSignature, error) {
	b, err := hexid.DecodeFixed(s, 32)
	if err != nil {
		return nil, fmt.Errorf("musig2agg: partial sig hex: %w", err)
	}
	var sig musig2.PartialSignature
	if err := sig.Decode(bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("musig2agg: decoding partial sig: %w", err)
	}
	return &sig, nil
}

// EncodePartialSigHex hex-encodes a partial signature for the wire.
func EncodePartialSigHex(sig *musig2.PartialSignature) (string, error) {
	var buf bytes.Buffer
	if err := sig.Encode(&buf); err != nil {
		return "", fmt.Errorf("musig2agg: encoding partial sig: %w", err)
	}
	return hexid.Encode(buf.Bytes()), nil
}

// ParseSchnorrSigHex decodes a hex-encoded 64-byte BIP-340 signature, the
// form a winning trader's own script-path signature takes in an arbitrated
// payout's partial_sig_hex field rather than a MuSig2 partial signature.
func ParseSchnorrSigHex(s string) (*schnorr.Signature, error) {
	b, err := hexid.DecodeFixed(s, schnorr.SignatureSize)
	if err != nil {
		return nil, fmt.Errorf("musig2agg: schnorr sig hex: %w", err)
	}
	sig, err := schnorr.ParseSignature(b)
	if err != nil {
		return nil, fmt.Errorf("musig2agg: parsing schnorr sig: %w", err)
	}
	return sig, nil
}

// EncodeSchnorrSigHex hex-encodes a plain BIP-340 signature for the wire.
func EncodeSchnorrSigHex(sig *schnorr.Signature) string {
	return hexid.Encode(sig.Serialize())
}
