package rpc

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/binary"
)

// ComputeHMAC computes the SHA-1 HMAC of the commitment
// be32(len(commandBytes)) || commandBytes, keyed by secret (spec.md
// §4.3 "HMAC").
func ComputeHMAC(secret, commandBytes []byte) []byte {
	mac := hmac.New(sha1.New, secret)
	var lenPrefix [4]byte
	binary.BigEndian.PutUint32(lenPrefix[:], uint32(len(commandBytes)))
	mac.Write(lenPrefix[:])
	mac.Write(commandBytes)
	return mac.Sum(nil)
}

// VerifyHMAC reports whether mac is the correct HMAC of commandBytes
// under secret, using a constant-time comparison.
func VerifyHMAC(secret, commandBytes, mac []byte) bool {
	return hmac.Equal(mac, ComputeHMAC(secret, commandBytes))
}
