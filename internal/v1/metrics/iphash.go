package metrics

import (
	"encoding/base64"
	"net"

	"golang.org/x/crypto/argon2"
)

// argon2id parameters for the hashed_ip label. The hash only needs to be
// stable and non-reversible within one deployment, not password-grade slow.
const (
	hashTime    = 1
	hashMemory  = 64 * 1024
	hashThreads = 4
	hashKeyLen  = 32
)

// HashIP derives the hashed_ip metric label from a client IP and a
// deployment-wide salt. The raw IP never reaches the metrics endpoint.
func HashIP(ip net.IP, salt []byte) string {
	sum := argon2.IDKey([]byte(ip.String()), salt, hashTime, hashMemory, hashThreads, hashKeyLen)
	return base64.RawStdEncoding.EncodeToString(sum)
}
