package remotesync

import (
	"encoding/hex"
	"encoding/json"

	"golang.org/x/crypto/blake2b"

	"github.com/wholesale-pos/wholesale-pos/internal/catalog"
)

// Fingerprint hashes a product list so the local catalog can be compared with
// the last one exchanged with the endpoint. Order matters, since the remote
// table keeps row order.
func Fingerprint(products []catalog.Product) string {
	raw, err := json.Marshal(nonNil(products))
	if err != nil {
		return ""
	}
	sum := blake2b.Sum256(raw)
	return hex.EncodeToString(sum[:16])
}
