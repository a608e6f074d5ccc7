// Package id generates object, session and task identifiers.
package id

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"golang.org/x/crypto/sha3"

	"github.com/navidrome/mediaserver/log"
)

// NewRandom returns an opaque random token, used for Session and Task ids
// where no stable cross-scan identity is required.
func NewRandom() string {
	id, err := gonanoid.Generate("0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz", 22)
	if err != nil {
		log.Error(context.Background(), "Could not generate new ID", err)
	}
	return id
}

// NewHash generates a deterministic ID from input data using SHA3-256.
// CdsObject ids are derived this way from (parentID, location) so that a
// re-scan of an unchanged file assigns it the same id it had before.
func NewHash(data ...string) string {
	hash := sha3.New256()
	for _, d := range data {
		hash.Write([]byte(d))
		hash.Write([]byte("​"))
	}
	h := hash.Sum(nil)[:16]
	bi := big.NewInt(0)
	bi.SetBytes(h)
	s := bi.Text(62)
	return fmt.Sprintf("%022s", s)
}

// NewObjectID derives a stable CdsObject id from its parent and location.
func NewObjectID(parentID, location string) string {
	return NewHash(strings.ToLower(parentID), location)
}
