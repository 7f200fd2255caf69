package store

import (
	"encoding/hex"
	"errors"
	"os"
)

func isNotExist(err error) bool {
	return errors.Is(err, os.ErrNotExist)
}

func hex32(h [32]byte) string {
	return hex.EncodeToString(h[:])
}
