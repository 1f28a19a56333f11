package db

import (
	"github.com/dgraph-io/badger/v4"
)

// OpenBadger abre (o crea) la base embebida en path.
// Con path vacio la base vive solo en memoria.
func OpenBadger(path string) (*badger.DB, error) {
	opts := badger.DefaultOptions(path).WithLoggingLevel(badger.WARNING)
	if path == "" {
		opts = badger.DefaultOptions("").WithInMemory(true).WithLoggingLevel(badger.ERROR)
	}
	return badger.Open(opts)
}
