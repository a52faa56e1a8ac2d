package s3

import (
	"errors"
)

var ErrKeyNotFound = errors.New("key not found")

type BasicClient interface {
	Lister
	Getter
	Putter
}

type Lister interface {
	List(key string) (keys []string, err error)
}

type Getter interface {
	// Get returns ErrKeyNotFound if the given key doesn't exist.
	Get(key string) (data []byte, err error)
}

// Putter overwrites any existing object at the given key (last-write-wins),
// so callers must supply the complete desired contents for that key.
type Putter interface {
	Put(key string, data []byte) (err error)
}
