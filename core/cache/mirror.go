package cache

// Mirror records successful cache writes in an external history so the data
// directory stays auditable. The store logs mirror failures and keeps going:
// mirroring must never break a primary write.
type Mirror interface {
	// Record is called with the absolute path of a file the store just
	// wrote or replaced.
	Record(path string) error
}

// NopMirror discards every change notification.
type NopMirror struct{}

func (NopMirror) Record(string) error { return nil }
