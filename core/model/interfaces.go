package model

import "io"

// Fittable reports its fitted state.
type Fittable interface {
	IsFitted() bool
}

// Persistable is implemented by estimators that serialise themselves.
type Persistable interface {
	// Save writes the estimator to w.
	Save(w io.Writer) error

	// Load replaces the receiver's state with the one read from r.
	Load(r io.Reader) error
}
