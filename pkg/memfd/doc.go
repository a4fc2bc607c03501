// Package memfd creates anonymous in-memory files holding executable images.
package memfd
