package epub

import "errors"

var (
	// ErrInvalidPackage means the archive could not be read as a package at
	// all: not a zip, no locatable package document, or an unparsable one.
	ErrInvalidPackage = errors.New("epub: invalid package")

	// ErrNoSpine means the package document lists no reading-order entries.
	ErrNoSpine = errors.New("epub: package has no spine entries")

	// ErrFileNotFound means the requested entry does not exist in the archive.
	ErrFileNotFound = errors.New("epub: file not found in archive")
)
