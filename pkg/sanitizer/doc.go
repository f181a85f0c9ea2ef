// Package sanitizer normalizes catalog and booking input before validation
// and storage.
//
// All functions are idempotent. Invalid input is never an error here; it
// normalizes to an empty value and validation rejects it afterwards.
//
// Normalization includes:
//   - Names and locations: trim, collapse inner whitespace, keep case
//   - Fleet numbers: trim, upper-case, drop inner whitespace
//   - Slices: normalize every item, drop empties and duplicates, keep order
package sanitizer
