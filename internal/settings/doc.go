// Package settings holds the process-wide network settings: the two-letter
// country code and the hostname. Both are validated on write and updated as a
// unit with respect to readers.
package settings
