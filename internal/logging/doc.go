// Package logging builds the zap logger shared by every netctl component.
package logging
