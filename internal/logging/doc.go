// Package logging provides leveled logging on top of the standard log
// package. The level comes from the LOG_LEVEL environment variable
// (debug, info, warn, error) with DEBUG=true as a shortcut, and can be
// overridden at runtime with SetLevel.
package logging
