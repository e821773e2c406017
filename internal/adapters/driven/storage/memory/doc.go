// Package memory provides in-process implementations of driven ports.
//
// Nothing is written to disk. The stores back the --ephemeral mode of the CLI
// and are convenient in tests.
package memory
