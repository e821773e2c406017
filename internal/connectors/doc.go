// Package connectors reads corpus documents from where they live so they can
// be handed to BuildIndex. Each connector knows one source type; the only
// one today is the local filesystem.
package connectors
