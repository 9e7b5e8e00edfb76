// Package connectors provides implementations of the DocumentSource interface
// for various document stores. Each connector knows how to list and open
// documents held in a specific kind of container (a local directory tree, a bucket).
package connectors
