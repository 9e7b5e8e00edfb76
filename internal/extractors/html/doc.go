// Package html provides a FormatExtractor implementation for HTML documents.
// It walks the parsed node tree and keeps readable text, dropping scripts,
// styles and other non-content elements.
package html
