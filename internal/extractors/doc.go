// Package extractors provides the TextExtractor used by the pipeline and
// implementations of the FormatExtractor interface for various document
// formats. Each format extractor knows how to pull plain text out of a
// specific MIME type.
//
// Format extractors are registered with the Registry at startup.
package extractors
