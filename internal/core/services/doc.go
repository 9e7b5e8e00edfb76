// Package services holds the enrichment core: the pipeline state machine,
// the analyzer fan-out, record normalisation, the retrying runner with its
// dead-letter path, and the read-side record and settings services.
//
// Everything here talks to infrastructure through driven ports only.
package services
