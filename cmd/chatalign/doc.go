// Package main hosts the chatalign CLI.
//
// The Cobra command tree loads configuration once, builds the logger and
// the run history store, and hands the actual work to internal/align.
// Commands only translate flags into config overrides and render results
// as text, tables or JSON.
package main
