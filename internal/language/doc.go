// Package language maps between the ISO 639 codes used in CHAT @Languages
// headers, @ID lines, and diarizer language hints.
//
// CHAT declares languages with three-letter codes; diarizers usually expect
// two-letter codes.
package language
