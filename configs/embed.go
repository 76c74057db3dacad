// Package configs provides the embedded configuration template for onboardqa.
//
// The template is embedded at build time with //go:embed so it ships in
// every distribution (go install and binary releases alike).
//
// It is consumed by `onboardqa config init`, which writes .onboardqa.yaml
// into the current directory. Configuration precedence is documented in
// internal/config/config.go Load():
//  1. Hardcoded defaults (internal/config NewConfig())
//  2. Project config (.onboardqa.yaml)
//  3. Environment variables (ONBOARDQA_*)
//
// To change the template, edit config.example.yaml and rebuild.
package configs

import _ "embed"

// ProjectConfigTemplate is the starter .onboardqa.yaml written by
// `onboardqa config init`. Every key is commented and optional.
//
//go:embed config.example.yaml
var ProjectConfigTemplate string
