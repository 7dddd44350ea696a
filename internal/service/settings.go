package service

import "sync"

// Settings is the mutable runtime configuration shared by the services:
// currently just the export directory, adjustable at runtime through the
// config endpoint. Kept as an explicit owned object rather than package-level
// state.
type Settings struct {
	mu        sync.RWMutex
	outputDir string
}

// NewSettings seeds the runtime settings from the boot configuration.
func NewSettings(outputDir string) *Settings {
	return &Settings{outputDir: outputDir}
}

// OutputDir returns the directory exports are written to.
func (s *Settings) OutputDir() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.outputDir
}

// SetOutputDir updates the export directory.
func (s *Settings) SetOutputDir(dir string) {
	s.mu.Lock()
	s.outputDir = dir
	s.mu.Unlock()
}
