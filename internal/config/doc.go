// Package config provides centralized configuration management for the
// TubeDigest pipeline: runtime directories, transcription and summary
// settings, plugin locations and the queue/store drivers, loaded from a
// JSON file with sensible defaults.
package config
