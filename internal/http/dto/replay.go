// Package dto holds the wire shapes of the control API.
package dto

import "github.com/edirooss/replayd/pkg/jsonx"

// ReplayRequest triggers a replay of one source's buffer. The key is "scene"
// for compatibility with the remote-control transport that drives us.
type ReplayRequest struct {
	Scene string `json:"scene"`
}

// SaveAllRequest triggers a bulk export. FolderPath overrides the configured
// output directory when present.
type SaveAllRequest struct {
	FolderPath string `json:"folder_path"`
}

// CaptureUpdate toggles the global capture flag. Enabled must be present.
type CaptureUpdate struct {
	Enabled jsonx.Field[bool] `json:"enabled"`
}

// ConfigUpdate adjusts runtime settings; absent fields are left untouched.
type ConfigUpdate struct {
	OutputDirectory jsonx.Field[string] `json:"output_directory"`
}
