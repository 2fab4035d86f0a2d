package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// The driver only understands these two kick values; they are fixed.
const (
	driverKickStrength = 255
	driverKickDuration = 100
)

// FormatDriverConfig renders the key=value file read by the upstream
// driver DLL.
func FormatDriverConfig(s Settings) string {
	var b strings.Builder
	fmt.Fprintf(&b, "mode=%s\n", s.ModeSelect.DriverName())
	fmt.Fprintf(&b, "kick_strength=%d\n", driverKickStrength)
	fmt.Fprintf(&b, "kick_duration=%d\n", driverKickDuration)
	fmt.Fprintf(&b, "filter_window_ms=%d\n", s.FilterWindowMs)
	return b.String()
}

// WriteDriverConfig writes the driver config for s to path, creating the
// parent directory if needed.
func WriteDriverConfig(path string, s Settings) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create driver config dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(FormatDriverConfig(s)), 0o644); err != nil {
		return fmt.Errorf("write driver config '%s': %w", path, err)
	}
	return nil
}
