package deps

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
)

// EnvVar returns the override variable for a tool, e.g. FFMPEG_PATH.
func EnvVar(tool string) string {
	return strings.ToUpper(tool) + "_PATH"
}

// FindTool resolves a tool binary. Precedence: customPath, the <TOOL>_PATH
// environment variable, a binary shipped next to the executable, then PATH.
func FindTool(tool, customPath string) (string, error) {
	if customPath != "" {
		return resolveExplicit(tool, customPath)
	}
	if p := os.Getenv(EnvVar(tool)); p != "" {
		return resolveExplicit(tool, p)
	}
	if p, ok := bundled(tool); ok {
		return p, nil
	}
	if p, err := exec.LookPath(tool); err == nil {
		return p, nil
	}
	return "", fmt.Errorf("could not find %s in PATH. Please install %s or set %s.", tool, tool, EnvVar(tool))
}

// FindFFmpeg resolves the ffmpeg binary.
func FindFFmpeg(customPath string) (string, error) {
	return FindTool("ffmpeg", customPath)
}

// FindFFprobe resolves the ffprobe binary.
func FindFFprobe(customPath string) (string, error) {
	return FindTool("ffprobe", customPath)
}

func resolveExplicit(tool, p string) (string, error) {
	if fi, err := os.Stat(p); err == nil && !fi.IsDir() {
		return p, nil
	}
	if lp, err := exec.LookPath(p); err == nil {
		return lp, nil
	}
	return "", fmt.Errorf("could not find %s at %q", tool, p)
}

func bundled(tool string) (string, bool) {
	exe, err := os.Executable()
	if err != nil {
		return "", false
	}
	name := tool
	if runtime.GOOS == "windows" {
		name += ".exe"
	}
	p := filepath.Join(filepath.Dir(exe), name)
	if fi, err := os.Stat(p); err == nil && !fi.IsDir() {
		return p, true
	}
	return "", false
}
