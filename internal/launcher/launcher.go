// Package launcher hands files and URLs to the operating system's default
// application.
package launcher

import (
	"os/exec"
	"runtime"
)

// Opener opens a file path or URL with the default application.
type Opener interface {
	Open(target string) error
}

// System opens targets with the platform launcher (xdg-open, open or
// rundll32). It does not wait for the launched application.
type System struct{}

// Open starts the platform launcher for target.
func (System) Open(target string) error {
	name, args := Command(runtime.GOOS, target)
	cmd := exec.Command(name, args...)
	if err := cmd.Start(); err != nil {
		return err
	}
	go func() { _ = cmd.Wait() }()
	return nil
}

// Command returns the launcher invocation for goos.
func Command(goos, target string) (string, []string) {
	switch goos {
	case "windows":
		return "rundll32", []string{"url.dll,FileProtocolHandler", target}
	case "darwin":
		return "open", []string{target}
	default: // linux, etc.
		return "xdg-open", []string{target}
	}
}
