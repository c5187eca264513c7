package shared

import (
	"fmt"
	"os/exec"
	"runtime"

	"golang.org/x/oauth2"
)

var getRuntime = func() string { return runtime.GOOS }

// browserCommand returns the command that opens url on platform.
func browserCommand(platform, url string) (*exec.Cmd, error) {
	switch platform {
	case "darwin":
		return exec.Command("open", url), nil
	case "linux", "freebsd", "openbsd":
		return exec.Command("xdg-open", url), nil
	case "windows":
		return exec.Command("rundll32", "url.dll,FileProtocolHandler", url), nil
	default:
		return nil, fmt.Errorf("unsupported platform: %s", platform)
	}
}

// OpenBrowser opens the Google consent page (or any url) in the default system browser.
func OpenBrowser(url string) error {
	cmd, err := browserCommand(getRuntime(), url)
	if err != nil {
		return err
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to open browser: %w", err)
	}
	return nil
}

// GenerateState returns a random OAuth state token for CSRF protection on the callback.
func GenerateState() string {
	return oauth2.GenerateVerifier()
}
