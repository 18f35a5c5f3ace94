package sifzz

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// Installer failures
var (
	ErrModuleNotFound   = errors.New("Module not found")
	ErrInstallForbidden = errors.New("Command usage not allowed (HTTP 403)")
)

var moduleNameRe = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Installer downloads script packs into the module directory
type Installer struct {
	BaseURL string
	Dir     string
	Client  *http.Client
	Logger  *Logger
}

// NewInstaller creates an installer with a default HTTP timeout
func NewInstaller(baseURL, dir string, logger *Logger) *Installer {
	if baseURL == "" {
		baseURL = DefaultInstallURL
	}
	if logger == nil {
		logger = NewLogger(false)
	}
	return &Installer{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Dir:     dir,
		Client:  &http.Client{Timeout: 30 * time.Second},
		Logger:  logger,
	}
}

// Install fetches NAME.yaml, checks that it is a valid pack, and writes it
// into the module directory. It returns the written path.
func (i *Installer) Install(ctx context.Context, name string) (string, error) {
	if !moduleNameRe.MatchString(name) {
		return "", fmt.Errorf("invalid module name %q", name)
	}
	url := fmt.Sprintf("%s/%s.yaml", i.BaseURL, name)
	i.Logger.DebugCat(CatSystem, "Downloading %s", url)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("building request: %w", err)
	}
	resp, err := i.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("downloading %s: %w", name, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return "", ErrModuleNotFound
	case resp.StatusCode == http.StatusForbidden:
		return "", ErrInstallForbidden
	case resp.StatusCode != http.StatusOK:
		return "", fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", name, err)
	}
	if _, err := ParseScriptPack(data, name); err != nil {
		return "", fmt.Errorf("downloaded module is invalid: %w", err)
	}

	if err := os.MkdirAll(i.Dir, 0o755); err != nil {
		return "", fmt.Errorf("creating module directory: %w", err)
	}
	path := filepath.Join(i.Dir, name+".yaml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("writing module: %w", err)
	}
	return path, nil
}
