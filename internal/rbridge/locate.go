package rbridge

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
)

var (
	// ErrEngineNotFound means no usable R executable could be located or
	// verified. Construction-time fatal.
	ErrEngineNotFound = errors.New("R is not installed or not in PATH")

	// ErrPackageMissing means a required R package is not importable.
	// Construction-time fatal.
	ErrPackageMissing = errors.New("required R package is not installed")
)

func engineBinaryName() string {
	if runtime.GOOS == "windows" {
		return "R.exe"
	}
	return "R"
}

// LocateEngine finds the R executable, preferring one colocated with the
// current binary (a conda-style environment layout) before falling back to
// the system PATH.
func LocateEngine() (string, error) {
	if exe, err := os.Executable(); err == nil {
		local := filepath.Join(filepath.Dir(exe), engineBinaryName())
		if info, err := os.Stat(local); err == nil && !info.IsDir() {
			return local, nil
		}
	}

	if path, err := exec.LookPath(engineBinaryName()); err == nil {
		return path, nil
	}

	return "", ErrEngineNotFound
}

// VerifyEngine runs a version query against the executable to confirm it is
// actually runnable R.
func VerifyEngine(ctx context.Context, path string) error {
	cmd := exec.CommandContext(ctx, path, "--version")
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%w: %s --version failed: %v (%s)",
			ErrEngineNotFound, path, err, strings.TrimSpace(string(out)))
	}
	return nil
}

// VerifyPackage checks that the named R package is importable. The probe
// script prints the bare literal TRUE or FALSE; anything other than TRUE is
// treated as missing.
func VerifyPackage(ctx context.Context, runner Runner, pkg string) error {
	script := fmt.Sprintf("cat(requireNamespace(%s, quietly=TRUE))", rString(pkg))
	res, err := runner.Run(ctx, script)
	if err != nil {
		return fmt.Errorf("%w: %q probe failed: %v", ErrPackageMissing, pkg, err)
	}
	if res.ExitCode != 0 || strings.TrimSpace(res.Stdout) != "TRUE" {
		return fmt.Errorf("%w: %q", ErrPackageMissing, pkg)
	}
	return nil
}
