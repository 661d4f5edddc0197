package rbridge

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestLocateEngineFindsRInPath(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("fake executable fixture is unix-only")
	}

	dir := t.TempDir()
	fake := filepath.Join(dir, "R")
	if err := os.WriteFile(fake, []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
		t.Fatal(err)
	}

	t.Setenv("PATH", dir)

	got, err := LocateEngine()
	if err != nil {
		t.Fatalf("LocateEngine() error: %v", err)
	}
	if got != fake {
		t.Fatalf("LocateEngine() = %s, want %s", got, fake)
	}
}

func TestLocateEngineNotFound(t *testing.T) {
	t.Setenv("PATH", t.TempDir())

	_, err := LocateEngine()
	if !errors.Is(err, ErrEngineNotFound) {
		t.Fatalf("LocateEngine() error = %v, want ErrEngineNotFound", err)
	}
}

func TestVerifyPackagePresent(t *testing.T) {
	runner := &fakeRunner{result: ExecResult{Stdout: "TRUE"}}
	if err := VerifyPackage(context.Background(), runner, "netmeta"); err != nil {
		t.Fatalf("VerifyPackage() error: %v", err)
	}
	if len(runner.scripts) != 1 {
		t.Fatalf("expected one probe script, got %d", len(runner.scripts))
	}
	want := `cat(requireNamespace("netmeta", quietly=TRUE))`
	if runner.scripts[0] != want {
		t.Fatalf("probe script = %q, want %q", runner.scripts[0], want)
	}
}

func TestVerifyPackageMissing(t *testing.T) {
	// Anything but the exact truthy literal means the package is absent.
	for _, stdout := range []string{"FALSE", "", "true", "TRUE extra"} {
		runner := &fakeRunner{result: ExecResult{Stdout: stdout}}
		err := VerifyPackage(context.Background(), runner, "netmeta")
		if !errors.Is(err, ErrPackageMissing) {
			t.Fatalf("stdout %q: error = %v, want ErrPackageMissing", stdout, err)
		}
	}
}

func TestVerifyPackageNonZeroExit(t *testing.T) {
	runner := &fakeRunner{result: ExecResult{Stdout: "TRUE", ExitCode: 1}}
	err := VerifyPackage(context.Background(), runner, "netmeta")
	if !errors.Is(err, ErrPackageMissing) {
		t.Fatalf("error = %v, want ErrPackageMissing", err)
	}
}
