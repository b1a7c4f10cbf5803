package main

import (
	"os"
	"path/filepath"
	"testing"
)

func resetGlobals(t *testing.T) {
	t.Helper()
	cfgFile, serverAddr, token = "", "", ""
	t.Cleanup(func() { cfgFile, serverAddr, token = "", "", "" })
}

func TestLoadConfigFileFillsUnsetFlags(t *testing.T) {
	resetGlobals(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "gatewayctl.yaml")
	if err := os.WriteFile(path, []byte("server: http://127.0.0.1:8787\ntoken: from-file\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfgFile = path

	if err := loadConfigFile(); err != nil {
		t.Fatalf("loadConfigFile: %v", err)
	}
	if serverAddr != "http://127.0.0.1:8787" {
		t.Errorf("serverAddr = %q", serverAddr)
	}
	if token != "from-file" {
		t.Errorf("token = %q", token)
	}
}

func TestLoadConfigFileFlagsTakePriority(t *testing.T) {
	resetGlobals(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "gatewayctl.yaml")
	os.WriteFile(path, []byte("server: http://from-file\ntoken: from-file\n"), 0o644)
	cfgFile = path
	serverAddr = "http://from-flag"

	if err := loadConfigFile(); err != nil {
		t.Fatalf("loadConfigFile: %v", err)
	}
	if serverAddr != "http://from-flag" {
		t.Errorf("serverAddr = %q, want flag value preserved", serverAddr)
	}
	if token != "from-file" {
		t.Errorf("token = %q, want filled in from config file", token)
	}
}

func TestRequireServerErrorsWhenUnset(t *testing.T) {
	resetGlobals(t)
	if err := requireServer(); err == nil {
		t.Fatal("expected error when server address is unset")
	}
}
