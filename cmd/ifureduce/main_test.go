package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestRootCommandWiring(t *testing.T) {
	cmd := newRootCommand()
	want := map[string]bool{
		"reduce":        false,
		"bias-template": false,
		"flat":          false,
		"config-init":   false,
	}
	for _, sub := range cmd.Commands() {
		if _, ok := want[sub.Name()]; ok {
			want[sub.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("subcommand %s not registered", name)
		}
	}
}

func TestConfigInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cmd := newRootCommand()
	cmd.SetArgs([]string{"config-init", path})
	if err := cmd.Execute(); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("config file not written: %v", err)
	}
}

func TestReduceRejectsOddArgs(t *testing.T) {
	cmd := newRootCommand()
	cmd.SetArgs([]string{"reduce", "only_one.fits"})
	if err := cmd.Execute(); err == nil {
		t.Error("an odd number of readout files should be rejected")
	}
}
