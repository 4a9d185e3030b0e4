package main

import "testing"

func TestNewRootCmd_HasRunSubcommand(t *testing.T) {
	root := newRootCmd()
	cmd, _, err := root.Find([]string{"run"})
	if err != nil {
		t.Fatalf("Find(run): %v", err)
	}
	if cmd.Use != "run" {
		t.Errorf("found command %q, want %q", cmd.Use, "run")
	}
}
