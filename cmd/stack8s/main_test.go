package main

import "testing"

func TestCommandTree(t *testing.T) {
	want := map[string]bool{"chat": false, "search": false, "catalog": false}
	for _, cmd := range rootCmd.Commands() {
		if _, ok := want[cmd.Name()]; ok {
			want[cmd.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("subcommand %q not registered", name)
		}
	}
}

func TestSearchSubcommands(t *testing.T) {
	want := map[string]bool{"compute": false, "k8s": false, "hf": false}
	for _, cmd := range searchCmd.Commands() {
		if _, ok := want[cmd.Name()]; ok {
			want[cmd.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("search subcommand %q not registered", name)
		}
	}
}

func TestGlobalFlags(t *testing.T) {
	if rootCmd.PersistentFlags().Lookup("config") == nil {
		t.Error("--config flag not registered")
	}
	if rootCmd.PersistentFlags().Lookup("verbose") == nil {
		t.Error("--verbose flag not registered")
	}
}
