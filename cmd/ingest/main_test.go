package main

import (
	"testing"
)

func TestRootCmdFlagDefaults(t *testing.T) {
	tests := []struct {
		flag string
		want string
	}{
		{"target", "1000"},
		{"queries", ""},
		{"chunk", "10"},
		{"embed", "false"},
		{"roles", "false"},
		{"area", "1"},
		{"role-filter", ""},
		{"max-per-role", "500"},
	}
	for _, tt := range tests {
		f := rootCmd.Flags().Lookup(tt.flag)
		if f == nil {
			t.Errorf("flag --%s not registered", tt.flag)
			continue
		}
		if f.DefValue != tt.want {
			t.Errorf("flag --%s default = %q, want %q", tt.flag, f.DefValue, tt.want)
		}
	}
}

func TestRootCmdParsesFlags(t *testing.T) {
	if err := rootCmd.ParseFlags([]string{
		"--target", "250", "--queries", "dwh, spark", "--roles", "--role-filter", "инженер",
	}); err != nil {
		t.Fatalf("ParseFlags: %v", err)
	}
	if target != 250 {
		t.Errorf("target = %d, want 250", target)
	}
	if queriesCSV != "dwh, spark" {
		t.Errorf("queriesCSV = %q", queriesCSV)
	}
	if !roleMode {
		t.Error("roleMode not set by --roles")
	}
	if roleFilter != "инженер" {
		t.Errorf("roleFilter = %q", roleFilter)
	}
}

func TestSplitQueries(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"dwh", []string{"dwh"}},
		{"data engineer, dwh ,, spark", []string{"data engineer", "dwh", "spark"}},
		{" , ", nil},
	}
	for _, tt := range tests {
		got := splitQueries(tt.in)
		if len(got) != len(tt.want) {
			t.Errorf("splitQueries(%q) = %v, want %v", tt.in, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("splitQueries(%q)[%d] = %q, want %q", tt.in, i, got[i], tt.want[i])
			}
		}
	}
}
