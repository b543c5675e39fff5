package cmd

import (
	"bytes"
	"os"
	"testing"
)

func TestRootCommand(t *testing.T) {
	tests := []struct {
		name        string
		args        []string
		expectError bool
	}{
		{
			name:        "help flag",
			args:        []string{"--help"},
			expectError: false,
		},
		{
			name:        "version flag",
			args:        []string{"--version"},
			expectError: false,
		},
		{
			name:        "verbose flag",
			args:        []string{"--verbose", "--help"},
			expectError: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tempDir, err := os.MkdirTemp("", "dbpulse-test-*")
			if err != nil {
				t.Fatalf("Failed to create temp dir: %v", err)
			}
			defer os.RemoveAll(tempDir)

			oldDir, err := os.Getwd()
			if err != nil {
				t.Fatalf("failed to get current working directory: %v", err)
			}
			os.Chdir(tempDir)
			defer os.Chdir(oldDir)

			var output bytes.Buffer
			rootCmd.SetOut(&output)
			rootCmd.SetErr(&output)
			rootCmd.SetArgs(tt.args)

			err = rootCmd.Execute()

			rootCmd.SetArgs([]string{})

			if tt.expectError && err == nil {
				t.Errorf("Expected error but got none")
			} else if !tt.expectError && err != nil {
				t.Errorf("Unexpected error: %v", err)
			}
		})
	}
}

func TestRootCommandFlags(t *testing.T) {
	expectedFlags := []string{"config", "verbose"}

	for _, flagName := range expectedFlags {
		flag := rootCmd.PersistentFlags().Lookup(flagName)
		if flag == nil {
			t.Errorf("Root command should have --%s persistent flag", flagName)
		}
	}

	verboseFlag := rootCmd.PersistentFlags().Lookup("verbose")
	if verboseFlag == nil {
		t.Error("Verbose flag not found")
	} else if verboseFlag.DefValue != "false" {
		t.Errorf("Verbose flag default should be false, got '%s'", verboseFlag.DefValue)
	}
}

func TestRootCommandStructure(t *testing.T) {
	if rootCmd.Use != "dbpulse" {
		t.Errorf("Expected Use to be 'dbpulse', got '%s'", rootCmd.Use)
	}

	if rootCmd.Short == "" {
		t.Error("Root command should have short description")
	}

	expectedCommands := []string{"backup", "health", "optimize", "maintain", "analyze", "config", "monitor", "version"}

	for _, cmdName := range expectedCommands {
		found := false
		for _, cmd := range rootCmd.Commands() {
			if cmd.Name() == cmdName {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("Root command should have '%s' subcommand", cmdName)
		}
	}
}

func TestInitConfig(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "dbpulse-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tempDir)

	oldDir, err := os.Getwd()
	if err != nil {
		t.Fatalf("failed to get current working directory: %v", err)
	}
	os.Chdir(tempDir)
	defer os.Chdir(oldDir)

	testConfig := `
global:
  database_url: "./test.db"
optimizer:
  slow_query_threshold: 1s
backup:
  enabled: true
  schedule: daily
  retention_days: 30
  directory: "./backups"
`
	if err := os.WriteFile(".dbpulse.yaml", []byte(testConfig), 0o644); err != nil {
		t.Fatalf("Failed to create test config: %v", err)
	}

	defer func() {
		if r := recover(); r != nil {
			t.Errorf("initConfig panicked: %v", r)
		}
	}()

	oldCfgFile := cfgFile
	cfgFile = ""
	defer func() { cfgFile = oldCfgFile }()

	initConfig()

	if cfg == nil {
		t.Error("Config should not be nil after initConfig")
	}
}
