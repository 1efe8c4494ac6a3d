/*
Copyright © 2025 Katie Mulliken <katie@mulliken.net>
*/
package cmd

import (
	"bytes"
	"testing"
)

func TestRootCmd_Flags(t *testing.T) {
	tests := []struct {
		name         string
		flagName     string
		defaultValue interface{}
		flagType     string
	}{
		{
			name:         "db flag has correct default",
			flagName:     "db",
			defaultValue: "",
			flagType:     "string",
		},
		{
			name:         "style flag has correct default",
			flagName:     "style",
			defaultValue: "lines",
			flagType:     "string",
		},
		{
			name:         "number flag has correct default",
			flagName:     "number",
			defaultValue: 0,
			flagType:     "int",
		},
		{
			name:         "workers flag has correct default",
			flagName:     "workers",
			defaultValue: 2,
			flagType:     "int",
		},
		{
			name:         "more-links flag has correct default",
			flagName:     "more-links",
			defaultValue: false,
			flagType:     "bool",
		},
		{
			name:         "debug flag has correct default",
			flagName:     "debug",
			defaultValue: false,
			flagType:     "bool",
		},
		{
			name:         "delete flag has correct default",
			flagName:     "delete",
			defaultValue: false,
			flagType:     "bool",
		},
		{
			name:         "hosts flag has correct default",
			flagName:     "hosts",
			defaultValue: "",
			flagType:     "string",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var flag interface{}
			var err error

			switch tt.flagType {
			case "string":
				if tt.flagName == "db" {
					flag, err = rootCmd.PersistentFlags().GetString(tt.flagName)
				} else {
					flag, err = rootCmd.Flags().GetString(tt.flagName)
				}
			case "int":
				flag, err = rootCmd.Flags().GetInt(tt.flagName)
			case "bool":
				flag, err = rootCmd.Flags().GetBool(tt.flagName)
			}

			if err != nil {
				t.Fatalf("Failed to get flag %s: %v", tt.flagName, err)
			}

			if flag != tt.defaultValue {
				t.Errorf("Flag %s: got %v, want %v", tt.flagName, flag, tt.defaultValue)
			}
		})
	}
}

func TestRootCmd_FlagShortcuts(t *testing.T) {
	shortcuts := map[string]string{
		"input":        "i",
		"style":        "s",
		"more-links":   "m",
		"number":       "n",
		"delete":       "d",
		"check-status": "c",
		"log":          "l",
		"debug":        "D",
		"verbose":      "v",
	}
	for name, short := range shortcuts {
		flag := rootCmd.Flags().Lookup(name)
		if flag == nil {
			t.Errorf("Expected flag %s to be defined", name)
			continue
		}
		if flag.Shorthand != short {
			t.Errorf("Flag %s: got shorthand %q, want %q", name, flag.Shorthand, short)
		}
	}
}

func TestRootCmd_InputRequired(t *testing.T) {
	flag := rootCmd.Flags().Lookup("input")
	if flag == nil {
		t.Fatal("Expected input flag to be defined")
	}
	if _, ok := flag.Annotations["cobra_annotation_bash_completion_one_required_flag"]; !ok {
		t.Error("Expected input flag to be marked required")
	}
}

func TestRootCmd_HasSubcommands(t *testing.T) {
	for _, want := range []string{"history", "serve"} {
		found := false
		for _, cmd := range rootCmd.Commands() {
			if cmd.Use == want {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("Expected %s subcommand to be registered", want)
		}
	}
}

func TestRootCmd_UsageOutput(t *testing.T) {
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)

	// Test that usage doesn't error
	err := rootCmd.Usage()
	if err != nil {
		t.Errorf("Usage() returned error: %v", err)
	}

	output := buf.String()
	if output == "" {
		t.Error("Expected usage output, got empty string")
	}
}

func TestRootCmd_CommandMetadata(t *testing.T) {
	if rootCmd.Use != "mirrorup" {
		t.Errorf("Expected Use to be 'mirrorup', got %s", rootCmd.Use)
	}

	if rootCmd.Short == "" {
		t.Error("Expected Short description to be set")
	}

	if rootCmd.Long == "" {
		t.Error("Expected Long description to be set")
	}

	if rootCmd.Version == "" {
		t.Error("Expected Version to be set")
	}
}
