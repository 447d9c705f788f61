package config

import (
	"strings"
	"testing"
)

func TestParseEnvVar(t *testing.T) {
	tests := []struct {
		in      string
		want    EnvVar
		wantErr string
	}{
		{in: "plain:A=B", want: EnvVar{Kind: EnvVarPlain, Literal: "A=B"}},
		{in: "plain:URL=http://x:8080/y", want: EnvVar{Kind: EnvVarPlain, Literal: "URL=http://x:8080/y"}},
		{in: "env:SRC", want: EnvVar{Kind: EnvVarEnv, Source: "SRC", Target: "SRC"}},
		{in: "env:SRC:DST", want: EnvVar{Kind: EnvVarEnv, Source: "SRC", Target: "DST"}},
		{in: "A=B", wantErr: "has no prefix"},
		{in: "plain:", wantErr: "requires a value"},
		{in: "env:", wantErr: "takes SOURCE"},
		{in: "env:A:B:C", wantErr: "takes SOURCE"},
		{in: "env:A:", wantErr: "takes SOURCE"},
		{in: "vault:secret/x", wantErr: "unknown prefix 'vault'"},
	}

	for _, tt := range tests {
		got, err := ParseEnvVar(tt.in)
		if tt.wantErr != "" {
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("ParseEnvVar(%q) error = %v, want containing %q", tt.in, err, tt.wantErr)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseEnvVar(%q): %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseEnvVar(%q) = %+v, want %+v", tt.in, got, tt.want)
		}
	}
}
