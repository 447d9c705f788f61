package config

import (
	"fmt"
	"strings"
)

// EnvVarKind distinguishes the two env_vars directive forms.
type EnvVarKind string

const (
	EnvVarPlain EnvVarKind = "plain"
	EnvVarEnv   EnvVarKind = "env"
)

// EnvVar is a parsed env_vars directive.
//
//	plain:<LITERAL>           Literal holds everything after "plain:"
//	env:<SOURCE>[:<TARGET>]   Source is looked up, exported as Target
type EnvVar struct {
	Kind    EnvVarKind
	Literal string
	Source  string
	Target  string
}

// ParseEnvVar parses a single env_vars directive.
func ParseEnvVar(directive string) (EnvVar, error) {
	prefix, rest, found := strings.Cut(directive, ":")
	if !found {
		return EnvVar{}, fmt.Errorf("directive '%s' has no prefix — use 'plain:NAME=VALUE' or 'env:SOURCE[:TARGET]'", directive)
	}

	switch EnvVarKind(prefix) {
	case EnvVarPlain:
		if rest == "" {
			return EnvVar{}, fmt.Errorf("directive '%s': 'plain:' requires a value", directive)
		}
		return EnvVar{Kind: EnvVarPlain, Literal: rest}, nil
	case EnvVarEnv:
		parts := strings.Split(rest, ":")
		switch {
		case len(parts) == 1 && parts[0] != "":
			return EnvVar{Kind: EnvVarEnv, Source: parts[0], Target: parts[0]}, nil
		case len(parts) == 2 && parts[0] != "" && parts[1] != "":
			return EnvVar{Kind: EnvVarEnv, Source: parts[0], Target: parts[1]}, nil
		default:
			return EnvVar{}, fmt.Errorf("directive '%s': 'env:' takes SOURCE or SOURCE:TARGET", directive)
		}
	default:
		return EnvVar{}, fmt.Errorf("directive '%s': unknown prefix '%s' — must be one of: plain, env", directive, prefix)
	}
}
