package runner

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/google/shlex"
	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/syntax"
)

// argv returns the process arguments for the configured command.
func (r *Runner) argv() ([]string, error) {
	if r.shell {
		if runtime.GOOS == "windows" {
			return []string{"cmd", "/C", r.command}, nil
		}
		return []string{"/bin/sh", "-c", r.command}, nil
	}
	args, err := shlex.Split(r.command)
	if err != nil {
		return nil, fmt.Errorf("splitting command: %w", err)
	}
	if len(args) == 0 {
		return nil, errors.New("empty command")
	}
	return args, nil
}

// expandDir expands "~" and environment variables in dir the way a shell
// expands a single word. Command substitution is rejected.
func expandDir(dir string) (string, error) {
	if dir == "" {
		return "", nil
	}
	word, err := syntax.NewParser().Document(strings.NewReader(dir))
	if err != nil {
		return "", fmt.Errorf("parsing working directory %q: %w", dir, err)
	}
	cfg := &expand.Config{
		Env: expand.FuncEnviron(os.Getenv),
	}
	expanded, err := expand.Literal(cfg, word)
	if err != nil {
		return "", fmt.Errorf("expanding working directory %q: %w", dir, err)
	}
	return expanded, nil
}
