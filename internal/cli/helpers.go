package cli

import (
	"bufio"
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"strings"

	"golang.org/x/term"

	"github.com/stackline-io/stackctl/pkg/envfile"
	"github.com/stackline-io/stackctl/pkg/plan"
	"github.com/stackline-io/stackctl/pkg/schema/stack"
)

// loadStack parses a stack configuration from a file or directory and
// resolves the stack name from, in order: the --stack flag, the config
// itself, and the path's base name. Variable values are layered from
// .env files next to the config, then --var-file, then --var.
func loadStack(path, stackName string, variables, varFiles []string) (*stack.Stack, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	dir := path
	if !info.IsDir() {
		dir = filepath.Dir(path)
	}
	vars, err := envfile.Load(dir, "")
	if err != nil {
		return nil, err
	}
	for _, file := range varFiles {
		fileVars, err := envfile.ParseFile(file)
		if err != nil {
			return nil, err
		}
		for name, value := range fileVars {
			vars[name] = value
		}
	}
	for name, value := range parseVars(variables) {
		vars[name] = value
	}

	parser := stack.NewParser()
	for name, value := range vars {
		parser.WithVariable(name, value)
	}

	var s *stack.Stack
	if info.IsDir() {
		s, err = parser.ParseDir(path)
	} else {
		s, err = parser.ParseFile(path)
	}
	if err != nil {
		return nil, err
	}

	if stackName != "" {
		s.Name = stackName
	}
	if s.Name == "" {
		base := filepath.Base(path)
		s.Name = strings.TrimSuffix(base, filepath.Ext(base))
	}
	return s, nil
}

// synthesizeStack builds the graph and produces a plan for the stack.
func synthesizeStack(s *stack.Stack) (*plan.Plan, error) {
	g, err := s.Graph()
	if err != nil {
		return nil, err
	}
	return plan.NewSynthesizer().Synthesize(s.Name, g)
}

// parseVars converts key=value pairs into a map.
func parseVars(pairs []string) map[string]string {
	vars := map[string]string{}
	for _, pair := range pairs {
		parts := strings.SplitN(pair, "=", 2)
		if len(parts) == 2 {
			vars[parts[0]] = parts[1]
		}
	}
	return vars
}

// whoami identifies the lock holder as user@host.
func whoami() string {
	username := "unknown"
	if u, err := user.Current(); err == nil {
		username = u.Username
	}
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}
	return username + "@" + host
}

// isInteractive returns true if the CLI runs in an interactive terminal and
// not in a CI environment.
func isInteractive() bool {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return false
	}

	ciEnvVars := []string{
		"CI",
		"CONTINUOUS_INTEGRATION",
		"GITHUB_ACTIONS",
		"GITLAB_CI",
		"CIRCLECI",
		"TRAVIS",
		"JENKINS_URL",
		"BUILDKITE",
		"DRONE",
		"TEAMCITY_VERSION",
		"TF_BUILD",
		"BITBUCKET_BUILD_NUMBER",
		"CODEBUILD_BUILD_ID",
	}
	for _, env := range ciEnvVars {
		if os.Getenv(env) != "" {
			return false
		}
	}
	return true
}

// confirm prompts for a yes/no answer. Non-interactive runs refuse unless
// the caller already approved via a flag.
func confirm(prompt string) bool {
	fmt.Printf("%s [y/N]: ", prompt)
	reader := bufio.NewReader(os.Stdin)
	answer, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes"
}
