package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// Claude runs the Claude Code CLI in print mode as a Generator.
type Claude struct {
	Binary  string // defaults to "claude"
	WorkDir string
	Model   string
}

// Generate invokes the CLI with the prompt and returns its result text.
func (c *Claude) Generate(ctx context.Context, req Request) (string, error) {
	prompt := req.Prompt
	if req.System != "" {
		prompt = req.System + "\n\n---\n\n" + prompt
	}
	if req.JSON {
		prompt += "\n\nRespond with a single JSON object and nothing else."
	}

	bin := c.Binary
	if bin == "" {
		bin = "claude"
	}
	args := []string{"-p", prompt, "--output-format", "json"}
	if c.Model != "" {
		args = append(args, "--model", c.Model)
	}

	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Dir = c.WorkDir
	// Drop CLAUDECODE so the CLI does not treat this as a nested session.
	for _, env := range os.Environ() {
		if !strings.HasPrefix(env, "CLAUDECODE=") {
			cmd.Env = append(cmd.Env, env)
		}
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", fmt.Errorf("claude exited %d: %s", exitErr.ExitCode(), truncate(stderr.String()+stdout.String(), 500))
		}
		return "", fmt.Errorf("run claude: %w (stderr: %s)", err, stderr.String())
	}

	text := parseCLIResult(stdout.Bytes())
	if req.JSON {
		text = stripCodeFence(text)
	}
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

// parseCLIResult unwraps the {"result": ...} envelope of --output-format json,
// falling back to the raw output.
func parseCLIResult(out []byte) string {
	var parsed struct {
		Result string `json:"result"`
	}
	if err := json.Unmarshal(out, &parsed); err != nil {
		return string(out)
	}
	return parsed.Result
}

// stripCodeFence removes a ```json fence around a JSON answer.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
