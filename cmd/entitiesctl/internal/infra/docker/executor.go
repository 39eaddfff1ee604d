package docker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/EntitiesAI/EntitiesOps/cmd/entitiesctl/internal/envgen"
	"github.com/EntitiesAI/EntitiesOps/cmd/entitiesctl/internal/infra/process"
	"github.com/EntitiesAI/EntitiesOps/pkg/logging"
)

// =============================================================================
// Error Definitions
// =============================================================================

var (
	// ErrInvalidConfig is returned when the executor configuration is invalid.
	ErrInvalidConfig = errors.New("invalid docker configuration")

	// ErrComposeFileMissing is returned when the compose file doesn't exist.
	ErrComposeFileMissing = errors.New("compose file not found")

	// ErrOllamaStartFailed is returned when the Ollama sidecar doesn't come up.
	ErrOllamaStartFailed = errors.New("ollama container failed to start")
)

// =============================================================================
// Interface Definition
// =============================================================================

// Executor manages docker and docker compose operations for the stack.
//
// # Description
//
// This interface abstracts all interactions with the docker CLI, enabling
// testable orchestration of the container stack: compose lifecycle
// (up/down), full teardown including volume and image pruning, and the
// optional Ollama sidecar container.
//
// # Security
//
//   - Environment values are injected via the process environment, never
//     interpolated into command strings
//   - Sensitive values are redacted before logging
//
// # Thread Safety
//
// Implementations must be safe for concurrent use. Operations that modify
// container state (Up, Down, Nuke) are serialized.
type Executor interface {
	// Up starts the compose stack.
	//
	// # Description
	//
	// Executes `docker compose up`. Detached by default; with
	// opts.Attached the command streams output to opts.Output and the
	// subprocess exit code is surfaced in the Result for propagation.
	//
	// # Inputs
	//
	//   - ctx: Context for cancellation and timeout
	//   - opts: Configuration for the up operation
	//
	// # Outputs
	//
	//   - *Result: Execution result with stdout/stderr/exit code
	//   - error: If the compose command fails
	Up(ctx context.Context, opts UpOptions) (*Result, error)

	// Down stops the compose stack.
	//
	// Executes `docker compose down`, with `-v` when opts.ClearVolumes is
	// set. Confirmation for volume clearing is the caller's concern; this
	// method assumes consent was already obtained.
	Down(ctx context.Context, opts DownOptions) (*Result, error)

	// Nuke tears down the stack and prunes the docker host.
	//
	// Runs `docker compose down -v --remove-orphans` followed by
	// `docker system prune -a --volumes --force`. Destructive and
	// irreversible; callers must obtain explicit confirmation first.
	//
	// Returns the result of each step. The prune step runs even if the
	// down step reports a non-fatal failure, so a half-removed stack can
	// still be cleaned.
	Nuke(ctx context.Context) ([]*Result, error)

	// EnsureOllama makes sure the Ollama sidecar container is running.
	//
	// Checks for a running container first; if absent, pulls the image,
	// starts the container (with GPU passthrough when requested and
	// available), waits for startup, and verifies it stayed up. On
	// verification failure the container logs are collected into the
	// returned error.
	EnsureOllama(ctx context.Context, opts OllamaOptions) (*OllamaResult, error)
}

// =============================================================================
// Configuration
// =============================================================================

// Config configures the executor.
type Config struct {
	// ProjectDir is the directory holding the compose file. Required.
	ProjectDir string

	// ComposeFile is the compose file name within ProjectDir.
	// Default: "docker-compose.yaml"
	ComposeFile string

	// OllamaContainer is the sidecar container name.
	// Default: "ollama"
	OllamaContainer string

	// OllamaImage is the sidecar image.
	// Default: "ollama/ollama"
	OllamaImage string

	// DefaultTimeout bounds captured (non-streaming) commands.
	// Default: 10 minutes
	DefaultTimeout time.Duration

	// OllamaStartupWait is how long to wait before verifying the sidecar.
	// Default: 4 seconds
	OllamaStartupWait time.Duration
}

func validateConfig(cfg *Config) error {
	if cfg.ProjectDir == "" {
		return fmt.Errorf("%w: ProjectDir is required", ErrInvalidConfig)
	}
	return nil
}

func applyConfigDefaults(cfg *Config) {
	if cfg.ComposeFile == "" {
		cfg.ComposeFile = "docker-compose.yaml"
	}
	if cfg.OllamaContainer == "" {
		cfg.OllamaContainer = "ollama"
	}
	if cfg.OllamaImage == "" {
		cfg.OllamaImage = "ollama/ollama"
	}
	if cfg.DefaultTimeout == 0 {
		cfg.DefaultTimeout = 10 * time.Minute
	}
	if cfg.OllamaStartupWait == 0 {
		cfg.OllamaStartupWait = 4 * time.Second
	}
}

// =============================================================================
// Options and Results
// =============================================================================

// UpOptions configures an Up operation.
type UpOptions struct {
	// Attached runs the stack in the foreground, streaming to Output.
	Attached bool

	// ForceRecreate passes --force-recreate to compose.
	ForceRecreate bool

	// Services limits the operation to the named services. Empty = all.
	Services []string

	// Env is injected into the compose process environment.
	Env *envgen.EnvVars

	// Output receives streamed output in attached mode.
	// Default: os.Stdout
	Output io.Writer
}

// DownOptions configures a Down operation.
type DownOptions struct {
	// ClearVolumes also removes named volumes (-v). Destructive.
	ClearVolumes bool
}

// OllamaOptions configures EnsureOllama.
type OllamaOptions struct {
	// UseGPU requests --gpus=all. Only honored when nvidia-smi is present.
	UseGPU bool
}

// Result contains the outcome of a single docker invocation.
type Result struct {
	// Success is true when the command ran and exited zero.
	Success bool

	// ExitCode is the subprocess exit code (-1 if it never ran).
	ExitCode int

	// Stdout contains captured standard output (empty in attached mode).
	Stdout string

	// Stderr contains captured standard error (empty in attached mode).
	Stderr string

	// Duration is the wall-clock execution time.
	Duration time.Duration

	// Command is the redacted command line, for logs and errors.
	Command string
}

// OllamaResult describes the outcome of EnsureOllama.
type OllamaResult struct {
	// AlreadyRunning is true when the container was up before the call.
	AlreadyRunning bool

	// Pulled is true when the image was pulled during the call.
	Pulled bool

	// GPU is true when the container was started with GPU passthrough.
	GPU bool
}

// =============================================================================
// Default Implementation
// =============================================================================

// DefaultExecutor implements Executor using the docker CLI.
type DefaultExecutor struct {
	config Config
	proc   process.Manager
	logger *logging.Logger

	// sleep is replaceable in tests to avoid real startup waits.
	sleep func(time.Duration)

	mu sync.Mutex
}

// NewDefaultExecutor creates an executor with the given configuration.
//
// # Inputs
//
//   - cfg: Executor configuration (ProjectDir required)
//   - proc: Process manager for command execution
//   - logger: Destination for operational logs
//
// # Outputs
//
//   - *DefaultExecutor: Configured executor
//   - error: ErrInvalidConfig if the configuration is invalid
//
// # Example
//
//	exec, err := docker.NewDefaultExecutor(docker.Config{
//	    ProjectDir: ".",
//	}, process.NewDefaultManager(), logger)
func NewDefaultExecutor(cfg Config, proc process.Manager, logger *logging.Logger) (*DefaultExecutor, error) {
	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}
	applyConfigDefaults(&cfg)

	return &DefaultExecutor{
		config: cfg,
		proc:   proc,
		logger: logger,
		sleep:  time.Sleep,
	}, nil
}

// ComposeFilePath returns the absolute compose file path.
func (e *DefaultExecutor) ComposeFilePath() string {
	return filepath.Join(e.config.ProjectDir, e.config.ComposeFile)
}

// Up starts the compose stack.
func (e *DefaultExecutor) Up(ctx context.Context, opts UpOptions) (*Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.checkComposeFile(); err != nil {
		return nil, err
	}

	args := []string{"compose", "-f", e.ComposeFilePath(), "up"}
	if !opts.Attached {
		args = append(args, "-d")
	}
	if opts.ForceRecreate {
		args = append(args, "--force-recreate")
	}
	args = append(args, opts.Services...)

	if opts.Attached {
		out := opts.Output
		if out == nil {
			out = os.Stdout
		}
		return e.runStreaming(ctx, args, opts.Env, out)
	}
	return e.runDocker(ctx, args, opts.Env, e.config.DefaultTimeout)
}

// Down stops the compose stack.
func (e *DefaultExecutor) Down(ctx context.Context, opts DownOptions) (*Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.checkComposeFile(); err != nil {
		return nil, err
	}

	args := []string{"compose", "-f", e.ComposeFilePath(), "down"}
	if opts.ClearVolumes {
		args = append(args, "-v")
	}
	return e.runDocker(ctx, args, nil, e.config.DefaultTimeout)
}

// Nuke tears down the stack and prunes the docker host.
func (e *DefaultExecutor) Nuke(ctx context.Context) ([]*Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var results []*Result
	var firstErr error

	downArgs := []string{"compose", "-f", e.ComposeFilePath(), "down", "-v", "--remove-orphans"}
	if res, err := e.runDocker(ctx, downArgs, nil, e.config.DefaultTimeout); res != nil {
		results = append(results, res)
		if err != nil {
			// Keep going: prune can still reclaim a half-removed stack.
			e.logger.Warn("compose down failed during nuke, continuing to prune", "error", err.Error())
			firstErr = err
		}
	} else if err != nil {
		return results, err
	}

	pruneArgs := []string{"system", "prune", "-a", "--volumes", "--force"}
	res, err := e.runDocker(ctx, pruneArgs, nil, e.config.DefaultTimeout)
	if res != nil {
		results = append(results, res)
	}
	if err != nil {
		return results, err
	}

	return results, firstErr
}

// EnsureOllama makes sure the Ollama sidecar container is running.
func (e *DefaultExecutor) EnsureOllama(ctx context.Context, opts OllamaOptions) (*OllamaResult, error) {
	running, err := e.containerRunning(ctx, e.config.OllamaContainer)
	if err != nil {
		return nil, err
	}
	if running {
		e.logger.Info("ollama container already running", "container", e.config.OllamaContainer)
		return &OllamaResult{AlreadyRunning: true}, nil
	}

	result := &OllamaResult{}

	if _, err := e.runDocker(ctx, []string{"pull", e.config.OllamaImage}, nil, e.config.DefaultTimeout); err != nil {
		return nil, fmt.Errorf("pull %s: %w", e.config.OllamaImage, err)
	}
	result.Pulled = true

	useGPU := opts.UseGPU && e.gpuAvailable(ctx)
	if opts.UseGPU && !useGPU {
		e.logger.Warn("GPU requested but nvidia-smi not available, starting ollama without GPU")
	}
	result.GPU = useGPU

	runArgs := []string{"run", "-d", "--rm",
		"-v", "ollama:/root/.ollama",
		"-p", "11434:11434",
	}
	if useGPU {
		runArgs = append(runArgs, "--gpus=all")
	}
	runArgs = append(runArgs, "--name", e.config.OllamaContainer, e.config.OllamaImage)

	if _, err := e.runDocker(ctx, runArgs, nil, e.config.DefaultTimeout); err != nil {
		return nil, fmt.Errorf("start ollama container: %w", err)
	}

	e.sleep(e.config.OllamaStartupWait)

	running, err = e.containerRunning(ctx, e.config.OllamaContainer)
	if err != nil {
		return nil, err
	}
	if !running {
		logs := e.collectContainerLogs(ctx, e.config.OllamaContainer)
		return nil, fmt.Errorf("%w: container exited during startup\n%s", ErrOllamaStartFailed, logs)
	}

	e.logger.Info("ollama container started",
		"container", e.config.OllamaContainer,
		"gpu", useGPU,
	)
	return result, nil
}

// =============================================================================
// Internals
// =============================================================================

// checkComposeFile verifies the compose file exists before running.
func (e *DefaultExecutor) checkComposeFile() error {
	path := e.ComposeFilePath()
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrComposeFileMissing, path)
		}
		return fmt.Errorf("stat %s: %w", path, err)
	}
	return nil
}

// containerRunning reports whether a container with the exact name is up.
func (e *DefaultExecutor) containerRunning(ctx context.Context, name string) (bool, error) {
	args := []string{"ps", "--filter", "name=" + name, "--format", "{{.Names}}"}
	res, err := e.runDocker(ctx, args, nil, 30*time.Second)
	if err != nil {
		return false, fmt.Errorf("list containers: %w", err)
	}

	for _, line := range strings.Split(res.Stdout, "\n") {
		if strings.TrimSpace(line) == name {
			return true, nil
		}
	}
	return false, nil
}

// gpuAvailable probes for a usable NVIDIA driver.
func (e *DefaultExecutor) gpuAvailable(ctx context.Context) bool {
	probeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	_, _, exitCode, err := e.proc.RunInDir(probeCtx, "", nil, "nvidia-smi")
	return err == nil && exitCode == 0
}

// collectContainerLogs fetches recent logs for failure diagnostics.
func (e *DefaultExecutor) collectContainerLogs(ctx context.Context, name string) string {
	res, err := e.runDocker(ctx, []string{"logs", "--tail", "50", name}, nil, 30*time.Second)
	if err != nil || res == nil {
		return "(container logs unavailable)"
	}
	if res.Stderr != "" {
		return res.Stdout + res.Stderr
	}
	return res.Stdout
}

// runDocker executes a docker command, capturing output.
//
// # Description
//
// Runs docker with the given arguments in the project directory, with a
// child context bounded by timeout. Extra environment is injected via
// the process environment and logged redacted.
func (e *DefaultExecutor) runDocker(ctx context.Context, args []string, env *envgen.EnvVars, timeout time.Duration) (*Result, error) {
	start := time.Now()

	cmdStr := "docker " + strings.Join(args, " ")
	e.logCommand(cmdStr, env)

	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	stdout, stderr, exitCode, err := e.proc.RunInDir(execCtx, e.config.ProjectDir, env.ToSlice(), "docker", args...)

	result := &Result{
		Success:  exitCode == 0 && err == nil,
		ExitCode: exitCode,
		Stdout:   stdout,
		Stderr:   stderr,
		Duration: time.Since(start),
		Command:  cmdStr,
	}

	if err != nil {
		return result, fmt.Errorf("docker command failed: %w", err)
	}
	if exitCode != 0 {
		return result, fmt.Errorf("docker command exited with code %d: %s", exitCode, stderr)
	}

	return result, nil
}

// runStreaming executes a docker command with output streamed to w.
//
// Used for attached compose runs. The exit code is surfaced in the
// Result so the CLI can propagate it as its own exit code.
func (e *DefaultExecutor) runStreaming(ctx context.Context, args []string, env *envgen.EnvVars, w io.Writer) (*Result, error) {
	start := time.Now()

	cmdStr := "docker " + strings.Join(args, " ")
	e.logCommand(cmdStr, env)

	// Streaming ignores env injection through RunStreaming; attached runs
	// export their environment at the process level before invocation.
	for _, kv := range env.ToSlice() {
		if key, value, ok := strings.Cut(kv, "="); ok {
			os.Setenv(key, value)
		}
	}

	exitCode, err := e.proc.RunStreaming(ctx, e.config.ProjectDir, w, "docker", args...)

	result := &Result{
		Success:  exitCode == 0 && err == nil,
		ExitCode: exitCode,
		Duration: time.Since(start),
		Command:  cmdStr,
	}

	if err != nil {
		return result, fmt.Errorf("docker command failed: %w", err)
	}
	return result, nil
}

// logCommand logs an invocation with sensitive env values redacted.
func (e *DefaultExecutor) logCommand(cmdStr string, env *envgen.EnvVars) {
	if env.Len() > 0 {
		e.logger.Info("executing", "command", cmdStr, "env", env.RedactedSlice())
		return
	}
	e.logger.Info("executing", "command", cmdStr)
}

// Compile-time interface compliance check.
var _ Executor = (*DefaultExecutor)(nil)
