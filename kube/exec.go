package kube

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"

	corev1 "k8s.io/api/core/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/kubernetes/scheme"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/remotecommand"
	utilexec "k8s.io/client-go/util/exec"
)

// ExecRequest describes one command to run in a container.
type ExecRequest struct {
	Namespace string
	Pod       string
	Container string
	Command   []string
}

// ExecResult is the captured outcome of an ExecRequest.
type ExecResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// CommandExecutor runs commands inside pods.
type CommandExecutor interface {
	Exec(ctx context.Context, req ExecRequest) (ExecResult, error)
}

// SPDYExecutor executes commands over the pods/exec subresource.
type SPDYExecutor struct {
	config    *rest.Config
	clientset kubernetes.Interface
}

// NewSPDYExecutor creates an executor for the cluster behind config.
func NewSPDYExecutor(config *rest.Config, cs kubernetes.Interface) *SPDYExecutor {
	return &SPDYExecutor{config: config, clientset: cs}
}

// Exec streams the command's stdout and stderr until it exits or ctx ends.
func (e *SPDYExecutor) Exec(ctx context.Context, req ExecRequest) (ExecResult, error) {
	r := e.clientset.CoreV1().RESTClient().Post().
		Resource("pods").
		Namespace(req.Namespace).
		Name(req.Pod).
		SubResource("exec").
		VersionedParams(&corev1.PodExecOptions{
			Container: req.Container,
			Command:   req.Command,
			Stdout:    true,
			Stderr:    true,
		}, scheme.ParameterCodec)

	executor, err := remotecommand.NewSPDYExecutor(e.config, http.MethodPost, r.URL())
	if err != nil {
		return ExecResult{}, fmt.Errorf("create spdy executor: %w", err)
	}

	var stdout, stderr bytes.Buffer
	err = executor.StreamWithContext(ctx, remotecommand.StreamOptions{
		Stdout: &stdout,
		Stderr: &stderr,
	})
	return streamResult(stdout.String(), stderr.String(), err)
}

// streamResult maps a finished exec stream to an ExecResult. A remote
// process that exited non-zero is a result, not an error.
func streamResult(stdout, stderr string, err error) (ExecResult, error) {
	res := ExecResult{Stdout: stdout, Stderr: stderr}

	var exitErr utilexec.ExitError
	if errors.As(err, &exitErr) && exitErr.Exited() {
		res.ExitCode = exitErr.ExitStatus()
		return res, nil
	}
	if err != nil {
		return res, fmt.Errorf("stream exec: %w", err)
	}
	return res, nil
}
