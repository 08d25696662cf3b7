// Package kube resolves alert target pods and runs commands inside them
// through the Kubernetes API.
package kube

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/GoCodeAlone/remediation/alerts"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
)

// DefaultShell wraps every command executed in a pod.
var DefaultShell = []string{"sh", "-c"}

// Config selects the cluster to talk to.
type Config struct {
	// Kubeconfig is an explicit kubeconfig path. When empty and Context is
	// empty, in-cluster configuration is tried first.
	Kubeconfig string `yaml:"kubeconfig"`
	// Context overrides the kubeconfig's current context.
	Context string `yaml:"context"`
	// Shell is the interpreter prefix for commands. Defaults to DefaultShell.
	Shell []string `yaml:"shell"`
}

// Client looks up pods and executes commands in them.
type Client struct {
	clientset kubernetes.Interface
	executor  CommandExecutor
	shell     []string
	logger    *slog.Logger
}

// NewClient builds a Client from cfg.
func NewClient(cfg Config, logger *slog.Logger) (*Client, error) {
	restCfg, err := LoadRESTConfig(cfg)
	if err != nil {
		return nil, err
	}
	cs, err := kubernetes.NewForConfig(restCfg)
	if err != nil {
		return nil, fmt.Errorf("create kubernetes clientset: %w", err)
	}
	return NewClientWithClientset(cs, NewSPDYExecutor(restCfg, cs), cfg.Shell, logger), nil
}

// NewClientWithClientset creates a Client from pre-built parts.
func NewClientWithClientset(cs kubernetes.Interface, exec CommandExecutor, shell []string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if len(shell) == 0 {
		shell = DefaultShell
	}
	return &Client{clientset: cs, executor: exec, shell: shell, logger: logger}
}

// LoadRESTConfig resolves a rest.Config from in-cluster settings or a kubeconfig.
func LoadRESTConfig(cfg Config) (*rest.Config, error) {
	if cfg.Kubeconfig == "" && cfg.Context == "" {
		if rc, err := rest.InClusterConfig(); err == nil {
			return rc, nil
		}
	}

	rules := clientcmd.NewDefaultClientConfigLoadingRules()
	if cfg.Kubeconfig != "" {
		rules.ExplicitPath = cfg.Kubeconfig
	}
	overrides := &clientcmd.ConfigOverrides{CurrentContext: cfg.Context}
	rc, err := clientcmd.NewNonInteractiveDeferredLoadingClientConfig(rules, overrides).ClientConfig()
	if err != nil {
		return nil, fmt.Errorf("load kubeconfig: %w", err)
	}
	return rc, nil
}

// FindPod fetches the pod referenced by ref. It returns nil and no error
// when the pod does not exist.
func (c *Client) FindPod(ctx context.Context, ref alerts.PodRef) (*Pod, error) {
	p, err := c.clientset.CoreV1().Pods(ref.Namespace).Get(ctx, ref.Name, metav1.GetOptions{})
	if apierrors.IsNotFound(err) {
		c.logger.Debug("Pod not found", "pod", ref.String())
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get pod %s: %w", ref, err)
	}

	return &Pod{
		Namespace: p.Namespace,
		Name:      p.Name,
		Container: c.pickContainer(p, ref.Container),
		Phase:     p.Status.Phase,
		client:    c,
	}, nil
}

// pickContainer returns want if the pod runs it, otherwise the pod's first
// container.
func (c *Client) pickContainer(p *corev1.Pod, want string) string {
	for _, ct := range p.Spec.Containers {
		if ct.Name == want {
			return want
		}
	}
	if want != "" {
		c.logger.Warn("Container not found in pod, using first container",
			"pod", p.Namespace+"/"+p.Name, "container", want)
	}
	if len(p.Spec.Containers) > 0 {
		return p.Spec.Containers[0].Name
	}
	return ""
}

// Pod is a handle on a running pod.
type Pod struct {
	Namespace string
	Name      string
	Container string
	Phase     corev1.PodPhase

	client *Client
}

// Exec runs command through the client's shell inside the pod and returns
// stdout followed by stderr. A non-zero exit status is not an error: the
// captured output is returned so it can still be attached to the alert.
func (p *Pod) Exec(ctx context.Context, command string) (string, error) {
	argv := make([]string, 0, len(p.client.shell)+1)
	argv = append(argv, p.client.shell...)
	argv = append(argv, command)

	res, err := p.client.executor.Exec(ctx, ExecRequest{
		Namespace: p.Namespace,
		Pod:       p.Name,
		Container: p.Container,
		Command:   argv,
	})
	if err != nil {
		return "", fmt.Errorf("exec in pod %s/%s: %w", p.Namespace, p.Name, err)
	}
	if res.ExitCode != 0 {
		p.client.logger.Warn("Command exited non-zero",
			"pod", p.Namespace+"/"+p.Name, "container", p.Container, "exit_code", res.ExitCode)
	}
	return res.Stdout + res.Stderr, nil
}
