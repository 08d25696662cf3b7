package kube

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/GoCodeAlone/remediation/alerts"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/client-go/kubernetes/fake"
	k8stesting "k8s.io/client-go/testing"
)

type recordingExecutor struct {
	requests []ExecRequest
	result   ExecResult
	err      error
}

func (r *recordingExecutor) Exec(_ context.Context, req ExecRequest) (ExecResult, error) {
	r.requests = append(r.requests, req)
	return r.result, r.err
}

func testPod(ns, name string, containers ...string) *corev1.Pod {
	p := &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{Namespace: ns, Name: name},
		Status:     corev1.PodStatus{Phase: corev1.PodRunning},
	}
	for _, c := range containers {
		p.Spec.Containers = append(p.Spec.Containers, corev1.Container{Name: c})
	}
	return p
}

func TestFindPod_Found(t *testing.T) {
	cs := fake.NewClientset(testPod("mq", "rabbit-0", "rabbit", "exporter"))
	c := NewClientWithClientset(cs, &recordingExecutor{}, nil, nil)

	pod, err := c.FindPod(context.Background(), alerts.PodRef{Namespace: "mq", Name: "rabbit-0"})
	if err != nil {
		t.Fatalf("FindPod: %v", err)
	}
	if pod == nil {
		t.Fatal("expected pod")
	}
	if pod.Container != "rabbit" {
		t.Errorf("expected first container, got %q", pod.Container)
	}
	if pod.Phase != corev1.PodRunning {
		t.Errorf("expected Running phase, got %q", pod.Phase)
	}
}

func TestFindPod_RequestedContainer(t *testing.T) {
	cs := fake.NewClientset(testPod("mq", "rabbit-0", "rabbit", "exporter"))
	c := NewClientWithClientset(cs, &recordingExecutor{}, nil, nil)

	pod, err := c.FindPod(context.Background(), alerts.PodRef{Namespace: "mq", Name: "rabbit-0", Container: "exporter"})
	if err != nil {
		t.Fatalf("FindPod: %v", err)
	}
	if pod.Container != "exporter" {
		t.Errorf("expected exporter container, got %q", pod.Container)
	}

	pod, err = c.FindPod(context.Background(), alerts.PodRef{Namespace: "mq", Name: "rabbit-0", Container: "gone"})
	if err != nil {
		t.Fatalf("FindPod: %v", err)
	}
	if pod.Container != "rabbit" {
		t.Errorf("unknown container should fall back to first, got %q", pod.Container)
	}
}

func TestFindPod_NotFound(t *testing.T) {
	cs := fake.NewClientset()
	c := NewClientWithClientset(cs, &recordingExecutor{}, nil, nil)

	pod, err := c.FindPod(context.Background(), alerts.PodRef{Namespace: "mq", Name: "missing"})
	if err != nil {
		t.Fatalf("expected no error for missing pod, got %v", err)
	}
	if pod != nil {
		t.Fatalf("expected nil pod, got %+v", pod)
	}
}

func TestFindPod_APIError(t *testing.T) {
	cs := fake.NewClientset()
	cs.PrependReactor("get", "pods", func(k8stesting.Action) (bool, runtime.Object, error) {
		return true, nil, errors.New("apiserver unavailable")
	})
	c := NewClientWithClientset(cs, &recordingExecutor{}, nil, nil)

	_, err := c.FindPod(context.Background(), alerts.PodRef{Namespace: "mq", Name: "rabbit-0"})
	if err == nil || !strings.Contains(err.Error(), "apiserver unavailable") {
		t.Fatalf("expected wrapped API error, got %v", err)
	}
}

func TestPodExec_WrapsCommandInShell(t *testing.T) {
	cs := fake.NewClientset(testPod("mq", "rabbit-0", "rabbit"))
	rec := &recordingExecutor{result: ExecResult{Stdout: "out\n", Stderr: "warn\n"}}
	c := NewClientWithClientset(cs, rec, nil, nil)

	pod, err := c.FindPod(context.Background(), alerts.PodRef{Namespace: "mq", Name: "rabbit-0"})
	if err != nil {
		t.Fatalf("FindPod: %v", err)
	}
	out, err := pod.Exec(context.Background(), "ls -l /etc/data | wc -l")
	if err != nil {
		t.Fatalf("Exec: %v", err)
	}
	if out != "out\nwarn\n" {
		t.Errorf("expected stdout then stderr, got %q", out)
	}

	if len(rec.requests) != 1 {
		t.Fatalf("expected 1 exec request, got %d", len(rec.requests))
	}
	want := ExecRequest{
		Namespace: "mq",
		Pod:       "rabbit-0",
		Container: "rabbit",
		Command:   []string{"sh", "-c", "ls -l /etc/data | wc -l"},
	}
	if !reflect.DeepEqual(rec.requests[0], want) {
		t.Errorf("unexpected request:\n got  %+v\n want %+v", rec.requests[0], want)
	}
}

func TestPodExec_CustomShellAndNonZeroExit(t *testing.T) {
	cs := fake.NewClientset(testPod("default", "web", "app"))
	rec := &recordingExecutor{result: ExecResult{Stdout: "", Stderr: "grep: no match\n", ExitCode: 1}}
	c := NewClientWithClientset(cs, rec, []string{"/bin/bash", "-lc"}, nil)

	pod, _ := c.FindPod(context.Background(), alerts.PodRef{Namespace: "default", Name: "web"})
	out, err := pod.Exec(context.Background(), "grep x /tmp/y")
	if err != nil {
		t.Fatalf("non-zero exit should not be an error: %v", err)
	}
	if out != "grep: no match\n" {
		t.Errorf("unexpected output %q", out)
	}
	if got := rec.requests[0].Command; !reflect.DeepEqual(got, []string{"/bin/bash", "-lc", "grep x /tmp/y"}) {
		t.Errorf("unexpected command %v", got)
	}
}

func TestPodExec_TransportError(t *testing.T) {
	cs := fake.NewClientset(testPod("default", "web", "app"))
	rec := &recordingExecutor{err: errors.New("upgrade failed")}
	c := NewClientWithClientset(cs, rec, nil, nil)

	pod, _ := c.FindPod(context.Background(), alerts.PodRef{Namespace: "default", Name: "web"})
	_, err := pod.Exec(context.Background(), "true")
	if err == nil || !strings.Contains(err.Error(), "exec in pod default/web") {
		t.Fatalf("expected wrapped transport error, got %v", err)
	}
}

const testKubeconfig = `apiVersion: v1
kind: Config
clusters:
- name: one
  cluster:
    server: https://one.example:6443
- name: two
  cluster:
    server: https://two.example:6443
contexts:
- name: ctx-one
  context:
    cluster: one
    user: u
- name: ctx-two
  context:
    cluster: two
    user: u
current-context: ctx-one
users:
- name: u
  user:
    token: abc
`

func TestLoadRESTConfig_Kubeconfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kubeconfig")
	if err := os.WriteFile(path, []byte(testKubeconfig), 0o600); err != nil {
		t.Fatalf("write kubeconfig: %v", err)
	}

	rc, err := LoadRESTConfig(Config{Kubeconfig: path})
	if err != nil {
		t.Fatalf("LoadRESTConfig: %v", err)
	}
	if rc.Host != "https://one.example:6443" {
		t.Errorf("expected current-context host, got %q", rc.Host)
	}

	rc, err = LoadRESTConfig(Config{Kubeconfig: path, Context: "ctx-two"})
	if err != nil {
		t.Fatalf("LoadRESTConfig with context: %v", err)
	}
	if rc.Host != "https://two.example:6443" {
		t.Errorf("expected ctx-two host, got %q", rc.Host)
	}
}

func TestLoadRESTConfig_MissingFile(t *testing.T) {
	_, err := LoadRESTConfig(Config{Kubeconfig: filepath.Join(t.TempDir(), "nope")})
	if err == nil {
		t.Fatal("expected error for missing kubeconfig")
	}
}
