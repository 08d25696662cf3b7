package module

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/GoCodeAlone/remediation/alerts"
	"github.com/GoCodeAlone/remediation/config"
	"github.com/GoCodeAlone/remediation/enrichment"
)

const runnerYAML = `
playbooks:
  - name: rabbit
    trigger:
      alert_name: RabbitQueueStuck
    actions:
      - type: pod_templated_bash_enricher
        config:
          bash_command: rabbitmqctl list_consumers -v $vhost | grep $queue
          template_cmd: true
  - name: raw
    trigger:
      labels:
        team: messaging
    actions:
      - name: raw-ls
        type: pod_bash_enricher
        config:
          bash_command: ls $HOME
      - name: note
        type: alert_log
        config:
          message: "remediated $pod"
          enrich: true
`

func buildTestRunner(t *testing.T, resolver PodResolver, store enrichment.Store) *Runner {
	t.Helper()
	cfg, err := config.Parse([]byte(runnerYAML))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	reg := NewDefaultStepRegistry()
	if err := cfg.Validate(reg.Types()); err != nil {
		t.Fatalf("validate: %v", err)
	}
	playbooks, err := BuildPlaybooks(cfg, reg, BuildOptions{Metrics: NewMetricsCollector()})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	return &Runner{Playbooks: playbooks, Pods: resolver, Store: store}
}

func TestBuildPlaybooks(t *testing.T) {
	r := buildTestRunner(t, nil, nil)
	if len(r.Playbooks) != 2 {
		t.Fatalf("expected 2 playbooks, got %d", len(r.Playbooks))
	}
	raw := r.Playbooks[1].Pipeline
	if raw.Name != "raw" || len(raw.Steps) != 2 {
		t.Fatalf("unexpected pipeline %+v", raw)
	}
	if raw.Steps[0].Name() != "raw-ls" {
		t.Errorf("expected raw-ls, got %q", raw.Steps[0].Name())
	}
	step, ok := raw.Steps[0].(*PodBashEnricherStep)
	if !ok {
		t.Fatalf("expected *PodBashEnricherStep, got %T", raw.Steps[0])
	}
	if step.Params().TemplateCmd {
		t.Error("template_cmd should default to false")
	}
}

func TestBuildPlaybooks_UnknownType(t *testing.T) {
	cfg := &config.Config{Playbooks: []config.Playbook{{
		Name:    "p",
		Actions: []config.Action{{Name: "a", Type: "does_not_exist"}},
	}}}
	_, err := BuildPlaybooks(cfg, NewDefaultStepRegistry(), BuildOptions{})
	if !errors.Is(err, ErrUnknownStepType) {
		t.Fatalf("expected ErrUnknownStepType, got %v", err)
	}
}

func TestRunner_Handle(t *testing.T) {
	pod := &fakePod{output: "consumers\n"}
	resolver := &fakeResolver{pods: map[string]*fakePod{"mq/rabbit-0": pod}}
	store := enrichment.NewMemoryStore()
	r := buildTestRunner(t, resolver, store)

	alert := podAlert("RabbitQueueStuck", map[string]string{
		"namespace": "mq", "pod": "rabbit-0", "vhost": "/", "queue": "orders", "team": "messaging",
	})

	produced, err := r.Handle(context.Background(), alert)
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if len(produced) != 3 {
		t.Fatalf("expected 3 enrichments (rabbit, raw-ls, note), got %d", len(produced))
	}

	calls := pod.calls()
	want := []string{"rabbitmqctl list_consumers -v / | grep orders", "ls $HOME"}
	if strings.Join(calls, "|") != strings.Join(want, "|") {
		t.Errorf("expected exec calls %q, got %q", want, calls)
	}

	if produced[2].Blocks[0].Text != "remediated rabbit-0" {
		t.Errorf("unexpected log enrichment %+v", produced[2].Blocks)
	}

	stored, err := store.List(context.Background(), alert.Key())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(stored) != 3 {
		t.Errorf("expected 3 stored enrichments, got %d", len(stored))
	}
}

func TestRunner_HandleNoMatch(t *testing.T) {
	r := buildTestRunner(t, &fakeResolver{}, enrichment.NewMemoryStore())
	produced, err := r.Handle(context.Background(), podAlert("Unrelated", nil))
	if err != nil || len(produced) != 0 {
		t.Fatalf("expected nothing, got %v, %v", produced, err)
	}
}

func TestRunner_HandleContinuesAfterPlaybookFailure(t *testing.T) {
	pod := &fakePod{err: errors.New("exec refused")}
	resolver := &fakeResolver{pods: map[string]*fakePod{"mq/rabbit-0": pod}}
	r := buildTestRunner(t, resolver, enrichment.NewMemoryStore())

	alert := podAlert("RabbitQueueStuck", map[string]string{"namespace": "mq", "pod": "rabbit-0", "team": "messaging"})
	_, err := r.Handle(context.Background(), alert)
	if err == nil {
		t.Fatal("expected error")
	}
	for _, want := range []string{`playbook "rabbit"`, `playbook "raw"`, "exec refused"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("expected %q in %v", want, err)
		}
	}
	if len(pod.calls()) != 2 {
		t.Errorf("both playbooks should have attempted exec, got %v", pod.calls())
	}
}

func TestRunner_HandleStoreFailure(t *testing.T) {
	store := enrichment.NewMemoryStore()
	_ = store.Close()
	resolver := &fakeResolver{pods: map[string]*fakePod{"mq/rabbit-0": {output: "x"}}}
	r := buildTestRunner(t, resolver, store)

	produced, err := r.Handle(context.Background(), podAlert("RabbitQueueStuck", map[string]string{"namespace": "mq", "pod": "rabbit-0"}))
	if !errors.Is(err, enrichment.ErrStoreClosed) {
		t.Fatalf("expected store error, got %v", err)
	}
	if len(produced) != 0 {
		t.Errorf("unstored enrichments should not be reported, got %d", len(produced))
	}
}

func TestRunner_HandlePayload(t *testing.T) {
	pods := map[string]*fakePod{}
	payload := &alerts.Payload{}
	for _, name := range []string{"rabbit-0", "rabbit-1", "rabbit-2", "rabbit-3"} {
		pods["mq/"+name] = &fakePod{output: name}
		payload.Alerts = append(payload.Alerts, *podAlert("RabbitQueueStuck", map[string]string{
			"namespace": "mq", "pod": name, "vhost": "/", "queue": "q",
		}))
	}
	payload.Alerts = append(payload.Alerts, alerts.Alert{
		Status: alerts.StatusResolved,
		Labels: map[string]string{"alertname": "RabbitQueueStuck", "namespace": "mq", "pod": "rabbit-0"},
	})

	r := buildTestRunner(t, &fakeResolver{pods: pods}, enrichment.NewMemoryStore())
	r.Concurrency = 3

	produced, err := r.HandlePayload(context.Background(), payload)
	if err != nil {
		t.Fatalf("HandlePayload: %v", err)
	}
	if len(produced) != 4 {
		t.Fatalf("expected one enrichment per firing alert, got %d", len(produced))
	}
	for i, e := range produced {
		want := payload.Alerts[i].Label("pod")
		if e.Blocks[1].Text != want {
			t.Errorf("result %d: expected output %q, got %q", i, want, e.Blocks[1].Text)
		}
	}
	if n := len(pods["mq/rabbit-0"].calls()); n != 1 {
		t.Errorf("resolved alert must not trigger exec, rabbit-0 ran %d times", n)
	}
}

func TestRunner_HandlePayloadCollectsErrors(t *testing.T) {
	pods := map[string]*fakePod{
		"mq/ok":  {output: "fine"},
		"mq/bad": {err: errors.New("exec refused")},
	}
	payload := &alerts.Payload{Alerts: []alerts.Alert{
		*podAlert("RabbitQueueStuck", map[string]string{"namespace": "mq", "pod": "bad"}),
		*podAlert("RabbitQueueStuck", map[string]string{"namespace": "mq", "pod": "ok"}),
	}}
	r := buildTestRunner(t, &fakeResolver{pods: pods}, nil)

	produced, err := r.HandlePayload(context.Background(), payload)
	if err == nil || !strings.Contains(err.Error(), "exec refused") {
		t.Fatalf("expected aggregated error, got %v", err)
	}
	if len(produced) != 1 || produced[0].Blocks[1].Text != "fine" {
		t.Errorf("healthy alert should still be enriched, got %+v", produced)
	}
}
