package engine

import (
	"testing"

	"github.com/wrenchsim/daemon/internal/model"
)

const testPlatform = `<platform>
  <host id="ControllerHost" cores="4" flop_rate="1e9"/>
  <host id="ComputeHost" cores="2" flop_rate="1e9"/>
</platform>`

func TestLoadPlatformHostnamesInOrder(t *testing.T) {
	p, err := LoadPlatform([]byte(testPlatform))
	if err != nil {
		t.Fatalf("LoadPlatform() error = %v", err)
	}
	got := p.Hostnames()
	want := []string{"ControllerHost", "ComputeHost"}
	if len(got) != len(want) {
		t.Fatalf("Hostnames() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Hostnames()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestLoadPlatformMissingHostID(t *testing.T) {
	_, err := LoadPlatform([]byte(`<platform><host cores="1"/></platform>`))
	if err == nil {
		t.Fatal("LoadPlatform() error = nil, want error for missing id")
	}
}

func TestLoadPlatformDuplicateHost(t *testing.T) {
	_, err := LoadPlatform([]byte(`<platform><host id="a"/><host id="a"/></platform>`))
	if err == nil {
		t.Fatal("LoadPlatform() error = nil, want error for duplicate host")
	}
}

func TestStartComputeServiceUnknownHost(t *testing.T) {
	p, _ := LoadPlatform([]byte(testPlatform))
	sim := NewSimulation(p)

	_, err := sim.StartComputeService("s1", "NoSuchHost")
	if err == nil {
		t.Fatal("StartComputeService() error = nil, want error for unknown head host")
	}
}

func TestScheduleAndAdvanceDeliversCompletion(t *testing.T) {
	p, _ := LoadPlatform([]byte(testPlatform))
	sim := NewSimulation(p)

	svc, err := sim.StartComputeService("s1", "ComputeHost")
	if err != nil {
		t.Fatalf("StartComputeService() error = %v", err)
	}

	job, err := sim.CreateStandardJob("j1", []model.Task{
		{Name: "t1", Flops: 1e9, MinCores: 1, MaxCores: 1},
	})
	if err != nil {
		t.Fatalf("CreateStandardJob() error = %v", err)
	}

	completion := sim.Schedule(job, svc)
	if completion.Failed {
		t.Fatalf("Schedule() unexpectedly failed: %s", completion.FailureCause)
	}
	sim.Enqueue(completion)

	events := sim.AdvanceAndCollect(completion.CompletionDate)
	if len(events) != 1 {
		t.Fatalf("AdvanceAndCollect() returned %d events, want 1", len(events))
	}
	if events[0].EventType != model.EventJobCompletion {
		t.Fatalf("event type = %q, want %q", events[0].EventType, model.EventJobCompletion)
	}
	if events[0].JobName != "j1" {
		t.Fatalf("event job name = %q, want %q", events[0].JobName, "j1")
	}
	if got := sim.Now(); got < completion.CompletionDate {
		t.Fatalf("Now() = %v, want >= %v", got, completion.CompletionDate)
	}
}

func TestScheduleRejectsInsufficientCores(t *testing.T) {
	p, _ := LoadPlatform([]byte(testPlatform))
	sim := NewSimulation(p)

	svc, _ := sim.StartComputeService("s1", "ComputeHost") // 2 cores
	job, _ := sim.CreateStandardJob("j1", []model.Task{
		{Name: "t1", Flops: 1e9, MinCores: 4, MaxCores: 4},
	})

	completion := sim.Schedule(job, svc)
	if !completion.Failed {
		t.Fatal("Schedule() Failed = false, want true for insufficient cores")
	}
	if completion.FailureCause == "" {
		t.Fatal("Schedule() FailureCause is empty, want an explanation")
	}
}

func TestAdvanceAndCollectOrdersByCompletionDate(t *testing.T) {
	p, _ := LoadPlatform([]byte(testPlatform))
	sim := NewSimulation(p)
	svc, _ := sim.StartComputeService("s1", "ComputeHost")

	jobA, _ := sim.CreateStandardJob("a", []model.Task{{Name: "ta", Flops: 2e9, MinCores: 1, MaxCores: 1}})
	jobB, _ := sim.CreateStandardJob("b", []model.Task{{Name: "tb", Flops: 1e9, MinCores: 1, MaxCores: 1}})

	ca := sim.Schedule(jobA, svc)
	sim.Enqueue(ca)
	cb := sim.Schedule(jobB, svc)
	sim.Enqueue(cb)

	events := sim.AdvanceAndCollect(100)
	if len(events) != 2 {
		t.Fatalf("AdvanceAndCollect() returned %d events, want 2", len(events))
	}
	if events[0].JobName != "b" {
		t.Fatalf("first event job = %q, want %q (shorter job completes first)", events[0].JobName, "b")
	}
}
