package cgroup

import (
	"os"
	"path/filepath"
	"testing"
)

func seedRoot(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, groupName), 0o755); err != nil {
		t.Fatalf("seed group dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(root, groupName, "cgroup.subtree_control"), nil, 0o644); err != nil {
		t.Fatalf("seed subtree_control: %v", err)
	}
	return root
}

func TestCreateEnablesControllers(t *testing.T) {
	root := seedRoot(t)
	m := New(root, "abcd1234")

	if err := m.Create(); err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	got, err := os.ReadFile(filepath.Join(root, groupName, "cgroup.subtree_control"))
	if err != nil {
		t.Fatalf("read subtree_control: %v", err)
	}
	if string(got) != "+cpu +memory\n" {
		t.Errorf("subtree_control = %q, want %q", got, "+cpu +memory\n")
	}

	info, err := os.Stat(filepath.Join(root, groupName, "abcd1234"))
	if err != nil || !info.IsDir() {
		t.Errorf("expected container cgroup dir to exist: %v", err)
	}
}

func TestSetMemoryLimitWritesExactBytes(t *testing.T) {
	root := seedRoot(t)
	m := New(root, "abcd1234")
	if err := m.Create(); err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	if err := m.SetMemoryLimit(104857600); err != nil {
		t.Fatalf("SetMemoryLimit() error: %v", err)
	}

	got, err := os.ReadFile(filepath.Join(m.path, "memory.max"))
	if err != nil {
		t.Fatalf("read memory.max: %v", err)
	}
	if string(got) != "104857600\n" {
		t.Errorf("memory.max = %q, want %q", got, "104857600\n")
	}
}

func TestSetCPULimitEncodesQuotaAndPeriod(t *testing.T) {
	root := seedRoot(t)
	m := New(root, "abcd1234")
	if err := m.Create(); err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	cases := map[int]string{
		100: "100000 100000\n",
		200: "200000 100000\n",
		50:  "50000 100000\n",
	}
	for percent, want := range cases {
		if err := m.SetCPULimit(percent); err != nil {
			t.Fatalf("SetCPULimit(%d) error: %v", percent, err)
		}
		got, err := os.ReadFile(filepath.Join(m.path, "cpu.max"))
		if err != nil {
			t.Fatalf("read cpu.max: %v", err)
		}
		if string(got) != want {
			t.Errorf("SetCPULimit(%d): cpu.max = %q, want %q", percent, got, want)
		}
	}
}

func TestAddProcessWritesPid(t *testing.T) {
	root := seedRoot(t)
	m := New(root, "abcd1234")
	if err := m.Create(); err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	if err := m.AddProcess(4242); err != nil {
		t.Fatalf("AddProcess() error: %v", err)
	}

	got, err := os.ReadFile(filepath.Join(m.path, "cgroup.procs"))
	if err != nil {
		t.Fatalf("read cgroup.procs: %v", err)
	}
	if string(got) != "4242\n" {
		t.Errorf("cgroup.procs = %q, want %q", got, "4242\n")
	}
}

func TestCloseRemovesContainerDirAndEmptyParent(t *testing.T) {
	root := seedRoot(t)
	m := New(root, "abcd1234")
	if err := m.Create(); err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	m.Close()

	if _, err := os.Stat(m.path); !os.IsNotExist(err) {
		t.Errorf("expected container cgroup dir removed, stat err = %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, groupName)); !os.IsNotExist(err) {
		t.Errorf("expected empty parent group dir removed, stat err = %v", err)
	}
}

func TestCloseLeavesNonEmptyParent(t *testing.T) {
	root := seedRoot(t)
	a := New(root, "container-a")
	b := New(root, "container-b")
	if err := a.Create(); err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	if err := b.Create(); err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	a.Close()

	if _, err := os.Stat(filepath.Join(root, groupName)); err != nil {
		t.Errorf("expected parent group dir to survive while container-b remains: %v", err)
	}
	if _, err := os.Stat(b.path); err != nil {
		t.Errorf("expected container-b's cgroup dir untouched: %v", err)
	}
}
