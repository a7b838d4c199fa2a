package launcher

import (
	"errors"
	"testing"

	"github.com/danmuck/unimaster/internal/testutil/testlog"
)

type fakeSpawner struct {
	names []string
	args  [][]string
	err   error
}

func (f *fakeSpawner) Spawn(name string, args ...string) error {
	f.names = append(f.names, name)
	f.args = append(f.args, args)
	return f.err
}

func TestLaunchWorldAppendsIdentityFlags(t *testing.T) {
	testlog.Start(t)
	sp := &fakeSpawner{}
	l := New(sp, Commands{World: []string{"worldserver", "-config", "world.toml"}})

	if err := l.LaunchWorld(1200, 4, 9, 3009); err != nil {
		t.Fatalf("launch: %v", err)
	}
	if len(sp.names) != 1 || sp.names[0] != "worldserver" {
		t.Fatalf("unexpected spawn: %v", sp.names)
	}
	want := []string{"-config", "world.toml", "-zone", "1200", "-clone", "4", "-instance", "9", "-port", "3009"}
	got := sp.args[0]
	if len(got) != len(want) {
		t.Fatalf("argv mismatch: %v != %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("argv[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestEmptyCommandDisablesKind(t *testing.T) {
	testlog.Start(t)
	sp := &fakeSpawner{}
	l := New(sp, Commands{})

	if err := l.LaunchWorld(1000, 0, 1, 3000); err != nil {
		t.Fatalf("disabled world launch must be nil, got %v", err)
	}
	if err := l.LaunchChat(); err != nil {
		t.Fatalf("disabled chat launch must be nil, got %v", err)
	}
	if err := l.LaunchAuth(); err != nil {
		t.Fatalf("disabled auth launch must be nil, got %v", err)
	}
	if len(sp.names) != 0 {
		t.Fatalf("nothing may be spawned: %v", sp.names)
	}
}

func TestSpawnErrorsPropagate(t *testing.T) {
	testlog.Start(t)
	sp := &fakeSpawner{err: errors.New("no such file")}
	l := New(sp, Commands{Chat: []string{"chatserver"}})

	if err := l.LaunchChat(); err == nil {
		t.Fatalf("expected spawn error")
	}
}
