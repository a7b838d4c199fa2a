package tools

import "os/exec"

// Spawner abstracts detached process launch for runtime adapters.
type Spawner interface {
	Spawn(name string, args ...string) error
}

// ExecSpawner starts commands on the local host without waiting for them.
type ExecSpawner struct{}

// tools spawner implementation backed by os/exec. The child is released so
// it outlives the master if needed; exit status is not collected.
func (s ExecSpawner) Spawn(name string, args ...string) error {
	cmd := exec.Command(name, args...)
	if err := cmd.Start(); err != nil {
		return err
	}
	return cmd.Process.Release()
}
