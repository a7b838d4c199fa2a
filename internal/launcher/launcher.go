// Package launcher starts world, chat, and auth processes from configured
// argv templates.
package launcher

import (
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/danmuck/unimaster/internal/tools"
)

// Commands holds the configured argv per process kind. An empty argv
// disables launching that kind; workers are then attached manually.
type Commands struct {
	World []string
	Chat  []string
	Auth  []string
}

// Launcher renders argv templates and hands them to a Spawner.
type Launcher struct {
	spawner  tools.Spawner
	commands Commands
}

func New(spawner tools.Spawner, commands Commands) *Launcher {
	return &Launcher{spawner: spawner, commands: commands}
}

// LaunchWorld starts one world process with its instance identity appended
// as flags.
func (l *Launcher) LaunchWorld(zone, clone, instance, port uint32) error {
	argv := l.commands.World
	if len(argv) == 0 {
		return nil
	}
	args := append(append([]string{}, argv[1:]...),
		"-zone", strconv.FormatUint(uint64(zone), 10),
		"-clone", strconv.FormatUint(uint64(clone), 10),
		"-instance", strconv.FormatUint(uint64(instance), 10),
		"-port", strconv.FormatUint(uint64(port), 10),
	)
	log.Info().Msgf("launcher world zone=%d clone=%d instance=%d port=%d cmd=%s", zone, clone, instance, port, argv[0])
	return l.spawner.Spawn(argv[0], args...)
}

// LaunchChat starts the chat service verbatim.
func (l *Launcher) LaunchChat() error {
	return l.launchVerbatim("chat", l.commands.Chat)
}

// LaunchAuth starts the auth service verbatim.
func (l *Launcher) LaunchAuth() error {
	return l.launchVerbatim("auth", l.commands.Auth)
}

func (l *Launcher) launchVerbatim(kind string, argv []string) error {
	if len(argv) == 0 {
		return nil
	}
	log.Info().Msgf("launcher %s cmd=%s", kind, argv[0])
	return l.spawner.Spawn(argv[0], argv[1:]...)
}
