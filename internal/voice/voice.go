// ABOUTME: Optional speech collaborators: synthesis out, transcription in.
// ABOUTME: Capabilities are detected at runtime and degrade to disabled when absent.

package voice

import (
	"context"
	"log/slog"
	"os/exec"
	"sync"
)

// Speaker synthesizes speech from final assistant text. Speak is
// fire-and-forget: it returns immediately and cancels any utterance still
// in progress from a prior call.
type Speaker interface {
	Speak(text string)
	Stop()
}

// Transcriber produces a final transcript from captured speech. It is an
// injected optional capability; a nil Transcriber means the feature is
// unavailable and the UI should say so rather than fail.
type Transcriber interface {
	Transcribe(ctx context.Context) (string, error)
}

// synthesisCommands are probed in order; the first one present on PATH
// wins. Each speaks its trailing argument aloud.
var synthesisCommands = [][]string{
	{"say"},
	{"espeak-ng"},
	{"espeak"},
}

// Detect probes for a local speech synthesis command and returns a
// command-backed Speaker, or nil when none is available.
func Detect(logger *slog.Logger) Speaker {
	if logger == nil {
		logger = slog.Default()
	}
	for _, candidate := range synthesisCommands {
		path, err := exec.LookPath(candidate[0])
		if err != nil {
			continue
		}
		logger.Debug("speech synthesis available", "command", candidate[0])
		return NewCommandSpeaker(path, candidate[1:], logger)
	}
	logger.Debug("no speech synthesis command found, voice output disabled")
	return nil
}

// CommandSpeaker runs an external synthesis command per utterance.
type CommandSpeaker struct {
	command string
	args    []string
	logger  *slog.Logger

	mu      sync.Mutex
	current *exec.Cmd
}

// NewCommandSpeaker wraps a synthesis command. The text to speak is
// appended as the final argument.
func NewCommandSpeaker(command string, args []string, logger *slog.Logger) *CommandSpeaker {
	if logger == nil {
		logger = slog.Default()
	}
	return &CommandSpeaker{
		command: command,
		args:    args,
		logger:  logger.With("component", "voice"),
	}
}

// Speak starts synthesis of text without blocking, cancelling any
// in-progress utterance first.
func (s *CommandSpeaker) Speak(text string) {
	if text == "" {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopLocked()

	cmd := exec.Command(s.command, append(append([]string{}, s.args...), text)...)
	if err := cmd.Start(); err != nil {
		s.logger.Warn("speech synthesis failed to start", "error", err)
		return
	}
	s.current = cmd

	go func() {
		// Reap the process; errors here include deliberate kills
		if err := cmd.Wait(); err != nil {
			s.logger.Debug("speech synthesis ended", "error", err)
		}
	}()
}

// Stop cancels the in-progress utterance, if any.
func (s *CommandSpeaker) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
}

func (s *CommandSpeaker) stopLocked() {
	if s.current != nil && s.current.Process != nil {
		s.current.Process.Kill()
	}
	s.current = nil
}
