// ABOUTME: Tests for the command-backed speaker.
// ABOUTME: Uses /bin/sleep as a stand-in synthesis command.

package voice

import (
	"os/exec"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func requireSleep(t *testing.T) string {
	t.Helper()
	path, err := exec.LookPath("sleep")
	if err != nil {
		t.Skip("sleep not available")
	}
	return path
}

func TestCommandSpeaker_SpeakIsNonBlocking(t *testing.T) {
	s := NewCommandSpeaker(requireSleep(t), nil, nil)
	defer s.Stop()

	start := time.Now()
	s.Speak("5")
	assert.Less(t, time.Since(start), time.Second)
}

func TestCommandSpeaker_NewUtteranceCancelsPrior(t *testing.T) {
	s := NewCommandSpeaker(requireSleep(t), nil, nil)
	defer s.Stop()

	s.Speak("30")
	s.mu.Lock()
	first := s.current
	s.mu.Unlock()
	s.Speak("30")

	s.mu.Lock()
	second := s.current
	s.mu.Unlock()
	assert.NotSame(t, first, second)

	// The first process must have been killed
	assert.Eventually(t, func() bool {
		return first.Process.Signal(syscall.Signal(0)) != nil
	}, 2*time.Second, 50*time.Millisecond)
}

func TestCommandSpeaker_EmptyTextIsNoop(t *testing.T) {
	s := NewCommandSpeaker("/nonexistent/cmd", nil, nil)
	s.Speak("")
	assert.Nil(t, s.current)
}

func TestCommandSpeaker_StopWithoutSpeakIsSafe(t *testing.T) {
	s := NewCommandSpeaker("/nonexistent/cmd", nil, nil)
	s.Stop()
}
