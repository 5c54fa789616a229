// Package voice holds the optional speech collaborators.
//
// Both directions are injected capabilities, not assumed globals: a nil
// Speaker or Transcriber means the capability is absent and the feature
// degrades gracefully (disabled, user informed) without touching the core
// chat flow. Synthesis is fire-and-forget and a new utterance always
// cancels the previous one.
package voice
