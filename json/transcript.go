package json

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fwojciec/lunarys"
)

// envelope is the v1 file format of an exported transcript.
type envelope struct {
	Version      int             `json:"version"`
	ExportedAt   time.Time       `json:"exported_at"`
	Conversation conversationDTO `json:"conversation"`
	Messages     []messageDTO    `json:"messages"`
}

// MarshalTranscript serializes a Transcript in v1 envelope format.
func MarshalTranscript(t lunarys.Transcript) ([]byte, error) {
	env := envelope{
		Version:      1,
		ExportedAt:   t.ExportedAt,
		Conversation: conversationToDTO(t.Conversation),
		Messages:     make([]messageDTO, len(t.Messages)),
	}
	for i, m := range t.Messages {
		env.Messages[i] = messageToDTO(m)
	}
	return json.MarshalIndent(env, "", "  ")
}

// UnmarshalTranscript deserializes a Transcript from v1 envelope format.
func UnmarshalTranscript(data []byte) (lunarys.Transcript, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return lunarys.Transcript{}, fmt.Errorf("unmarshal envelope: %w", err)
	}
	if env.Version != 1 {
		return lunarys.Transcript{}, fmt.Errorf("unsupported envelope version: %d", env.Version)
	}
	msgs := make([]lunarys.Message, len(env.Messages))
	for i, dto := range env.Messages {
		msgs[i] = messageFromDTO(dto)
	}
	return lunarys.Transcript{
		Conversation: conversationFromDTO(env.Conversation),
		Messages:     msgs,
		ExportedAt:   env.ExportedAt,
	}, nil
}

// Save writes a Transcript to a JSON file, creating parent directories as
// needed. The file is replaced atomically.
func Save(path string, t lunarys.Transcript) error {
	data, err := MarshalTranscript(t)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create directories: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

// Load reads a Transcript from a JSON file.
func Load(path string) (lunarys.Transcript, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return lunarys.Transcript{}, fmt.Errorf("read file: %w", err)
	}
	return UnmarshalTranscript(data)
}
