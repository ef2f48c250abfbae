// Package snapshot persists the broker's durable state — topics and
// messages, nothing else — to a single file: gob-encoded, zstd-compressed,
// and trailed with a blake2b checksum so a truncated or corrupted file is
// detected at load rather than silently misparsed.
package snapshot

import (
	"bytes"
	"encoding/gob"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/klauspost/compress/zstd"
	"golang.org/x/crypto/blake2b"

	"github.com/lattice-io/pubsub-broker/internal/model"
)

// ErrCorrupt is returned by Load when the checksum trailer does not match
// the file's contents.
var ErrCorrupt = errors.New("snapshot: checksum mismatch, file is corrupt or truncated")

// State is the durable payload: every topic and every live (non-tombstoned)
// message, in append order.
type State struct {
	Topics   []model.Topic
	Messages []model.Message
}

// gobTopic/gobMessage mirror model.Topic/model.Message with plain fields so
// gob does not need to special-case the fixed-size ID array or the
// optional Key pointer across encode/decode.
type gobState struct {
	Topics   []gobTopic
	Messages []gobMessage
}

type gobTopic struct {
	ID          [16]byte
	Name        string
	Creator     string
	CreatedAtNS int64
	RetentionMin float64
	RetentionOn bool
}

type gobMessage struct {
	ID          [16]byte
	TopicID     [16]byte
	Author      string
	Content     string
	TimestampNS int64
	HasKey      bool
	Key         string
}

func toGobState(s State) gobState {
	out := gobState{
		Topics:   make([]gobTopic, len(s.Topics)),
		Messages: make([]gobMessage, len(s.Messages)),
	}
	for i, t := range s.Topics {
		out.Topics[i] = gobTopic{
			ID:           t.ID,
			Name:         t.Name,
			Creator:      t.Creator,
			CreatedAtNS:  t.CreatedAt.UnixNano(),
			RetentionMin: t.Retention.Minutes,
			RetentionOn:  t.Retention.Bounded,
		}
	}
	for i, m := range s.Messages {
		g := gobMessage{
			ID:          m.ID,
			TopicID:     m.TopicID,
			Author:      m.Author,
			Content:     m.Content,
			TimestampNS: m.Timestamp.UnixNano(),
		}
		if m.Key != nil {
			g.HasKey = true
			g.Key = *m.Key
		}
		out.Messages[i] = g
	}
	return out
}

func fromGobState(g gobState) State {
	out := State{
		Topics:   make([]model.Topic, len(g.Topics)),
		Messages: make([]model.Message, len(g.Messages)),
	}
	for i, t := range g.Topics {
		out.Topics[i] = model.Topic{
			ID:        t.ID,
			Name:      t.Name,
			Creator:   t.Creator,
			CreatedAt: unixNanoUTC(t.CreatedAtNS),
			Retention: model.Retention{Minutes: t.RetentionMin, Bounded: t.RetentionOn},
		}
	}
	for i, m := range g.Messages {
		msg := model.Message{
			ID:        m.ID,
			TopicID:   m.TopicID,
			Author:    m.Author,
			Content:   m.Content,
			Timestamp: unixNanoUTC(m.TimestampNS),
		}
		if m.HasKey {
			key := m.Key
			msg.Key = &key
		}
		out.Messages[i] = msg
	}
	return out
}

// Save writes state to path: gob-encode, zstd-compress, append a blake2b-256
// checksum of the compressed bytes, then write atomically via a temp file
// rename.
func Save(path string, state State) error {
	var raw bytes.Buffer
	if err := gob.NewEncoder(&raw).Encode(toGobState(state)); err != nil {
		return fmt.Errorf("snapshot: encode: %w", err)
	}

	var compressed bytes.Buffer
	zw, err := zstd.NewWriter(&compressed)
	if err != nil {
		return fmt.Errorf("snapshot: zstd writer: %w", err)
	}
	if _, err := zw.Write(raw.Bytes()); err != nil {
		zw.Close()
		return fmt.Errorf("snapshot: compress: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("snapshot: compress close: %w", err)
	}

	sum := blake2b.Sum256(compressed.Bytes())

	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("snapshot: create temp file: %w", err)
	}
	if _, err := f.Write(compressed.Bytes()); err != nil {
		f.Close()
		return fmt.Errorf("snapshot: write: %w", err)
	}
	if _, err := f.Write(sum[:]); err != nil {
		f.Close()
		return fmt.Errorf("snapshot: write checksum: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("snapshot: close: %w", err)
	}
	return os.Rename(tmp, path)
}

// Load reads and verifies path, returning an empty State if the file does
// not exist (a fresh broker with no prior snapshot is not an error).
func Load(path string) (State, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return State{}, nil
	}
	if err != nil {
		return State{}, fmt.Errorf("snapshot: read: %w", err)
	}
	if len(data) < blake2b.Size256 {
		return State{}, ErrCorrupt
	}

	body, wantSum := data[:len(data)-blake2b.Size256], data[len(data)-blake2b.Size256:]
	gotSum := blake2b.Sum256(body)
	if !bytes.Equal(gotSum[:], wantSum) {
		return State{}, ErrCorrupt
	}

	zr, err := zstd.NewReader(bytes.NewReader(body))
	if err != nil {
		return State{}, fmt.Errorf("snapshot: zstd reader: %w", err)
	}
	defer zr.Close()

	raw, err := io.ReadAll(zr)
	if err != nil {
		return State{}, fmt.Errorf("snapshot: decompress: %w", err)
	}

	var g gobState
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&g); err != nil {
		return State{}, fmt.Errorf("snapshot: decode: %w", err)
	}
	return fromGobState(g), nil
}

func unixNanoUTC(ns int64) time.Time {
	return time.Unix(0, ns).UTC()
}
