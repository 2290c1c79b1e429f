package media

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/okian/vodcut/internal/domain/model"
)

// FileChatImporter loads chat logs from local .json (array of objects)
// or .jsonl (one object per line) files. Each record needs a numeric
// "timestamp_s" and a string "message"; "author" is optional.
type FileChatImporter struct{}

// NewFileChatImporter returns a FileChatImporter.
func NewFileChatImporter() *FileChatImporter { return &FileChatImporter{} }

type chatRecord struct {
	TimestampS *json.RawMessage `json:"timestamp_s"`
	Message    *json.RawMessage `json:"message"`
	Author     string           `json:"author"`
}

// Load returns the events of the log at path ordered by timestamp. An
// empty file yields no events.
func (FileChatImporter) Load(ctx context.Context, path string) ([]model.ChatEvent, error) {
	const op = "media.load_chat"
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".json" && ext != ".jsonl" {
		return nil, model.Errorf(op, model.ErrChatImport, "unsupported chat file extension %q; expected .jsonl or .json", ext)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, model.WrapKind(op, model.ErrChatImport, err)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, nil
	}

	var events []model.ChatEvent
	if ext == ".jsonl" {
		events, err = parseJSONL(raw)
	} else {
		events, err = parseJSONArray(raw)
	}
	if err != nil {
		return nil, model.WrapKind(op, model.ErrChatImport, err)
	}
	sort.SliceStable(events, func(i, j int) bool { return events[i].TimestampS < events[j].TimestampS })
	return events, nil
}

func parseJSONL(raw []byte) ([]model.ChatEvent, error) {
	var out []model.ChatEvent
	sc := bufio.NewScanner(bytes.NewReader(raw))
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		text := bytes.TrimSpace(sc.Bytes())
		if len(text) == 0 {
			continue
		}
		if text[0] != '{' {
			return nil, fmt.Errorf("line %d must be a JSON object", line)
		}
		var rec chatRecord
		if err := json.Unmarshal(text, &rec); err != nil {
			return nil, fmt.Errorf("invalid JSON on line %d: %w", line, err)
		}
		ev, err := rec.event(fmt.Sprintf("line %d", line))
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, sc.Err()
}

func parseJSONArray(raw []byte) ([]model.ChatEvent, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("JSON chat file must contain an array of objects: %w", err)
	}
	out := make([]model.ChatEvent, 0, len(items))
	for i, item := range items {
		trimmed := bytes.TrimSpace(item)
		if len(trimmed) == 0 || trimmed[0] != '{' {
			return nil, fmt.Errorf("chat record at index %d must be an object", i)
		}
		var rec chatRecord
		if err := json.Unmarshal(trimmed, &rec); err != nil {
			return nil, fmt.Errorf("chat record at index %d is invalid: %w", i, err)
		}
		ev, err := rec.event(fmt.Sprintf("index %d", i))
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, nil
}

var errNotNumber = errors.New("expected number")

func (r chatRecord) event(where string) (model.ChatEvent, error) {
	if r.TimestampS == nil {
		return model.ChatEvent{}, fmt.Errorf("chat record at %s missing required key 'timestamp_s'", where)
	}
	if r.Message == nil {
		return model.ChatEvent{}, fmt.Errorf("chat record at %s missing required key 'message'", where)
	}
	var ts float64
	if err := json.Unmarshal(*r.TimestampS, &ts); err != nil {
		return model.ChatEvent{}, fmt.Errorf("chat record at %s has invalid 'timestamp_s' type: %w", where, errNotNumber)
	}
	var msg string
	if err := json.Unmarshal(*r.Message, &msg); err != nil {
		return model.ChatEvent{}, fmt.Errorf("chat record at %s has invalid 'message' type; expected string", where)
	}
	if ts < 0 {
		return model.ChatEvent{}, fmt.Errorf("chat record at %s has negative 'timestamp_s'", where)
	}
	return model.ChatEvent{TimestampS: ts, Text: msg, Author: r.Author}, nil
}
