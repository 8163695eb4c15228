package session

import (
	"fmt"
	"strings"
	"sync"
)

const undoHistoryCap = 100

// change is one reversible edit recorded for undo/redo.
type change struct {
	apply  func(m *Memory)
	revert func(m *Memory)
}

type trackState struct {
	name      string
	params    map[string]float64
	mute      bool
	lastFired string
}

// Memory is an in-memory reference host. The daemon runs against it and
// integration tests observe it. Mutation only ever arrives through the
// execution serializer; the mutex exists so out-of-band observers (the
// status endpoint, tests) read a consistent snapshot.
type Memory struct {
	mu        sync.Mutex
	tracks    map[string]*trackState
	order     []string
	tempo     float64
	playing   bool
	recording bool
	undo      []change
	redo      []change
}

var _ Session = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		tracks: make(map[string]*trackState),
		tempo:  120,
	}
}

// Invoke executes one named operation against host state.
func (m *Memory) Invoke(name string, params map[string]any) (any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch name {
	case "get_info":
		return m.info(), nil
	case "get_track":
		return m.getTrack(params)
	case "create_track":
		return m.createTrack(params)
	case "delete_track":
		return m.deleteTrack(params)
	case "set_param":
		return m.setParam(params)
	case "set_tempo":
		return m.setTempo(params)
	case "set_mute":
		return m.setMute(params)
	case "fire_clip":
		return m.fireClip(params)
	case "start_playback":
		m.playing = true
		return nil, nil
	case "stop_playback":
		m.playing = false
		return nil, nil
	case "start_record":
		m.recording = true
		return nil, nil
	case "stop_record":
		m.recording = false
		return nil, nil
	case "undo":
		return nil, m.applyUndo()
	case "redo":
		return nil, m.applyRedo()
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownOperation, name)
	}
}

func (m *Memory) info() map[string]any {
	names := make([]string, len(m.order))
	copy(names, m.order)
	return map[string]any{
		"tempo":       m.tempo,
		"playing":     m.playing,
		"recording":   m.recording,
		"track_count": len(m.order),
		"tracks":      names,
	}
}

func (m *Memory) getTrack(params map[string]any) (any, error) {
	name, err := stringParam(params, "track")
	if err != nil {
		return nil, err
	}
	t, ok := m.tracks[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrTrackNotFound, name)
	}
	values := make(map[string]any, len(t.params))
	for p, v := range t.params {
		values[p] = v
	}
	out := map[string]any{
		"name":   t.name,
		"mute":   t.mute,
		"params": values,
	}
	if t.lastFired != "" {
		out["last_fired"] = t.lastFired
	}
	return out, nil
}

func (m *Memory) createTrack(params map[string]any) (any, error) {
	name, err := stringParam(params, "name")
	if err != nil {
		return nil, err
	}
	if _, exists := m.tracks[name]; exists {
		return nil, fmt.Errorf("%w: %q", ErrTrackExists, name)
	}
	m.insertTrack(name)
	m.record(change{
		apply:  func(m *Memory) { m.insertTrack(name) },
		revert: func(m *Memory) { m.removeTrack(name) },
	})
	return map[string]any{"name": name}, nil
}

func (m *Memory) deleteTrack(params map[string]any) (any, error) {
	name, err := stringParam(params, "name")
	if err != nil {
		return nil, err
	}
	t, ok := m.tracks[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrTrackNotFound, name)
	}
	saved := *t
	savedParams := make(map[string]float64, len(t.params))
	for k, v := range t.params {
		savedParams[k] = v
	}
	m.removeTrack(name)
	m.record(change{
		apply: func(m *Memory) { m.removeTrack(name) },
		revert: func(m *Memory) {
			m.insertTrack(name)
			restored := saved
			restored.params = savedParams
			m.tracks[name] = &restored
		},
	})
	return nil, nil
}

func (m *Memory) setParam(params map[string]any) (any, error) {
	trackName, err := stringParam(params, "track")
	if err != nil {
		return nil, err
	}
	paramName, err := stringParam(params, "name")
	if err != nil {
		return nil, err
	}
	value, err := floatParam(params, "value")
	if err != nil {
		return nil, err
	}
	t, ok := m.tracks[trackName]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrTrackNotFound, trackName)
	}
	prev, had := t.params[paramName]
	t.params[paramName] = value
	m.record(change{
		apply: func(m *Memory) {
			if t, ok := m.tracks[trackName]; ok {
				t.params[paramName] = value
			}
		},
		revert: func(m *Memory) {
			t, ok := m.tracks[trackName]
			if !ok {
				return
			}
			if had {
				t.params[paramName] = prev
			} else {
				delete(t.params, paramName)
			}
		},
	})
	return nil, nil
}

func (m *Memory) setTempo(params map[string]any) (any, error) {
	value, err := floatParam(params, "value")
	if err != nil {
		return nil, err
	}
	prev := m.tempo
	m.tempo = value
	m.record(change{
		apply:  func(m *Memory) { m.tempo = value },
		revert: func(m *Memory) { m.tempo = prev },
	})
	return nil, nil
}

func (m *Memory) setMute(params map[string]any) (any, error) {
	trackName, err := stringParam(params, "track")
	if err != nil {
		return nil, err
	}
	value, err := boolParam(params, "value")
	if err != nil {
		return nil, err
	}
	t, ok := m.tracks[trackName]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrTrackNotFound, trackName)
	}
	prev := t.mute
	t.mute = value
	m.record(change{
		apply: func(m *Memory) {
			if t, ok := m.tracks[trackName]; ok {
				t.mute = value
			}
		},
		revert: func(m *Memory) {
			if t, ok := m.tracks[trackName]; ok {
				t.mute = prev
			}
		},
	})
	return nil, nil
}

func (m *Memory) fireClip(params map[string]any) (any, error) {
	trackName, err := stringParam(params, "track")
	if err != nil {
		return nil, err
	}
	clip, err := stringParam(params, "clip")
	if err != nil {
		return nil, err
	}
	t, ok := m.tracks[trackName]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrTrackNotFound, trackName)
	}
	t.lastFired = clip
	return nil, nil
}

func (m *Memory) applyUndo() error {
	if len(m.undo) == 0 {
		return ErrNothingToUndo
	}
	c := m.undo[len(m.undo)-1]
	m.undo = m.undo[:len(m.undo)-1]
	c.revert(m)
	m.redo = append(m.redo, c)
	return nil
}

func (m *Memory) applyRedo() error {
	if len(m.redo) == 0 {
		return ErrNothingToRedo
	}
	c := m.redo[len(m.redo)-1]
	m.redo = m.redo[:len(m.redo)-1]
	c.apply(m)
	m.undo = append(m.undo, c)
	return nil
}

// record appends one edit to the undo history and clears the redo
// branch, as any new edit invalidates redone state.
func (m *Memory) record(c change) {
	m.undo = append(m.undo, c)
	if len(m.undo) > undoHistoryCap {
		m.undo = m.undo[len(m.undo)-undoHistoryCap:]
	}
	m.redo = nil
}

func (m *Memory) insertTrack(name string) {
	if _, exists := m.tracks[name]; exists {
		return
	}
	m.tracks[name] = &trackState{
		name:   name,
		params: make(map[string]float64),
	}
	m.order = append(m.order, name)
}

func (m *Memory) removeTrack(name string) {
	delete(m.tracks, name)
	for i, n := range m.order {
		if n == name {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
}

// ParamValue reports one track parameter. Test/observability accessor.
func (m *Memory) ParamValue(track, name string) (float64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tracks[track]
	if !ok {
		return 0, false
	}
	v, ok := t.params[name]
	return v, ok
}

// TrackCount reports the number of tracks. Test/observability accessor.
func (m *Memory) TrackCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.order)
}

// Tempo reports the current tempo. Test/observability accessor.
func (m *Memory) Tempo() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tempo
}

func stringParam(params map[string]any, key string) (string, error) {
	raw, ok := params[key]
	if !ok {
		return "", fmt.Errorf("%w: missing %q", ErrInvalidParams, key)
	}
	s, ok := raw.(string)
	if !ok || strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("%w: %q must be a non-empty string", ErrInvalidParams, key)
	}
	return s, nil
}

func floatParam(params map[string]any, key string) (float64, error) {
	raw, ok := params[key]
	if !ok {
		return 0, fmt.Errorf("%w: missing %q", ErrInvalidParams, key)
	}
	switch v := raw.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	default:
		return 0, fmt.Errorf("%w: %q must be a number", ErrInvalidParams, key)
	}
}

func boolParam(params map[string]any, key string) (bool, error) {
	raw, ok := params[key]
	if !ok {
		return false, fmt.Errorf("%w: missing %q", ErrInvalidParams, key)
	}
	v, ok := raw.(bool)
	if !ok {
		return false, fmt.Errorf("%w: %q must be a bool", ErrInvalidParams, key)
	}
	return v, nil
}
