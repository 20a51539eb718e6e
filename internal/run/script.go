package run

import (
	"context"
	"fmt"
	"os"

	"github.com/REBAR-SHOP-OS/cusum-brain-flow-sub011/internal/model"
	"gopkg.in/yaml.v3"
)

// Script is a recorded shift of operator events, replayed in order.
//
//	events:
//	  - {machine: shear-1, action: load, item: B201, bars: 4}
//	  - {machine: shear-1, action: stroke, repeat: 2}
//	  - {machine: shear-1, action: remove, slot: 3}
type Script struct {
	Events []ScriptEvent `yaml:"events"`
}

type ScriptEvent struct {
	Machine string `yaml:"machine"`
	Action  string `yaml:"action"` // load, stroke, remove, pause, resume or abort
	Item    string `yaml:"item,omitempty"`
	Bars    int    `yaml:"bars,omitempty"`
	Slot    int    `yaml:"slot,omitempty"`
	Repeat  int    `yaml:"repeat,omitempty"` // Strokes only; 0 means once
}

const (
	ActionLoad   = "load"
	ActionStroke = "stroke"
	ActionRemove = "remove"
	ActionPause  = "pause"
	ActionResume = "resume"
	ActionAbort  = "abort"
)

// ParseScript decodes and validates a YAML script.
func ParseScript(data []byte) (Script, error) {
	var s Script
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Script{}, fmt.Errorf("failed to parse script: %w", err)
	}
	if err := s.Validate(); err != nil {
		return Script{}, err
	}
	return s, nil
}

// LoadScript reads and parses a script file.
func LoadScript(path string) (Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Script{}, fmt.Errorf("failed to read script: %w", err)
	}
	return ParseScript(data)
}

// Validate checks every event for a machine, a known action and the
// arguments that action needs.
func (s Script) Validate() error {
	for i, ev := range s.Events {
		if ev.Machine == "" {
			return fmt.Errorf("event %d: machine is required", i+1)
		}
		switch ev.Action {
		case ActionLoad:
			if ev.Item == "" {
				return fmt.Errorf("event %d: load needs an item", i+1)
			}
			if ev.Bars <= 0 {
				return fmt.Errorf("event %d: load needs a positive bar count", i+1)
			}
		case ActionStroke:
			if ev.Repeat < 0 {
				return fmt.Errorf("event %d: negative repeat", i+1)
			}
		case ActionRemove:
			if ev.Slot < 0 {
				return fmt.Errorf("event %d: negative slot", i+1)
			}
		case ActionPause, ActionResume, ActionAbort:
		default:
			return fmt.Errorf("event %d: unknown action %q", i+1, ev.Action)
		}
	}
	return nil
}

// ItemSource loads cut-plan items by mark. *store.Store satisfies it.
type ItemSource interface {
	Item(ctx context.Context, mark string) (model.CutPlanItem, error)
}

// Step pairs a script event with the outcome it produced.
type Step struct {
	Event   ScriptEvent
	Outcome Outcome
}

// Replay applies the script through the coordinator and stops at the first
// error. Machines are resolved against roster and items through items.
func (c *Coordinator) Replay(ctx context.Context, s Script, roster []model.Machine, items ItemSource) ([]Step, error) {
	machines := make(map[string]model.Machine, len(roster))
	for _, m := range roster {
		machines[m.ID] = m
	}

	var steps []Step
	for i, ev := range s.Events {
		if err := ctx.Err(); err != nil {
			return steps, err
		}

		n := 1
		if ev.Action == ActionStroke && ev.Repeat > 1 {
			n = ev.Repeat
		}
		for k := 0; k < n; k++ {
			out, err := c.apply(ctx, ev, machines, items)
			if err != nil {
				return steps, fmt.Errorf("event %d (%s %s): %w", i+1, ev.Action, ev.Machine, err)
			}
			steps = append(steps, Step{Event: ev, Outcome: out})
		}
	}
	return steps, nil
}

func (c *Coordinator) apply(ctx context.Context, ev ScriptEvent, machines map[string]model.Machine, items ItemSource) (Outcome, error) {
	switch ev.Action {
	case ActionLoad:
		m, ok := machines[ev.Machine]
		if !ok {
			return Outcome{}, fmt.Errorf("unknown machine %q", ev.Machine)
		}
		item, err := items.Item(ctx, ev.Item)
		if err != nil {
			return Outcome{}, err
		}
		return c.Start(ctx, m, item, ev.Bars)
	case ActionStroke:
		return c.Stroke(ctx, ev.Machine)
	case ActionRemove:
		return c.Remove(ctx, ev.Machine, ev.Slot)
	case ActionPause:
		return c.Pause(ctx, ev.Machine)
	case ActionResume:
		return c.Resume(ctx, ev.Machine)
	case ActionAbort:
		return c.Abort(ctx, ev.Machine)
	default:
		return Outcome{}, fmt.Errorf("unknown action %q", ev.Action)
	}
}
