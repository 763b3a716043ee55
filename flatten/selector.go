package flatten

import (
	"github.com/meghashyamc/iiifsearch/db/searchdb"
	"github.com/mitchellh/mapstructure"
)

const SelectorBox = "box-selector"

type rawSelector struct {
	Type  string         `mapstructure:"type"`
	State map[string]any `mapstructure:"state"`
}

type boxState struct {
	X      *int `mapstructure:"x"`
	Y      *int `mapstructure:"y"`
	Width  *int `mapstructure:"width"`
	Height *int `mapstructure:"height"`
}

// SimplifySelector reduces a box selector to its kind and an x, y, width,
// height box. Other selector types, and boxes missing a coordinate or with a
// coordinate that is not an integer, have no simplified form.
func SimplifySelector(selector any) (string, searchdb.Box, bool) {
	var raw rawSelector
	if err := mapstructure.Decode(selector, &raw); err != nil || raw.Type != SelectorBox || raw.State == nil {
		return "", nil, false
	}

	var state boxState
	if err := weakDecode(raw.State, &state); err != nil {
		return "", nil, false
	}
	if state.X == nil || state.Y == nil || state.Width == nil || state.Height == nil {
		return "", nil, false
	}

	return SelectorBox, searchdb.Box{*state.X, *state.Y, *state.Width, *state.Height}, true
}

// weakDecode decodes loosely typed JSON, accepting numbers written as
// strings and single values where lists are expected.
func weakDecode(input any, output any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           output,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(input)
}
