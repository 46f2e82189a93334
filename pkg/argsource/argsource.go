// Package argsource loads call-time values for a flow's external
// parameters from YAML documents or loosely typed maps.
//
// Values are decoded against the declared parameter types, so a YAML
// document like
//
//	limit: "25"
//	timeout: 3s
//	filter:
//	  owner: alice
//
// fills an int, a time.Duration and a struct parameter.
package argsource

import (
	"errors"
	"fmt"
	"io"
	"os"
	"reflect"
	"sort"

	"github.com/mitchellh/mapstructure"
	"github.com/pumped-fn/flowcompose"
	"gopkg.in/yaml.v3"
)

// ErrUnknownParam is returned for keys no parameter declares.
var ErrUnknownParam = errors.New("unknown parameter")

// Load reads a YAML mapping from r and decodes it against params.
// An empty document yields empty Values.
func Load(r io.Reader, params []flowcompose.Param) (flowcompose.Values, error) {
	var raw map[string]any
	if err := yaml.NewDecoder(r).Decode(&raw); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse arguments: %w", err)
	}
	return Decode(params, raw)
}

// LoadFile is Load for the file at path.
func LoadFile(path string, params []flowcompose.Param) (flowcompose.Values, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	values, err := Load(f, params)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return values, nil
}

// Decode converts raw into Values. Each key must name one of params;
// values of typed parameters are decoded into that type, untyped ones
// pass through unchanged.
func Decode(params []flowcompose.Param, raw map[string]any) (flowcompose.Values, error) {
	byName := make(map[string]flowcompose.Param, len(params))
	for _, p := range params {
		byName[p.Name] = p
	}

	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	values := make(flowcompose.Values, len(raw))
	for _, name := range keys {
		p, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("%w `%s`", ErrUnknownParam, name)
		}
		v, err := decodeValue(p.Type, raw[name])
		if err != nil {
			return nil, fmt.Errorf("parameter `%s`: %w", name, err)
		}
		values[name] = v
	}
	return values, nil
}

func decodeValue(t reflect.Type, in any) (any, error) {
	if t == nil {
		return in, nil
	}
	if in == nil {
		switch t.Kind() {
		case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
			return reflect.Zero(t).Interface(), nil
		}
		return nil, fmt.Errorf("null is not a valid %s", t)
	}

	out := reflect.New(t)
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out.Interface(),
		WeaklyTypedInput: true,
		TagName:          "yaml",
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(in); err != nil {
		return nil, err
	}
	return out.Elem().Interface(), nil
}
