package util

import (
	"encoding/json"
	"reflect"

	"github.com/autom8ter/provision/errors"
	"github.com/ghodss/yaml"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	yaml3 "gopkg.in/yaml.v3"
)

var validate = validator.New()

// ValidateStruct validates the struct's `validate` tags
func ValidateStruct(val any) error {
	return errors.Wrap(validate.Struct(val), errors.Validation, "")
}

// Decode decodes the input into the output based on json tags
func Decode(input any, output any) error {
	config := &mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           output,
		TagName:          "json",
	}
	decoder, err := mapstructure.NewDecoder(config)
	if err != nil {
		return err
	}
	return decoder.Decode(input)
}

// JSONString returns a json string of the input
func JSONString(input any) string {
	bits, _ := json.Marshal(input)
	return string(bits)
}

// Normalize round trips the input through json so values of different go types compare equal
func Normalize(input any) any {
	if input == nil {
		return nil
	}
	var out any
	if err := json.Unmarshal([]byte(JSONString(input)), &out); err != nil {
		return input
	}
	return out
}

// JSONEqual reports whether both values encode to the same json
func JSONEqual(a, b any) bool {
	return reflect.DeepEqual(Normalize(a), Normalize(b))
}

// YAMLToJSON converts yaml to json. JSON input is returned as is.
// Keys follow YAML 1.2, so on/off/yes/no stay strings.
func YAMLToJSON(yamlContent []byte) ([]byte, error) {
	if isJSON(string(yamlContent)) {
		return yamlContent, nil
	}
	var out any
	if err := yaml3.Unmarshal(yamlContent, &out); err != nil {
		return nil, err
	}
	return json.Marshal(out)
}

// JSONToYAML converts json to yaml
func JSONToYAML(jsonContent []byte) ([]byte, error) {
	return yaml.JSONToYAML(jsonContent)
}

func isJSON(str string) bool {
	var js json.RawMessage
	return json.Unmarshal([]byte(str), &js) == nil
}
