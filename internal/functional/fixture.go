package functional

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed fixtures/default.json fixtures/fixture.schema.json
var fixtureFS embed.FS

const (
	defaultFixturePath = "fixtures/default.json"
	fixtureSchemaPath  = "fixtures/fixture.schema.json"
	fixtureSchemaURL   = "fixture.schema.json"
)

// DefaultSecondUserItem is what the second user of the isolation scenario adds
// when the fixture does not say.
const DefaultSecondUserItem = "Buy Milk"

// Fixture is the sample to-do list the scenarios type in.
type Fixture struct {
	Name           string   `json:"name,omitempty"`
	Items          []string `json:"items"`
	SecondUserItem string   `json:"second_user_item,omitempty"`
}

// DefaultFixture returns the embedded sample list.
func DefaultFixture() (Fixture, error) {
	data, err := fixtureFS.ReadFile(defaultFixturePath)
	if err != nil {
		return Fixture{}, err
	}
	return ParseFixture(data)
}

// LoadFixture reads and validates a fixture file. An empty path selects the
// embedded default.
func LoadFixture(path string) (Fixture, error) {
	if path == "" {
		return DefaultFixture()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Fixture{}, fmt.Errorf("read fixture: %w", err)
	}
	f, err := ParseFixture(data)
	if err != nil {
		return Fixture{}, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// ParseFixture validates data against the fixture schema and decodes it.
func ParseFixture(data []byte) (Fixture, error) {
	schema, err := compileFixtureSchema()
	if err != nil {
		return Fixture{}, err
	}

	var doc interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return Fixture{}, fmt.Errorf("invalid fixture json: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return Fixture{}, schemaError(err)
	}

	var f Fixture
	if err := json.Unmarshal(data, &f); err != nil {
		return Fixture{}, fmt.Errorf("decode fixture: %w", err)
	}
	if f.SecondUserItem == "" {
		f.SecondUserItem = DefaultSecondUserItem
	}
	if err := f.checkDistinct(); err != nil {
		return Fixture{}, err
	}
	return f, nil
}

// checkDistinct rejects fixtures where the second user's item and a first
// user's item contain one another.
func (f Fixture) checkDistinct() error {
	second := strings.TrimSpace(f.SecondUserItem)
	for _, item := range f.Items {
		item = strings.TrimSpace(item)
		if strings.Contains(second, item) || strings.Contains(item, second) {
			return fmt.Errorf("invalid fixture: item %q overlaps second_user_item %q", item, f.SecondUserItem)
		}
	}
	return nil
}

func compileFixtureSchema() (*jsonschema.Schema, error) {
	raw, err := fixtureFS.ReadFile(fixtureSchemaPath)
	if err != nil {
		return nil, err
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(fixtureSchemaURL, bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("load fixture schema: %w", err)
	}
	schema, err := compiler.Compile(fixtureSchemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile fixture schema: %w", err)
	}
	return schema, nil
}

// schemaError flattens a validation error tree into one message per leaf.
func schemaError(err error) error {
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return err
	}
	var msgs []string
	collectSchemaErrors(ve, &msgs)
	return fmt.Errorf("invalid fixture: %s", strings.Join(msgs, "; "))
}

func collectSchemaErrors(err *jsonschema.ValidationError, msgs *[]string) {
	if len(err.Causes) == 0 {
		loc := err.InstanceLocation
		if loc == "" {
			loc = "/"
		}
		*msgs = append(*msgs, loc+": "+err.Message)
		return
	}
	for _, cause := range err.Causes {
		collectSchemaErrors(cause, msgs)
	}
}
