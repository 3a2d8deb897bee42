package scenario

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"gopkg.in/yaml.v3"
)

//go:embed scenario.schema.json
var schemaJSON string

// printer formats schema validation messages.
var printer = message.NewPrinter(language.English)

var schema = mustCompileSchema(schemaJSON, "scenario.schema.json")

func mustCompileSchema(raw, name string) *jsonschema.Schema {
	var doc any
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		panic(fmt.Sprintf("failed to parse embedded %s: %v", name, err))
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, doc); err != nil {
		panic(fmt.Sprintf("failed to add %s resource: %v", name, err))
	}

	sch, err := compiler.Compile(name)
	if err != nil {
		panic(fmt.Sprintf("failed to compile %s: %v", name, err))
	}
	return sch
}

// ValidationError lists the schema problems of a scenario file.
type ValidationError struct {
	File     string
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: invalid scenario:\n  %s", e.File, strings.Join(e.Problems, "\n  "))
}

// ValidateBytes checks raw YAML against the scenario schema and returns
// one message per problem, each prefixed with its instance location.
func ValidateBytes(data []byte) []string {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return []string{fmt.Sprintf("YAML parse error: %v", err)}
	}
	if doc == nil {
		return []string{"/: empty document"}
	}

	err := schema.Validate(doc)
	if err == nil {
		return nil
	}
	ve, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return []string{fmt.Sprintf("schema: %v", err)}
	}
	var problems []string
	collectProblems(ve, &problems)
	return problems
}

func collectProblems(ve *jsonschema.ValidationError, problems *[]string) {
	if len(ve.Causes) == 0 {
		loc := "/" + strings.Join(ve.InstanceLocation, "/")
		*problems = append(*problems, fmt.Sprintf("%s: %s", loc, ve.ErrorKind.LocalizedString(printer)))
		return
	}
	for _, c := range ve.Causes {
		collectProblems(c, problems)
	}
}
