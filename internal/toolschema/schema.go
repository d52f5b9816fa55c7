// Package toolschema holds the ask_database tool definition: the SQL
// parameter, its worked examples and the catalog of the statistics tables.
package toolschema

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/yubzen/ballpark/internal/providers"
)

//go:embed ask_database.yaml
var defaultAsset []byte

const (
	GroupMain         = "main"
	GroupSupplemental = "supplemental"
)

type Schema struct {
	Version     int       `yaml:"version"`
	Name        string    `yaml:"name"`
	Description string    `yaml:"description"`
	Parameter   Parameter `yaml:"parameter"`
	Pairs       []Example `yaml:"examples"`
	Design      string    `yaml:"design"`
	Tables      []Table   `yaml:"tables"`

	rendered string
}

type Parameter struct {
	Name     string `yaml:"name"`
	Preamble string `yaml:"preamble"`
}

// Example is a worked question and the SQL that answers it.
type Example struct {
	Question string `yaml:"question"`
	Query    string `yaml:"query"`
}

type Table struct {
	Name    string   `yaml:"name"`
	Group   string   `yaml:"group"`
	Summary string   `yaml:"summary"`
	Columns []Column `yaml:"columns"`
}

// Column is written in the asset as a two element list: [name, description].
type Column struct {
	Name        string
	Description string
}

func (c *Column) UnmarshalYAML(node *yaml.Node) error {
	var pair []string
	if err := node.Decode(&pair); err != nil {
		return err
	}
	if len(pair) != 2 {
		return fmt.Errorf("line %d: column needs [name, description], got %d items", node.Line, len(pair))
	}
	c.Name, c.Description = pair[0], pair[1]
	return nil
}

func (c Column) MarshalYAML() (interface{}, error) {
	return []string{c.Name, c.Description}, nil
}

// Default parses the schema compiled into the binary.
func Default() (*Schema, error) {
	return Parse(defaultAsset)
}

// Load parses an override schema file.
func Load(path string) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tool schema %q: %w", path, err)
	}
	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("tool schema %q: %w", path, err)
	}
	return s, nil
}

func Parse(data []byte) (*Schema, error) {
	var s Schema
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode tool schema: %w", err)
	}
	if err := s.validate(); err != nil {
		return nil, err
	}
	s.rendered = s.render()
	return &s, nil
}

func (s *Schema) validate() error {
	var errs []error
	if strings.TrimSpace(s.Name) == "" {
		errs = append(errs, errors.New("name is required"))
	}
	if strings.TrimSpace(s.Parameter.Name) == "" {
		errs = append(errs, errors.New("parameter.name is required"))
	}
	if len(s.Tables) == 0 {
		errs = append(errs, errors.New("at least one table is required"))
	}
	for i, ex := range s.Pairs {
		if strings.TrimSpace(ex.Question) == "" || strings.TrimSpace(ex.Query) == "" {
			errs = append(errs, fmt.Errorf("examples[%d] needs both question and query", i))
		}
	}
	for i, t := range s.Tables {
		if strings.TrimSpace(t.Name) == "" {
			errs = append(errs, fmt.Errorf("tables[%d] has no name", i))
		}
	}
	return errors.Join(errs...)
}

// Current lets a fixed schema stand in wherever a reloadable one is accepted.
func (s *Schema) Current() *Schema {
	return s
}

func (s *Schema) Examples() []Example {
	out := make([]Example, len(s.Pairs))
	copy(out, s.Pairs)
	return out
}

// ParameterDescription is the text the model sees as the query parameter's
// description.
func (s *Schema) ParameterDescription() string {
	return s.rendered
}

func (s *Schema) ProviderTool() providers.Tool {
	return providers.Tool{
		Name:        s.Name,
		Description: s.Description,
		InputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				s.Parameter.Name: map[string]interface{}{
					"type":        "string",
					"description": s.rendered,
				},
			},
			"required": []string{s.Parameter.Name},
		},
	}
}

func (s *Schema) render() string {
	var b strings.Builder

	if p := strings.TrimSpace(s.Parameter.Preamble); p != "" {
		b.WriteString(p)
		b.WriteString("\n\n")
	}

	if len(s.Pairs) > 0 {
		b.WriteString("Here are some sample correct queries in the format user (input, query)\n\n")
		for _, ex := range s.Pairs {
			fmt.Fprintf(&b, "(%q, %q)\n", ex.Question, ex.Query)
		}
		b.WriteString("\n")
	}

	if d := strings.TrimSpace(s.Design); d != "" {
		b.WriteString(d)
		b.WriteString("\n\n")
	}

	writeTableIndex(&b, "The database is comprised of the following main tables:", s.tablesIn(GroupMain))
	writeTableIndex(&b, "It is supplemented by these tables:", s.tablesIn(GroupSupplemental))

	for _, t := range s.Tables {
		b.WriteString(strings.ToUpper(t.Name))
		b.WriteString(" TABLE\n\n")
		width := 14
		for _, c := range t.Columns {
			if len(c.Name) > width {
				width = len(c.Name)
			}
		}
		for _, c := range t.Columns {
			fmt.Fprintf(&b, "%-*s %s\n", width, c.Name, c.Description)
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func (s *Schema) tablesIn(group string) []Table {
	var out []Table
	for _, t := range s.Tables {
		if t.Group == group {
			out = append(out, t)
		}
	}
	return out
}

func writeTableIndex(b *strings.Builder, heading string, tables []Table) {
	if len(tables) == 0 {
		return
	}
	b.WriteString(heading)
	b.WriteString("\n\n")
	for _, t := range tables {
		fmt.Fprintf(b, "  %-22s %s\n", t.Name, t.Summary)
	}
	b.WriteString("\n")
}
