package memory

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/lazysync/internal/entity"
)

// Dataset is the YAML document a provider serves.
//
//	name: demo
//	date_layout: "2006-01-02"
//	teams:
//	  - {id: 1, name: Core, description: Engine team}
//	users:
//	  - {id: 10, name: Ada, email: ada@example.com, team: 1, joined: 2024-01-02}
//	posts:
//	  - {id: 100, title: Hello, author: 10, mentions: [11], published: 2024-02-01T09:00:00Z}
type Dataset struct {
	Name       string           `yaml:"name"`
	DateLayout string           `yaml:"date_layout"`
	Teams      []map[string]any `yaml:"teams"`
	Users      []map[string]any `yaml:"users"`
	Posts      []map[string]any `yaml:"posts"`
}

// ParseDataset decodes a YAML dataset.
func ParseDataset(data []byte) (*Dataset, error) {
	var ds Dataset
	if err := yaml.Unmarshal(data, &ds); err != nil {
		return nil, fmt.Errorf("parse dataset: %w", err)
	}
	if ds.Name == "" {
		return nil, fmt.Errorf("parse dataset: name is required")
	}
	return &ds, nil
}

// LoadDataset reads and decodes a YAML dataset file.
func LoadDataset(path string) (*Dataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read dataset: %w", err)
	}
	return ParseDataset(data)
}

// pipelines map raw dataset rows to entity field names.
var pipelines = map[*entity.Type]entity.Pipeline{
	TeamType: {
		entity.RenameKeys(map[string]string{
			"id": entity.FieldID, "name": "Name", "description": "Description",
		}),
		requireID(),
	},
	UserType: {
		entity.RenameKeys(map[string]string{
			"id": entity.FieldID, "name": "Name", "email": "Email",
			"secret": "Secret", "team": "Team", "joined": "Joined",
		}),
		requireID(),
		parseTimes("Joined"),
	},
	PostType: {
		entity.RenameKeys(map[string]string{
			"id": entity.FieldID, "title": "Title", "body": "Body",
			"author": "Author", "mentions": "Mentions", "published": "Published",
		}),
		requireID(),
		parseTimes("Published"),
	},
}

func requireID() entity.Transformer {
	return entity.TransformFunc(func(in map[string]any) (map[string]any, error) {
		id, err := entity.IDOf(in[entity.FieldID])
		if err != nil {
			return nil, err
		}
		if id.IsZero() {
			return nil, fmt.Errorf("row has no id")
		}
		in[entity.FieldID] = id
		return in, nil
	})
}

// timeLayouts are tried in order for timestamp strings.
var timeLayouts = []string{time.RFC3339Nano, time.DateTime, time.DateOnly}

func parseTimes(fields ...string) entity.Transformer {
	return entity.TransformFunc(func(in map[string]any) (map[string]any, error) {
		for _, f := range fields {
			switch v := in[f].(type) {
			case nil, time.Time:
			case string:
				t, err := parseTime(v)
				if err != nil {
					return nil, fmt.Errorf("field %s: %w", f, err)
				}
				in[f] = t
			default:
				return nil, fmt.Errorf("field %s: %T is not a timestamp", f, v)
			}
		}
		return in, nil
	})
}

func parseTime(s string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// normalize runs every raw row through its type's pipeline and returns the
// rows per type, sorted by id.
func (ds *Dataset) normalize() (map[*entity.Type][]map[string]any, error) {
	out := make(map[*entity.Type][]map[string]any, 3)
	for t, raw := range map[*entity.Type][]map[string]any{
		TeamType: ds.Teams,
		UserType: ds.Users,
		PostType: ds.Posts,
	} {
		rows := make([]map[string]any, 0, len(raw))
		seen := make(map[string]bool, len(raw))
		for i, r := range raw {
			row, err := pipelines[t].Transform(copyRow(r))
			if err != nil {
				return nil, fmt.Errorf("%s[%d]: %w", strings.ToLower(t.Plural), i, err)
			}
			id := row[entity.FieldID].(entity.ID)
			if seen[id.String()] {
				return nil, fmt.Errorf("%s[%d]: duplicate id %s", strings.ToLower(t.Plural), i, id)
			}
			seen[id.String()] = true
			rows = append(rows, row)
		}
		sortRows(rows)
		out[t] = rows
	}
	return out, nil
}

func copyRow(r map[string]any) map[string]any {
	out := make(map[string]any, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

func sortRows(rows []map[string]any) {
	sort.SliceStable(rows, func(i, j int) bool {
		a := rows[i][entity.FieldID].(entity.ID)
		b := rows[j][entity.FieldID].(entity.ID)
		if a.IsInt() && b.IsInt() {
			return a.Int() < b.Int()
		}
		return a.String() < b.String()
	})
}
