// Package sources loads registry seed files and upserts them into the store.
package sources

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"horse.fit/newsignal/internal/db"
)

//go:embed sources.schema.json
var sourcesSchemaJSON string

type seedFile struct {
	Sources []seedEntry `json:"sources"`
}

type seedEntry struct {
	Name     string `json:"name"`
	URL      string `json:"url"`
	Tier     int    `json:"tier"`
	Category string `json:"category"`
	Active   *bool  `json:"active"`
}

var (
	compileOnce       sync.Once
	compiledSchema    *jsonschema.Schema
	compiledSchemaErr error
)

// ParseFile reads a YAML (or JSON) seed file.
func ParseFile(path string) ([]db.SourceSeed, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file %s: %w", path, err)
	}
	seeds, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("seed file %s: %w", path, err)
	}
	return seeds, nil
}

// Parse validates raw against the embedded schema and returns the seeds.
// Sources default to active; the category defaults to "general".
func Parse(raw []byte) ([]db.SourceSeed, error) {
	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	if doc == nil {
		return nil, fmt.Errorf("seed file is empty")
	}

	// Round-trip through JSON so the validator sees JSON-shaped values.
	encoded, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("re-encode seed document: %w", err)
	}
	value, err := decodeStrictJSON(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode seed JSON: %w", err)
	}

	schema, err := loadSchema()
	if err != nil {
		return nil, fmt.Errorf("load schema: %w", err)
	}
	if err := schema.Validate(value); err != nil {
		return nil, fmt.Errorf("schema validation failed: %w", err)
	}

	var file seedFile
	if err := json.Unmarshal(encoded, &file); err != nil {
		return nil, fmt.Errorf("unmarshal seed document: %w", err)
	}

	seen := make(map[string]int, len(file.Sources))
	seeds := make([]db.SourceSeed, 0, len(file.Sources))
	for i, entry := range file.Sources {
		name := strings.TrimSpace(entry.Name)
		if name == "" {
			return nil, fmt.Errorf("sources[%d].name must not be blank", i)
		}
		url := strings.TrimSpace(entry.URL)
		if prev, dup := seen[url]; dup {
			return nil, fmt.Errorf("sources[%d].url duplicates sources[%d]: %s", i, prev, url)
		}
		seen[url] = i

		category := strings.ToLower(strings.TrimSpace(entry.Category))
		if category == "" {
			category = "general"
		}
		active := true
		if entry.Active != nil {
			active = *entry.Active
		}
		seeds = append(seeds, db.SourceSeed{
			Name:     name,
			URL:      url,
			Tier:     entry.Tier,
			Category: category,
			Active:   active,
		})
	}
	return seeds, nil
}

type Upserter interface {
	UpsertSource(ctx context.Context, seed db.SourceSeed, now time.Time) (bool, error)
}

type ImportResult struct {
	Inserted int
	Updated  int
}

// Import upserts every seed. It stops at the first store error; seeds already
// written stay written and a rerun is safe.
func Import(ctx context.Context, store Upserter, seeds []db.SourceSeed, now time.Time) (ImportResult, error) {
	var res ImportResult
	for _, seed := range seeds {
		inserted, err := store.UpsertSource(ctx, seed, now)
		if err != nil {
			return res, err
		}
		if inserted {
			res.Inserted++
		} else {
			res.Updated++
		}
	}
	return res, nil
}

func loadSchema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.Draft = jsonschema.Draft2020
		compiler.AssertFormat = true

		if err := compiler.AddResource("sources.schema.json", strings.NewReader(sourcesSchemaJSON)); err != nil {
			compiledSchemaErr = fmt.Errorf("add schema resource: %w", err)
			return
		}
		schema, err := compiler.Compile("sources.schema.json")
		if err != nil {
			compiledSchemaErr = fmt.Errorf("compile schema: %w", err)
			return
		}
		compiledSchema = schema
	})

	if compiledSchemaErr != nil {
		return nil, compiledSchemaErr
	}
	if compiledSchema == nil {
		return nil, fmt.Errorf("schema not initialized")
	}
	return compiledSchema, nil
}

func decodeStrictJSON(raw []byte) (any, error) {
	decoder := json.NewDecoder(bytes.NewReader(bytes.TrimSpace(raw)))
	decoder.UseNumber()

	var value any
	if err := decoder.Decode(&value); err != nil {
		return nil, err
	}
	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return nil, fmt.Errorf("document contains trailing content")
	}
	return value, nil
}
