// SPDX-License-Identifier: Apache-2.0

package main

import (
	"flag"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// configTemplate mirrors config.Config with the defaults spelled out, so
// the generated file documents every knob.
type configTemplate struct {
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
	Telemetry struct {
		Exporter     string `yaml:"exporter"`
		OTLPEndpoint string `yaml:"otlp_endpoint"`
		OTLPInsecure bool   `yaml:"otlp_insecure"`
	} `yaml:"telemetry"`
	Qdrant struct {
		URL        string `yaml:"url"`
		APIKey     string `yaml:"api_key"`
		Collection string `yaml:"collection"`
		UseTLS     bool   `yaml:"use_tls"`
		Timeout    string `yaml:"timeout"`
	} `yaml:"qdrant"`
	Embedder struct {
		Provider   string `yaml:"provider"`
		BaseURL    string `yaml:"base_url"`
		DenseModel string `yaml:"dense_model"`
		LateModel  string `yaml:"late_model"`
		Dimension  int    `yaml:"dimension"`
		Timeout    string `yaml:"timeout"`
	} `yaml:"embedder"`
	Ingest struct {
		Workers   int `yaml:"workers"`
		BatchSize int `yaml:"batch_size"`
	} `yaml:"ingest"`
	Catalog struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"catalog"`
}

func defaultTemplate() configTemplate {
	var t configTemplate
	t.Log.Level = "info"
	t.Log.Format = "text"
	t.Telemetry.Exporter = "none"
	t.Telemetry.OTLPInsecure = true
	t.Qdrant.URL = "localhost:6334"
	t.Qdrant.Collection = "bestrag"
	t.Qdrant.Timeout = "30s"
	t.Embedder.Provider = "fastembed"
	t.Embedder.BaseURL = "http://localhost:8000"
	t.Embedder.DenseModel = "BAAI/bge-small-en-v1.5"
	t.Embedder.LateModel = "colbert-ir/colbertv2.0"
	t.Embedder.Dimension = 384
	t.Embedder.Timeout = "60s"
	t.Ingest.Workers = 4
	t.Ingest.BatchSize = 32
	t.Catalog.Enabled = false
	t.Catalog.Path = "bestrag-catalog.db"
	return t
}

// sectionComments annotate the generated YAML so each block explains
// itself. Keys without an entry are emitted bare.
var sectionComments = map[string]string{
	"log":       "level: debug, info, warn, error; format: text or json",
	"telemetry": "exporter: none, stdout, or otlp (otlp_endpoint required for otlp)",
	"qdrant":    "gRPC endpoint of the Qdrant server; api_key can also come from BESTRAG_QDRANT_API_KEY",
	"embedder":  "provider: fastembed or ollama; dimension must match the dense model output size",
	"ingest":    "workers: concurrent per-page embedding calls; batch_size: points per upsert",
	"catalog":   "optional SQLite ledger of ingestion runs, shown by 'bestrag history'",
}

// renderTemplate marshals the defaults with a head comment per section.
func renderTemplate() ([]byte, error) {
	var root yaml.Node
	if err := root.Encode(defaultTemplate()); err != nil {
		return nil, err
	}
	// A mapping node stores keys and values interleaved.
	for i := 0; i+1 < len(root.Content); i += 2 {
		key := root.Content[i]
		if comment, ok := sectionComments[key.Value]; ok {
			key.HeadComment = comment
		}
	}
	return yaml.Marshal(&root)
}

func runInit(global globalFlags, args []string) error {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	out := fs.String("out", "bestrag.yaml", "Output path for the config file")
	overwrite := fs.Bool("overwrite", false, "Overwrite an existing file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if _, err := os.Stat(*out); err == nil && !*overwrite {
		return NewInvalidArgumentError("out", fmt.Sprintf("%s already exists; use --overwrite to replace it", *out))
	}

	payload, err := renderTemplate()
	if err != nil {
		return err
	}
	if err := os.WriteFile(*out, payload, 0o644); err != nil {
		return err
	}

	fmt.Printf("wrote %s\n", *out)
	fmt.Println()
	fmt.Println("Next steps:")
	fmt.Printf("  edit %s (qdrant.url, embedder.base_url)\n", *out)
	fmt.Printf("  bestrag --config %s ingest document.pdf\n", *out)
	return nil
}
