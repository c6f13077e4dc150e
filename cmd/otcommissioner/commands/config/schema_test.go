package config

import (
	"bytes"
	"encoding/json"
	"os"
	"testing"
)

func TestRunConfigSchemaPrintsValidJSON(t *testing.T) {
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe() error = %v", err)
	}

	origStdout := os.Stdout
	os.Stdout = w
	defer func() { os.Stdout = origStdout }()

	errCh := make(chan error, 1)
	go func() {
		errCh <- runConfigSchema(schemaCmd, nil)
		w.Close()
	}()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(r); err != nil {
		t.Fatalf("reading piped output: %v", err)
	}
	if err := <-errCh; err != nil {
		t.Fatalf("runConfigSchema() error = %v", err)
	}

	var schema map[string]any
	if err := json.Unmarshal(buf.Bytes(), &schema); err != nil {
		t.Fatalf("schema output is not valid JSON: %v\noutput: %s", err, buf.String())
	}
}
