// Package qrcode builds, parses and renders the payload students scan to check in.
package qrcode

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	goqrcode "github.com/skip2/go-qrcode"
)

const (
	schemaURL   = "attendance://qr-payload.schema.json"
	maxRawBytes = 4096
	minSize     = 64
	maxSize     = 2048
)

// ErrInvalidPayload is returned when a scanned string is not a valid session payload.
var ErrInvalidPayload = errors.New("invalid qr payload")

//go:embed payload.schema.json
var schemaSource string

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

// Payload is the JSON document encoded in a session QR code.
type Payload struct {
	SessionID uint   `json:"sessionId"`
	Name      string `json:"name"`
	Date      string `json:"date"`
	Time      string `json:"time"`
	Duration  int    `json:"duration"`
}

func compiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource(schemaURL, strings.NewReader(schemaSource)); err != nil {
			schemaErr = err
			return
		}
		schema, schemaErr = compiler.Compile(schemaURL)
	})
	return schema, schemaErr
}

// Encode serialises the payload to the string placed in the QR code.
func Encode(payload Payload) (string, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	if err := validate(raw); err != nil {
		return "", err
	}
	return string(raw), nil
}

// Decode parses a scanned string and validates it against the payload schema.
func Decode(raw string) (Payload, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" || len(trimmed) > maxRawBytes {
		return Payload{}, ErrInvalidPayload
	}

	if err := validate([]byte(trimmed)); err != nil {
		return Payload{}, err
	}

	var payload Payload
	if err := json.Unmarshal([]byte(trimmed), &payload); err != nil {
		return Payload{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return payload, nil
}

// PNG renders the payload as a PNG image of size x size pixels.
func PNG(payload Payload, size int) ([]byte, error) {
	content, err := Encode(payload)
	if err != nil {
		return nil, err
	}

	if size < minSize {
		size = minSize
	}
	if size > maxSize {
		size = maxSize
	}

	return goqrcode.Encode(content, goqrcode.Medium, size)
}

func validate(raw []byte) error {
	compiled, err := compiledSchema()
	if err != nil {
		return fmt.Errorf("compile qr payload schema: %w", err)
	}

	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()
	var document interface{}
	if err := decoder.Decode(&document); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	if err := compiled.Validate(document); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return nil
}
