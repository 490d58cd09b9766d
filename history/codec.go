// Package history reads and writes transaction histories as YAML or JSON,
// optionally zstd-compressed, and computes content digests for transactions.
package history

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
	"gopkg.in/yaml.v3"

	"decap/cas"
	"decap/transaction"
)

// Format is a history serialization format.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// compressedSuffix marks a zstd-compressed history file.
const compressedSuffix = ".zst"

// ErrUnknownFormat is returned for a file extension with no known format.
var ErrUnknownFormat = errors.New("unknown history format")

// FormatOf derives the format of a history file from its name.
func FormatOf(path string) (f Format, compressed bool, err error) {
	name := strings.ToLower(path)
	if strings.HasSuffix(name, compressedSuffix) {
		compressed = true
		name = strings.TrimSuffix(name, compressedSuffix)
	}
	switch filepath.Ext(name) {
	case ".yaml", ".yml":
		return FormatYAML, compressed, nil
	case ".json":
		return FormatJSON, compressed, nil
	default:
		return "", false, fmt.Errorf("%w: %s", ErrUnknownFormat, path)
	}
}

// Encode writes txs to w in format f.
func Encode(w io.Writer, txs []*transaction.Transaction, f Format) error {
	file := File{Transactions: make([]Transaction, 0, len(txs))}
	for _, tx := range txs {
		wt, err := FromTransaction(tx)
		if err != nil {
			return err
		}
		file.Transactions = append(file.Transactions, wt)
	}

	switch f {
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(file); err != nil {
			return fmt.Errorf("encoding yaml: %w", err)
		}
		return enc.Close()
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(file); err != nil {
			return fmt.Errorf("encoding json: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrUnknownFormat, f)
	}
}

// Decode reads a history in format f. Unknown fields are rejected.
func Decode(r io.Reader, f Format) ([]*transaction.Transaction, error) {
	var file File
	switch f {
	case FormatYAML:
		dec := yaml.NewDecoder(r)
		dec.KnownFields(true)
		if err := dec.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("decoding yaml: %w", err)
		}
	case FormatJSON:
		dec := json.NewDecoder(r)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("decoding json: %w", err)
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownFormat, f)
	}

	txs := make([]*transaction.Transaction, 0, len(file.Transactions))
	seen := make(map[string]bool, len(file.Transactions))
	for i, wt := range file.Transactions {
		tx, err := wt.ToTransaction()
		if err != nil {
			return nil, fmt.Errorf("transaction %d: %w", i, err)
		}
		if seen[tx.ID()] {
			return nil, fmt.Errorf("transaction %d: duplicate id %s", i, tx.ID())
		}
		seen[tx.ID()] = true
		txs = append(txs, tx)
	}
	return txs, nil
}

// ReadFile reads a history file, decompressing it if its name ends in .zst.
func ReadFile(path string) ([]*transaction.Transaction, error) {
	f, compressed, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening history: %w", err)
	}
	defer file.Close()

	var r io.Reader = file
	if compressed {
		decoder, err := zstd.NewReader(file)
		if err != nil {
			return nil, fmt.Errorf("creating zstd decoder: %w", err)
		}
		defer decoder.Close()
		r = decoder
	}

	txs, err := Decode(r, f)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return txs, nil
}

// WriteFile writes txs to path, compressing them if its name ends in .zst.
func WriteFile(path string, txs []*transaction.Transaction) error {
	f, compressed, err := FormatOf(path)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := Encode(&buf, txs, f); err != nil {
		return err
	}

	data := buf.Bytes()
	if compressed {
		var out bytes.Buffer
		encoder, err := zstd.NewWriter(&out)
		if err != nil {
			return fmt.Errorf("creating zstd encoder: %w", err)
		}
		if _, err := encoder.Write(data); err != nil {
			encoder.Close()
			return fmt.Errorf("compressing: %w", err)
		}
		if err := encoder.Close(); err != nil {
			return fmt.Errorf("closing encoder: %w", err)
		}
		data = out.Bytes()
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing history: %w", err)
	}
	return nil
}

// Marshal returns the canonical JSON form of tx.
func Marshal(tx *transaction.Transaction) ([]byte, error) {
	wt, err := FromTransaction(tx)
	if err != nil {
		return nil, err
	}
	return cas.CanonicalJSON(wt)
}

// Unmarshal parses a transaction produced by Marshal.
func Unmarshal(data []byte) (*transaction.Transaction, error) {
	var wt Transaction
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&wt); err != nil {
		return nil, fmt.Errorf("decoding transaction: %w", err)
	}
	return wt.ToTransaction()
}

// Digest returns the content digest of tx. Transactions with equal id,
// date, author and edits have equal digests.
func Digest(tx *transaction.Transaction) (string, error) {
	wt, err := FromTransaction(tx)
	if err != nil {
		return "", err
	}
	return cas.Digest("Transaction", wt)
}
