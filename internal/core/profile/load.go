// If you are AI: This file loads a profile table from a headerless CSV file.
// Columns map positionally: bandwidth, configuration fields in declaration order, accuracy.

package profile

import (
	"encoding"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"reflect"
	"strconv"

	"go.uber.org/zap"
)

// textUnmarshalerType is used to detect payload fields that parse themselves.
var textUnmarshalerType = reflect.TypeOf((*encoding.TextUnmarshaler)(nil)).Elem()

// Load reads a profile table from the CSV file at path.
// It fails on the first missing file or unparsable row; there is no partial table.
// Rows are taken in file order and are not sorted or checked for ordering.
func Load[C any](path string, logger *zap.Logger) (*Table[C], error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("no profile file %q: %w", path, err)
	}
	defer f.Close()

	records, err := ReadRecords[C](f)
	if err != nil {
		return nil, fmt.Errorf("profile %q: %w", path, err)
	}

	table := NewTable(records, logger)
	table.logger.Info("profile loaded",
		zap.String("path", path),
		zap.Int("levels", table.Len()),
	)
	return table, nil
}

// ReadRecords parses headerless CSV rows into records.
func ReadRecords[C any](r io.Reader) ([]Record[C], error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1 // Column count is checked per row for a better message
	reader.TrimLeadingSpace = true

	var records []Record[C]
	for row := 1; ; row++ {
		fields, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse the record: %w", err)
		}

		rec, err := parseRecord[C](fields)
		if err != nil {
			return nil, fmt.Errorf("failed to parse the record at row %d: %w", row, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

// parseRecord maps one CSV row onto a Record.
func parseRecord[C any](fields []string) (Record[C], error) {
	var rec Record[C]

	target := reflect.ValueOf(&rec.Config).Elem()
	slots := payloadSlots(target)

	want := len(slots) + 2
	if len(fields) != want {
		return rec, fmt.Errorf("expected %d columns, got %d", want, len(fields))
	}

	bw, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return rec, fmt.Errorf("bandwidth: %w", err)
	}
	rec.Bandwidth = bw

	for i, slot := range slots {
		if err := setField(slot, fields[i+1]); err != nil {
			return rec, fmt.Errorf("column %d: %w", i+2, err)
		}
	}

	acc, err := strconv.ParseFloat(fields[len(fields)-1], 64)
	if err != nil {
		return rec, fmt.Errorf("accuracy: %w", err)
	}
	rec.Accuracy = acc

	return rec, nil
}

// payloadSlots returns the settable values a row fills, in column order.
// Structs contribute their exported fields (fields tagged `csv:"-"` are skipped);
// any other type, or a type that unmarshals text, is a single column.
func payloadSlots(v reflect.Value) []reflect.Value {
	if v.Kind() != reflect.Struct || v.Addr().Type().Implements(textUnmarshalerType) {
		return []reflect.Value{v}
	}

	t := v.Type()
	slots := make([]reflect.Value, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.IsExported() || sf.Tag.Get("csv") == "-" {
			continue
		}
		slots = append(slots, v.Field(i))
	}
	return slots
}

// setField parses s into v according to v's kind.
func setField(v reflect.Value, s string) error {
	if v.CanAddr() && v.Addr().Type().Implements(textUnmarshalerType) {
		return v.Addr().Interface().(encoding.TextUnmarshaler).UnmarshalText([]byte(s))
	}

	switch v.Kind() {
	case reflect.String:
		v.SetString(s)
	case reflect.Bool:
		b, err := strconv.ParseBool(s)
		if err != nil {
			return err
		}
		v.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(s, 10, v.Type().Bits())
		if err != nil {
			return err
		}
		v.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := strconv.ParseUint(s, 10, v.Type().Bits())
		if err != nil {
			return err
		}
		v.SetUint(n)
	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(s, v.Type().Bits())
		if err != nil {
			return err
		}
		v.SetFloat(f)
	default:
		return fmt.Errorf("unsupported field type %s", v.Type())
	}
	return nil
}

// CheckOrder reports the first record whose bandwidth is lower than its predecessor's,
// or a NaN bandwidth. Load does not call it; configuration validation does.
func CheckOrder[C any](records []Record[C]) error {
	for i, r := range records {
		if math.IsNaN(r.Bandwidth) {
			return fmt.Errorf("level %d: bandwidth is NaN", i)
		}
		if i > 0 && r.Bandwidth < records[i-1].Bandwidth {
			return fmt.Errorf("level %d: bandwidth %g below level %d (%g)", i, r.Bandwidth, i-1, records[i-1].Bandwidth)
		}
	}
	return nil
}
