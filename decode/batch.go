package decode

import (
	"bytes"
	"errors"

	json "github.com/goccy/go-json"
)

var errNullRecord = errors.New("record is null")

// PositionalBatch is a JSON array whose first element is a metadata string
// followed by records of one type.
//
//	["2025-02-26 23:38:00", {"v":8418,...}, {"v":8419,...}]
type PositionalBatch[T any] struct {
	Metadata string `json:"metadata"`
	Records  []T    `json:"records"`
}

// UnmarshalJSON decodes a positional batch via Batch.
func (p *PositionalBatch[T]) UnmarshalJSON(data []byte) error {
	b, err := Batch[T](data)
	if err != nil {
		return err
	}
	*p = b
	return nil
}

// Batch decodes body as a positional batch.
//
// The first record that fails to decode aborts the whole batch with
// RecordMismatch. Records are never skipped.
func Batch[T any](body []byte) (PositionalBatch[T], error) {
	elems, err := splitArray(body)
	if err != nil {
		return PositionalBatch[T]{}, err
	}
	if len(elems) == 0 {
		return PositionalBatch[T]{}, newDecodeError(EmptyBatch, -1, body, nil)
	}

	var meta string
	if firstByte(elems[0]) != '"' {
		return PositionalBatch[T]{}, newDecodeError(InvalidMetadata, 0, elems[0], nil)
	}
	if err := json.Unmarshal(elems[0], &meta); err != nil {
		return PositionalBatch[T]{}, newDecodeError(InvalidMetadata, 0, elems[0], err)
	}

	records, err := decodeRecords[T](elems, 1)
	if err != nil {
		return PositionalBatch[T]{}, err
	}
	return PositionalBatch[T]{Metadata: meta, Records: records}, nil
}

// List decodes body as a plain JSON array of T, element by element, so that a
// failure names the offending index.
func List[T any](body []byte) ([]T, error) {
	elems, err := splitArray(body)
	if err != nil {
		return nil, err
	}
	return decodeRecords[T](elems, 0)
}

func splitArray(body []byte) ([]json.RawMessage, error) {
	if firstByte(body) != '[' {
		return nil, newDecodeError(SchemaMismatch, -1, body, errors.New("expected JSON array"))
	}
	var elems []json.RawMessage
	if err := json.Unmarshal(body, &elems); err != nil {
		return nil, newDecodeError(SchemaMismatch, -1, body, err)
	}
	return elems, nil
}

func decodeRecords[T any](elems []json.RawMessage, offset int) ([]T, error) {
	records := make([]T, 0, len(elems)-offset)
	for i := offset; i < len(elems); i++ {
		raw := elems[i]
		if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
			return nil, newDecodeError(RecordMismatch, i, raw, errNullRecord)
		}
		var rec T
		if err := unmarshal(raw, &rec); err != nil {
			return nil, newDecodeError(RecordMismatch, i, raw, err)
		}
		records = append(records, rec)
	}
	return records, nil
}
