package decode

import (
	"strings"
	"testing"

	"github.com/kroma-labs/transit-go/clienterr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type record struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type optional struct {
	Note string `json:"note"`
}

const errorBody = `{"info":"X","message":"Y","stackTrace":"Z"}`

func TestUnion(t *testing.T) {
	t.Run("given success body, then matches success", func(t *testing.T) {
		env, err := Union[[]record]([]byte(`[{"id":1,"name":"a"},{"id":2,"name":"b"}]`))
		require.NoError(t, err)

		assert.Equal(t, ShapeSuccess, env.Matched())
		assert.Nil(t, env.Failure)
		assert.Equal(t, []record{{ID: 1, Name: "a"}, {ID: 2, Name: "b"}}, env.Value)

		value, err := env.Result()
		require.NoError(t, err)
		assert.Len(t, value, 2)
	})

	t.Run("given error body, then matches failure", func(t *testing.T) {
		env, err := Union[[]record]([]byte(errorBody))
		require.NoError(t, err)

		assert.Equal(t, ShapeFailure, env.Matched())
		assert.Equal(t, &UpstreamError{Info: "X", Message: "Y", StackTrace: "Z"}, env.Failure)

		_, err = env.Result()
		require.Error(t, err)
		assert.True(t, clienterr.IsUpstream(err))
		assert.Equal(t, "X: Y\nStack trace: Z", err.Error())
	})

	t.Run("given error body and lenient success type, then failure wins", func(t *testing.T) {
		env, err := Union[optional]([]byte(errorBody))
		require.NoError(t, err)

		assert.Equal(t, ShapeFailure, env.Matched())
		assert.Equal(t, "Y", env.Failure.Message)
	})

	t.Run("given null body, then schema mismatch", func(t *testing.T) {
		for _, body := range []string{"null", " null\n"} {
			_, err := Union[[]record]([]byte(body))

			var de *DecodeError
			require.ErrorAs(t, err, &de, body)
			assert.Equal(t, SchemaMismatch, de.Reason, body)
			assert.True(t, clienterr.IsDecode(err))
		}
	})

	t.Run("given null body and pointer type, then schema mismatch", func(t *testing.T) {
		_, err := Union[*record]([]byte("null"))

		var de *DecodeError
		require.ErrorAs(t, err, &de)
		assert.Equal(t, SchemaMismatch, de.Reason)
	})

	t.Run("given object with only info and message, then success type is kept", func(t *testing.T) {
		env, err := Union[optional]([]byte(`{"info":"X","message":"Y"}`))
		require.NoError(t, err)

		assert.Equal(t, ShapeSuccess, env.Matched())
	})

	t.Run("given error body without stack trace, then still matches failure", func(t *testing.T) {
		env, err := Union[[]record]([]byte(`{"info":"X","message":"Y"}`))
		require.NoError(t, err)

		assert.Equal(t, ShapeFailure, env.Matched())
		assert.Empty(t, env.Failure.StackTrace)
	})

	t.Run("given body matching neither shape, then schema mismatch", func(t *testing.T) {
		_, err := Union[[]record]([]byte(`{"unexpected":true}`))
		require.Error(t, err)

		var de *DecodeError
		require.ErrorAs(t, err, &de)
		assert.Equal(t, SchemaMismatch, de.Reason)
		assert.Equal(t, `{"unexpected":true}`, de.Snippet)
		assert.True(t, clienterr.IsDecode(err))
	})

	t.Run("given batch with bad record, then record mismatch surfaces", func(t *testing.T) {
		body := `["ts", {"id":1,"name":"a"}, {"id":"x"}]`
		_, err := Union[PositionalBatch[record]]([]byte(body))
		require.Error(t, err)

		var de *DecodeError
		require.ErrorAs(t, err, &de)
		assert.Equal(t, RecordMismatch, de.Reason)
		assert.Equal(t, 2, de.Index)
	})

	t.Run("given batch success type and error body, then matches failure", func(t *testing.T) {
		env, err := Union[PositionalBatch[record]]([]byte(errorBody))
		require.NoError(t, err)

		assert.Equal(t, ShapeFailure, env.Matched())
	})
}

func TestUnion_SnippetIsBounded(t *testing.T) {
	body := `"` + strings.Repeat("ż", 400) + `"`

	_, err := Union[[]record]([]byte(body))

	var de *DecodeError
	require.ErrorAs(t, err, &de)
	assert.LessOrEqual(t, len(de.Snippet), SnippetLimit)
	assert.True(t, strings.HasPrefix(de.Snippet, `"ż`))
}

func TestBatch(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantErr    bool
		wantReason Reason
		wantIndex  int
		wantMeta   string
		wantRecs   []record
	}{
		{
			name:     "given metadata and two records, then decodes in order",
			body:     `["2025-02-26T23:38:00", {"id":1,"name":"a"}, {"id":2,"name":"b"}]`,
			wantMeta: "2025-02-26T23:38:00",
			wantRecs: []record{{ID: 1, Name: "a"}, {ID: 2, Name: "b"}},
		},
		{
			name:     "given metadata only, then empty records",
			body:     `["2025-02-26T23:38:00"]`,
			wantMeta: "2025-02-26T23:38:00",
			wantRecs: []record{},
		},
		{
			name:       "given empty array, then empty batch",
			body:       `[]`,
			wantErr:    true,
			wantReason: EmptyBatch,
			wantIndex:  -1,
		},
		{
			name:       "given numeric metadata, then invalid metadata",
			body:       `[42, {"id":1,"name":"a"}]`,
			wantErr:    true,
			wantReason: InvalidMetadata,
			wantIndex:  0,
		},
		{
			name:       "given null metadata, then invalid metadata",
			body:       `[null, {"id":1,"name":"a"}]`,
			wantErr:    true,
			wantReason: InvalidMetadata,
			wantIndex:  0,
		},
		{
			name:       "given invalid second record, then record mismatch at index 2",
			body:       `["ts", {"id":1,"name":"a"}, {"id":"not-a-number"}]`,
			wantErr:    true,
			wantReason: RecordMismatch,
			wantIndex:  2,
		},
		{
			name:       "given null record, then record mismatch",
			body:       `["ts", null]`,
			wantErr:    true,
			wantReason: RecordMismatch,
			wantIndex:  1,
		},
		{
			name:       "given object body, then schema mismatch",
			body:       `{"id":1}`,
			wantErr:    true,
			wantReason: SchemaMismatch,
			wantIndex:  -1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Batch[record]([]byte(tt.body))

			if tt.wantErr {
				var de *DecodeError
				require.ErrorAs(t, err, &de)
				assert.Equal(t, tt.wantReason, de.Reason)
				assert.Equal(t, tt.wantIndex, de.Index)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.wantMeta, got.Metadata)
			assert.Equal(t, tt.wantRecs, got.Records)
		})
	}
}

func TestList(t *testing.T) {
	t.Run("given plain array, then decodes all records", func(t *testing.T) {
		got, err := List[record]([]byte(`[{"id":1,"name":"a"},{"id":2,"name":"b"}]`))
		require.NoError(t, err)
		assert.Equal(t, []record{{ID: 1, Name: "a"}, {ID: 2, Name: "b"}}, got)
	})

	t.Run("given empty array, then empty slice", func(t *testing.T) {
		got, err := List[record]([]byte(`[]`))
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("given bad first record, then record mismatch at index 0", func(t *testing.T) {
		_, err := List[record]([]byte(`[{"id":"x"}]`))

		var de *DecodeError
		require.ErrorAs(t, err, &de)
		assert.Equal(t, RecordMismatch, de.Reason)
		assert.Equal(t, 0, de.Index)
	})

	t.Run("given html error page, then schema mismatch", func(t *testing.T) {
		_, err := List[record]([]byte(`<html>502 Bad Gateway</html>`))

		var de *DecodeError
		require.ErrorAs(t, err, &de)
		assert.Equal(t, SchemaMismatch, de.Reason)
		assert.Contains(t, de.Snippet, "502 Bad Gateway")
	})
}

func TestDecoders_Idempotent(t *testing.T) {
	batchBody := []byte(`["2025-02-26T23:38:00", {"id":1,"name":"a"}, {"id":2,"name":"b"}]`)
	first, err := Batch[record](batchBody)
	require.NoError(t, err)
	second, err := Batch[record](batchBody)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	unionBody := []byte(errorBody)
	u1, err := Union[[]record](unionBody)
	require.NoError(t, err)
	u2, err := Union[[]record](unionBody)
	require.NoError(t, err)
	assert.Equal(t, u1, u2)
}

func TestDecodeError_Message(t *testing.T) {
	err := &DecodeError{Reason: RecordMismatch, Index: 2, Snippet: `{"id":"x"}`}

	assert.Equal(t, `decode: record mismatch at index 2 (body: "{\"id\":\"x\"}")`, err.Error())
}
