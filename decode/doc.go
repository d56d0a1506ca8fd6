// Package decode interprets the non-uniform JSON bodies returned by the
// transit upstreams.
//
// # Union bodies
//
// Some endpoints return either the success payload or an error object with
// the same HTTP status. Union tries the success type first and falls back to
// the error shape:
//
//	env, err := decode.Union[[]mpk.BusStop](body)
//	if err != nil {
//	    return err // *DecodeError
//	}
//	stops, err := env.Result() // *UpstreamError on failure
//
// # Positional batches
//
// The positions endpoint returns an array whose first element is a timestamp
// and whose remaining elements are records:
//
//	batch, err := decode.Batch[mpk.Bus](body)
//	fmt.Println(batch.Metadata, len(batch.Records))
//
// PositionalBatch implements json.Unmarshaler, so it can also be the success
// type of a Union.
//
// # Plain arrays
//
// List decodes a plain array element by element and reports the index of the
// first record that fails.
//
// All decoders are pure functions of their input.
package decode
