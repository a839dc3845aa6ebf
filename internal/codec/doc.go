// Package codec turns queue values into payload bytes and back.
//
// The queue engine never looks inside a payload; it only calls Marshal on
// enqueue and Unmarshal when a caller decodes an item. Available codecs:
//
//   - Gob (default) for arbitrary Go values
//   - JSON via json-iterator
//   - Msgpack via ugorji/go/codec
//   - Proto for protobuf messages
//
// Compress layers snappy or lz4 block compression over any codec.
package codec
