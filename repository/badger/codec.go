package badger

import (
	"bytes"

	"github.com/vmihailenco/msgpack/v5"
)

// encodeRow encodes the row with the sorted map keys, so that equal rows have equal encodings.
func encodeRow(row map[string]interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetSortMapKeys(true)
	if err := enc.Encode(row); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeRow(data []byte) (map[string]interface{}, error) {
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	dec.UseLooseInterfaceDecoding(true)
	var row map[string]interface{}
	if err := dec.Decode(&row); err != nil {
		return nil, err
	}
	return row, nil
}
