package prolly

import "encoding/json"

// rowPair mirrors a single key/value entry for JSON row encoding.
type rowPair struct {
	Key   []byte `json:"key"`
	Value []byte `json:"value"`
}

// EncodePairs renders every (key, value) entry of the node as a schema-aware
// row form without touching the node's digest: EncodeValues is transient
// and excluded from Write/Read's canonical form. Grounded on
// original_source/src/encoding.rs's encode_json; that file's Arrow branch
// has no counterpart dependency in this module's stack, so only the JSON
// row encoding is carried over (see DESIGN.md).
func (n *Node) EncodePairs() error {
	n.EncodeTypes = make([]RowType, len(n.Keys))
	n.EncodeValues = make([][]byte, len(n.Keys))
	for i := range n.Keys {
		n.EncodeTypes[i] = RowTypeBytes
		encoded, err := json.Marshal(rowPair{Key: n.Keys[i], Value: n.Values[i]})
		if err != nil {
			return err
		}
		n.EncodeValues[i] = encoded
	}
	return nil
}

// DecodeRow parses one entry previously produced by EncodePairs.
func DecodeRow(data []byte) (key, value []byte, err error) {
	var p rowPair
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, nil, err
	}
	return p.Key, p.Value, nil
}
