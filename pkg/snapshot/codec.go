package snapshot

import (
	"bytes"
	"encoding/gob"
	"fmt"

	"github.com/cuemby/vault/pkg/vaultstore"
	"github.com/cuemby/vault/pkg/vaulterr"
)

// clientState is the plaintext shape serialized before per-client inner
// encryption: the raw key bytes for every vault the client owns, plus its
// record map. Non-secret Store bytes travel alongside, outside this
// envelope, since they need no protection.
type clientState struct {
	Keys    map[vaultstore.VaultId][]byte
	Records map[vaultstore.VaultId]map[vaultstore.RecordId]*vaultstore.Record
}

func encodeClientState(s clientState) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(s); err != nil {
		return nil, vaulterr.New(vaulterr.KindCorruptedContent, "snapshot.codec.encode", err)
	}
	return buf.Bytes(), nil
}

func decodeClientState(b []byte) (clientState, error) {
	var s clientState
	if err := gob.NewDecoder(bytes.NewReader(b)).Decode(&s); err != nil {
		return clientState{}, vaulterr.New(vaulterr.KindCorruptedContent, "snapshot.codec.decode", err)
	}
	return s, nil
}

// fileEntry is what persists on disk per client, inside the outer envelope:
// the inner-encrypted clientState plus the plaintext Store bytes.
type fileEntry struct {
	InnerNonce      [nonceSize]byte
	InnerCiphertext []byte
	StoreBytes      []byte
}

type fileBody struct {
	Clients map[vaultstore.ClientId]fileEntry
}

func encodeFileBody(b fileBody) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(b); err != nil {
		return nil, vaulterr.New(vaulterr.KindCorruptedContent, "snapshot.codec.encode_body", err)
	}
	return buf.Bytes(), nil
}

func decodeFileBody(data []byte) (fileBody, error) {
	var b fileBody
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&b); err != nil {
		return fileBody{}, vaulterr.New(vaulterr.KindCorruptedContent, "snapshot.codec.decode_body", err)
	}
	return b, nil
}

func innerKeyLocation(cid vaultstore.ClientId) (vaultstore.VaultId, vaultstore.RecordId) {
	return vaultstore.H24([]byte("snapshot:inner-keys")), vaultstore.RecordId(cid)
}

var errBadEnvelope = fmt.Errorf("malformed snapshot envelope")
