package host

import "github.com/lodge-db/lodge/rdt"

// Key layout: object and field records live under the 'O' prefix as
// 'O' + 8-byte big-endian id + kind byte. The kind letter is part of
// the key, so a field whose kind changed across schema versions never
// aliases its old bytes.

const OKeyLen = 1 + 8 + 1

func OKey(id rdt.ID, kind rdt.Kind) (key []byte) {
	ret := make([]byte, 0, OKeyLen)
	ret = append(ret, 'O')
	ret = append(ret, id.Bytes()...)
	ret = append(ret, byte(kind))
	return ret
}

func OKeyIdKind(key []byte) (id rdt.ID, kind rdt.Kind) {
	if len(key) != OKeyLen {
		return rdt.BadID, rdt.None
	}
	id = rdt.IDFromBytes(key[1 : OKeyLen-1])
	kind = rdt.Kind(key[OKeyLen-1])
	return
}

// ObjectKeyRange bounds every record of one object: its 'O' head and
// all field offsets.
func ObjectKeyRange(oid rdt.ID) (fro, til []byte) {
	oid = oid.ZeroOff()
	return OKey(oid, 0), OKey(oid.ToOff(rdt.MaxOff), 0xff)
}

// ClassKey addresses a stored class description.
func ClassKey(cid rdt.ID) []byte {
	return OKey(cid, 'C')
}

// NameKey maps a class name to its id.
func NameKey(name string) []byte {
	return append([]byte{'N'}, name...)
}

// Store metadata keys.
var (
	KeySchemaVersion = []byte("Mschemav")
	KeyLastID        = []byte("Mlastid")
	KeyName          = []byte("Mname")
	KeySource        = []byte("Msrc")
)
