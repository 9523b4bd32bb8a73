package protocol

// Records is a batch of TLV records. Blobs are handier than structs
// for database op processing, and they batch into one write nicely.
type Records [][]byte

func (recs Records) TotalLen() (total int64) {
	for _, r := range recs {
		total += int64(len(r))
	}
	return
}

// Join flattens a batch into a single byte string.
func (recs Records) Join() []byte {
	return Concat(recs...)
}
