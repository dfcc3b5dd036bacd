package persistence

import "fmt"

// DocEntry is one raw document table row.
type DocEntry struct {
	GlobalID   uint32
	NameOff    uint32
	NameLen    uint32
	ContentLen uint32
}

// Tables is the decoded body of an index file: the raw document table,
// the sorted trigram keys and their posting lists, and the name blob.
type Tables struct {
	Docs     []DocEntry
	Keys     []uint32
	Postings [][]uint32
	NameBlob []byte
}

// Name resolves a document's name from the blob.
func (t *Tables) Name(e DocEntry) string {
	return string(t.NameBlob[e.NameOff : e.NameOff+e.NameLen])
}

// ParseTables decodes the body sections described by the header. Any
// out-of-bounds offset, truncated table or unordered trigram key is
// reported as ErrTruncated.
func ParseTables(h *FileHeader, body []byte) (*Tables, error) {
	hs := uint64(HeaderSize)
	docOff := int(h.DocTableOff - hs)
	triOff := int(h.TrigramOff - hs)
	postOff := int(h.PostingOff - hs)
	nameOff := int(h.NameBlobOff - hs)

	docEnd := docOff + int(h.DocCount)*DocEntrySize
	triEnd := triOff + int(h.TrigramCount)*TrigramEntrySize
	if docOff < 0 || docEnd > len(body) || triOff < 0 || triEnd > len(body) ||
		postOff < 0 || postOff > len(body) || nameOff < postOff || nameOff > len(body) {
		return nil, ErrTruncated
	}

	t := &Tables{
		Docs:     make([]DocEntry, h.DocCount),
		Keys:     make([]uint32, h.TrigramCount),
		Postings: make([][]uint32, h.TrigramCount),
		NameBlob: body[nameOff:],
	}

	for i := 0; i < int(h.DocCount); i++ {
		e := docOff + i*DocEntrySize
		d := DocEntry{
			GlobalID:   Uint32At(body, e),
			NameOff:    Uint32At(body, e+4),
			NameLen:    Uint32At(body, e+8),
			ContentLen: Uint32At(body, e+12),
		}
		if int(d.NameOff)+int(d.NameLen) > len(t.NameBlob) {
			return nil, ErrTruncated
		}
		t.Docs[i] = d
	}

	postSection := body[postOff:nameOff]
	var prev uint32
	for i := 0; i < int(h.TrigramCount); i++ {
		e := triOff + i*TrigramEntrySize
		key := Uint32At(body, e)
		off := Uint32At(body, e+4)
		count := Uint32At(body, e+8)
		if i > 0 && key <= prev {
			return nil, fmt.Errorf("%w: trigram table out of order", ErrTruncated)
		}
		prev = key
		end := int(off) + int(count)*4
		if int(off) > len(postSection) || end > len(postSection) {
			return nil, ErrTruncated
		}
		list := make([]uint32, count)
		for j := range list {
			list[j] = Uint32At(postSection, int(off)+j*4)
		}
		t.Keys[i] = key
		t.Postings[i] = list
	}

	return t, nil
}
