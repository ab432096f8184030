package block

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"io"
	"sort"

	"golang.org/x/crypto/blake2b"

	"github.com/occlock/vault/errs"
	"github.com/occlock/vault/suite"
)

// Version is the one-byte format version prefix of every encoded block.
const Version = 0x01

// Canonicalize sorts a block's headers by suite tag and each header's
// recipients by identity id, so two in-memory constructions of the same
// logical block encode to the same bytes and so the same block-id. Encode
// always canonicalizes before writing; call this directly only to compare
// two in-memory blocks for equality.
func Canonicalize(b *Block) {
	sort.Slice(b.Headers, func(i, j int) bool { return b.Headers[i].Suite < b.Headers[j].Suite })
	for i := range b.Headers {
		rs := b.Headers[i].Recipients
		sort.Slice(rs, func(a, c int) bool { return rs[a].IdentityID < rs[c].IdentityID })
	}
}

// Encode serializes b into the canonical wire form: a version byte, a
// 4-byte big-endian length prefix, then the framed message.
func Encode(b *Block) ([]byte, error) {
	cp := *b
	cp.Headers = append([]Header(nil), b.Headers...)
	for i := range cp.Headers {
		cp.Headers[i].Recipients = append([]suite.RecipientKey(nil), b.Headers[i].Recipients...)
	}
	Canonicalize(&cp)

	var msg bytes.Buffer
	writeUint32(&msg, uint32(len(cp.Headers)))
	for _, h := range cp.Headers {
		msg.WriteByte(byte(h.Suite))
		writeBytes(&msg, h.CommonKey)
		writeUint32(&msg, uint32(len(h.Recipients)))
		for _, r := range h.Recipients {
			writeString(&msg, r.IdentityID)
			writeBytes(&msg, r.CryptedKey)
		}
	}
	writeBytes(&msg, cp.Content)

	var out bytes.Buffer
	out.WriteByte(Version)
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(msg.Len()))
	out.Write(lenBuf[:])
	out.Write(msg.Bytes())
	return out.Bytes(), nil
}

// Decode parses the canonical wire form produced by Encode.
func Decode(data []byte) (*Block, error) {
	const op = "block.Decode"
	if len(data) < 5 {
		return nil, errs.E(op, errs.InvalidBlock)
	}
	if data[0] != Version {
		return nil, errs.E(op, errs.InvalidBlock)
	}
	length := binary.BigEndian.Uint32(data[1:5])
	msg := data[5:]
	if uint32(len(msg)) != length {
		return nil, errs.E(op, errs.InvalidBlock)
	}
	r := bytes.NewReader(msg)

	headerCount, err := readUint32(r)
	if err != nil {
		return nil, errs.E(op, errs.InvalidBlock, err)
	}
	b := &Block{}
	for i := uint32(0); i < headerCount; i++ {
		tag, err := r.ReadByte()
		if err != nil {
			return nil, errs.E(op, errs.InvalidBlock, err)
		}
		commonKey, err := readBytes(r)
		if err != nil {
			return nil, errs.E(op, errs.InvalidBlock, err)
		}
		recipCount, err := readUint32(r)
		if err != nil {
			return nil, errs.E(op, errs.InvalidBlock, err)
		}
		h := Header{Suite: suite.KeyType(tag), CommonKey: commonKey}
		for j := uint32(0); j < recipCount; j++ {
			id, err := readString(r)
			if err != nil {
				return nil, errs.E(op, errs.InvalidBlock, err)
			}
			crypted, err := readBytes(r)
			if err != nil {
				return nil, errs.E(op, errs.InvalidBlock, err)
			}
			h.Recipients = append(h.Recipients, suite.RecipientKey{IdentityID: id, CryptedKey: crypted})
		}
		b.Headers = append(b.Headers, h)
	}
	content, err := readBytes(r)
	if err != nil {
		return nil, errs.E(op, errs.InvalidBlock, err)
	}
	b.Content = content
	if r.Len() != 0 {
		return nil, errs.E(op, errs.Padding)
	}
	if len(b.Headers) == 0 {
		return nil, errs.E(op, errs.InvalidBlock)
	}
	return b, nil
}

// ID returns the content address of encoded block bytes: BLAKE2b-256 over
// the canonical wire form, rendered as hex.
func ID(encoded []byte) string {
	sum := blake2b.Sum256(encoded)
	return hex.EncodeToString(sum[:])
}

func writeUint32(w *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	w.Write(b[:])
}

func writeBytes(w *bytes.Buffer, b []byte) {
	writeUint32(w, uint32(len(b)))
	w.Write(b)
}

func writeString(w *bytes.Buffer, s string) {
	writeBytes(w, []byte(s))
}

func readUint32(r *bytes.Reader) (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b[:]), nil
}

func readBytes(r *bytes.Reader) ([]byte, error) {
	n, err := readUint32(r)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, err
	}
	return b, nil
}

func readString(r *bytes.Reader) (string, error) {
	b, err := readBytes(r)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
