// Package codec turns platform file identifiers into the stable keys the media index is keyed by.
package codec

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"io"
	"strings"

	"github.com/pkg/errors"
)

var ErrMalformedIdentifier = errors.New("malformed file identifier")

const (
	webLocationFlag   = 1 << 24
	fileReferenceFlag = 1 << 25

	// highest known file type value
	maxFileType = 17
)

// trailer appended to every key before the zero-run pass, kept for compatibility with stored keys
var keyTrailer = []byte{22, 4}

// FileID holds the fields of a decoded platform file identifier
type FileID struct {
	Type       int32
	DC         int32
	MediaID    int64
	AccessHash int64
	Reference  []byte
}

// Decoder parses raw platform file identifiers
type Decoder interface {
	Decode(raw string) (FileID, error)
}

// Native decodes the platform's binary identifier format without external help
type Native struct{}

func (Native) Decode(raw string) (id FileID, err error) {
	data, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(raw, "="))
	if err != nil {
		return id, errors.Wrap(ErrMalformedIdentifier, err.Error())
	}
	data = zeroRunDecode(data)
	if len(data) < 1 {
		return id, ErrMalformedIdentifier
	}

	major := data[len(data)-1]
	if major < 4 {
		data = data[:len(data)-1]
	} else {
		if len(data) < 2 {
			return id, ErrMalformedIdentifier
		}
		data = data[:len(data)-2]
	}

	reader := bytes.NewReader(data)
	var header struct {
		Type int32
		DC   int32
	}
	if err = binary.Read(reader, binary.LittleEndian, &header); err != nil {
		return id, errors.Wrap(ErrMalformedIdentifier, "header")
	}
	if header.Type&webLocationFlag != 0 {
		return id, errors.Wrap(ErrMalformedIdentifier, "web locations carry no media id")
	}

	id.Type = header.Type &^ (webLocationFlag | fileReferenceFlag)
	id.DC = header.DC
	if id.Type < 0 || id.Type > maxFileType {
		return id, errors.Wrapf(ErrMalformedIdentifier, "unknown file type %d", id.Type)
	}

	if header.Type&fileReferenceFlag != 0 {
		id.Reference, err = readTLBytes(reader)
		if err != nil {
			return id, err
		}
	}

	var location struct {
		MediaID    int64
		AccessHash int64
	}
	if err = binary.Read(reader, binary.LittleEndian, &location); err != nil {
		return id, errors.Wrap(ErrMalformedIdentifier, "location")
	}
	id.MediaID = location.MediaID
	id.AccessHash = location.AccessHash

	return id, nil
}

// EncodeKey packs the four stable fields as <int32,int32,int64,int64>, appends the trailer,
// collapses zero runs and returns unpadded base64url.
func EncodeKey(fileType, dc int32, mediaID, accessHash int64) string {
	buf := make([]byte, 24)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(fileType))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(dc))
	binary.LittleEndian.PutUint64(buf[8:16], uint64(mediaID))
	binary.LittleEndian.PutUint64(buf[16:24], uint64(accessHash))

	return base64.RawURLEncoding.EncodeToString(zeroRunEncode(append(buf, keyTrailer...)))
}

// EncodeReference is unpadded base64url of the raw reference bytes
func EncodeReference(reference []byte) string {
	return base64.RawURLEncoding.EncodeToString(reference)
}

// Unpack decodes raw and returns its key and reference token
func Unpack(decoder Decoder, raw string) (key, reference string, err error) {
	id, err := decoder.Decode(raw)
	if err != nil {
		return "", "", err
	}
	return EncodeKey(id.Type, id.DC, id.MediaID, id.AccessHash), EncodeReference(id.Reference), nil
}

// zeroRunEncode replaces every run of zero bytes with 0x00 followed by the run length.
// A trailing run is dropped, callers always end the input with non-zero bytes.
func zeroRunEncode(data []byte) []byte {
	out := make([]byte, 0, len(data))
	zeros := 0
	for _, b := range data {
		if b == 0 {
			zeros++
			continue
		}
		if zeros > 0 {
			out = append(out, 0, byte(zeros))
			zeros = 0
		}
		out = append(out, b)
	}
	return out
}

func zeroRunDecode(data []byte) []byte {
	out := make([]byte, 0, len(data)*2)
	for i := 0; i < len(data); i++ {
		if data[i] != 0 {
			out = append(out, data[i])
			continue
		}
		i++
		if i < len(data) {
			out = append(out, make([]byte, data[i])...)
		}
	}
	return out
}

// readTLBytes reads a length prefixed, 4-byte aligned byte string
func readTLBytes(reader *bytes.Reader) ([]byte, error) {
	first, err := reader.ReadByte()
	if err != nil {
		return nil, errors.Wrap(ErrMalformedIdentifier, "file reference")
	}

	length, prefix := int(first), 1
	if first == 254 {
		var ext [3]byte
		if _, err = io.ReadFull(reader, ext[:]); err != nil {
			return nil, errors.Wrap(ErrMalformedIdentifier, "file reference length")
		}
		length, prefix = int(ext[0])|int(ext[1])<<8|int(ext[2])<<16, 4
	}
	if length > reader.Len() {
		return nil, errors.Wrap(ErrMalformedIdentifier, "file reference overflows identifier")
	}

	value := make([]byte, length)
	if _, err = io.ReadFull(reader, value); err != nil {
		return nil, errors.Wrap(ErrMalformedIdentifier, "file reference")
	}
	if padding := (4 - (length+prefix)%4) % 4; padding > 0 {
		if _, err = reader.Seek(int64(padding), io.SeekCurrent); err != nil {
			return nil, errors.Wrap(ErrMalformedIdentifier, "file reference padding")
		}
	}
	return value, nil
}
