package document

import (
	"bytes"
	"compress/zlib"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
)

var (
	ErrNoAttachment = errors.New("document: no embedded artifact")

	embeddedFileHeader = regexp.MustCompile(`/Type /EmbeddedFile /Length (\d+)( /Filter /FlateDecode)?(?: /Params << /CheckSum <([0-9a-f]{32})> /Size (\d+) >>)? >>\s*stream\r?\n`)
)

// ExtractArtifact returns the artifact bytes embedded by Compose. The MD5 and
// size recorded next to the stream are checked when present.
func ExtractArtifact(pdf []byte) ([]byte, error) {
	loc := embeddedFileHeader.FindSubmatchIndex(pdf)
	if loc == nil {
		return nil, ErrNoAttachment
	}
	group := func(i int) []byte {
		if loc[2*i] < 0 {
			return nil
		}
		return pdf[loc[2*i]:loc[2*i+1]]
	}

	length, err := strconv.Atoi(string(group(1)))
	if err != nil {
		return nil, fmt.Errorf("document: bad stream length: %w", err)
	}
	start := loc[1]
	if length < 0 || start+length > len(pdf) {
		return nil, fmt.Errorf("document: stream length %d exceeds file", length)
	}
	stream := pdf[start : start+length]

	data := stream
	if group(2) != nil {
		zr, err := zlib.NewReader(bytes.NewReader(stream))
		if err != nil {
			return nil, fmt.Errorf("document: open stream: %w", err)
		}
		defer zr.Close()
		if data, err = io.ReadAll(zr); err != nil {
			return nil, fmt.Errorf("document: inflate stream: %w", err)
		}
	}

	if sum := group(3); sum != nil {
		got := md5.Sum(data)
		if hex.EncodeToString(got[:]) != string(sum) {
			return nil, fmt.Errorf("document: checksum mismatch")
		}
	}
	if size := group(4); size != nil {
		if n, err := strconv.Atoi(string(size)); err != nil || n != len(data) {
			return nil, fmt.Errorf("document: size mismatch")
		}
	}
	return data, nil
}
