package utils

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"strings"
)

var errNotDataURL = errors.New("not a base64 data url")

// ImageToJpgBuffer Convert an image to a jpg buffer to write to output
func ImageToJpgBuffer(img image.Image, options *jpeg.Options) ([]byte, error) {
	buf := new(bytes.Buffer)

	err := jpeg.Encode(buf, img, options)
	if err != nil {
		return nil, fmt.Errorf("jpeg encode error: %w", err)
	}
	return buf.Bytes(), nil
}

// ImageToPngBuffer Convert an image to a png buffer to write to output
func ImageToPngBuffer(img image.Image) ([]byte, error) {
	buf := new(bytes.Buffer)

	err := png.Encode(buf, img)
	if err != nil {
		return nil, fmt.Errorf("png encode error: %w", err)
	}
	return buf.Bytes(), nil
}

// MimeType maps an image.DecodeConfig format name to its media type.
func MimeType(format string) string {
	switch format {
	case "jpeg":
		return "image/jpeg"
	case "png", "gif", "bmp", "tiff", "webp":
		return "image/" + format
	}
	return "application/octet-stream"
}

// DataURL Encode a payload as a base64 data url
func DataURL(mime string, data []byte) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// ParseDataURL Decode a base64 data url into its media type and payload
func ParseDataURL(url string) (string, []byte, error) {
	rest, ok := strings.CutPrefix(url, "data:")
	if !ok {
		return "", nil, errNotDataURL
	}
	header, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, errNotDataURL
	}
	mime, ok := strings.CutSuffix(header, ";base64")
	if !ok {
		return "", nil, errNotDataURL
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("decode data url: %w", err)
	}
	return mime, data, nil
}
