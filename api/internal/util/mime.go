package util

import (
	"encoding/base64"
	"mime"
	"net/http"
	"strings"
)

const octetStream = "application/octet-stream"

// SniffMimeHTTP recognises the common image signatures, then defers to
// http.DetectContentType.
func SniffMimeHTTP(b []byte) string {
	if len(b) >= 2 && b[0] == 0xFF && b[1] == 0xD8 {
		return "image/jpeg"
	}
	if len(b) >= 8 &&
		b[0] == 0x89 && b[1] == 0x50 && b[2] == 0x4E && b[3] == 0x47 &&
		b[4] == 0x0D && b[5] == 0x0A && b[6] == 0x1A && b[7] == 0x0A {
		return "image/png"
	}
	// HEIC/HEIF: ....ftypheic / ftypheix / ftypmif1
	if len(b) >= 12 && string(b[4:8]) == "ftyp" {
		switch string(b[8:12]) {
		case "heic", "heix", "hevc":
			return "image/heic"
		case "mif1", "msf1":
			return "image/heif"
		}
	}
	if len(b) == 0 {
		return octetStream
	}
	ct := http.DetectContentType(b)
	if mt, _, err := mime.ParseMediaType(ct); err == nil {
		return mt
	}
	return ct
}

// PickMIME takes the declared media type unless it is missing or generic,
// in which case the bytes decide.
func PickMIME(declared string, data []byte) string {
	if mt, _, err := mime.ParseMediaType(strings.TrimSpace(declared)); err == nil && mt != octetStream {
		return mt
	}
	return SniffMimeHTTP(data)
}

// EncodeBase64 is the inline-data encoding expected by the Gemini REST API.
func EncodeBase64(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}
