package util

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	ErrNotDataURL   = errors.New("not a base64 data URI")
	ErrNotImage     = errors.New("data URI is not an image")
	ErrEmptyPayload = errors.New("data URI payload is empty")
)

// SniffMimeHTTP recognises the formats Telegram hands out for photos and documents.
func SniffMimeHTTP(b []byte) string {
	if len(b) >= 2 && b[0] == 0xFF && b[1] == 0xD8 {
		return "image/jpeg"
	}
	if len(b) >= 8 &&
		b[0] == 0x89 && b[1] == 0x50 && b[2] == 0x4E && b[3] == 0x47 &&
		b[4] == 0x0D && b[5] == 0x0A && b[6] == 0x1A && b[7] == 0x0A {
		return "image/png"
	}
	return "application/octet-stream"
}

func MakeDataURL(mime string, data []byte) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// DecodeBase64MaybeDataURL decodes base64. For a data URI the MIME from the prefix is returned too.
func DecodeBase64MaybeDataURL(s string) ([]byte, string, error) {
	s = strings.TrimSpace(s)
	var hintMIME string
	if strings.HasPrefix(s, "data:") {
		// data:<mime>;base64,<payload>
		if idx := strings.IndexByte(s, ','); idx > 0 {
			meta := s[len("data:"):idx]
			if semi := strings.IndexByte(meta, ';'); semi >= 0 {
				hintMIME = meta[:semi]
			} else {
				hintMIME = meta
			}
			s = s[idx+1:]
		}
	}
	// standard alphabet first, then URL-safe
	if b, err := base64.StdEncoding.DecodeString(s); err == nil {
		return b, hintMIME, nil
	} else if b2, err2 := base64.URLEncoding.DecodeString(s); err2 == nil {
		return b2, hintMIME, nil
	} else {
		return nil, "", err
	}
}

// DecodeImageDataURL accepts only data:image/<subtype>;base64,<payload> with a non-empty payload.
func DecodeImageDataURL(s string) ([]byte, string, error) {
	s = strings.TrimSpace(s)
	idx := strings.IndexByte(s, ',')
	if !strings.HasPrefix(s, "data:") || idx < 0 || !strings.HasSuffix(s[:idx], ";base64") {
		return nil, "", ErrNotDataURL
	}
	mime := strings.ToLower(strings.TrimSuffix(s[len("data:"):idx], ";base64"))
	if semi := strings.IndexByte(mime, ';'); semi >= 0 {
		mime = mime[:semi]
	}
	if !strings.HasPrefix(mime, "image/") || len(mime) == len("image/") {
		return nil, "", fmt.Errorf("%w: %q", ErrNotImage, mime)
	}
	data, _, err := DecodeBase64MaybeDataURL(s[idx+1:])
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrNotDataURL, err)
	}
	if len(data) == 0 {
		return nil, "", ErrEmptyPayload
	}
	return data, mime, nil
}

// PickMIME prefers the explicit MIME, then the data URI hint, then sniffs the bytes.
func PickMIME(explicit, hint string, data []byte) string {
	if exp := strings.TrimSpace(explicit); exp != "" {
		return exp
	}
	if h := strings.TrimSpace(hint); h != "" {
		return h
	}
	if len(data) > 0 {
		if m := SniffMimeHTTP(data); m != "application/octet-stream" {
			return m
		}
		return http.DetectContentType(data)
	}

	return "image/jpeg"
}
