package services

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"regexp"

	"github.com/figma-chunkstore/chunkstore/models"
)

var idPattern = regexp.MustCompile(`^([^:]+):([^:]+)(?::([^:]+))?$`)

// ParsedID is the decomposition of a chunk id string.
type ParsedID struct {
	FileKey    string
	Type       models.Type
	Identifier string
}

// GenerateID builds a chunk id of the form "fileKey:type:identifier".
// When identifier is empty, a 16-hex-character random token is used in
// its place, mirroring the teacher's crypto/rand token generation in
// utils/hash.go.
func GenerateID(fileKey string, t models.Type, identifier string) (string, error) {
	if identifier == "" {
		token, err := randomToken()
		if err != nil {
			return "", fmt.Errorf("generate chunk id: %w", err)
		}
		identifier = token
	}
	return fmt.Sprintf("%s:%s:%s", fileKey, string(t), identifier), nil
}

func randomToken() (string, error) {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// ParseID decomposes id into its fileKey/type/identifier parts. It
// fails if id doesn't match the wire format or names an unrecognized
// type.
func ParseID(id string) (ParsedID, error) {
	m := idPattern.FindStringSubmatch(id)
	if m == nil {
		return ParsedID{}, fmt.Errorf("parse chunk id %q: malformed", id)
	}
	t := models.Type(m[2])
	if !t.IsValid() {
		return ParsedID{}, fmt.Errorf("parse chunk id %q: unrecognized type %q", id, m[2])
	}
	return ParsedID{FileKey: m[1], Type: t, Identifier: m[3]}, nil
}

// ValidateID reports whether ParseID would succeed for id.
func ValidateID(id string) bool {
	_, err := ParseID(id)
	return err == nil
}
