package test_utils

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

// Sample project, with a default target and a preview target
const Project = `
flags: [-y, -loglevel, error]
output: [-c:v, libx264, final.mp4]
all:
  concat:
    - {clip: store://intro.mp4, scale: 640x480}
    - {clip: {file: main.mp4, start: 0:05, duration: 20}, fadeout: 2}
preview:
  clip:
    file: main.mp4
    duration: 5
`

// WriteFile Create a file with the given content in a new temp dir and return its path
func WriteFile(t *testing.T, name string, content []byte) string {
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, content, 0644); err != nil {
		t.Fatal(err)
	}
	return p
}

// FakeBinary Write an executable shell script standing for an external tool (ffmpeg, ffprobe...)
func FakeBinary(t *testing.T, script string) string {
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts are not executable on windows")
	}
	p := filepath.Join(t.TempDir(), "bin")
	if err := os.WriteFile(p, []byte("#!/bin/sh\n"+script), 0755); err != nil {
		t.Fatal(err)
	}
	return p
}

// B64 content as returned by a Dapr binding
func B64(content []byte) []byte {
	return []byte(base64.StdEncoding.EncodeToString(content))
}

// Checksum returns the SHA-256 checksum of the specified file
func GetChecksum(filename string) (string, error) {
	// Open the file
	file, err := os.Open(filename)
	if err != nil {
		return "", err
	}
	defer file.Close()
	// Create a new SHA-256 hasher
	hasher := sha256.New()
	// Copy the file contents to the hasher
	_, err = io.Copy(hasher, file)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}
