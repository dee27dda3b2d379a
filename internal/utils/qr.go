package utils

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// GenerateHMAC signs a student id for a QR code
func GenerateHMAC(studentID, secret string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(studentID))
	return hex.EncodeToString(h.Sum(nil))
}

// GenerateStudentToken builds the QR payload "studentID.signature"
func GenerateStudentToken(studentID, secret string) (string, error) {
	if studentID == "" {
		return "", fmt.Errorf("student id is empty")
	}
	if strings.Contains(studentID, ".") {
		return "", fmt.Errorf("student id %q must not contain '.'", studentID)
	}
	return studentID + "." + GenerateHMAC(studentID, secret), nil
}

// VerifyStudentToken checks a scanned QR payload and returns the student id
func VerifyStudentToken(token, secret string) (string, error) {
	token = strings.TrimSpace(token)
	i := strings.LastIndexByte(token, '.')
	if i <= 0 || i == len(token)-1 {
		return "", fmt.Errorf("malformed student token")
	}
	studentID, sig := token[:i], token[i+1:]

	got, err := hex.DecodeString(sig)
	if err != nil {
		return "", fmt.Errorf("malformed student token signature: %w", err)
	}
	want, _ := hex.DecodeString(GenerateHMAC(studentID, secret))
	if !hmac.Equal(got, want) {
		return "", fmt.Errorf("student token signature mismatch")
	}
	return studentID, nil
}
