package service

import (
	"crypto/hmac"
	"crypto/md5"
	"crypto/sha256"
	"encoding/base64"
)

// signBody produces the venue's two-step request signature: the body is
// md5-hashed and base64-encoded, joined with method and path into the
// string to sign, then HMAC-SHA256 over that with the api secret.
func signBody(secret, method, path string, body []byte) (bodyHash, signature string) {
	sum := md5.Sum(body)
	bodyHash = base64.StdEncoding.EncodeToString(sum[:])

	stringToSign := method + "\n" + path + "\n" + bodyHash

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(stringToSign))
	signature = base64.StdEncoding.EncodeToString(mac.Sum(nil))
	return bodyHash, signature
}
