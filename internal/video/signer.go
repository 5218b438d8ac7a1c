package video

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ProjectAssertionTTL bounds how long a project assertion is accepted by the
// video API.
const ProjectAssertionTTL = 300 * time.Second

var ErrInvalidToken = errors.New("invalid token")

// The header is fixed byte for byte; the video API compares it literally.
var encodedHeader = base64.RawURLEncoding.EncodeToString([]byte(`{"typ":"JWT","alg":"HS256"}`))

type ACL struct {
	Paths map[string]struct{} `json:"paths"`
}

type Claims struct {
	Iss string `json:"iss"`
	Ist string `json:"ist"`
	Iat int64  `json:"iat"`
	Jti string `json:"jti,omitempty"`
	Exp int64  `json:"exp"`
	ACL *ACL   `json:"acl,omitempty"`
}

// Signer issues HS256 assertions in the video provider's format.
type Signer struct {
	apiKey string
	secret []byte
}

func NewSigner(apiKey, secret string) *Signer {
	return &Signer{apiKey: apiKey, secret: []byte(secret)}
}

// ProjectAssertion authenticates server-to-server calls to the video API.
func (s *Signer) ProjectAssertion(now time.Time) (string, error) {
	iat := now.Unix()
	return s.sign(Claims{
		Iss: s.apiKey,
		Ist: "project",
		Iat: iat,
		Exp: iat + int64(ProjectAssertionTTL/time.Second),
	})
}

// JoinToken grants access to one session until expireAt.
func (s *Signer) JoinToken(sessionID string, expireAt, now time.Time) (string, error) {
	return s.sign(Claims{
		Iss: s.apiKey,
		Ist: "project",
		Iat: now.Unix(),
		Jti: uuid.NewString(),
		Exp: expireAt.Unix(),
		ACL: &ACL{Paths: map[string]struct{}{sessionPath(sessionID): {}}},
	})
}

// VerifyJoinToken checks the signature, expiry and session path of a token
// produced by JoinToken.
func (s *Signer) VerifyJoinToken(token, sessionID string, now time.Time) (*Claims, error) {
	claims, err := s.verify(token)
	if err != nil {
		return nil, err
	}
	if now.Unix() >= claims.Exp {
		return nil, ErrInvalidToken
	}
	if claims.ACL == nil {
		return nil, ErrInvalidToken
	}
	if _, ok := claims.ACL.Paths[sessionPath(sessionID)]; !ok {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (s *Signer) sign(c Claims) (string, error) {
	payload, err := json.Marshal(c)
	if err != nil {
		return "", err
	}
	unsigned := encodedHeader + "." + base64.RawURLEncoding.EncodeToString(payload)
	return unsigned + "." + s.mac(unsigned), nil
}

func (s *Signer) verify(token string) (*Claims, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 || parts[0] != encodedHeader {
		return nil, ErrInvalidToken
	}
	unsigned := parts[0] + "." + parts[1]
	if !hmac.Equal([]byte(parts[2]), []byte(s.mac(unsigned))) {
		return nil, ErrInvalidToken
	}

	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return nil, ErrInvalidToken
	}
	var c Claims
	if err := json.Unmarshal(payload, &c); err != nil {
		return nil, ErrInvalidToken
	}
	return &c, nil
}

func (s *Signer) mac(data string) string {
	m := hmac.New(sha256.New, s.secret)
	_, _ = m.Write([]byte(data))
	return base64.RawURLEncoding.EncodeToString(m.Sum(nil))
}

func sessionPath(sessionID string) string {
	return "/session/" + sessionID
}
