package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
)

const argon2Prefix = "$argon2id$"

// argonCost is the parameter block stored in every hash.
type argonCost struct {
	memory  uint32 // KiB
	passes  uint32
	threads uint8
}

var defaultCost = argonCost{memory: 19 * 1024, passes: 2, threads: 1}

const (
	saltSize = 16
	keySize  = 32
)

var rawStd = base64.RawStdEncoding

func (c argonCost) derive(password string, salt []byte, size uint32) []byte {
	return argon2.IDKey([]byte(password), salt, c.passes, c.memory, c.threads, size)
}

// HashPassword creates an Argon2id hash suitable for ADMIN_PASS or a
// FAMILY_USERS entry:
//
//	$argon2id$v=19$m=19456,t=2,p=1$<salt>$<key>
func HashPassword(password string) (string, error) {
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("reading salt: %w", err)
	}
	c := defaultCost
	key := c.derive(password, salt, keySize)

	var b strings.Builder
	b.WriteString(argon2Prefix)
	b.WriteString("v=" + strconv.Itoa(argon2.Version))
	b.WriteString("$m=" + strconv.FormatUint(uint64(c.memory), 10))
	b.WriteString(",t=" + strconv.FormatUint(uint64(c.passes), 10))
	b.WriteString(",p=" + strconv.FormatUint(uint64(c.threads), 10))
	b.WriteString("$" + rawStd.EncodeToString(salt))
	b.WriteString("$" + rawStd.EncodeToString(key))
	return b.String(), nil
}

// decodeHash splits an encoded hash into its cost, salt and key.
func decodeHash(encoded string) (argonCost, []byte, []byte, error) {
	var c argonCost
	rest, ok := strings.CutPrefix(encoded, argon2Prefix)
	if !ok {
		return c, nil, nil, errors.New("not an argon2id hash")
	}
	fields := strings.Split(rest, "$")
	if len(fields) != 4 {
		return c, nil, nil, errors.New("malformed argon2id hash")
	}
	if fields[0] != "v="+strconv.Itoa(argon2.Version) {
		return c, nil, nil, fmt.Errorf("unsupported argon2 version %q", fields[0])
	}

	for _, kv := range strings.Split(fields[1], ",") {
		name, raw, _ := strings.Cut(kv, "=")
		n, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			return c, nil, nil, fmt.Errorf("argon2 parameter %q: %w", kv, err)
		}
		switch name {
		case "m":
			c.memory = uint32(n)
		case "t":
			c.passes = uint32(n)
		case "p":
			if n > 255 {
				return c, nil, nil, fmt.Errorf("argon2 parameter %q out of range", kv)
			}
			c.threads = uint8(n)
		default:
			return c, nil, nil, fmt.Errorf("unknown argon2 parameter %q", kv)
		}
	}
	if c.memory == 0 || c.passes == 0 || c.threads == 0 {
		return c, nil, nil, errors.New("incomplete argon2 parameters")
	}

	salt, err := rawStd.DecodeString(fields[2])
	if err != nil {
		return c, nil, nil, fmt.Errorf("salt: %w", err)
	}
	key, err := rawStd.DecodeString(fields[3])
	if err != nil {
		return c, nil, nil, fmt.Errorf("key: %w", err)
	}
	if len(key) == 0 {
		return c, nil, nil, errors.New("empty argon2 key")
	}
	return c, salt, key, nil
}

// CheckPassword compares password with a stored secret, which is either
// an Argon2id hash or a plain value. Plain values are compared through
// their digests so the comparison does not leak length.
func CheckPassword(password, stored string) bool {
	if stored == "" {
		return false
	}
	if strings.HasPrefix(stored, argon2Prefix) {
		c, salt, key, err := decodeHash(stored)
		if err != nil {
			return false
		}
		got := c.derive(password, salt, uint32(len(key)))
		return subtle.ConstantTimeCompare(got, key) == 1
	}
	a := sha256.Sum256([]byte(password))
	b := sha256.Sum256([]byte(stored))
	return subtle.ConstantTimeCompare(a[:], b[:]) == 1
}
