// Package auth implements wallet sign-in: SIWE messages, single-use nonces,
// personal-sign signature recovery and JWT sessions.
package auth

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const siweStatement = "Welcome to HoloPass! Sign this message to authenticate your digital identity."

// SIWEMessage holds the fields of a sign-in message
type SIWEMessage struct {
	Domain   string
	Address  string
	URI      string
	ChainID  int64
	Nonce    string
	IssuedAt time.Time
}

// String renders the message the wallet is asked to sign
func (m SIWEMessage) String() string {
	return fmt.Sprintf(`%s wants you to sign in with your Ethereum account:
%s

%s

URI: %s
Version: 1
Chain ID: %d
Nonce: %s
Issued At: %s`,
		m.Domain, m.Address, siweStatement, m.URI, m.ChainID, m.Nonce,
		m.IssuedAt.UTC().Format(time.RFC3339))
}

// ParseSIWEMessage extracts the fields of a message built by String
func ParseSIWEMessage(msg string) (*SIWEMessage, error) {
	lines := strings.Split(strings.ReplaceAll(msg, "\r\n", "\n"), "\n")
	if len(lines) < 2 {
		return nil, fmt.Errorf("message too short")
	}

	header := lines[0]
	const suffix = " wants you to sign in with your Ethereum account:"
	if !strings.HasSuffix(header, suffix) {
		return nil, fmt.Errorf("missing sign-in header")
	}

	m := &SIWEMessage{
		Domain:  strings.TrimSuffix(header, suffix),
		Address: strings.TrimSpace(lines[1]),
	}

	for _, line := range lines[2:] {
		key, value, ok := strings.Cut(line, ": ")
		if !ok {
			continue
		}
		switch key {
		case "URI":
			m.URI = value
		case "Chain ID":
			id, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid chain id: %w", err)
			}
			m.ChainID = id
		case "Nonce":
			m.Nonce = value
		case "Issued At":
			t, err := time.Parse(time.RFC3339, value)
			if err != nil {
				return nil, fmt.Errorf("invalid issued at: %w", err)
			}
			m.IssuedAt = t
		}
	}

	if m.Nonce == "" {
		return nil, fmt.Errorf("missing nonce")
	}
	return m, nil
}
