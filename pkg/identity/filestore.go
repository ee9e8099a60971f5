package identity

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"

	"filippo.io/age"

	"github.com/benhaq/sui-nautilus/pkg/filesystem"
	"github.com/benhaq/sui-nautilus/pkg/logger"
)

// LoadWalletSeed reads the wallet seed provisioned by the operator. An
// age-encrypted file (<name>_private.key.age) takes precedence and requires a
// passphrase; otherwise a plain hex seed file (<name>_private.key) is used.
// Returns nil without error when neither exists, letting the caller fall back
// to a fresh key.
func LoadWalletSeed(dir, name, passphrase string) ([]byte, error) {
	encryptedPath, err := filesystem.SafeJoin(dir, name+"_private.key.age")
	if err != nil {
		return nil, err
	}
	plainPath, err := filesystem.SafeJoin(dir, name+"_private.key")
	if err != nil {
		return nil, err
	}

	if _, err := os.Stat(encryptedPath); err == nil {
		if passphrase == "" {
			return nil, fmt.Errorf("wallet key %s is encrypted but no passphrase was provided", encryptedPath)
		}
		logger.Infof("Using age-encrypted wallet key for %s", name)
		return decryptSeedFile(encryptedPath, passphrase)
	}

	if _, err := os.Stat(plainPath); err != nil {
		return nil, nil
	}

	data, err := os.ReadFile(plainPath)
	if err != nil {
		return nil, fmt.Errorf("read wallet key file: %w", err)
	}
	return decodeSeed(string(data))
}

// SaveWalletSeed writes a wallet seed, age-encrypted when a passphrase is
// given. Refuses to overwrite unless told to.
func SaveWalletSeed(dir, name string, seed []byte, passphrase string, overwrite bool) (string, error) {
	if err := filesystem.EnsureDir(dir); err != nil {
		return "", err
	}

	filename := name + "_private.key"
	if passphrase != "" {
		filename += ".age"
	}
	path, err := filesystem.SafeJoin(dir, filename)
	if err != nil {
		return "", err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return "", fmt.Errorf("wallet key %s already exists (use overwrite to replace)", path)
		}
	}

	if passphrase == "" {
		if err := os.WriteFile(path, []byte(hex.EncodeToString(seed)), 0o600); err != nil {
			return "", fmt.Errorf("write wallet key file: %w", err)
		}
		return path, nil
	}

	recipient, err := age.NewScryptRecipient(passphrase)
	if err != nil {
		return "", fmt.Errorf("create age recipient: %w", err)
	}

	out, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return "", fmt.Errorf("create wallet key file: %w", err)
	}
	defer out.Close()

	w, err := age.Encrypt(out, recipient)
	if err != nil {
		return "", fmt.Errorf("encrypt wallet key: %w", err)
	}
	if _, err := w.Write([]byte(hex.EncodeToString(seed))); err != nil {
		return "", fmt.Errorf("write encrypted wallet key: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("finalize encrypted wallet key: %w", err)
	}
	return path, nil
}

func decryptSeedFile(path, passphrase string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open encrypted wallet key: %w", err)
	}
	defer f.Close()

	ident, err := age.NewScryptIdentity(passphrase)
	if err != nil {
		return nil, fmt.Errorf("create age identity: %w", err)
	}
	r, err := age.Decrypt(f, ident)
	if err != nil {
		return nil, fmt.Errorf("decrypt wallet key: %w", err)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read decrypted wallet key: %w", err)
	}
	return decodeSeed(string(data))
}

func decodeSeed(s string) ([]byte, error) {
	seed, err := hex.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("invalid wallet seed format: %w", err)
	}
	return seed, nil
}
